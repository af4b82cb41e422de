package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func joinSet(parts []string) string {
	return strings.Join(parts, ", ")
}

// readUpload pulls one multipart file field into memory. Writes the error
// response itself and returns ok=false on failure.
func readUpload(c *gin.Context, field string) (data []byte, filename, contentType string, ok bool) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Файл не найден в запросе"})
		return nil, "", "", false
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось прочитать файл"})
		return nil, "", "", false
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Не удалось прочитать файл"})
		return nil, "", "", false
	}
	return data, fileHeader.Filename, fileHeader.Header.Get("Content-Type"), true
}
