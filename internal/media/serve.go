package media

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// serveChunkSize is the read/write granularity for streamed responses.
// Files are never buffered whole.
const serveChunkSize = 8 * 1024

var contentTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
}

// Serve handles GET /media/*filepath. Images are returned whole; videos
// honor single byte-range requests with 206 responses.
func (s *Store) Serve(c *gin.Context) {
	full, err := s.Resolve(c.Param("filepath"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Файл не найден"})
		return
	}

	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "Файл не найден"})
		return
	}

	ext := strings.ToLower(filepath.Ext(full))
	contentType := contentTypes[ext]
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	f, err := os.Open(full)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Файл не найден"})
		return
	}
	defer f.Close()

	size := info.Size()

	if IsVideoExt(ext) {
		if start, end, ok := parseRange(c.GetHeader("Range"), size); ok {
			length := end - start + 1
			c.Header("Content-Type", contentType)
			c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
			c.Header("Accept-Ranges", "bytes")
			c.Header("Content-Length", strconv.FormatInt(length, 10))
			c.Status(http.StatusPartialContent)
			streamSection(c, f, start, length)
			return
		}
		c.Header("Accept-Ranges", "bytes")
	}

	c.Header("Content-Type", contentType)
	c.Header("Content-Length", strconv.FormatInt(size, 10))
	c.Status(http.StatusOK)
	streamSection(c, f, 0, size)
}

// parseRange parses "bytes=A-B" (B optional). END is clamped to size-1.
func parseRange(header string, size int64) (start, end int64, ok bool) {
	if header == "" || !strings.HasPrefix(header, "bytes=") {
		return 0, 0, false
	}
	spec := strings.TrimPrefix(header, "bytes=")
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || start < 0 || start >= size {
		return 0, 0, false
	}

	end = size - 1
	if tail := strings.TrimSpace(parts[1]); tail != "" {
		end, err = strconv.ParseInt(tail, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end > size-1 {
			end = size - 1
		}
	}
	return start, end, true
}

// streamSection copies length bytes from offset in 8 KiB chunks.
func streamSection(c *gin.Context, f *os.File, offset, length int64) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return
	}

	buf := make([]byte, serveChunkSize)
	remaining := length
	for remaining > 0 {
		chunk := int64(len(buf))
		if remaining < chunk {
			chunk = remaining
		}
		n, err := f.Read(buf[:chunk])
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			remaining -= int64(n)
		}
		if err != nil {
			return
		}
	}
}
