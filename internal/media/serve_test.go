package media

import (
	"bytes"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (*Store, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := NewStore(t.TempDir(), 10*1024*1024)
	router := gin.New()
	router.GET("/media/*filepath", store.Serve)
	return store, router
}

func writeFile(t *testing.T, store *Store, rel string, data []byte) {
	t.Helper()
	require.NoError(t, store.Copy(rel, bytes.NewReader(data)))
}

func TestServeImageFullBody(t *testing.T) {
	store, router := setupServer(t)
	data := []byte("fake-jpeg-bytes")
	writeFile(t, store, "products/7/primary_abc123def456.jpg", data)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/media/products/7/primary_abc123def456.jpg", nil)
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
	assert.Equal(t, data, rr.Body.Bytes())
}

func TestServeMissingFile(t *testing.T) {
	_, router := setupServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/media/products/7/missing.jpg", nil)
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeRejectsTraversal(t *testing.T) {
	_, router := setupServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/media/..%2f..%2fetc%2fpasswd", nil)
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServeVideoRange(t *testing.T) {
	store, router := setupServer(t)

	// 1,000,000 bytes of deterministic noise.
	data := make([]byte, 1_000_000)
	rnd := rand.New(rand.NewSource(42))
	rnd.Read(data)
	writeFile(t, store, "products/7/media_abc.mp4", data)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/media/products/7/media_abc.mp4", nil)
	req.Header.Set("Range", "bytes=0-1023")
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, "bytes 0-1023/1000000", rr.Header().Get("Content-Range"))
	assert.Equal(t, "1024", rr.Header().Get("Content-Length"))
	assert.Equal(t, "bytes", rr.Header().Get("Accept-Ranges"))
	assert.True(t, bytes.Equal(data[:1024], rr.Body.Bytes()))
}

func TestServeVideoRangeOpenEnded(t *testing.T) {
	store, router := setupServer(t)

	data := make([]byte, 50_000)
	rnd := rand.New(rand.NewSource(7))
	rnd.Read(data)
	writeFile(t, store, "products/3/media_xyz.mp4", data)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/media/products/3/media_xyz.mp4", nil)
	req.Header.Set("Range", "bytes=40000-")
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, "bytes 40000-49999/50000", rr.Header().Get("Content-Range"))
	assert.Equal(t, "10000", rr.Header().Get("Content-Length"))
	assert.True(t, bytes.Equal(data[40000:], rr.Body.Bytes()))
}

func TestServeVideoRangeClampedToEOF(t *testing.T) {
	store, router := setupServer(t)

	data := make([]byte, 2048)
	writeFile(t, store, "products/3/media_clamp.mp4", data)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/media/products/3/media_clamp.mp4", nil)
	req.Header.Set("Range", "bytes=1024-999999")
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusPartialContent, rr.Code)
	assert.Equal(t, "bytes 1024-2047/2048", rr.Header().Get("Content-Range"))
	assert.Equal(t, "1024", rr.Header().Get("Content-Length"))
}

func TestServeVideoWithoutRange(t *testing.T) {
	store, router := setupServer(t)

	data := make([]byte, 12_345)
	writeFile(t, store, "products/3/media_full.mp4", data)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/media/products/3/media_full.mp4", nil)
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "bytes", rr.Header().Get("Accept-Ranges"))
	assert.Equal(t, fmt.Sprintf("%d", len(data)), rr.Header().Get("Content-Length"))
	assert.Equal(t, len(data), rr.Body.Len())
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		size       int64
		start, end int64
		ok         bool
	}{
		{"bytes=0-1023", 1_000_000, 0, 1023, true},
		{"bytes=500-", 1000, 500, 999, true},
		{"bytes=0-999999", 2048, 0, 2047, true},
		{"", 1000, 0, 0, false},
		{"bytes=abc-def", 1000, 0, 0, false},
		{"bytes=2048-", 2048, 0, 0, false},
		{"items=0-10", 1000, 0, 0, false},
	}

	for _, tt := range tests {
		start, end, ok := parseRange(tt.header, tt.size)
		assert.Equal(t, tt.ok, ok, tt.header)
		if tt.ok {
			assert.Equal(t, tt.start, start, tt.header)
			assert.Equal(t, tt.end, end, tt.header)
		}
	}
}
