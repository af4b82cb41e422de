package media

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintIsStable(t *testing.T) {
	data := []byte("same bytes")
	assert.Equal(t, Fingerprint(data), Fingerprint(data))
	assert.Len(t, Fingerprint(data), 12)
	assert.NotEqual(t, Fingerprint(data), Fingerprint([]byte("other bytes")))
}

func TestFingerprintSpreadsRandomInputs(t *testing.T) {
	gofakeit.Seed(1)
	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		seen[Fingerprint([]byte(gofakeit.Paragraph(1, 3, 8, " ")))] = true
	}
	assert.Len(t, seen, 64)
}

func TestExtFor(t *testing.T) {
	assert.Equal(t, ".jpg", ExtFor("photo.JPG", ""))
	assert.Equal(t, ".webm", ExtFor("clip.webm", ""))
	assert.Equal(t, ".png", ExtFor("", "image/png"))
	assert.Equal(t, ".mp4", ExtFor("noext", "video/mp4"))
	assert.Equal(t, "", ExtFor("doc.pdf", "application/pdf"))
}

func TestSaveProductMediaLayout(t *testing.T) {
	store := NewStore(t.TempDir(), 1024)
	data := []byte("image-bytes")

	url, err := store.SaveProductMedia(7, true, data, "rose.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "/media/products/7/primary_"+Fingerprint(data)+".jpg", url)

	// Same bytes converge on the same name.
	again, err := store.SaveProductMedia(7, true, data, "rose.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, url, again)

	_, err = os.Stat(filepath.Join(store.BaseDir, "products", "7", "primary_"+Fingerprint(data)+".jpg"))
	assert.NoError(t, err)
}

func TestSaveRejectsOversized(t *testing.T) {
	store := NewStore(t.TempDir(), 4)
	_, err := store.SaveProductMedia(1, false, []byte("too large"), "a.jpg", "image/jpeg")
	assert.Error(t, err)
}

func TestSaveRejectsUnknownType(t *testing.T) {
	store := NewStore(t.TempDir(), 1024)
	_, err := store.SaveProductMedia(1, false, []byte("x"), "a.exe", "application/octet-stream")
	assert.Error(t, err)
}

func TestMigrateRequestPhoto(t *testing.T) {
	store := NewStore(t.TempDir(), 1024)
	data := []byte("applicant-photo")

	name, err := store.SaveRequestPhoto(data, "photo.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "request_photo_"))

	url, err := store.MigrateRequestPhoto(name, 42)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/media/shops/42/photo_"))

	full, err := store.Resolve(url)
	require.NoError(t, err)
	copied, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, data, copied)
}

func TestDeleteProductDir(t *testing.T) {
	store := NewStore(t.TempDir(), 1024)
	_, err := store.SaveProductMedia(9, false, []byte("bytes"), "a.png", "image/png")
	require.NoError(t, err)

	require.NoError(t, store.DeleteProductDir(9))
	_, err = os.Stat(filepath.Join(store.BaseDir, "products", "9"))
	assert.True(t, os.IsNotExist(err))
}

func TestDeleteMissingFileIsNoop(t *testing.T) {
	store := NewStore(t.TempDir(), 1024)
	assert.NoError(t, store.Delete("/media/banners/deadbeef0000.jpg"))
}

func TestResolveRejectsEscape(t *testing.T) {
	store := NewStore(t.TempDir(), 1024)
	path, err := store.Resolve("/media/../../../etc/passwd")
	if err == nil {
		// Clean collapses the dots; the result must still be inside the root.
		base, _ := filepath.Abs(store.BaseDir)
		assert.True(t, strings.HasPrefix(path, base))
	}
}
