package media

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Store saves and removes uploaded media under a single directory tree:
//
//	uploads/
//	  products/{product-id}/{"primary"|"media"}_{md5-12}.{ext}
//	  shops/{shop-id}/photo_{md5-12}.{ext}
//	  shop_requests/request_photo_{md5-12}.{ext}
//	  categories/category_{md5-12}.{ext}
//	  banners/{md5-12}.{ext}
//
// Filenames are content-addressed with a 12-hex md5 prefix, so concurrent
// writers of the same bytes converge on the same name.
type Store struct {
	BaseDir string
	MaxSize int64
}

// NewStore creates a Store rooted at baseDir with the given size limit.
func NewStore(baseDir string, maxSize int64) *Store {
	return &Store{BaseDir: baseDir, MaxSize: maxSize}
}

var imageExtensions = map[string]bool{
	".jpeg": true, ".jpg": true, ".png": true, ".webp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true,
}

var contentTypeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"video/mp4":  ".mp4",
	"video/webm": ".webm",
}

// Fingerprint is the 12-hex md5 prefix used in content-addressed names.
// It is a de-duplicator, not a security primitive.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])[:12]
}

// ExtFor derives the stored extension from the original filename when
// present, falling back to the content type.
func ExtFor(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		if imageExtensions[ext] || videoExtensions[ext] {
			return ext
		}
	}
	if ext, ok := contentTypeExtensions[strings.ToLower(contentType)]; ok {
		return ext
	}
	return ""
}

// IsVideoExt reports whether the extension belongs to a video type.
func IsVideoExt(ext string) bool {
	return videoExtensions[strings.ToLower(ext)]
}

// IsAccepted reports whether the file would be accepted at all.
func IsAccepted(filename, contentType string) bool {
	return ExtFor(filename, contentType) != ""
}

func (s *Store) checkSize(data []byte) error {
	if s.MaxSize > 0 && int64(len(data)) > s.MaxSize {
		return fmt.Errorf("файл превышает допустимый размер %d МБ", s.MaxSize/(1024*1024))
	}
	return nil
}

// save writes data into relDir under the store root and returns the
// server-relative /media URL.
func (s *Store) save(relDir, name string, data []byte) (string, error) {
	if err := s.checkSize(data); err != nil {
		return "", err
	}
	dir := filepath.Join(s.BaseDir, relDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return "/media/" + relDir + "/" + name, nil
}

// SaveProductMedia stores a product file. Primary photos get the "primary"
// name prefix, the rest "media".
func (s *Store) SaveProductMedia(productID int64, primary bool, data []byte, filename, contentType string) (string, error) {
	ext := ExtFor(filename, contentType)
	if ext == "" {
		return "", fmt.Errorf("недопустимый тип файла: %s", contentType)
	}
	prefix := "media"
	if primary {
		prefix = "primary"
	}
	name := fmt.Sprintf("%s_%s%s", prefix, Fingerprint(data), ext)
	return s.save(fmt.Sprintf("products/%d", productID), name, data)
}

// SaveShopPhoto stores a shop photo.
func (s *Store) SaveShopPhoto(shopID int64, data []byte, filename, contentType string) (string, error) {
	ext := ExtFor(filename, contentType)
	if ext == "" {
		return "", fmt.Errorf("недопустимый тип файла: %s", contentType)
	}
	name := fmt.Sprintf("photo_%s%s", Fingerprint(data), ext)
	return s.save(fmt.Sprintf("shops/%d", shopID), name, data)
}

// SaveRequestPhoto stores an onboarding-wizard photo before the shop exists.
// It returns the bare filename; the approval path migrates it later.
func (s *Store) SaveRequestPhoto(data []byte, filename, contentType string) (string, error) {
	ext := ExtFor(filename, contentType)
	if ext == "" {
		ext = ".jpg"
	}
	name := fmt.Sprintf("request_photo_%s%s", Fingerprint(data), ext)
	if _, err := s.save("shop_requests", name, data); err != nil {
		return "", err
	}
	return name, nil
}

// SaveCategoryIcon stores a category icon.
func (s *Store) SaveCategoryIcon(data []byte, filename, contentType string) (string, error) {
	ext := ExtFor(filename, contentType)
	if ext == "" {
		return "", fmt.Errorf("недопустимый тип файла: %s", contentType)
	}
	name := fmt.Sprintf("category_%s%s", Fingerprint(data), ext)
	return s.save("categories", name, data)
}

// SaveBanner stores a banner image.
func (s *Store) SaveBanner(data []byte, filename, contentType string) (string, error) {
	ext := ExtFor(filename, contentType)
	if ext == "" {
		return "", fmt.Errorf("недопустимый тип файла: %s", contentType)
	}
	name := fmt.Sprintf("%s%s", Fingerprint(data), ext)
	return s.save("banners", name, data)
}

// MigrateRequestPhoto copies an onboarding photo into the shop namespace
// when an application is approved. The new name is addressed by the shop id
// so repeated approvals converge. Returns the /media URL of the copy.
func (s *Store) MigrateRequestPhoto(requestFilename string, shopID int64) (string, error) {
	src := filepath.Join(s.BaseDir, "shop_requests", requestFilename)
	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	ext := filepath.Ext(requestFilename)
	if ext == "" {
		ext = ".jpg"
	}
	idHash := md5.Sum([]byte(fmt.Sprintf("%d", shopID)))
	name := fmt.Sprintf("photo_%s%s", hex.EncodeToString(idHash[:])[:12], ext)
	return s.save(fmt.Sprintf("shops/%d", shopID), name, data)
}

// Resolve maps a /media URL (or a path under it) to an absolute path inside
// the store, rejecting traversal outside the root.
func (s *Store) Resolve(mediaPath string) (string, error) {
	rel := strings.TrimPrefix(mediaPath, "/media/")
	rel = filepath.Clean("/" + rel) // forces the path to stay rooted
	full := filepath.Join(s.BaseDir, rel)
	base, err := filepath.Abs(s.BaseDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(abs, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes media root")
	}
	return abs, nil
}

// Delete removes the file behind a /media URL. Missing files are not an
// error: deletion is non-atomic and transient misses are tolerated.
func (s *Store) Delete(mediaURL string) error {
	path, err := s.Resolve(mediaURL)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// DeleteProductDir removes a product's whole media directory.
func (s *Store) DeleteProductDir(productID int64) error {
	return os.RemoveAll(filepath.Join(s.BaseDir, "products", fmt.Sprintf("%d", productID)))
}

// Copy streams src into the store verbatim (used by tests and tooling).
func (s *Store) Copy(relPath string, r io.Reader) error {
	full := filepath.Join(s.BaseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	f, err := os.Create(full)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}
