package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrImageType     = errors.New("định dạng ảnh không được hỗ trợ")
	ErrImageTooLarge = errors.New("ảnh vượt quá dung lượng cho phép")
)

var allowedImageExt = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// ImageStore keeps uploaded plant images as uuid-named files in one directory.
type ImageStore struct {
	dir      string
	maxBytes int64
	client   *http.Client
}

func NewImageStore(dir string, maxBytes int64) *ImageStore {
	return &ImageStore{
		dir:      dir,
		maxBytes: maxBytes,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

func newImageName(ext string) string {
	return uuid.NewString() + ext
}

// Save stores a multipart upload and returns the stored file name.
func (s *ImageStore) Save(fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedImageExt[ext] {
		return "", ErrImageType
	}
	if s.maxBytes > 0 && fh.Size > s.maxBytes {
		return "", ErrImageTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	return s.write(src, ext)
}

// Download fetches an image over HTTP and stores it. The extension comes from
// the response content type, falling back to the URL path.
func (s *ImageStore) Download(ctx context.Context, rawURL string) (string, error) {
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return "", fmt.Errorf("url phải bắt đầu bằng http:// hoặc https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download image: HTTP %d", resp.StatusCode)
	}

	ext := extFromContentType(resp.Header.Get("Content-Type"))
	if ext == "" {
		ext = strings.ToLower(path.Ext(req.URL.Path))
	}
	if !allowedImageExt[ext] {
		return "", ErrImageType
	}

	return s.write(resp.Body, ext)
}

func extFromContentType(ct string) string {
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return ""
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}

func (s *ImageStore) write(src io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	name := newImageName(ext)
	full := filepath.Join(s.dir, name)
	dst, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}

	r := src
	if s.maxBytes > 0 {
		// one extra byte tells an oversized body apart from an exact fit
		r = io.LimitReader(src, s.maxBytes+1)
	}
	n, copyErr := io.Copy(dst, r)
	closeErr := dst.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(full)
		return "", fmt.Errorf("write image: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(full)
		return "", fmt.Errorf("close image: %w", closeErr)
	case s.maxBytes > 0 && n > s.maxBytes:
		_ = os.Remove(full)
		return "", ErrImageTooLarge
	}
	return name, nil
}

// Path resolves a stored name inside the image directory.
func (s *ImageStore) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Remove deletes a stored image; a missing file is not an error.
func (s *ImageStore) Remove(name string) error {
	if name == "" {
		return nil
	}
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
