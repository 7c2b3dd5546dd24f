// Package storage persists uploaded photos and hands back the public URL they are served from.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/earlywake/backend/config"
)

var (
	ErrUnsupportedType = errors.New("photo must be a jpeg, png, gif or webp image")
	ErrTooLarge        = errors.New("photo exceeds the size limit")
)

// PhotoStore saves a photo and returns its URL, and deletes photos by URL.
// Delete ignores URLs the store does not own.
type PhotoStore interface {
	Save(ctx context.Context, upload *Upload) (string, error)
	Delete(ctx context.Context, url string) error
}

// Upload is a photo received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// FromFileHeader opens a multipart file. The caller must close the returned file.
func FromFileHeader(fh *multipart.FileHeader) (*Upload, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}
	return &Upload{Filename: fh.Filename, Body: f}, f, nil
}

var imageExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// readImage reads at most maxBytes of the upload, sniffs its type and returns the bytes and file extension.
func readImage(u *Upload, maxBytes int64) ([]byte, string, string, error) {
	if u == nil || u.Body == nil {
		return nil, "", "", errors.New("empty upload")
	}
	data, err := io.ReadAll(io.LimitReader(u.Body, maxBytes+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, "", "", ErrTooLarge
	}
	contentType := http.DetectContentType(data)
	ext, ok := imageExt[contentType]
	if !ok {
		return nil, "", "", ErrUnsupportedType
	}
	return data, contentType, ext, nil
}

// objectName builds the dated, collision-free relative name of a stored photo.
func objectName(now time.Time, ext string) string {
	return path.Join(now.Format("2006"), now.Format("01"), now.Format("02"), uuid.NewString()+ext)
}

// ownedKey returns the part of url under base, or false when the url belongs elsewhere.
func ownedKey(base, url string) (string, bool) {
	base = strings.TrimSuffix(base, "/") + "/"
	if base == "/" || !strings.HasPrefix(url, base) {
		return "", false
	}
	key := strings.TrimPrefix(url, base)
	if key == "" || strings.Contains(key, "..") {
		return "", false
	}
	return key, true
}

// NewFromConfig builds the photo store selected by PhotoStore.
func NewFromConfig(ctx context.Context, cfg config.AppConfig) (PhotoStore, error) {
	maxBytes := int64(cfg.UploadMaxMB) * 1024 * 1024
	switch cfg.PhotoStore {
	case "local", "":
		return NewLocalStore(cfg.UploadDir, cfg.UploadURLPrefix, maxBytes), nil
	case "s3":
		return NewS3Store(ctx, S3Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
			Prefix:    cfg.S3Prefix,
			MaxBytes:  maxBytes,
		})
	case "cloudinary":
		if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
			return nil, errors.New("cloudinary credentials are not configured")
		}
		return NewCloudinaryStore(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder, maxBytes), nil
	default:
		return nil, fmt.Errorf("unsupported photo store %q", cfg.PhotoStore)
	}
}

// bytesBody adapts sniffed bytes back into a reader.
func bytesBody(b []byte) io.Reader { return bytes.NewReader(b) }
