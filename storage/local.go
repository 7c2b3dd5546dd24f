package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore keeps photos on the local filesystem; the router serves dir under urlPrefix.
type LocalStore struct {
	dir       string
	urlPrefix string
	maxBytes  int64
	now       func() time.Time
}

// NewLocalStore creates a filesystem-backed store rooted at dir.
func NewLocalStore(dir, urlPrefix string, maxBytes int64) *LocalStore {
	if maxBytes <= 0 {
		maxBytes = 10 * 1024 * 1024
	}
	return &LocalStore{
		dir:       dir,
		urlPrefix: "/" + strings.Trim(urlPrefix, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func (s *LocalStore) Save(ctx context.Context, upload *Upload) (string, error) {
	data, _, ext, err := readImage(upload, s.maxBytes)
	if err != nil {
		return "", err
	}

	rel := objectName(s.now(), ext)
	dst := filepath.Join(s.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("write photo: %w", err)
	}
	return s.urlPrefix + "/" + rel, nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	key, ok := ownedKey(s.urlPrefix, url)
	if !ok {
		return nil
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove photo: %w", err)
	}
	return nil
}
