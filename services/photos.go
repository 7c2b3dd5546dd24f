package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/earlywake/backend/storage"
	"github.com/earlywake/backend/utils"
)

// photoKeeper wraps the photo store with the placeholder rules shared by every ledger.
type photoKeeper struct {
	store       storage.PhotoStore
	placeholder string
}

// save stores the upload; a nil upload yields an empty URL.
func (p photoKeeper) save(ctx context.Context, upload *storage.Upload) (string, error) {
	if upload == nil {
		return "", nil
	}
	url, err := p.store.Save(ctx, upload)
	if errors.Is(err, storage.ErrUnsupportedType) || errors.Is(err, storage.ErrTooLarge) {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err != nil {
		return "", fmt.Errorf("store photo: %w", err)
	}
	return url, nil
}

// discard deletes stored photos best-effort. The placeholder is never deleted.
func (p photoKeeper) discard(ctx context.Context, urls ...string) {
	for _, url := range urls {
		if url == "" || url == p.placeholder {
			continue
		}
		if err := p.store.Delete(ctx, url); err != nil {
			utils.Sugar.Warnw("photo cleanup failed", "url", url, "error", err)
		}
	}
}

// orPlaceholder substitutes the default photo for a missing one.
func (p photoKeeper) orPlaceholder(url *string) string {
	if url == nil || *url == "" {
		return p.placeholder
	}
	return *url
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
