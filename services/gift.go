package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/earlywake/backend/models"
	"github.com/earlywake/backend/storage"
	"github.com/earlywake/backend/utils"
)

const defaultGiftDescription = "Gift description"

// GiftService owns the single gift row.
type GiftService struct {
	db     *gorm.DB
	photos photoKeeper
}

func NewGiftService(db *gorm.DB, store storage.PhotoStore, placeholder string) *GiftService {
	return &GiftService{db: db, photos: photoKeeper{store: store, placeholder: placeholder}}
}

type GiftView struct {
	Description string `json:"description"`
	Photo       string `json:"photo"`
}

func (s *GiftService) first(db *gorm.DB) (*models.Gift, error) {
	var gift models.Gift
	if err := db.Order("created_at ASC").Take(&gift).Error; err != nil {
		return nil, storeError(err, "gift")
	}
	return &gift, nil
}

// Create inserts the default gift unless one already exists. created reports whether a row was added.
// The row uses a fixed primary key, so of two concurrent calls only one insert succeeds.
func (s *GiftService) Create(ctx context.Context) (gift *models.Gift, created bool, err error) {
	db := s.db.WithContext(ctx)
	gift, err = s.first(db)
	switch {
	case err == nil:
		return gift, false, nil
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	gift = &models.Gift{ID: models.GiftID, Description: defaultGiftDescription, Photo: s.photos.placeholder}
	if err := db.Create(gift).Error; err != nil {
		if existing, ferr := s.first(db); ferr == nil {
			return existing, false, nil
		}
		return nil, false, storeError(err, "gift")
	}
	return gift, true, nil
}

func (s *GiftService) Find(ctx context.Context) (*GiftView, error) {
	gift, err := s.first(s.db.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	return &GiftView{Description: gift.Description, Photo: s.photos.orPlaceholder(&gift.Photo)}, nil
}

// Update changes the description and/or photo of the gift.
func (s *GiftService) Update(ctx context.Context, description *string, photo *storage.Upload) (*GiftView, error) {
	db := s.db.WithContext(ctx)
	gift, err := s.first(db)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if description != nil {
		updates["description"] = utils.Sanitize(*description)
	}
	url, err := s.photos.save(ctx, photo)
	if err != nil {
		return nil, err
	}
	replaced := ""
	if url != "" {
		replaced = gift.Photo
		updates["photo"] = url
	}
	if len(updates) == 0 {
		return &GiftView{Description: gift.Description, Photo: s.photos.orPlaceholder(&gift.Photo)}, nil
	}

	if err := db.Model(gift).Updates(updates).Error; err != nil {
		s.photos.discard(ctx, url)
		return nil, fmt.Errorf("update gift: %w", err)
	}
	s.photos.discard(ctx, replaced)

	gift, err = s.first(db)
	if err != nil {
		return nil, err
	}
	return &GiftView{Description: gift.Description, Photo: s.photos.orPlaceholder(&gift.Photo)}, nil
}
