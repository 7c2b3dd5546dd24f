package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GiftID is the fixed primary key of the gift row.
const GiftID = "gift"

// Gift is the single reward record shown to every user.
type Gift struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Description string    `gorm:"type:text" json:"description"`
	Photo       string    `gorm:"size:1024" json:"photo"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (g *Gift) BeforeCreate(tx *gorm.DB) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	return nil
}
