package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Day is one user's check-in record for one calendar day.
// Date holds noon of that day in the configured timezone, stored in UTC.
type Day struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	UserID          string    `gorm:"size:36;not null;uniqueIndex:idx_day_user_date" json:"userId"`
	Date            time.Time `gorm:"not null;uniqueIndex:idx_day_user_date;index" json:"date"`
	WakeUp          bool      `gorm:"not null;default:false" json:"wakeUp"`
	PrayInTheMosque bool      `gorm:"not null;default:false" json:"prayInTheMosque"`
	Photo           *string   `gorm:"size:1024" json:"photo"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (d *Day) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// HasPhoto reports whether a proof photo is attached.
func (d Day) HasPhoto() bool {
	return d.Photo != nil && *d.Photo != ""
}
