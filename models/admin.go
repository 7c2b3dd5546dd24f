package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Admin can manage users, days and the gift.
type Admin struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Username  string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func (a *Admin) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// All lists every model for auto-migration.
func All() []interface{} {
	return []interface{}{&User{}, &Day{}, &Gift{}, &Admin{}}
}
