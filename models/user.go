package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a participant of the challenge. Passwords are stored as bcrypt hashes only.
type User struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Username    string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	Password    string    `gorm:"size:255" json:"-"`
	Name        string    `gorm:"size:128" json:"name"`
	Photo       *string   `gorm:"size:1024" json:"photo"`
	Points      int       `gorm:"not null;default:0;index" json:"points"`
	TotalAmount int       `gorm:"not null;default:0" json:"totalAmount"`
	Days        []Day     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"days,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// BeforeCreate hook assigns the id and ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
