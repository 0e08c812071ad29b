package models

import (
	"time"
)

// User model. Users exist only to gate upload submission; uploaded data is
// global, not scoped per user.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string `gorm:"size:255;not null;unique"`
	HashedPassword []byte `gorm:"not null"`
}
