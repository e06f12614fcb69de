package models

import (
	"time"
)

// User is a platform principal. Username (the handle) and Email are globally
// unique; the handle is stored lowercase. PasswordHash and RefreshToken never
// leave the server.
//
// RefreshToken holds the single currently-valid refresh token for the user,
// or NULL when no session exists. Logout clears it, rotation overwrites it.
type User struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Username      string    `gorm:"uniqueIndex;not null"     json:"username"`
	Email         string    `gorm:"uniqueIndex;not null"     json:"email"`
	FullName      string    `gorm:"not null"                 json:"full_name"`
	PasswordHash  string    `gorm:"not null"                 json:"-"`
	AvatarURL     string    `json:"avatar_url"`
	CoverImageURL string    `json:"cover_image_url"`
	RefreshToken  *string   `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
