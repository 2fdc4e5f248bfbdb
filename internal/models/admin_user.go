package models

import (
	"time"
)

// AdminUser is a back-office account. Posts reference it as their author.
type AdminUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	FullName     string    `gorm:"size:120" json:"full_name"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DisplayName prefers the full name for the posts table and filter dropdown.
func (u AdminUser) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
