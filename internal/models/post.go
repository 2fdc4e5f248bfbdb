package models

import (
	"time"
)

// Post statuses. Anything else submitted by a form falls back to draft.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

type Post struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	AuthorID          uint      `gorm:"not null;index" json:"author_id"`
	Author            AdminUser `gorm:"foreignKey:AuthorID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"author"`
	CategoryID        *uint     `gorm:"index" json:"category_id"` // Optional
	Category          *Category `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"category"`
	Title             string    `gorm:"not null" json:"title"`
	Slug              string    `gorm:"uniqueIndex;size:255;not null" json:"slug"`
	Content           string    `gorm:"type:text" json:"content"` // Sanitized HTML
	Status            string    `gorm:"size:20;default:'draft';not null;index" json:"status"`
	FeaturedImage     *string   `gorm:"size:255" json:"featured_image"` // Stored filename only, no directory
	MetaTitle         *string   `gorm:"size:255" json:"meta_title"`
	MetaDescription   *string   `gorm:"size:255" json:"meta_description"`
	MetaKeywords      *string   `gorm:"size:255" json:"meta_keywords"`
	OpengraphImageURL *string   `gorm:"size:2048" json:"opengraph_image_url"`
	Excerpt           *string   `gorm:"type:text" json:"excerpt"`
	ViewCount         int       `gorm:"default:0;not null" json:"view_count"` // Incremented by the public site, not here
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
