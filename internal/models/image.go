package models

import "time"

// Image is an uploaded image. Files live in the configured store under a
// directory named after Hash.
type Image struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Hash             string    `gorm:"size:64;not null;uniqueIndex" json:"hash"`
	UserID           uint      `gorm:"not null;index" json:"user_id"`
	OriginalFilename string    `json:"original_filename"`
	MimeType         string    `gorm:"size:32" json:"mime_type"`
	SizeBytes        int64     `json:"size_bytes"`
	Width            int       `json:"width"`
	Height           int       `json:"height"`
	JPEGKey          string    `gorm:"not null" json:"-"`
	WebPKey          string    `json:"-"`
	CreatedAt        time.Time `json:"created_at"`

	URL     string `gorm:"-" json:"url"`
	WebPURL string `gorm:"-" json:"webp_url,omitempty"`
}
