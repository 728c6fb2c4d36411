package models

import "time"

const (
	MinPostImages    = 1
	MaxPostImages    = 10
	MaxCaptionLength = 2200
	MaxLocationLen   = 100
)

// Post is a photo post with an ordered set of images.
type Post struct {
	ID       uint        `gorm:"primaryKey" json:"id"`
	UserID   uint        `gorm:"not null;index" json:"user_id"`
	User     User        `gorm:"foreignKey:UserID" json:"user"`
	Images   []PostImage `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"images"`
	Caption  string      `gorm:"type:text" json:"caption"`
	Location string      `gorm:"size:100" json:"location"`

	// Denormalized counters. Repaired by the reconcile job.
	LikesCount    int `gorm:"not null;default:0" json:"likes_count"`
	CommentsCount int `gorm:"not null;default:0" json:"comments_count"`

	State     EntityState `gorm:"size:16;not null;default:active;index" json:"-"`
	DeletedAt *time.Time  `json:"-"`
	CreatedAt time.Time   `gorm:"index" json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// Liked indicates whether the requesting user liked this post (computed)
	Liked bool `gorm:"-" json:"liked"`
}

// PostImage is one image reference of a post, ordered by Position.
type PostImage struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PostID   uint   `gorm:"not null;index:idx_post_images_order,priority:1" json:"-"`
	Position int    `gorm:"not null;index:idx_post_images_order,priority:2" json:"position"`
	URL      string `gorm:"not null" json:"url"`
}

// Like is the join row between a user and a post they liked.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
