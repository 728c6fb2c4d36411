// Package models contains data structures for the application's domain models.
package models

import "time"

// User represents an account. Username and email are unique among active
// users only, so a deleted account releases its handle.
type User struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Username    string `gorm:"size:30;not null;index:idx_users_username_active,unique,where:state = 'active'" json:"username"`
	Email       string `gorm:"size:254;not null;index:idx_users_email_active,unique,where:state = 'active'" json:"email,omitempty"`
	Password    string `gorm:"not null" json:"-"`
	DisplayName string `gorm:"size:60" json:"display_name"`
	Bio         string `gorm:"size:500" json:"bio"`
	Avatar      string `json:"avatar"`

	// Denormalized counters. Repaired by the reconcile job.
	FollowersCount int `gorm:"not null;default:0" json:"followers_count"`
	FollowingCount int `gorm:"not null;default:0" json:"following_count"`
	PostsCount     int `gorm:"not null;default:0" json:"posts_count"`

	State     EntityState `gorm:"size:16;not null;default:active;index" json:"-"`
	DeletedAt *time.Time  `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	// Computed per viewer, never persisted.
	IsFollowing bool `gorm:"-" json:"is_following"`
	IsOnline    bool `gorm:"-" json:"is_online"`
}

// PublicProfile is the subset of a user embedded in events and lists.
type PublicProfile struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar"`
}

// Public returns the user's public profile fields.
func (u *User) Public() PublicProfile {
	if u == nil {
		return PublicProfile{}
	}
	return PublicProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
	}
}
