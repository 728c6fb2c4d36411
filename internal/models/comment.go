package models

import "time"

const MaxCommentLength = 1000

// Comment is a comment on a post. A comment with ParentID set is a reply;
// replies are one level deep.
type Comment struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	PostID   uint   `gorm:"not null;index" json:"post_id"`
	UserID   uint   `gorm:"not null;index" json:"user_id"`
	User     User   `gorm:"foreignKey:UserID" json:"user"`
	ParentID *uint  `gorm:"index" json:"parent_id,omitempty"`
	Content  string `gorm:"type:text;not null" json:"content"`

	RepliesCount int `gorm:"not null;default:0" json:"replies_count"`
	LikesCount   int `gorm:"not null;default:0" json:"likes_count"`

	State     EntityState `gorm:"size:16;not null;default:active;index" json:"-"`
	DeletedAt *time.Time  `json:"-"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`

	Liked bool `gorm:"-" json:"liked"`
}

// IsReply reports whether the comment answers another comment.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// CommentLike is the join row between a user and a comment they liked.
type CommentLike struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_comment_likes_user_comment" json:"user_id"`
	CommentID uint      `gorm:"not null;uniqueIndex:idx_comment_likes_user_comment;index" json:"comment_id"`
	CreatedAt time.Time `json:"created_at"`
}
