package models

import "time"

// NotificationType names the action that produced a notification.
type NotificationType string

const (
	NotificationLike         NotificationType = "like"
	NotificationUnlike       NotificationType = "unlike"
	NotificationComment      NotificationType = "comment"
	NotificationCommentReply NotificationType = "comment_reply"
	NotificationCommentLike  NotificationType = "comment_like"
	NotificationFollow       NotificationType = "follow"
	NotificationUnfollow     NotificationType = "unfollow"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationLike, NotificationUnlike, NotificationComment,
		NotificationCommentReply, NotificationCommentLike,
		NotificationFollow, NotificationUnfollow:
		return true
	}
	return false
}

// Notification is a persisted activity item for RecipientID. The persisted
// list is the source of truth; live pushes only shorten the latency.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	RecipientID uint             `gorm:"not null;index:idx_notifications_recipient_created,priority:1" json:"recipient_id"`
	SenderID    uint             `gorm:"not null;index" json:"sender_id"`
	Sender      User             `gorm:"foreignKey:SenderID" json:"-"`
	Type        NotificationType `gorm:"size:32;not null" json:"type"`
	PostID      *uint            `gorm:"index" json:"post_id,omitempty"`
	CommentID   *uint            `gorm:"index" json:"comment_id,omitempty"`
	IsRead      bool             `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	CreatedAt   time.Time        `gorm:"index:idx_notifications_recipient_created,priority:2" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	SenderProfile *PublicProfile `gorm:"-" json:"sender,omitempty"`
}

// NotificationAction identifies the action behind a notification. It is
// the key used both to create and to tear down notifications.
type NotificationAction struct {
	RecipientID uint
	SenderID    uint
	Type        NotificationType
	PostID      *uint
	CommentID   *uint
}

// SelfAction reports whether the actor and the recipient are the same user.
func (a NotificationAction) SelfAction() bool {
	return a.RecipientID == a.SenderID
}
