package models

import "time"

const MaxMessageLength = 5000

// Conversation is a direct-message thread between exactly two users. The
// pair is stored ordered (ParticipantAID < ParticipantBID) so the unique
// index guarantees one conversation per pair.
type Conversation struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ParticipantAID uint       `gorm:"not null;uniqueIndex:idx_conversations_pair" json:"participant_a_id"`
	ParticipantBID uint       `gorm:"not null;uniqueIndex:idx_conversations_pair;index" json:"participant_b_id"`
	ParticipantA   User       `gorm:"foreignKey:ParticipantAID" json:"-"`
	ParticipantB   User       `gorm:"foreignKey:ParticipantBID" json:"-"`
	LastMessageID  *uint      `json:"last_message_id,omitempty"`
	LastMessage    *Message   `gorm:"foreignKey:LastMessageID" json:"last_message,omitempty"`
	LastMessageAt  *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Populated per viewer.
	OtherUser   *PublicProfile `gorm:"-" json:"other_user,omitempty"`
	UnreadCount int64          `gorm:"-" json:"unread_count"`
}

// OrderedPair returns the two ids in storage order.
func OrderedPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID uint) bool {
	return c.ParticipantAID == userID || c.ParticipantBID == userID
}

// OtherParticipant returns the id of the participant that is not userID.
func (c *Conversation) OtherParticipant(userID uint) uint {
	if c.ParticipantAID == userID {
		return c.ParticipantBID
	}
	return c.ParticipantAID
}

// Message is a single direct message.
type Message struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ConversationID uint       `gorm:"not null;index" json:"conversation_id"`
	SenderID       uint       `gorm:"not null;index" json:"sender_id"`
	Sender         *User      `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	IsRead         bool       `gorm:"not null;default:false" json:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
