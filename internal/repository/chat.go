package repository

import (
	"context"
	"errors"
	"time"

	"snapgrid/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatRepository defines the interface for conversation and message data operations.
type ChatRepository interface {
	FindConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error)
	GetOrCreateConversation(ctx context.Context, userA, userB uint) (*models.Conversation, bool, error)
	GetConversation(ctx context.Context, id uint) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID uint, limit, offset int) ([]*models.Conversation, int64, error)
	UnreadCounts(ctx context.Context, userID uint, convIDs []uint) (map[uint]int64, error)
	DeleteConversation(ctx context.Context, id uint) error

	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, id uint) (*models.Message, error)
	ListMessages(ctx context.Context, convID uint, limit, offset int) ([]*models.Message, int64, error)
	MarkConversationRead(ctx context.Context, convID, readerID uint) (int64, error)
	DeleteMessage(ctx context.Context, id uint) error
}

// chatRepository implements ChatRepository
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository creates a new chat repository
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// FindConversation returns the conversation between the two users, or nil.
func (r *chatRepository) FindConversation(ctx context.Context, userA, userB uint) (*models.Conversation, error) {
	a, b := models.OrderedPair(userA, userB)
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Where("participant_a_id = ? AND participant_b_id = ?", a, b).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &conv, nil
}

// GetOrCreateConversation returns the pair's conversation, creating it on
// first use. The unique pair index makes concurrent first messages converge
// on one row; created reports whether this call inserted it.
func (r *chatRepository) GetOrCreateConversation(ctx context.Context, userA, userB uint) (*models.Conversation, bool, error) {
	a, b := models.OrderedPair(userA, userB)
	conv := models.Conversation{ParticipantAID: a, ParticipantBID: b}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Omit("ParticipantA", "ParticipantB", "LastMessage").
		Create(&conv)
	if res.Error != nil {
		return nil, false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 1 {
		return &conv, true, nil
	}

	existing, err := r.FindConversation(ctx, a, b)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, models.NewInternalError(errors.New("conversation vanished after conflict"))
	}
	return existing, false, nil
}

func (r *chatRepository) GetConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.db.WithContext(ctx).
		Preload("ParticipantA").
		Preload("ParticipantB").
		Preload("LastMessage").
		First(&conv, id).Error
	if err != nil {
		return nil, mapFindError(err, "Conversation", id)
	}
	return &conv, nil
}

// ListConversations returns the user's conversations, most recently active first.
func (r *chatRepository) ListConversations(ctx context.Context, userID uint, limit, offset int) ([]*models.Conversation, int64, error) {
	base := readDB(r.db).WithContext(ctx).Model(&models.Conversation{}).
		Where("participant_a_id = ? OR participant_b_id = ?", userID, userID).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var conversations []*models.Conversation
	err := base.
		Preload("ParticipantA").
		Preload("ParticipantB").
		Preload("LastMessage").
		Order("COALESCE(last_message_at, created_at) DESC, id DESC").
		Scopes(page(limit, offset)).
		Find(&conversations).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return conversations, total, nil
}

// UnreadCounts returns, per conversation, how many messages sent by the
// other participant userID has not read.
func (r *chatRepository) UnreadCounts(ctx context.Context, userID uint, convIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(convIDs))
	if len(convIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		ConversationID uint
		Unread         int64
	}
	err := readDB(r.db).WithContext(ctx).Model(&models.Message{}).
		Select("conversation_id, COUNT(*) AS unread").
		Where("conversation_id IN ? AND sender_id <> ? AND is_read = ?", convIDs, userID, false).
		Group("conversation_id").
		Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, row := range rows {
		counts[row.ConversationID] = row.Unread
	}
	return counts, nil
}

// DeleteConversation hard-deletes the conversation and its messages.
func (r *chatRepository) DeleteConversation(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Conversation{}).Where("id = ?", id).
			Update("last_message_id", nil)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Conversation", id)
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Conversation{}, id).Error
	})
	return asAppError(err)
}

// CreateMessage inserts the message and points the conversation at it.
func (r *chatRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Sender").Create(msg).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Conversation{}).Where("id = ?", msg.ConversationID).
			Updates(map[string]any{"last_message_id": msg.ID, "last_message_at": msg.CreatedAt})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Conversation", msg.ConversationID)
		}
		return nil
	})
	return asAppError(err)
}

func (r *chatRepository) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, mapFindError(err, "Message", id)
	}
	return &msg, nil
}

// ListMessages pages from the newest message backwards and returns each
// page in chronological order.
func (r *chatRepository) ListMessages(ctx context.Context, convID uint, limit, offset int) ([]*models.Message, int64, error) {
	base := readDB(r.db).WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ?", convID).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var messages []*models.Message
	err := base.Preload("Sender").
		Order("created_at DESC, id DESC").
		Scopes(page(limit, offset)).
		Find(&messages).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, total, nil
}

// MarkConversationRead marks every message the other participant sent as
// read and returns how many changed.
func (r *chatRepository) MarkConversationRead(ctx context.Context, convID, readerID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", convID, readerID, false).
		Updates(map[string]any{"is_read": true, "read_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteMessage hard-deletes the message. When it was the conversation's
// latest, the pointer moves to the previous message.
func (r *chatRepository) DeleteMessage(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msg models.Message
		if err := tx.First(&msg, id).Error; err != nil {
			return mapFindError(err, "Message", id)
		}

		var conv models.Conversation
		if err := tx.Select("id", "last_message_id").First(&conv, msg.ConversationID).Error; err != nil {
			return mapFindError(err, "Conversation", msg.ConversationID)
		}

		if conv.LastMessageID != nil && *conv.LastMessageID == msg.ID {
			updates := map[string]any{"last_message_id": nil, "last_message_at": nil}
			var prev models.Message
			err := tx.Where("conversation_id = ? AND id <> ?", msg.ConversationID, msg.ID).
				Order("created_at DESC, id DESC").
				First(&prev).Error
			switch {
			case err == nil:
				updates["last_message_id"] = prev.ID
				updates["last_message_at"] = prev.CreatedAt
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
			if err := tx.Model(&models.Conversation{}).Where("id = ?", conv.ID).Updates(updates).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&models.Message{}, msg.ID).Error
	})
	return asAppError(err)
}
