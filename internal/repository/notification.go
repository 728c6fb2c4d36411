package repository

import (
	"context"
	"time"

	"snapgrid/internal/models"

	"gorm.io/gorm"
)

// NotificationRepository defines persistence operations for notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	List(ctx context.Context, recipientID uint, limit, offset int) ([]*models.Notification, int64, error)
	CountUnread(ctx context.Context, recipientID uint) (int64, error)
	MarkRead(ctx context.Context, id, recipientID uint) (*models.Notification, error)
	MarkAllRead(ctx context.Context, recipientID uint) (int64, error)
	Delete(ctx context.Context, id, recipientID uint) error
	DeleteByAction(ctx context.Context, action models.NotificationAction) ([]uint, error)
}

type notificationRepository struct {
	db *gorm.DB
}

// NewNotificationRepository returns a new NotificationRepository implementation.
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Omit("Sender").Create(n).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// List returns the recipient's notifications, newest first, with sender profiles.
func (r *notificationRepository) List(ctx context.Context, recipientID uint, limit, offset int) ([]*models.Notification, int64, error) {
	base := readDB(r.db).WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ?", recipientID).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var items []*models.Notification
	err := base.Preload("Sender").
		Order("created_at DESC, id DESC").
		Scopes(page(limit, offset)).
		Find(&items).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	for _, n := range items {
		profile := n.Sender.Public()
		n.SenderProfile = &profile
	}
	return items, total, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Count(&count).Error
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// MarkRead marks one notification read. A notification owned by someone
// else is reported as not found.
func (r *notificationRepository) MarkRead(ctx context.Context, id, recipientID uint) (*models.Notification, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND recipient_id = ?", id, recipientID).First(&n).Error; err != nil {
			return mapFindError(err, "Notification", id)
		}
		if n.IsRead {
			return nil
		}
		now := time.Now().UTC()
		if err := tx.Model(&n).Updates(map[string]any{"is_read": true, "read_at": now}).Error; err != nil {
			return err
		}
		n.IsRead = true
		n.ReadAt = &now
		return nil
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return &n, nil
}

// MarkAllRead marks every unread notification of the recipient read and
// returns how many changed.
func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{"is_read": true, "read_at": time.Now().UTC()})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, id, recipientID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	return nil
}

// DeleteByAction removes every notification produced by action and returns
// the removed ids. A nil post or comment reference matches only rows where
// that reference is also empty.
func (r *notificationRepository) DeleteByAction(ctx context.Context, action models.NotificationAction) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&models.Notification{}).
			Where("recipient_id = ? AND sender_id = ? AND type = ?", action.RecipientID, action.SenderID, action.Type)
		if action.PostID != nil {
			q = q.Where("post_id = ?", *action.PostID)
		} else {
			q = q.Where("post_id IS NULL")
		}
		if action.CommentID != nil {
			q = q.Where("comment_id = ?", *action.CommentID)
		} else {
			q = q.Where("comment_id IS NULL")
		}
		if err := q.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		return tx.Delete(&models.Notification{}, ids).Error
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
