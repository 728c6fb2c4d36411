package service

import (
	"context"
	"log/slog"

	"snapgrid/internal/cache"
	"snapgrid/internal/models"
	"snapgrid/internal/observability"
	"snapgrid/internal/pagination"
	"snapgrid/internal/repository"
)

// NotificationService persists activity notifications and pushes them to
// the recipient's live connections.
type NotificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
	emitter  EventEmitter
}

// NotificationList is one page of notifications plus the recipient's
// unread total.
type NotificationList struct {
	pagination.Result[*models.Notification]
	UnreadCount int64 `json:"unread_count"`
}

// NotificationDeleted is the payload of the notification:delete event.
type NotificationDeleted struct {
	IDs []uint `json:"ids"`
}

func NewNotificationService(
	repo repository.NotificationRepository,
	userRepo repository.UserRepository,
	emitter EventEmitter,
) *NotificationService {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &NotificationService{repo: repo, userRepo: userRepo, emitter: emitter}
}

// CreateNotification stores a notification for action and pushes
// notification:new to the recipient. An action on one's own content
// returns (nil, nil) and stores nothing.
func (s *NotificationService) CreateNotification(ctx context.Context, action models.NotificationAction) (*models.Notification, error) {
	if !action.Type.Valid() {
		return nil, models.NewValidationError("Invalid notification type")
	}
	if action.SelfAction() {
		observability.NotificationsTotal.WithLabelValues(string(action.Type), "suppressed").Inc()
		return nil, nil
	}

	n := &models.Notification{
		RecipientID: action.RecipientID,
		SenderID:    action.SenderID,
		Type:        action.Type,
		PostID:      action.PostID,
		CommentID:   action.CommentID,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	observability.NotificationsTotal.WithLabelValues(string(action.Type), "created").Inc()
	cache.InvalidateUnreadCount(ctx, action.RecipientID)

	if sender, err := s.userRepo.GetByID(ctx, action.SenderID, models.IncludeDeleted); err == nil {
		profile := sender.Public()
		n.SenderProfile = &profile
	} else {
		n.SenderProfile = &models.PublicProfile{ID: action.SenderID}
	}

	s.emitter.EmitToUser(ctx, action.RecipientID, models.EventNotificationNew, n)
	return n, nil
}

// DeleteNotificationByAction removes the notifications produced by action
// and pushes notification:delete with their ids.
func (s *NotificationService) DeleteNotificationByAction(ctx context.Context, action models.NotificationAction) ([]uint, error) {
	ids, err := s.repo.DeleteByAction(ctx, action)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	observability.NotificationsTotal.WithLabelValues(string(action.Type), "removed").Add(float64(len(ids)))
	cache.InvalidateUnreadCount(ctx, action.RecipientID)
	s.emitter.EmitToUser(ctx, action.RecipientID, models.EventNotificationDelete, NotificationDeleted{IDs: ids})
	return ids, nil
}

// Notify is CreateNotification for callers whose action has already
// committed. Failures are logged, not returned. A nil service is a no-op.
func (s *NotificationService) Notify(ctx context.Context, action models.NotificationAction) {
	if s == nil {
		return
	}
	if _, err := s.CreateNotification(ctx, action); err != nil {
		logSideEffect(ctx, "notification.create", err,
			slog.String("type", string(action.Type)),
			slog.Uint64("recipient_id", uint64(action.RecipientID)))
	}
}

// Retract is DeleteNotificationByAction for callers whose reversal has
// already committed.
func (s *NotificationService) Retract(ctx context.Context, action models.NotificationAction) {
	if s == nil {
		return
	}
	if _, err := s.DeleteNotificationByAction(ctx, action); err != nil {
		logSideEffect(ctx, "notification.delete", err,
			slog.String("type", string(action.Type)),
			slog.Uint64("recipient_id", uint64(action.RecipientID)))
	}
}

func (s *NotificationService) List(ctx context.Context, userID uint, p pagination.Params) (*NotificationList, error) {
	items, total, err := s.repo.List(ctx, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}
	unread, err := s.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &NotificationList{
		Result:      pagination.NewResult(items, total, p),
		UnreadCount: unread,
	}, nil
}

// UnreadCount is served from Redis when possible and invalidated on every
// change to the recipient's notifications.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := cache.Aside(ctx, cache.UnreadNotificationsKey(userID), &count, cache.UnreadCountTTL, func() error {
		var fetchErr error
		count, fetchErr = s.repo.CountUnread(ctx, userID)
		return fetchErr
	})
	return count, err
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) (*models.Notification, error) {
	n, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return nil, err
	}
	cache.InvalidateUnreadCount(ctx, userID)
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	changed, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	cache.InvalidateUnreadCount(ctx, userID)
	return changed, nil
}

func (s *NotificationService) Delete(ctx context.Context, userID, notificationID uint) error {
	if err := s.repo.Delete(ctx, notificationID, userID); err != nil {
		return err
	}
	cache.InvalidateUnreadCount(ctx, userID)
	return nil
}
