package service

import (
	"context"

	"snapgrid/internal/models"
	"snapgrid/internal/pagination"
	"snapgrid/internal/repository"
)

type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	notifier   *NotificationService
	presence   PresenceChecker
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	notifier *NotificationService,
	presence PresenceChecker,
) *FollowService {
	if presence == nil {
		presence = offlinePresence{}
	}
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		notifier:   notifier,
		presence:   presence,
	}
}

// Follow makes followerID follow targetID and notifies the target. It
// returns the target's refreshed profile.
func (s *FollowService) Follow(ctx context.Context, followerID, targetID uint) (*models.User, error) {
	if followerID == targetID {
		return nil, models.NewForbiddenError("You cannot follow yourself")
	}
	if err := s.followRepo.Create(ctx, followerID, targetID); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, models.NotificationAction{
		RecipientID: targetID,
		SenderID:    followerID,
		Type:        models.NotificationFollow,
	})

	return s.profile(ctx, targetID, true)
}

// Unfollow removes the follow edge and withdraws its notification.
func (s *FollowService) Unfollow(ctx context.Context, followerID, targetID uint) (*models.User, error) {
	if followerID == targetID {
		return nil, models.NewForbiddenError("You cannot unfollow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, targetID, models.VisibleOnly); err != nil {
		return nil, err
	}
	if err := s.followRepo.Delete(ctx, followerID, targetID); err != nil {
		return nil, err
	}

	s.notifier.Retract(ctx, models.NotificationAction{
		RecipientID: targetID,
		SenderID:    followerID,
		Type:        models.NotificationFollow,
	})

	return s.profile(ctx, targetID, false)
}

func (s *FollowService) Followers(ctx context.Context, viewerID, userID uint, p pagination.Params) (*pagination.Result[models.User], error) {
	return s.list(ctx, viewerID, userID, p, s.followRepo.ListFollowers)
}

func (s *FollowService) Following(ctx context.Context, viewerID, userID uint, p pagination.Params) (*pagination.Result[models.User], error) {
	return s.list(ctx, viewerID, userID, p, s.followRepo.ListFollowing)
}

// FollowerIDs returns the ids of everyone following userID.
func (s *FollowService) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	return s.followRepo.FollowerIDs(ctx, userID)
}

type listUsersFn func(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error)

func (s *FollowService) list(ctx context.Context, viewerID, userID uint, p pagination.Params, fetch listUsersFn) (*pagination.Result[models.User], error) {
	if _, err := s.userRepo.GetByID(ctx, userID, models.VisibleOnly); err != nil {
		return nil, err
	}
	users, total, err := fetch(ctx, userID, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}
	if err := annotateUsers(ctx, s.followRepo, s.presence, viewerID, users); err != nil {
		return nil, err
	}
	result := pagination.NewResult(users, total, p)
	return &result, nil
}

func (s *FollowService) profile(ctx context.Context, userID uint, following bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}
	user.Email = ""
	user.IsFollowing = following
	user.IsOnline = s.presence.IsOnline(ctx, userID)
	return user, nil
}
