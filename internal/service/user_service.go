package service

import (
	"context"
	"strings"

	"snapgrid/internal/models"
	"snapgrid/internal/pagination"
	"snapgrid/internal/repository"
	"snapgrid/internal/validation"
)

const (
	DefaultSuggestedUsers = 10
	MaxSuggestedUsers     = 50
)

type UserService struct {
	userRepo   repository.UserRepository
	followRepo repository.FollowRepository
	presence   PresenceChecker
}

// UpdateProfileInput carries the fields a user may change on their own
// profile. Nil fields are left untouched.
type UpdateProfileInput struct {
	UserID      uint
	Username    *string
	DisplayName *string
	Bio         *string
	Avatar      *string
}

func NewUserService(userRepo repository.UserRepository, followRepo repository.FollowRepository, presence PresenceChecker) *UserService {
	if presence == nil {
		presence = offlinePresence{}
	}
	return &UserService{userRepo: userRepo, followRepo: followRepo, presence: presence}
}

// GetProfile returns a user as seen by viewerID (zero for anonymous). The
// email is only included on the viewer's own profile.
func (s *UserService) GetProfile(ctx context.Context, viewerID, userID uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID, models.VisibleOnly)
	if err != nil {
		return nil, err
	}

	if viewerID != userID {
		user.Email = ""
		if viewerID != 0 {
			following, err := s.followRepo.Exists(ctx, viewerID, userID)
			if err != nil {
				return nil, err
			}
			user.IsFollowing = following
		}
	}
	user.IsOnline = s.presence.IsOnline(ctx, userID)
	return user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	updates := make(map[string]any, 4)

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updates["username"] = username
	}
	if in.DisplayName != nil {
		name := strings.TrimSpace(*in.DisplayName)
		if err := validation.ValidateDisplayName(name); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updates["display_name"] = name
	}
	if in.Bio != nil {
		if err := validation.ValidateBio(*in.Bio); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		updates["bio"] = *in.Bio
	}
	if in.Avatar != nil {
		updates["avatar"] = strings.TrimSpace(*in.Avatar)
	}
	if len(updates) == 0 {
		return nil, models.NewValidationError("No profile fields to update")
	}

	if err := s.userRepo.UpdateProfile(ctx, in.UserID, updates); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, in.UserID, in.UserID)
}

// DeleteAccount soft-deletes the user and their posts and comments.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	return s.userRepo.SoftDelete(ctx, userID)
}

func (s *UserService) Search(ctx context.Context, viewerID uint, query string, p pagination.Params) (*pagination.Result[models.User], error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	users, total, err := s.userRepo.Search(ctx, query, p.Limit, p.Offset())
	if err != nil {
		return nil, err
	}
	if err := s.annotate(ctx, viewerID, users); err != nil {
		return nil, err
	}
	result := pagination.NewResult(users, total, p)
	return &result, nil
}

// Suggested returns popular users the viewer does not follow yet.
func (s *UserService) Suggested(ctx context.Context, viewerID uint, limit int) ([]models.User, error) {
	if limit <= 0 {
		limit = DefaultSuggestedUsers
	}
	if limit > MaxSuggestedUsers {
		limit = MaxSuggestedUsers
	}
	users, err := s.userRepo.Suggested(ctx, viewerID, limit)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Email = ""
		users[i].IsOnline = s.presence.IsOnline(ctx, users[i].ID)
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// annotate fills the per-viewer fields of a user list and hides emails.
func (s *UserService) annotate(ctx context.Context, viewerID uint, users []models.User) error {
	return annotateUsers(ctx, s.followRepo, s.presence, viewerID, users)
}

func annotateUsers(ctx context.Context, followRepo repository.FollowRepository, presence PresenceChecker, viewerID uint, users []models.User) error {
	if len(users) == 0 {
		return nil
	}
	var following map[uint]bool
	if viewerID != 0 {
		ids := make([]uint, len(users))
		for i := range users {
			ids[i] = users[i].ID
		}
		var err error
		following, err = followRepo.FollowingAmong(ctx, viewerID, ids)
		if err != nil {
			return err
		}
	}
	for i := range users {
		if users[i].ID != viewerID {
			users[i].Email = ""
		}
		users[i].IsFollowing = following[users[i].ID]
		users[i].IsOnline = presence.IsOnline(ctx, users[i].ID)
	}
	return nil
}
