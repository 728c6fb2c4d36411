package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"snapgrid/internal/cache"
	"snapgrid/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint, vis models.Visibility) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id uint, updates map[string]any) error
	SoftDelete(ctx context.Context, id uint) error
	Search(ctx context.Context, query string, limit, offset int) ([]models.User, int64, error)
	Suggested(ctx context.Context, viewerID uint, limit int) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint, vis models.Visibility) (*models.User, error) {
	var user models.User
	fetch := func() error {
		err := readDB(r.db).WithContext(ctx).
			Scopes(visible(vis, "users")).
			First(&user, id).Error
		if err != nil {
			return mapFindError(err, "User", id)
		}
		return nil
	}

	// Only active profiles are cached; maintenance reads go to the database.
	var err error
	if vis == models.VisibleOnly {
		err = cache.Aside(ctx, cache.UserKey(id), &user, cache.UserTTL, fetch)
	} else {
		err = fetch()
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail returns the active user with email, or nil when none exists.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findActive(ctx, "LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email)))
}

// GetByUsername returns the active user with username, or nil when none exists.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findActive(ctx, "LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username)))
}

func (r *userRepository) findActive(ctx context.Context, cond string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Scopes(visible(models.VisibleOnly, "users")).
		Where(cond, arg).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.State = models.StateActive
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username or email already registered")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// UpdateProfile writes only the given profile columns so concurrent counter
// updates are never overwritten.
func (r *userRepository) UpdateProfile(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Scopes(visible(models.VisibleOnly, "users")).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError("Username already taken")
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

// SoftDelete tombstones the account and its posts.
func (r *userRepository) SoftDelete(ctx context.Context, id uint) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND state = ?", id, models.StateActive).
			Updates(map[string]any{"state": models.StateDeleted, "deleted_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", id)
		}
		return tx.Model(&models.Post{}).
			Where("user_id = ? AND state = ?", id, models.StateActive).
			Updates(map[string]any{"state": models.StateDeleted, "deleted_at": now}).Error
	})
	if err != nil {
		return asAppError(err)
	}
	cache.InvalidateUser(ctx, id)
	return nil
}

func (r *userRepository) Search(ctx context.Context, query string, limit, offset int) ([]models.User, int64, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	base := readDB(r.db).WithContext(ctx).Model(&models.User{}).
		Scopes(visible(models.VisibleOnly, "users")).
		Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ?", pattern, pattern).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := base.Order("followers_count DESC, id ASC").Scopes(page(limit, offset)).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

// Suggested returns popular active users the viewer does not follow yet.
func (r *userRepository) Suggested(ctx context.Context, viewerID uint, limit int) ([]models.User, error) {
	var users []models.User
	err := readDB(r.db).WithContext(ctx).
		Scopes(visible(models.VisibleOnly, "users")).
		Where("id <> ?", viewerID).
		Where("id NOT IN (?)", r.db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", viewerID)).
		Order("followers_count DESC, id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
