package repository

import (
	"context"

	"snapgrid/internal/cache"
	"snapgrid/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository defines persistence operations for the follow graph.
type FollowRepository interface {
	Create(ctx context.Context, followerID, followingID uint) error
	Delete(ctx context.Context, followerID, followingID uint) error
	Exists(ctx context.Context, followerID, followingID uint) (bool, error)
	ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error)
	ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error)
	FollowerIDs(ctx context.Context, userID uint) ([]uint, error)
	FollowingAmong(ctx context.Context, followerID uint, candidateIDs []uint) (map[uint]bool, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Create inserts the follow edge and bumps both users' counters in one
// transaction. The target must be an active user.
func (r *followRepository) Create(ctx context.Context, followerID, followingID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND state = ?", followingID, models.StateActive).
			UpdateColumn("followers_count", gorm.Expr("followers_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", followingID)
		}

		res = tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follow{FollowerID: followerID, FollowingID: followingID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("Already following this user")
		}

		return tx.Model(&models.User{}).
			Where("id = ?", followerID).
			UpdateColumn("following_count", gorm.Expr("following_count + ?", 1)).Error
	})
	if err != nil {
		return asAppError(err)
	}
	cache.InvalidateFollowGraph(ctx, followerID, followingID)
	return nil
}

// Delete removes the follow edge and lowers both counters. The target must
// still be an active user.
func (r *followRepository) Delete(ctx context.Context, followerID, followingID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Follow", followingID)
		}
		res = tx.Model(&models.User{}).
			Where("id = ? AND state = ?", followingID, models.StateActive).
			UpdateColumn("followers_count", decrementExpr("followers_count", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("User", followingID)
		}
		return tx.Model(&models.User{}).Where("id = ?", followerID).
			UpdateColumn("following_count", decrementExpr("following_count", 1)).Error
	})
	if err != nil {
		return asAppError(err)
	}
	cache.InvalidateFollowGraph(ctx, followerID, followingID)
	return nil
}

func (r *followRepository) Exists(ctx context.Context, followerID, followingID uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *followRepository) listUsers(ctx context.Context, joinOn, filter string, userID uint, limit, offset int) ([]models.User, int64, error) {
	base := readDB(r.db).WithContext(ctx).Model(&models.User{}).
		Joins("JOIN follows ON "+joinOn).
		Where(filter, userID).
		Scopes(visible(models.VisibleOnly, "users")).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := base.Order("follows.created_at DESC, follows.id DESC").Scopes(page(limit, offset)).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

// ListFollowers returns active users following userID, newest edge first.
func (r *followRepository) ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error) {
	return r.listUsers(ctx, "follows.follower_id = users.id", "follows.following_id = ?", userID, limit, offset)
}

// ListFollowing returns active users userID follows, newest edge first.
func (r *followRepository) ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, int64, error) {
	return r.listUsers(ctx, "follows.following_id = users.id", "follows.follower_id = ?", userID, limit, offset)
}

func (r *followRepository) FollowerIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := readDB(r.db).WithContext(ctx).Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Pluck("follower_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

// FollowingAmong reports which of candidateIDs followerID follows.
func (r *followRepository) FollowingAmong(ctx context.Context, followerID uint, candidateIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(candidateIDs))
	if followerID == 0 || len(candidateIDs) == 0 {
		return out, nil
	}
	var ids []uint
	err := readDB(r.db).WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id IN ?", followerID, candidateIDs).
		Pluck("following_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
