package repository

import (
	"context"
	"strings"
	"time"

	"snapgrid/internal/cache"
	"snapgrid/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations.
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, vis models.Visibility) (*models.Post, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, int64, error)
	Feed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, int64, error)
	Explore(ctx context.Context, since time.Time, limit, offset int) ([]*models.Post, int64, error)
	Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, int64, error)
	UpdateDetails(ctx context.Context, id uint, caption, location string) error
	SoftDelete(ctx context.Context, id uint) error

	Like(ctx context.Context, userID, postID uint) error
	Unlike(ctx context.Context, userID, postID uint) error
	IsLiked(ctx context.Context, userID, postID uint) (bool, error)
	LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error)
	ListLikers(ctx context.Context, postID uint, limit, offset int) ([]models.User, int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func withPostDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("User").
		Preload("Images", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		})
}

// Create stores the post with its images and bumps the author's post count
// in one transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	post.State = models.StateActive
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("User").Create(post).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).
			Where("id = ?", post.UserID).
			UpdateColumn("posts_count", gorm.Expr("posts_count + ?", 1)).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateUser(ctx, post.UserID)
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, vis models.Visibility) (*models.Post, error) {
	var post models.Post
	err := withPostDetails(readDB(r.db).WithContext(ctx)).
		Scopes(visible(vis, "posts")).
		First(&post, id).Error
	if err != nil {
		return nil, mapFindError(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) list(ctx context.Context, filter func(*gorm.DB) *gorm.DB, order string, limit, offset int) ([]*models.Post, int64, error) {
	base := readDB(r.db).WithContext(ctx).Model(&models.Post{}).
		Scopes(visible(models.VisibleOnly, "posts"), filter).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var posts []*models.Post
	if err := withPostDetails(base).Order(order).Scopes(page(limit, offset)).Find(&posts).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return posts, total, nil
}

func (r *postRepository) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.Post, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.user_id = ?", userID)
	}, "posts.created_at DESC, posts.id DESC", limit, offset)
}

// Feed returns posts by the viewer and everyone the viewer follows.
func (r *postRepository) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]*models.Post, int64, error) {
	following := r.db.Model(&models.Follow{}).Select("following_id").Where("follower_id = ?", viewerID)
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.user_id = ? OR posts.user_id IN (?)", viewerID, following)
	}, "posts.created_at DESC, posts.id DESC", limit, offset)
}

// Explore ranks recent posts by likes.
func (r *postRepository) Explore(ctx context.Context, since time.Time, limit, offset int) ([]*models.Post, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.created_at >= ?", since)
	}, "posts.likes_count DESC, posts.comments_count DESC, posts.id DESC", limit, offset)
}

func (r *postRepository) Search(ctx context.Context, query string, limit, offset int) ([]*models.Post, int64, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("LOWER(posts.caption) LIKE ? OR LOWER(posts.location) LIKE ?", pattern, pattern)
	}, "posts.created_at DESC, posts.id DESC", limit, offset)
}

func (r *postRepository) UpdateDetails(ctx context.Context, id uint, caption, location string) error {
	res := r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ? AND state = ?", id, models.StateActive).
		Updates(map[string]any{"caption": caption, "location": location})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}

// SoftDelete tombstones the post and lowers the author's post count.
func (r *postRepository) SoftDelete(ctx context.Context, id uint) error {
	var authorID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "user_id").
			Where("id = ? AND state = ?", id, models.StateActive).
			First(&post).Error; err != nil {
			return mapFindError(err, "Post", id)
		}
		authorID = post.UserID

		if err := tx.Model(&models.Post{}).Where("id = ?", id).
			Updates(map[string]any{"state": models.StateDeleted, "deleted_at": time.Now().UTC()}).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", authorID).
			UpdateColumn("posts_count", decrementExpr("posts_count", 1)).Error
	})
	if err != nil {
		return asAppError(err)
	}
	cache.InvalidateUser(ctx, authorID)
	return nil
}

// Like inserts the like row and increments likes_count atomically. The
// unique (user_id, post_id) index decides duplicates, so concurrent likes
// from the same user cannot double count.
func (r *postRepository) Like(ctx context.Context, userID, postID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		like := models.Like{UserID: userID, PostID: postID}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit("User").Create(&like)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("Post already liked")
		}

		res = tx.Model(&models.Post{}).
			Where("id = ? AND state = ?", postID, models.StateActive).
			UpdateColumn("likes_count", gorm.Expr("likes_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", postID)
		}
		return nil
	})
	return asAppError(err)
}

// Unlike hard-deletes the like row and decrements likes_count atomically.
// A tombstoned post rolls the delete back and reports not found.
func (r *postRepository) Unlike(ctx context.Context, userID, postID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Like", postID)
		}
		res = tx.Model(&models.Post{}).
			Where("id = ? AND state = ?", postID, models.StateActive).
			UpdateColumn("likes_count", decrementExpr("likes_count", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", postID)
		}
		return nil
	})
	return asAppError(err)
}

func (r *postRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *postRepository) LikedPostIDs(ctx context.Context, userID uint, postIDs []uint) (map[uint]bool, error) {
	liked := make(map[uint]bool, len(postIDs))
	if userID == 0 || len(postIDs) == 0 {
		return liked, nil
	}
	var ids []uint
	err := readDB(r.db).WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}

// ListLikers returns active users who liked the post, most recent first.
func (r *postRepository) ListLikers(ctx context.Context, postID uint, limit, offset int) ([]models.User, int64, error) {
	base := readDB(r.db).WithContext(ctx).Model(&models.User{}).
		Joins("JOIN likes ON likes.user_id = users.id").
		Where("likes.post_id = ?", postID).
		Scopes(visible(models.VisibleOnly, "users")).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := base.Order("likes.created_at DESC, likes.id DESC").Scopes(page(limit, offset)).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}
