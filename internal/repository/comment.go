package repository

import (
	"context"
	"time"

	"snapgrid/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines persistence operations for comments and comment likes.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint, vis models.Visibility) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, int64, error)
	ListReplies(ctx context.Context, parentID uint, limit, offset int) ([]*models.Comment, int64, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	SoftDelete(ctx context.Context, id uint) ([]models.Comment, error)

	Like(ctx context.Context, userID, commentID uint) error
	Unlike(ctx context.Context, userID, commentID uint) error
	LikedCommentIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository returns a new CommentRepository implementation.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create inserts the comment and bumps the post's comment count, plus the
// parent's reply count for replies. A missing or deleted post or parent
// rolls the insert back.
func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	comment.State = models.StateActive
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Post{}).
			Where("id = ? AND state = ?", comment.PostID, models.StateActive).
			UpdateColumn("comments_count", gorm.Expr("comments_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Post", comment.PostID)
		}

		if comment.ParentID != nil {
			res = tx.Model(&models.Comment{}).
				Where("id = ? AND post_id = ? AND parent_id IS NULL AND state = ?",
					*comment.ParentID, comment.PostID, models.StateActive).
				UpdateColumn("replies_count", gorm.Expr("replies_count + ?", 1))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return models.NewNotFoundError("Comment", *comment.ParentID)
			}
		}

		return tx.Omit("User").Create(comment).Error
	})
	return asAppError(err)
}

func (r *commentRepository) GetByID(ctx context.Context, id uint, vis models.Visibility) (*models.Comment, error) {
	var comment models.Comment
	err := readDB(r.db).WithContext(ctx).
		Preload("User").
		Scopes(visible(vis, "comments")).
		First(&comment, id).Error
	if err != nil {
		return nil, mapFindError(err, "Comment", id)
	}
	return &comment, nil
}

func (r *commentRepository) list(ctx context.Context, filter func(*gorm.DB) *gorm.DB, limit, offset int) ([]*models.Comment, int64, error) {
	base := readDB(r.db).WithContext(ctx).Model(&models.Comment{}).
		Scopes(visible(models.VisibleOnly, "comments"), filter).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var comments []*models.Comment
	err := base.Preload("User").
		Order("comments.created_at ASC, comments.id ASC").
		Scopes(page(limit, offset)).
		Find(&comments).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return comments, total, nil
}

// ListByPost returns the post's top-level comments, oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint, limit, offset int) ([]*models.Comment, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("comments.post_id = ? AND comments.parent_id IS NULL", postID)
	}, limit, offset)
}

// ListReplies returns the replies to parentID, oldest first.
func (r *commentRepository) ListReplies(ctx context.Context, parentID uint, limit, offset int) ([]*models.Comment, int64, error) {
	return r.list(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("comments.parent_id = ?", parentID)
	}, limit, offset)
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ? AND state = ?", id, models.StateActive).
		Update("content", content)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

// SoftDelete tombstones the comment. Deleting a top-level comment also
// tombstones its replies, which are returned; the post's comment count
// drops by every row removed.
func (r *commentRepository) SoftDelete(ctx context.Context, id uint) ([]models.Comment, error) {
	now := time.Now().UTC()
	tombstone := map[string]any{"state": models.StateDeleted, "deleted_at": now}
	var replies []models.Comment

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comment models.Comment
		if err := tx.Select("id", "post_id", "parent_id").
			Where("id = ? AND state = ?", id, models.StateActive).
			First(&comment).Error; err != nil {
			return mapFindError(err, "Comment", id)
		}

		if err := tx.Model(&models.Comment{}).Where("id = ?", id).Updates(tombstone).Error; err != nil {
			return err
		}
		removed := int64(1)

		if comment.ParentID == nil {
			if err := tx.Select("id", "post_id", "user_id", "parent_id").
				Where("parent_id = ? AND state = ?", id, models.StateActive).
				Find(&replies).Error; err != nil {
				return err
			}
			if len(replies) > 0 {
				ids := make([]uint, len(replies))
				for i := range replies {
					ids[i] = replies[i].ID
				}
				if err := tx.Model(&models.Comment{}).Where("id IN ?", ids).Updates(tombstone).Error; err != nil {
					return err
				}
				removed += int64(len(replies))
			}
		} else if err := tx.Model(&models.Comment{}).
			Where("id = ?", *comment.ParentID).
			UpdateColumn("replies_count", decrementExpr("replies_count", 1)).Error; err != nil {
			return err
		}

		return tx.Model(&models.Post{}).
			Where("id = ?", comment.PostID).
			UpdateColumn("comments_count", decrementExpr("comments_count", removed)).Error
	})
	if err != nil {
		return nil, asAppError(err)
	}
	return replies, nil
}

// Like inserts the comment like and increments likes_count in one transaction.
func (r *commentRepository) Like(ctx context.Context, userID, commentID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.CommentLike{UserID: userID, CommentID: commentID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewConflictError("Comment already liked")
		}

		res = tx.Model(&models.Comment{}).
			Where("id = ? AND state = ?", commentID, models.StateActive).
			UpdateColumn("likes_count", gorm.Expr("likes_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Comment", commentID)
		}
		return nil
	})
	return asAppError(err)
}

// Unlike removes the comment like and decrements likes_count in one transaction.
func (r *commentRepository) Unlike(ctx context.Context, userID, commentID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND comment_id = ?", userID, commentID).Delete(&models.CommentLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Comment like", commentID)
		}
		res = tx.Model(&models.Comment{}).
			Where("id = ? AND state = ?", commentID, models.StateActive).
			UpdateColumn("likes_count", decrementExpr("likes_count", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Comment", commentID)
		}
		return nil
	})
	return asAppError(err)
}

func (r *commentRepository) LikedCommentIDs(ctx context.Context, userID uint, commentIDs []uint) (map[uint]bool, error) {
	liked := make(map[uint]bool, len(commentIDs))
	if userID == 0 || len(commentIDs) == 0 {
		return liked, nil
	}
	var ids []uint
	err := readDB(r.db).WithContext(ctx).Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", userID, commentIDs).
		Pluck("comment_id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		liked[id] = true
	}
	return liked, nil
}
