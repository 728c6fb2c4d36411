package repository

import (
	"context"
	"fmt"

	"snapgrid/internal/models"

	"gorm.io/gorm"
)

// Counter names reported by Reconcile.
const (
	CounterPostLikes      = "posts.likes_count"
	CounterPostComments   = "posts.comments_count"
	CounterCommentReplies = "comments.replies_count"
	CounterCommentLikes   = "comments.likes_count"
	CounterUserFollowers  = "users.followers_count"
	CounterUserFollowing  = "users.following_count"
	CounterUserPosts      = "users.posts_count"
)

// CounterRepository recomputes denormalized counters from their child rows.
type CounterRepository interface {
	// Reconcile rewrites every counter that disagrees with its source rows
	// and returns the number of repaired rows per counter.
	Reconcile(ctx context.Context) (map[string]int64, error)
}

type counterRepository struct {
	db *gorm.DB
}

// NewCounterRepository returns a new CounterRepository implementation.
func NewCounterRepository(db *gorm.DB) CounterRepository {
	return &counterRepository{db: db}
}

type counterSpec struct {
	name   string
	table  string
	column string
	source string
}

// Correlated subqueries keep the statements portable between PostgreSQL
// and SQLite.
var counterSpecs = []counterSpec{
	{CounterPostLikes, "posts", "likes_count",
		"SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id"},
	{CounterPostComments, "posts", "comments_count",
		"SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.state = 'active'"},
	{CounterCommentReplies, "comments", "replies_count",
		"SELECT COUNT(*) FROM comments AS r WHERE r.parent_id = comments.id AND r.state = 'active'"},
	{CounterCommentLikes, "comments", "likes_count",
		"SELECT COUNT(*) FROM comment_likes WHERE comment_likes.comment_id = comments.id"},
	{CounterUserFollowers, "users", "followers_count",
		"SELECT COUNT(*) FROM follows WHERE follows.following_id = users.id"},
	{CounterUserFollowing, "users", "following_count",
		"SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id"},
	{CounterUserPosts, "users", "posts_count",
		"SELECT COUNT(*) FROM posts WHERE posts.user_id = users.id AND posts.state = 'active'"},
}

func (r *counterRepository) Reconcile(ctx context.Context) (map[string]int64, error) {
	repaired := make(map[string]int64, len(counterSpecs))
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, spec := range counterSpecs {
			stmt := fmt.Sprintf("UPDATE %s SET %s = (%s) WHERE %s <> (%s)",
				spec.table, spec.column, spec.source, spec.column, spec.source)
			res := tx.Exec(stmt)
			if res.Error != nil {
				return fmt.Errorf("reconcile %s: %w", spec.name, res.Error)
			}
			repaired[spec.name] = res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return repaired, nil
}
