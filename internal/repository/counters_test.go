package repository

import (
	"context"
	"testing"

	"snapgrid/internal/models"
	"snapgrid/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRepository_ReconcileRepairsDrift(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCounterRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db)
	fan := testutil.CreateUser(t, db)
	post := testutil.CreatePost(t, db, author.ID)
	top := testutil.CreateComment(t, db, post.ID, fan.ID, nil)
	testutil.CreateComment(t, db, post.ID, author.ID, &top.ID)
	require.NoError(t, db.Create(&models.Like{UserID: fan.ID, PostID: post.ID}).Error)
	require.NoError(t, db.Create(&models.CommentLike{UserID: author.ID, CommentID: top.ID}).Error)
	require.NoError(t, db.Create(&models.Follow{FollowerID: fan.ID, FollowingID: author.ID}).Error)

	// Fixtures bypass the counter updates, so everything starts drifted.
	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("likes_count", 40).Error)

	repaired, err := repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, repaired[CounterPostLikes])
	assert.EqualValues(t, 1, repaired[CounterPostComments])
	assert.EqualValues(t, 1, repaired[CounterCommentReplies])
	assert.EqualValues(t, 1, repaired[CounterCommentLikes])
	assert.EqualValues(t, 1, repaired[CounterUserFollowers])
	assert.EqualValues(t, 1, repaired[CounterUserFollowing])
	assert.EqualValues(t, 1, repaired[CounterUserPosts])

	p := reloadPost(t, db, post.ID)
	assert.Equal(t, 1, p.LikesCount)
	assert.Equal(t, 2, p.CommentsCount)
	c := reloadComment(t, db, top.ID)
	assert.Equal(t, 1, c.RepliesCount)
	assert.Equal(t, 1, c.LikesCount)
	assert.Equal(t, 1, reloadUser(t, db, author.ID).FollowersCount)
	assert.Equal(t, 1, reloadUser(t, db, fan.ID).FollowingCount)
	assert.Equal(t, 1, reloadUser(t, db, author.ID).PostsCount)

	again, err := repo.Reconcile(ctx)
	require.NoError(t, err)
	for name, n := range again {
		assert.Zerof(t, n, "%s should already be consistent", name)
	}
}

func TestCounterRepository_ReconcileIgnoresDeletedRows(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCounterRepository(db)
	ctx := context.Background()

	author := testutil.CreateUser(t, db)
	testutil.CreatePost(t, db, author.ID, func(p *models.Post) { p.State = models.StateDeleted })

	_, err := repo.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reloadUser(t, db, author.ID).PostsCount)
}
