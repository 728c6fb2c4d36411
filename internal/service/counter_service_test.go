package service

import (
	"context"
	"testing"
	"time"

	"snapgrid/internal/models"
	"snapgrid/internal/repository"
	"snapgrid/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterService_ReconcileReport(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	owner := testutil.CreateUser(t, h.db)
	fan := testutil.CreateUser(t, h.db)
	post := testutil.CreatePost(t, h.db, owner.ID)

	_, err := h.posts.LikePost(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	require.NoError(t, h.db.Model(&models.Post{}).Where("id = ?", post.ID).UpdateColumn("likes_count", 9).Error)

	report, err := h.counters.Reconcile(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report[repository.CounterPostLikes])
	assert.Positive(t, report.Total())
	assert.IsIncreasing(t, report.Counters())

	got, err := h.posts.GetPost(ctx, fan.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)

	again, err := h.counters.Reconcile(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Total())
}

func TestCounterService_RunStopsWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		h.counters.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// A non-positive interval disables the job.
	h.counters.Run(context.Background(), 0)
}
