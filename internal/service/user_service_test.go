package service

import (
	"context"
	"strings"
	"testing"

	"snapgrid/internal/models"
	"snapgrid/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserService_GetProfileViewerFields(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	me := testutil.CreateUser(t, h.db)
	them := testutil.CreateUser(t, h.db)
	_, err := h.follows.Follow(ctx, me.ID, them.ID)
	require.NoError(t, err)
	h.presence[them.ID] = true

	theirs, err := h.users.GetProfile(ctx, me.ID, them.ID)
	require.NoError(t, err)
	assert.True(t, theirs.IsFollowing)
	assert.True(t, theirs.IsOnline)
	assert.Empty(t, theirs.Email)

	mine, err := h.users.GetProfile(ctx, me.ID, me.ID)
	require.NoError(t, err)
	assert.Equal(t, me.Email, mine.Email)
	assert.False(t, mine.IsFollowing)

	anon, err := h.users.GetProfile(ctx, 0, them.ID)
	require.NoError(t, err)
	assert.False(t, anon.IsFollowing)

	require.NoError(t, h.users.DeleteAccount(ctx, them.ID))
	_, err = h.users.GetProfile(ctx, me.ID, them.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestUserService_UpdateProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	u := testutil.CreateUser(t, h.db)
	taken := testutil.CreateUser(t, h.db)

	_, err := h.users.UpdateProfile(ctx, UpdateProfileInput{UserID: u.ID})
	assertValidationError(t, err)

	_, err = h.users.UpdateProfile(ctx, UpdateProfileInput{UserID: u.ID, Username: ptr("-bad")})
	assertValidationError(t, err)

	_, err = h.users.UpdateProfile(ctx, UpdateProfileInput{UserID: u.ID, Bio: ptr(strings.Repeat("b", 501))})
	assertValidationError(t, err)

	_, err = h.users.UpdateProfile(ctx, UpdateProfileInput{UserID: u.ID, Username: &taken.Username})
	assertCode(t, err, models.CodeConflict)

	updated, err := h.users.UpdateProfile(ctx, UpdateProfileInput{
		UserID:      u.ID,
		DisplayName: ptr("  Ada  "),
		Bio:         ptr("hello there"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", updated.DisplayName)
	assert.Equal(t, "hello there", updated.Bio)
	assert.Equal(t, u.Username, updated.Username)
}

func TestUserService_SearchAndSuggested(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	viewer := testutil.CreateUser(t, h.db)
	match := testutil.CreateUser(t, h.db, func(u *models.User) {
		u.Username = "trail_runner"
		u.FollowersCount = 3
	})
	_, err := h.follows.Follow(ctx, viewer.ID, match.ID)
	require.NoError(t, err)

	_, err = h.users.Search(ctx, viewer.ID, " ", firstPage(10))
	assertValidationError(t, err)

	found, err := h.users.Search(ctx, viewer.ID, "trail", firstPage(10))
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.True(t, found.Items[0].IsFollowing)
	assert.Empty(t, found.Items[0].Email)

	suggested, err := h.users.Suggested(ctx, viewer.ID, 0)
	require.NoError(t, err)
	for _, s := range suggested {
		assert.NotEqual(t, viewer.ID, s.ID)
		assert.NotEqual(t, match.ID, s.ID)
	}
}
