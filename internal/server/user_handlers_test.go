package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"snapgrid/internal/models"
	"snapgrid/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowFlow(t *testing.T) {
	ts := newTestServer(t)
	alice := testutil.CreateUser(t, ts.db)
	bob := testutil.CreateUser(t, ts.db)
	aliceToken := ts.tokenFor(t, alice.ID)
	bobToken := ts.tokenFor(t, bob.ID)
	followPath := fmt.Sprintf("/api/users/%d/follow", bob.ID)

	status, env := ts.do(t, http.MethodPost, followPath, aliceToken, nil)
	require.Equal(t, http.StatusCreated, status, env.Message)
	target := decodeData[models.User](t, env)
	assert.Equal(t, 1, target.FollowersCount)
	assert.True(t, target.IsFollowing)
	assert.Empty(t, target.Email)

	status, env = ts.do(t, http.MethodPost, followPath, aliceToken, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, models.CodeConflict, env.Code)

	status, _ = ts.do(t, http.MethodPost, fmt.Sprintf("/api/users/%d/follow", alice.ID), aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = ts.do(t, http.MethodPost, "/api/users/999999/follow", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = ts.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d/followers", bob.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	followers := decodeData[page[models.User]](t, env)
	require.Len(t, followers.Items, 1)
	assert.Equal(t, alice.ID, followers.Items[0].ID)

	status, env = ts.do(t, http.MethodGet, "/api/notifications", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	notes := decodeData[notificationPage](t, env)
	require.Len(t, notes.Items, 1)
	assert.Equal(t, models.NotificationFollow, notes.Items[0].Type)

	status, env = ts.do(t, http.MethodDelete, followPath, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decodeData[models.User](t, env).FollowersCount)

	status, env = ts.do(t, http.MethodGet, "/api/notifications", bobToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, decodeData[notificationPage](t, env).Items, "unfollow withdraws the notification")

	status, _ = ts.do(t, http.MethodDelete, followPath, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProfileAndUpdate(t *testing.T) {
	ts := newTestServer(t)
	me := testutil.CreateUser(t, ts.db)
	other := testutil.CreateUser(t, ts.db)
	token := ts.tokenFor(t, me.ID)

	status, env := ts.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", other.ID), token, nil)
	require.Equal(t, http.StatusOK, status)
	profile := decodeData[models.User](t, env)
	assert.Equal(t, other.Username, profile.Username)
	assert.Empty(t, profile.Email)

	bio := "Film photographer"
	name := "  Night Owl  "
	status, env = ts.do(t, http.MethodPatch, "/api/users/me", token, UpdateProfileRequest{Bio: &bio, DisplayName: &name})
	require.Equal(t, http.StatusOK, status, env.Message)
	updated := decodeData[models.User](t, env)
	assert.Equal(t, bio, updated.Bio)
	assert.Equal(t, "Night Owl", updated.DisplayName)

	taken := other.Username
	status, _ = ts.do(t, http.MethodPatch, "/api/users/me", token, UpdateProfileRequest{Username: &taken})
	assert.Equal(t, http.StatusConflict, status)

	long := strings.Repeat("b", 501)
	status, _ = ts.do(t, http.MethodPatch, "/api/users/me", token, UpdateProfileRequest{Bio: &long})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSearchAndSuggested(t *testing.T) {
	ts := newTestServer(t)
	me := testutil.CreateUser(t, ts.db)
	testutil.CreateUser(t, ts.db, func(u *models.User) { u.Username = "trailrunner" })
	token := ts.tokenFor(t, me.ID)

	status, env := ts.do(t, http.MethodGet, "/api/users/search?q=trail", token, nil)
	require.Equal(t, http.StatusOK, status)
	found := decodeData[page[models.User]](t, env)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "trailrunner", found.Items[0].Username)

	status, _ = ts.do(t, http.MethodGet, "/api/users/search?q=", token, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = ts.do(t, http.MethodGet, "/api/users/suggested?limit=5", token, nil)
	require.Equal(t, http.StatusOK, status)
	for _, u := range decodeData[[]models.User](t, env) {
		assert.NotEqual(t, me.ID, u.ID)
	}
}
