package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"snapgrid/internal/models"
	"snapgrid/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepository_GetByID_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE`)).
		WillReturnError(errors.New("connection timeout"))

	user, err := repo.GetByID(ctx, 1, models.VisibleOnly)
	assert.True(t, models.IsCode(err, models.CodeInternal))
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_CreateConflict(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.User{Username: "alice", Email: "alice@example.com", Password: "x"}))

	err := repo.Create(ctx, &models.User{Username: "alice", Email: "other@example.com", Password: "x"})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	err = repo.Create(ctx, &models.User{Username: "alice2", Email: "alice@example.com", Password: "x"})
	assert.True(t, models.IsCode(err, models.CodeConflict))
}

func TestUserRepository_SoftDeleteReleasesHandle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db)
	post := testutil.CreatePost(t, db, u.ID)

	require.NoError(t, repo.SoftDelete(ctx, u.ID))

	_, err := repo.GetByID(ctx, u.ID, models.VisibleOnly)
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	tomb, err := repo.GetByID(ctx, u.ID, models.IncludeDeleted)
	require.NoError(t, err)
	assert.Equal(t, models.StateDeleted, tomb.State)

	var p models.Post
	require.NoError(t, db.First(&p, post.ID).Error)
	assert.Equal(t, models.StateDeleted, p.State)

	byName, err := repo.GetByUsername(ctx, u.Username)
	require.NoError(t, err)
	assert.Nil(t, byName)

	require.NoError(t, repo.Create(ctx, &models.User{Username: u.Username, Email: u.Email, Password: "x"}))

	assert.True(t, models.IsCode(repo.SoftDelete(ctx, u.ID), models.CodeNotFound))
}

func TestUserRepository_Lookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db, func(u *models.User) {
		u.Username = "MixedCase"
		u.Email = "Mixed@Example.com"
	})

	byEmail, err := repo.GetByEmail(ctx, "  mixed@example.com ")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, u.ID, byEmail.ID)

	byName, err := repo.GetByUsername(ctx, "mixedcase")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, u.ID, byName.ID)

	missing, err := repo.GetByEmail(ctx, "ghost@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUserRepository_UpdateProfile(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	u := testutil.CreateUser(t, db)
	taken := testutil.CreateUser(t, db)

	require.NoError(t, repo.UpdateProfile(ctx, u.ID, map[string]any{"bio": "hello", "display_name": "New"}))
	got, err := repo.GetByID(ctx, u.ID, models.VisibleOnly)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Bio)
	assert.Equal(t, "New", got.DisplayName)

	err = repo.UpdateProfile(ctx, u.ID, map[string]any{"username": taken.Username})
	assert.True(t, models.IsCode(err, models.CodeConflict))

	err = repo.UpdateProfile(ctx, 9999, map[string]any{"bio": "x"})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestUserRepository_SearchAndSuggested(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	viewer := testutil.CreateUser(t, db)
	popular := testutil.CreateUser(t, db, func(u *models.User) {
		u.Username = "sunny_days"
		u.FollowersCount = 10
	})
	followed := testutil.CreateUser(t, db, func(u *models.User) { u.FollowersCount = 20 })
	testutil.CreateUser(t, db, func(u *models.User) {
		u.Username = "sunny_gone"
		u.State = models.StateDeleted
	})
	require.NoError(t, db.Create(&models.Follow{FollowerID: viewer.ID, FollowingID: followed.ID}).Error)

	found, total, err := repo.Search(ctx, "SUNNY", 10, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, found, 1)
	assert.Equal(t, popular.ID, found[0].ID)

	suggested, err := repo.Suggested(ctx, viewer.ID, 5)
	require.NoError(t, err)
	require.NotEmpty(t, suggested)
	assert.Equal(t, popular.ID, suggested[0].ID)
	for _, s := range suggested {
		assert.NotEqual(t, viewer.ID, s.ID)
		assert.NotEqual(t, followed.ID, s.ID)
	}
}
