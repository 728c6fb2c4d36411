// Package testutil provides shared test doubles and fixtures for backend tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"snapgrid/internal/database"
	"snapgrid/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var fixtureSeq atomic.Uint64

// NewTestDB returns a migrated in-memory SQLite database. Every sqlite
// :memory: connection is its own database, so the pool is pinned to one
// connection.
func NewTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: database.NewGormLogger(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser persists an active user with a unique handle.
func CreateUser(t testing.TB, db *gorm.DB, overrides ...func(*models.User)) *models.User {
	t.Helper()
	n := fixtureSeq.Add(1)
	u := &models.User{
		Username:    fmt.Sprintf("user_%d", n),
		Email:       fmt.Sprintf("user_%d@example.com", n),
		Password:    "$2a$10$fixturehashfixturehashfixturehashfixturehashfixtureha",
		DisplayName: fmt.Sprintf("User %d", n),
		State:       models.StateActive,
	}
	for _, o := range overrides {
		o(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreatePost persists an active post with one image owned by userID.
func CreatePost(t testing.TB, db *gorm.DB, userID uint, overrides ...func(*models.Post)) *models.Post {
	t.Helper()
	n := fixtureSeq.Add(1)
	p := &models.Post{
		UserID:  userID,
		Caption: fmt.Sprintf("caption %d", n),
		Images:  []models.PostImage{{Position: 0, URL: fmt.Sprintf("/uploads/%d/master.jpg", n)}},
		State:   models.StateActive,
	}
	for _, o := range overrides {
		o(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return p
}

// CreateComment persists an active comment by userID on postID.
func CreateComment(t testing.TB, db *gorm.DB, postID, userID uint, parentID *uint) *models.Comment {
	t.Helper()
	c := &models.Comment{
		PostID:   postID,
		UserID:   userID,
		ParentID: parentID,
		Content:  fmt.Sprintf("comment %d", fixtureSeq.Add(1)),
		State:    models.StateActive,
	}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create comment: %v", err)
	}
	return c
}
