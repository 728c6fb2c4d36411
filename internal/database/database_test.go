package database

import (
	"testing"
	"time"

	"snapgrid/internal/config"
	"snapgrid/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestMigrate_CreatesEveryTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, Migrate(db))

	for _, model := range PersistentModels() {
		assert.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}
}

func TestMigrate_UsernameUniqueOnlyAmongActiveUsers(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, Migrate(db))

	now := time.Now()
	deleted := models.User{Username: "ada", Email: "ada@example.com", Password: "x", State: models.StateDeleted, DeletedAt: &now}
	require.NoError(t, db.Create(&deleted).Error)

	active := models.User{Username: "ada", Email: "ada@example.com", Password: "x", State: models.StateActive}
	require.NoError(t, db.Create(&active).Error)

	dup := models.User{Username: "ada", Email: "other@example.com", Password: "x", State: models.StateActive}
	assert.Error(t, db.Create(&dup).Error)
}

func TestPersistentModels_IncludesNotification(t *testing.T) {
	found := false
	for _, model := range PersistentModels() {
		if _, ok := model.(*models.Notification); ok {
			found = true
			break
		}
	}
	require.True(t, found, "PersistentModels should include Notification")
}

func TestSchemaStatus(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewGormLogger(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	before, err := SchemaStatus(db)
	require.NoError(t, err)
	require.Len(t, before, len(PersistentModels()))
	assert.Equal(t, "users", before[0].Table)
	assert.False(t, before[0].Exists)

	require.NoError(t, Migrate(db))
	require.NoError(t, db.Create(&models.User{Username: "ada", Email: "ada@example.com", Password: "x", State: models.StateActive}).Error)

	after, err := SchemaStatus(db)
	require.NoError(t, err)
	for _, st := range after {
		assert.True(t, st.Exists, st.Table)
	}
	assert.EqualValues(t, 1, after[0].Rows)
}
