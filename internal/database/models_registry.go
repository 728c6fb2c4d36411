package database

import (
	"fmt"

	"snapgrid/internal/models"

	"gorm.io/gorm"
)

// PersistentModels returns the authoritative set of schema-managed GORM
// models, parents before children.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Post{},
		&models.PostImage{},
		&models.Like{},
		&models.Comment{},
		&models.CommentLike{},
		&models.Follow{},
		&models.Message{},
		&models.Conversation{},
		&models.Notification{},
		&models.Image{},
	}
}

// TableStatus describes one schema-managed table.
type TableStatus struct {
	Table  string
	Exists bool
	Rows   int64
}

// SchemaStatus reports, in PersistentModels order, which tables exist and
// how many rows they hold.
func SchemaStatus(db *gorm.DB) ([]TableStatus, error) {
	out := make([]TableStatus, 0, len(PersistentModels()))
	for _, model := range PersistentModels() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, fmt.Errorf("parse %T: %w", model, err)
		}
		st := TableStatus{Table: stmt.Schema.Table, Exists: db.Migrator().HasTable(model)}
		if st.Exists {
			if err := db.Model(model).Count(&st.Rows).Error; err != nil {
				return nil, fmt.Errorf("count %s: %w", st.Table, err)
			}
		}
		out = append(out, st)
	}
	return out, nil
}
