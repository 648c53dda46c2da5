package documents

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Counter {
	return &repository{db: db}
}

func (r *repository) CountByWorkspace(ctx context.Context, workspaceID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Document{}).
		Where("workspace_id = ?", workspaceID).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
