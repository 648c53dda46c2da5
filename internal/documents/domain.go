// Package documents holds the document records stored inside a workspace.
// The access engine only needs to count them: a workspace with documents
// cannot be deleted.
package documents

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Document is a content item belonging to a workspace.
type Document struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	WorkspaceID snowflake.ID `gorm:"not null;index" json:"workspace_id"`
	Title       string       `gorm:"type:text;not null" json:"title"`
	CreatedBy   snowflake.ID `gorm:"not null" json:"created_by"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Document) TableName() string { return "documents" }

// Counter reports how many documents a workspace holds.
type Counter interface {
	CountByWorkspace(ctx context.Context, workspaceID snowflake.ID) (int64, error)
}
