package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/permission"
	"gorm.io/gorm"
)

// WorkspaceListItem is a row of the per-user workspace listing.
type WorkspaceListItem struct {
	ID       snowflake.ID
	Name     string
	Role     permission.Role
	JoinedAt time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, ws Workspace) error
	GetByID(ctx context.Context, id snowflake.ID) (*Workspace, error)
	Update(ctx context.Context, ws Workspace) error
	Delete(ctx context.Context, id snowflake.ID) error

	// NameTaken reports whether another workspace with the same name exists
	// in the user's visibility scope (owned or joined workspaces).
	NameTaken(ctx context.Context, userID snowflake.ID, name string, excludeID snowflake.ID) (bool, error)

	GetMember(ctx context.Context, workspaceID, userID snowflake.ID) (*Member, error)
	ListMembers(ctx context.Context, workspaceID snowflake.ID) ([]Member, error)
	// UpdateMember rewrites an existing member's role and capability set as a
	// single conditional UPDATE keyed on (workspace_id, user_id).
	UpdateMember(ctx context.Context, workspaceID, userID snowflake.ID, role permission.Role, set permission.Set) (bool, error)
	// RemoveMember deletes the membership row and its user index mirror.
	RemoveMember(ctx context.Context, workspaceID, userID snowflake.ID) (bool, error)

	ListByUser(ctx context.Context, userID snowflake.ID) ([]WorkspaceListItem, error)
}
