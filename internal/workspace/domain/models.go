// Package domain contains persistence models for the workspace service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/permission"
	"gorm.io/datatypes"
)

// Workspace is a shared collaboration scope containing members and documents.
type Workspace struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name               string            `gorm:"type:text;not null" json:"name"`
	Slug               string            `gorm:"type:text;not null;index" json:"slug"`
	Description        string            `gorm:"type:text" json:"description"`
	OwnerID            snowflake.ID      `gorm:"not null;index" json:"owner_id"`
	IsPublic           bool              `gorm:"not null;default:false" json:"is_public"`
	AllowMemberInvites bool              `gorm:"not null;default:true" json:"allow_member_invites"`
	Metadata           datatypes.JSONMap `gorm:"type:jsonb" json:"metadata"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Workspace) TableName() string { return "workspaces" }

// Member is a (user, role, capability set) association to a workspace.
// The unique index on (workspace_id, user_id) is the authoritative guard
// against duplicate membership rows.
type Member struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	WorkspaceID snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_workspace_user,priority:1" json:"workspace_id"`
	UserID      snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_workspace_user,priority:2" json:"user_id"`
	Role        permission.Role `gorm:"type:text;not null" json:"role"`
	CanView     bool            `gorm:"not null;default:false" json:"can_view"`
	CanEdit     bool            `gorm:"not null;default:false" json:"can_edit"`
	CanAdd      bool            `gorm:"not null;default:false" json:"can_add"`
	CanDelete   bool            `gorm:"not null;default:false" json:"can_delete"`
	CanInvite   bool            `gorm:"not null;default:false" json:"can_invite"`
	JoinedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`
}

// TableName sets the database table name.
func (Member) TableName() string { return "workspace_members" }

// Permissions returns the member's stored capability set.
func (m Member) Permissions() permission.Set {
	return permission.Set{
		CanView:   m.CanView,
		CanEdit:   m.CanEdit,
		CanAdd:    m.CanAdd,
		CanDelete: m.CanDelete,
		CanInvite: m.CanInvite,
	}
}

// ApplyPermissions overwrites the member's stored capability set.
func (m *Member) ApplyPermissions(set permission.Set) {
	m.CanView = set.CanView
	m.CanEdit = set.CanEdit
	m.CanAdd = set.CanAdd
	m.CanDelete = set.CanDelete
	m.CanInvite = set.CanInvite
}

// UserWorkspace is the denormalized per-user membership index used for
// "my workspaces" queries. It mirrors workspace_members.
type UserWorkspace struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID      snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_user_workspace,priority:1" json:"user_id"`
	WorkspaceID snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_user_workspace,priority:2" json:"workspace_id"`
	Role        permission.Role `gorm:"type:text;not null" json:"role"`
	JoinedAt    time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"joined_at"`
}

// TableName sets the database table name.
func (UserWorkspace) TableName() string { return "user_workspaces" }
