// Package domain contains the invitation lifecycle models. An invitation is
// addressed to an email, carries the role and capability set the member will
// receive, and moves through pending, accepted, rejected and expired states.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/permission"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusExpired
}

type Invitation struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	WorkspaceID snowflake.ID    `gorm:"not null;index:ix_invite_workspace_email,priority:1" json:"workspace_id"`
	Email       string          `gorm:"type:text;not null;index:ix_invite_workspace_email,priority:2" json:"email"`
	InvitedBy   snowflake.ID    `gorm:"not null" json:"invited_by"`
	Role        permission.Role `gorm:"type:text;not null" json:"role"`
	CanView     bool            `gorm:"not null;default:false" json:"can_view"`
	CanEdit     bool            `gorm:"not null;default:false" json:"can_edit"`
	CanAdd      bool            `gorm:"not null;default:false" json:"can_add"`
	CanDelete   bool            `gorm:"not null;default:false" json:"can_delete"`
	CanInvite   bool            `gorm:"not null;default:false" json:"can_invite"`
	Token       string          `gorm:"type:text;not null;uniqueIndex:ux_invite_token" json:"-"`
	Status      Status          `gorm:"type:text;not null;index" json:"status"`
	Message     string          `gorm:"type:text" json:"message"`
	ExpiresAt   time.Time       `gorm:"not null;index" json:"expires_at"`
	AcceptedAt  *time.Time      `json:"accepted_at,omitempty"`
	RejectedAt  *time.Time      `json:"rejected_at,omitempty"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "workspace_invitations" }

// Permissions returns the capability set the invitation will grant.
func (i Invitation) Permissions() permission.Set {
	return permission.Set{
		CanView:   i.CanView,
		CanEdit:   i.CanEdit,
		CanAdd:    i.CanAdd,
		CanDelete: i.CanDelete,
		CanInvite: i.CanInvite,
	}
}

// ApplyPermissions overwrites the capability set the invitation will grant.
func (i *Invitation) ApplyPermissions(set permission.Set) {
	i.CanView = set.CanView
	i.CanEdit = set.CanEdit
	i.CanAdd = set.CanAdd
	i.CanDelete = set.CanDelete
	i.CanInvite = set.CanInvite
}

// ExpiredAsOf reports whether a pending invitation's window has elapsed.
func (i Invitation) ExpiredAsOf(now time.Time) bool {
	return i.Status == StatusPending && !now.Before(i.ExpiresAt)
}
