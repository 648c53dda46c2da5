package domain

import (
	"context"
	"errors"
	"time"

	"github.com/docuspace/docuspace/internal/identity"
	"github.com/docuspace/docuspace/internal/permission"
)

type Service interface {
	Create(ctx context.Context, principal identity.Principal, req CreateRequest) (*WorkspaceResponse, error)
	GetByID(ctx context.Context, principal identity.Principal, id string) (*WorkspaceResponse, error)
	ListByUser(ctx context.Context, principal identity.Principal) ([]WorkspaceListResponseItem, error)
	Update(ctx context.Context, principal identity.Principal, id string, req UpdateRequest) (*WorkspaceResponse, error)
	Delete(ctx context.Context, principal identity.Principal, id string) error

	ListMembers(ctx context.Context, principal identity.Principal, workspaceID string) ([]MemberResponse, error)
	// UpdateMemberRole changes a member's role and/or explicit permissions.
	// A role without permissions resets the capability set to the role
	// defaults; explicit permissions are validated before storage.
	UpdateMemberRole(ctx context.Context, principal identity.Principal, workspaceID, memberUserID string, req UpdateMemberRequest) (*MemberResponse, error)
	RemoveMember(ctx context.Context, principal identity.Principal, workspaceID, memberUserID string) error
	Leave(ctx context.Context, principal identity.Principal, workspaceID string) error
}

type CreateRequest struct {
	Name               string
	Description        string
	IsPublic           bool
	AllowMemberInvites bool
}

// UpdateRequest is a partial update; nil fields are left unchanged.
type UpdateRequest struct {
	Name               *string
	Description        *string
	IsPublic           *bool
	AllowMemberInvites *bool
}

// UpdateMemberRequest carries a new role, explicit permissions, or both.
// Permissions may use either the canonical or the alias vocabulary.
type UpdateMemberRequest struct {
	Role        string
	Permissions map[string]bool
}

type WorkspaceResponse struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Slug               string          `json:"slug"`
	Description        string          `json:"description"`
	OwnerID            string          `json:"owner_id"`
	IsPublic           bool            `json:"is_public"`
	AllowMemberInvites bool            `json:"allow_member_invites"`
	CreatedAt          time.Time       `json:"created_at"`
	Members            []MemberResponse `json:"members,omitempty"`
}

type WorkspaceListResponseItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Role     permission.Role `json:"role"`
	JoinedAt time.Time       `json:"joined_at"`
}

type MemberResponse struct {
	UserID      string          `json:"user_id"`
	Role        permission.Role `json:"role"`
	Permissions permission.Set  `json:"permissions"`
	JoinedAt    time.Time       `json:"joined_at"`
}

var (
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidWorkspace   = errors.New("invalid_workspace")
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidRole        = errors.New("invalid_role")
	ErrInvalidPermissions = errors.New("invalid_permissions")

	ErrNotFound       = errors.New("workspace_not_found")
	ErrMemberNotFound = errors.New("member_not_found")
	ErrNameTaken      = errors.New("workspace_name_taken")
	ErrForbidden      = errors.New("forbidden")

	// ErrOwnerImmutable guards the owner membership: the owner cannot be
	// retargeted, removed, or leave their own workspace.
	ErrOwnerImmutable = errors.New("owner_immutable")
	// ErrNotEmpty blocks deletion while the workspace still holds documents.
	ErrNotEmpty = errors.New("workspace_not_empty")
)
