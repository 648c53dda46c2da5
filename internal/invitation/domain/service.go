package domain

import (
	"context"
	"errors"
	"time"

	"github.com/docuspace/docuspace/internal/identity"
	"github.com/docuspace/docuspace/internal/permission"
)

type Service interface {
	// Send creates a pending invitation and dispatches the notification.
	Send(ctx context.Context, principal identity.Principal, workspaceID string, req SendRequest) (*InvitationResponse, error)
	// Accept redeems the token for the authenticated principal. Accepting an
	// already accepted invitation for the same user succeeds without a second
	// membership write.
	Accept(ctx context.Context, principal identity.Principal, token string) (*AcceptResponse, error)
	Reject(ctx context.Context, principal identity.Principal, token string) error
	// Cancel deletes a pending invitation before it is redeemed.
	Cancel(ctx context.Context, principal identity.Principal, workspaceID, invitationID string) error
	// Resend rotates the token, restarts the expiry window and dispatches a
	// fresh notification.
	Resend(ctx context.Context, principal identity.Principal, workspaceID, invitationID string) (*InvitationResponse, error)
	ListByWorkspace(ctx context.Context, principal identity.Principal, workspaceID string, status string) ([]InvitationResponse, error)

	// Sweep expires elapsed pending invitations and purges terminal ones past
	// the retention window. It is safe to run concurrently.
	Sweep(ctx context.Context) (SweepResult, error)
}

type SendRequest struct {
	Email       string
	Role        string
	Permissions map[string]bool
	Message     string
}

type InvitationResponse struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	Email       string          `json:"email"`
	InvitedBy   string          `json:"invited_by"`
	Role        permission.Role `json:"role"`
	Permissions permission.Set  `json:"permissions"`
	Status      Status          `json:"status"`
	Message     string          `json:"message,omitempty"`
	ExpiresAt   time.Time       `json:"expires_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type AcceptResponse struct {
	WorkspaceID string          `json:"workspace_id"`
	Role        permission.Role `json:"role"`
	Permissions permission.Set  `json:"permissions"`
	// AlreadyMember is true when the acceptance was an idempotent replay.
	AlreadyMember bool `json:"already_member"`
}

type SweepResult struct {
	Expired int64 `json:"expired"`
	Purged  int64 `json:"purged"`
}

var (
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidInvitation = errors.New("invalid_invitation")

	ErrForbidden     = errors.New("forbidden")
	ErrNotFound      = errors.New("invitation_not_found")
	ErrAlreadyMember = errors.New("already_member")
	ErrDuplicate     = errors.New("invitation_pending")

	// ErrExpired covers both an elapsed window and the stored expired status.
	ErrExpired = errors.New("invitation_expired")
	// ErrNotPending rejects transitions out of a terminal status.
	ErrNotPending = errors.New("invitation_not_pending")
	// ErrEmailMismatch means the authenticated principal is not the invitee.
	ErrEmailMismatch = errors.New("invitation_email_mismatch")
	// ErrRegistrationRequired means the invitee has no account yet.
	ErrRegistrationRequired = errors.New("registration_required")
)
