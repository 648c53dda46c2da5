package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, inv Invitation) error
	GetByID(ctx context.Context, id snowflake.ID) (*Invitation, error)
	GetByToken(ctx context.Context, token string) (*Invitation, error)
	ListByWorkspace(ctx context.Context, workspaceID snowflake.ID, status Status) ([]Invitation, error)
	// HasPending reports whether a pending invitation already exists for the
	// (workspace, email) pair. Email is matched case-insensitively.
	HasPending(ctx context.Context, workspaceID snowflake.ID, email string) (bool, error)

	// TransitionStatus conditionally moves an invitation from one status to
	// another. It returns false when the row was not in the expected status,
	// which is how concurrent transitions lose.
	TransitionStatus(ctx context.Context, id snowflake.ID, from, to Status, at time.Time) (bool, error)
	// ExtendExpiry refreshes a pending invitation's window. The token is
	// immutable once assigned.
	ExtendExpiry(ctx context.Context, id snowflake.ID, expiresAt, at time.Time) (bool, error)
	Delete(ctx context.Context, id snowflake.ID) (bool, error)

	// ExpireElapsed flips every pending invitation whose window has elapsed.
	ExpireElapsed(ctx context.Context, now time.Time) (int64, error)
	// ExpireElapsedFor does the same for a single (workspace, email) pair so
	// a replacement invitation can be issued without waiting for the sweep.
	ExpireElapsedFor(ctx context.Context, workspaceID snowflake.ID, email string, now time.Time) (int64, error)
	// PurgeTerminal deletes rejected and expired invitations older than the
	// cutoff, measured from their last status change. Accepted invitations
	// are kept so a replayed accept still answers "already a member".
	PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error)
}
