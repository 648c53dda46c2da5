// Package access computes the effective capability set of a principal on a
// workspace. It is the only place that knows about the owner bypass; every
// gated operation routes through Require instead of re-implementing the
// owner-or-member lookup.
package access

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/identity"
	"github.com/docuspace/docuspace/internal/permission"
	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
)

// ErrDenied is returned when the principal lacks the required capability or
// has no membership at all.
var ErrDenied = errors.New("access_denied")

type Evaluator interface {
	// EffectivePermissions returns the principal's capability set on the
	// workspace: the owner preset for the owner, the stored set for a
	// member, nil for everyone else.
	EffectivePermissions(ctx context.Context, principal identity.Principal, workspaceID snowflake.ID) (*permission.Set, error)
	// Require fails with ErrDenied unless the principal holds the capability.
	Require(ctx context.Context, principal identity.Principal, workspaceID snowflake.ID, capability permission.Capability) error
	// RequireAdmin fails with ErrDenied unless the principal is the owner or
	// an admin-role member.
	RequireAdmin(ctx context.Context, principal identity.Principal, workspaceID snowflake.ID) error
}

type evaluator struct {
	workspaces workspacedomain.Repository
}

func NewEvaluator(workspaces workspacedomain.Repository) Evaluator {
	return &evaluator{workspaces: workspaces}
}

func (e *evaluator) EffectivePermissions(ctx context.Context, principal identity.Principal, workspaceID snowflake.ID) (*permission.Set, error) {
	ws, err := e.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if ws.OwnerID == principal.ID {
		set := permission.OwnerSet()
		return &set, nil
	}

	member, err := e.workspaces.GetMember(ctx, workspaceID, principal.ID)
	if err != nil {
		if errors.Is(err, workspacedomain.ErrMemberNotFound) {
			return nil, nil
		}
		return nil, err
	}

	set := member.Permissions()
	return &set, nil
}

func (e *evaluator) Require(ctx context.Context, principal identity.Principal, workspaceID snowflake.ID, capability permission.Capability) error {
	set, err := e.EffectivePermissions(ctx, principal, workspaceID)
	if err != nil {
		return err
	}
	if set == nil || !set.Has(capability) {
		return ErrDenied
	}
	return nil
}

func (e *evaluator) RequireAdmin(ctx context.Context, principal identity.Principal, workspaceID snowflake.ID) error {
	ws, err := e.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return err
	}
	if ws.OwnerID == principal.ID {
		return nil
	}

	member, err := e.workspaces.GetMember(ctx, workspaceID, principal.ID)
	if err != nil {
		if errors.Is(err, workspacedomain.ErrMemberNotFound) {
			return ErrDenied
		}
		return err
	}
	if member.Role != permission.RoleAdmin {
		return ErrDenied
	}
	return nil
}
