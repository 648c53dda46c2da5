package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/clock"
	"github.com/docuspace/docuspace/internal/config"
	"github.com/docuspace/docuspace/internal/identity"
	"github.com/docuspace/docuspace/internal/invitation/domain"
	"github.com/docuspace/docuspace/internal/membership"
	"github.com/docuspace/docuspace/internal/observability/logger"
	"github.com/docuspace/docuspace/internal/observability/metrics"
	"github.com/docuspace/docuspace/internal/permission"
	"github.com/docuspace/docuspace/internal/providers/email"
	userdomain "github.com/docuspace/docuspace/internal/user/domain"
	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db         *gorm.DB
	repo       domain.Repository
	workspaces workspacedomain.Repository
	users      userdomain.Repository
	members    *membership.Synchronizer
	mailer     email.Provider
	metrics    *metrics.Metrics
	genID      *snowflake.Node
	clock      clock.Clock

	inviteTTL      time.Duration
	sweepRetention time.Duration
	notifyTimeout  time.Duration
}

func NewService(
	db *gorm.DB,
	repo domain.Repository,
	workspaces workspacedomain.Repository,
	users userdomain.Repository,
	members *membership.Synchronizer,
	mailer email.Provider,
	m *metrics.Metrics,
	genID *snowflake.Node,
	clk clock.Clock,
	cfg config.Config,
) domain.Service {
	return &service{
		db:             db,
		repo:           repo,
		workspaces:     workspaces,
		users:          users,
		members:        members,
		mailer:         mailer,
		metrics:        m,
		genID:          genID,
		clock:          clk,
		inviteTTL:      cfg.InviteTTL,
		sweepRetention: cfg.SweepRetention,
		notifyTimeout:  cfg.NotifyTimeout,
	}
}

func (s *service) Send(ctx context.Context, principal identity.Principal, workspaceID string, req domain.SendRequest) (*domain.InvitationResponse, error) {
	wsID, err := snowflake.ParseString(strings.TrimSpace(workspaceID))
	if err != nil {
		return nil, workspacedomain.ErrInvalidWorkspace
	}

	address := strings.ToLower(strings.TrimSpace(req.Email))
	if !validEmail(address) {
		return nil, domain.ErrInvalidEmail
	}

	ws, err := s.workspaces.GetByID(ctx, wsID)
	if err != nil {
		return nil, err
	}
	if err := s.requireInviter(ctx, principal, ws); err != nil {
		return nil, err
	}

	role := permission.RoleEditor
	if req.Role != "" {
		role, err = permission.ParseRole(req.Role)
		if err != nil {
			return nil, workspacedomain.ErrInvalidRole
		}
	}

	set, err := permission.DefaultsForRole(role)
	if err != nil {
		return nil, workspacedomain.ErrInvalidRole
	}
	if len(req.Permissions) > 0 {
		set, err = permission.ParseAny(req.Permissions)
		if err != nil {
			return nil, workspacedomain.ErrInvalidPermissions
		}
		if errs := permission.Validate(set); len(errs) > 0 {
			return nil, workspacedomain.ErrInvalidPermissions
		}
	}

	// An invitee who already has an account and a membership row cannot be
	// invited again.
	if invitee, err := s.users.FindByEmail(ctx, address); err == nil {
		if _, err := s.workspaces.GetMember(ctx, wsID, invitee.ID); err == nil {
			return nil, domain.ErrAlreadyMember
		} else if err != workspacedomain.ErrMemberNotFound {
			return nil, err
		}
	} else if err != userdomain.ErrNotFound {
		return nil, err
	}

	// An elapsed invitation keeps status=pending until a sweep runs; retire
	// it here so the replacement does not create a second pending row.
	now := s.clock.Now()
	if _, err := s.repo.ExpireElapsedFor(ctx, wsID, address, now); err != nil {
		return nil, err
	}

	pending, err := s.repo.HasPending(ctx, wsID, address)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, domain.ErrDuplicate
	}

	token, err := newToken()
	if err != nil {
		return nil, err
	}

	inv := domain.Invitation{
		ID:          s.genID.Generate(),
		WorkspaceID: wsID,
		Email:       address,
		InvitedBy:   principal.ID,
		Role:        role,
		Token:       token,
		Status:      domain.StatusPending,
		Message:     strings.TrimSpace(req.Message),
		ExpiresAt:   now.Add(s.inviteTTL),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	inv.ApplyPermissions(set)

	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}

	s.metrics.RecordInvitationSent(ctx, string(role))
	s.notify(ctx, ws.Name, inv)

	resp := toResponse(inv)
	return &resp, nil
}

func (s *service) Accept(ctx context.Context, principal identity.Principal, token string) (*domain.AcceptResponse, error) {
	inv, err := s.repo.GetByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	// The token alone authorizes acceptance. A present principal must still
	// match the invited address; an anonymous caller is resolved by it.
	if principal.Email != "" && !strings.EqualFold(inv.Email, principal.Email) {
		return nil, domain.ErrEmailMismatch
	}

	switch inv.Status {
	case domain.StatusAccepted:
		// Replay of a completed acceptance. The membership row already
		// exists, so the second accept is a read, not a write.
		return &domain.AcceptResponse{
			WorkspaceID:   inv.WorkspaceID.String(),
			Role:          inv.Role,
			Permissions:   inv.Permissions(),
			AlreadyMember: true,
		}, nil
	case domain.StatusRejected:
		return nil, domain.ErrNotPending
	case domain.StatusExpired:
		return nil, domain.ErrExpired
	}

	now := s.clock.Now()
	if inv.ExpiredAsOf(now) {
		// Lazily record the expiry so the stored status matches the answer.
		if _, err := s.repo.TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusExpired, now); err != nil {
			return nil, err
		}
		return nil, domain.ErrExpired
	}

	invitee, err := s.users.FindByEmail(ctx, inv.Email)
	if err != nil {
		if err == userdomain.ErrNotFound {
			return nil, domain.ErrRegistrationRequired
		}
		return nil, err
	}

	set := inv.Permissions()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusAccepted, now)
		if err != nil {
			return err
		}
		if !moved {
			return domain.ErrNotPending
		}

		result, err := s.members.WithTx(tx).AddMember(ctx, inv.WorkspaceID, invitee.ID, inv.Role, set, now)
		if err != nil {
			return err
		}
		s.metrics.RecordMembershipWrite(ctx, string(result))
		return nil
	})
	if err != nil {
		if err == domain.ErrNotPending {
			// Lost the race: re-read to report the winning outcome.
			return s.resolveConcurrentAccept(ctx, inv.ID)
		}
		return nil, err
	}

	s.metrics.RecordInvitationAccepted(ctx)
	logger.FromContext(ctx).Info("invitation accepted",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("workspace_id", inv.WorkspaceID.String()),
		zap.String("user_id", invitee.ID.String()),
	)

	return &domain.AcceptResponse{
		WorkspaceID: inv.WorkspaceID.String(),
		Role:        inv.Role,
		Permissions: set,
	}, nil
}

// resolveConcurrentAccept maps the status written by a competing transition
// into the response the loser should see.
func (s *service) resolveConcurrentAccept(ctx context.Context, id snowflake.ID) (*domain.AcceptResponse, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch current.Status {
	case domain.StatusAccepted:
		return &domain.AcceptResponse{
			WorkspaceID:   current.WorkspaceID.String(),
			Role:          current.Role,
			Permissions:   current.Permissions(),
			AlreadyMember: true,
		}, nil
	case domain.StatusExpired:
		return nil, domain.ErrExpired
	default:
		return nil, domain.ErrNotPending
	}
}

func (s *service) Reject(ctx context.Context, principal identity.Principal, token string) error {
	inv, err := s.repo.GetByToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return err
	}
	if principal.Email != "" && !strings.EqualFold(inv.Email, principal.Email) {
		return domain.ErrEmailMismatch
	}

	now := s.clock.Now()
	switch {
	case inv.Status == domain.StatusExpired:
		return domain.ErrExpired
	case inv.Status.Terminal():
		return domain.ErrNotPending
	case inv.ExpiredAsOf(now):
		// Lazily record the expiry, same as an accept past the window.
		if _, err := s.repo.TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusExpired, now); err != nil {
			return err
		}
		return domain.ErrExpired
	}

	moved, err := s.repo.TransitionStatus(ctx, inv.ID, domain.StatusPending, domain.StatusRejected, now)
	if err != nil {
		return err
	}
	if !moved {
		return domain.ErrNotPending
	}

	s.metrics.RecordInvitationRejected(ctx)
	return nil
}

func (s *service) Cancel(ctx context.Context, principal identity.Principal, workspaceID, invitationID string) error {
	inv, _, err := s.loadForManage(ctx, principal, workspaceID, invitationID)
	if err != nil {
		return err
	}

	if inv.Status != domain.StatusPending {
		return domain.ErrNotPending
	}

	deleted, err := s.repo.Delete(ctx, inv.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}

	logger.FromContext(ctx).Info("invitation cancelled",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("workspace_id", inv.WorkspaceID.String()),
	)
	return nil
}

func (s *service) Resend(ctx context.Context, principal identity.Principal, workspaceID, invitationID string) (*domain.InvitationResponse, error) {
	inv, ws, err := s.loadForManage(ctx, principal, workspaceID, invitationID)
	if err != nil {
		return nil, err
	}

	if inv.Status != domain.StatusPending {
		return nil, domain.ErrNotPending
	}

	// A resend grants a fresh window but keeps the token, so the link in
	// the invitee's inbox stays valid.
	now := s.clock.Now()
	expiresAt := now.Add(s.inviteTTL)
	extended, err := s.repo.ExtendExpiry(ctx, inv.ID, expiresAt, now)
	if err != nil {
		return nil, err
	}
	if !extended {
		return nil, domain.ErrNotPending
	}

	inv.ExpiresAt = expiresAt
	inv.UpdatedAt = now

	s.metrics.RecordInvitationSent(ctx, string(inv.Role))
	s.notify(ctx, ws.Name, *inv)

	resp := toResponse(*inv)
	return &resp, nil
}

func (s *service) ListByWorkspace(ctx context.Context, principal identity.Principal, workspaceID string, status string) ([]domain.InvitationResponse, error) {
	wsID, err := snowflake.ParseString(strings.TrimSpace(workspaceID))
	if err != nil {
		return nil, workspacedomain.ErrInvalidWorkspace
	}

	ws, err := s.workspaces.GetByID(ctx, wsID)
	if err != nil {
		return nil, err
	}
	if err := s.requireInviter(ctx, principal, ws); err != nil {
		return nil, err
	}

	var filter domain.Status
	if trimmed := strings.ToLower(strings.TrimSpace(status)); trimmed != "" {
		filter = domain.Status(trimmed)
		switch filter {
		case domain.StatusPending, domain.StatusAccepted, domain.StatusRejected, domain.StatusExpired:
		default:
			return nil, domain.ErrInvalidInvitation
		}
	}

	invitations, err := s.repo.ListByWorkspace(ctx, wsID, filter)
	if err != nil {
		return nil, err
	}

	out := make([]domain.InvitationResponse, 0, len(invitations))
	for _, inv := range invitations {
		out = append(out, toResponse(inv))
	}
	return out, nil
}

func (s *service) Sweep(ctx context.Context) (domain.SweepResult, error) {
	now := s.clock.Now()

	expired, err := s.repo.ExpireElapsed(ctx, now)
	if err != nil {
		return domain.SweepResult{}, err
	}

	purged, err := s.repo.PurgeTerminal(ctx, now.Add(-s.sweepRetention))
	if err != nil {
		return domain.SweepResult{Expired: expired}, err
	}

	s.metrics.RecordInvitationsSwept(ctx, "expired", expired)
	s.metrics.RecordInvitationsSwept(ctx, "purged", purged)

	if expired > 0 || purged > 0 {
		logger.FromContext(ctx).Info("invitation sweep",
			zap.Int64("expired", expired),
			zap.Int64("purged", purged),
		)
	}
	return domain.SweepResult{Expired: expired, Purged: purged}, nil
}

// loadForManage fetches an invitation by id, checks it belongs to the given
// workspace and that the principal may manage invitations there.
func (s *service) loadForManage(ctx context.Context, principal identity.Principal, workspaceID, invitationID string) (*domain.Invitation, *workspacedomain.Workspace, error) {
	wsID, err := snowflake.ParseString(strings.TrimSpace(workspaceID))
	if err != nil {
		return nil, nil, workspacedomain.ErrInvalidWorkspace
	}
	invID, err := snowflake.ParseString(strings.TrimSpace(invitationID))
	if err != nil {
		return nil, nil, domain.ErrInvalidInvitation
	}

	ws, err := s.workspaces.GetByID(ctx, wsID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.requireInviter(ctx, principal, ws); err != nil {
		return nil, nil, err
	}

	inv, err := s.repo.GetByID(ctx, invID)
	if err != nil {
		return nil, nil, err
	}
	if inv.WorkspaceID != wsID {
		return nil, nil, domain.ErrNotFound
	}
	return inv, ws, nil
}

// requireInviter gates invitation management. The owner always passes. When
// the workspace disables member invitations only admin-role members pass;
// otherwise the canInvite capability governs.
func (s *service) requireInviter(ctx context.Context, principal identity.Principal, ws *workspacedomain.Workspace) error {
	if ws.OwnerID == principal.ID {
		return nil
	}

	member, err := s.workspaces.GetMember(ctx, ws.ID, principal.ID)
	if err != nil {
		if err == workspacedomain.ErrMemberNotFound {
			return domain.ErrForbidden
		}
		return err
	}

	if !ws.AllowMemberInvites {
		if member.Role != permission.RoleAdmin {
			return domain.ErrForbidden
		}
		return nil
	}
	if !member.Permissions().Has(permission.CapInvite) {
		return domain.ErrForbidden
	}
	return nil
}

// notify dispatches the invitation email with a hard timeout so a slow
// transport cannot stall the response. Failure is logged, never returned.
func (s *service) notify(ctx context.Context, workspaceName string, inv domain.Invitation) {
	sendCtx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	msg := email.Message{
		To:      inv.Email,
		Subject: fmt.Sprintf("You have been invited to %s", workspaceName),
		Body: fmt.Sprintf(
			"You have been invited to join the workspace %q as %s.\n\n"+
				"Use this token to accept: %s\n\n"+
				"The invitation expires at %s.",
			workspaceName, inv.Role, inv.Token, inv.ExpiresAt.Format(time.RFC3339),
		),
	}
	if inv.Message != "" {
		msg.Body += "\n\n" + inv.Message
	}

	if err := s.mailer.Send(sendCtx, msg); err != nil {
		logger.FromContext(ctx).Warn("invitation email failed",
			zap.String("invitation_id", inv.ID.String()),
			zap.Error(err),
		)
	}
}

func toResponse(inv domain.Invitation) domain.InvitationResponse {
	return domain.InvitationResponse{
		ID:          inv.ID.String(),
		WorkspaceID: inv.WorkspaceID.String(),
		Email:       inv.Email,
		InvitedBy:   inv.InvitedBy.String(),
		Role:        inv.Role,
		Permissions: inv.Permissions(),
		Status:      inv.Status,
		Message:     inv.Message,
		ExpiresAt:   inv.ExpiresAt,
		CreatedAt:   inv.CreatedAt,
	}
}

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func validEmail(address string) bool {
	if address == "" {
		return false
	}
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}
