package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/clock"
	"github.com/docuspace/docuspace/internal/config"
	"github.com/docuspace/docuspace/internal/documents"
	"github.com/docuspace/docuspace/internal/identity"
	"github.com/docuspace/docuspace/internal/invitation/domain"
	invitationrepo "github.com/docuspace/docuspace/internal/invitation/repository"
	"github.com/docuspace/docuspace/internal/membership"
	"github.com/docuspace/docuspace/internal/permission"
	"github.com/docuspace/docuspace/internal/providers/email"
	userdomain "github.com/docuspace/docuspace/internal/user/domain"
	userrepo "github.com/docuspace/docuspace/internal/user/repository"
	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	workspacerepo "github.com/docuspace/docuspace/internal/workspace/repository"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type mailerStub struct {
	mu   sync.Mutex
	sent []email.Message
	err  error
}

func (m *mailerStub) Send(_ context.Context, msg email.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mailerStub) Sent() []email.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]email.Message(nil), m.sent...)
}

type fixture struct {
	db      *gorm.DB
	node    *snowflake.Node
	clock   *clock.FakeClock
	mailer  *mailerStub
	cfg     config.Config
	service domain.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	err = db.AutoMigrate(
		&userdomain.User{},
		&workspacedomain.Workspace{},
		&workspacedomain.Member{},
		&workspacedomain.UserWorkspace{},
		&domain.Invitation{},
		&documents.Document{},
	)
	if err != nil {
		t.Fatal(err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	fake := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	mailer := &mailerStub{}

	cfg := config.Config{
		InviteTTL:      168 * time.Hour,
		SweepInterval:  15 * time.Minute,
		SweepRetention: 30 * 24 * time.Hour,
		NotifyTimeout:  time.Second,
	}

	return &fixture{
		db:     db,
		node:   node,
		clock:  fake,
		mailer: mailer,
		cfg:    cfg,
		service: NewService(
			db,
			invitationrepo.NewRepository(db),
			workspacerepo.NewRepository(db),
			userrepo.NewRepository(db),
			membership.New(db, node),
			mailer,
			nil,
			node,
			fake,
			cfg,
		),
	}
}

func (f *fixture) principal(email string) identity.Principal {
	return identity.Principal{ID: f.node.Generate(), Email: email}
}

func (f *fixture) registerUser(t *testing.T, principal identity.Principal) {
	t.Helper()
	user := userdomain.User{ID: principal.ID, Email: principal.Email, CreatedAt: f.clock.Now()}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) createWorkspace(t *testing.T, owner identity.Principal, allowMemberInvites bool) snowflake.ID {
	t.Helper()
	ws := workspacedomain.Workspace{
		ID:                 f.node.Generate(),
		Name:               "Shared",
		Slug:               "shared",
		OwnerID:            owner.ID,
		AllowMemberInvites: allowMemberInvites,
		CreatedAt:          f.clock.Now(),
		UpdatedAt:          f.clock.Now(),
	}
	if err := f.db.Create(&ws).Error; err != nil {
		t.Fatal(err)
	}
	set := permission.OwnerSet()
	if _, err := membership.New(f.db, f.node).AddMember(context.Background(), ws.ID, owner.ID, permission.RoleAdmin, set, f.clock.Now()); err != nil {
		t.Fatal(err)
	}
	return ws.ID
}

func (f *fixture) addMember(t *testing.T, workspaceID, userID snowflake.ID, role permission.Role) {
	t.Helper()
	set, err := permission.DefaultsForRole(role)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := membership.New(f.db, f.node).AddMember(context.Background(), workspaceID, userID, role, set, f.clock.Now()); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) token(t *testing.T, invitationID string) string {
	t.Helper()
	var inv domain.Invitation
	if err := f.db.First(&inv, "id = ?", invitationID).Error; err != nil {
		t.Fatal(err)
	}
	return inv.Token
}

func TestSendInvitation(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	wsID := f.createWorkspace(t, owner, true)

	resp, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{
		Email: "Invitee@Example.com",
		Role:  "editor",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if resp.Status != domain.StatusPending {
		t.Fatalf("status = %q", resp.Status)
	}
	if resp.Email != "invitee@example.com" {
		t.Fatalf("email not normalized: %q", resp.Email)
	}
	want, _ := permission.DefaultsForRole(permission.RoleEditor)
	if resp.Permissions != want {
		t.Fatalf("permissions = %+v", resp.Permissions)
	}
	if got := resp.ExpiresAt.Sub(resp.CreatedAt); got != 168*time.Hour {
		t.Fatalf("expiry window = %v", got)
	}

	sent := f.mailer.Sent()
	if len(sent) != 1 || sent[0].To != "invitee@example.com" {
		t.Fatalf("mailer calls = %+v", sent)
	}

	// A live pending invitation blocks a second one to the same address.
	_, err = f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: "invitee@example.com"})
	if err != domain.ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestSendValidation(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	wsID := f.createWorkspace(t, owner, true)

	if _, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: "not-an-email"}); err != domain.ErrInvalidEmail {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: "a@b.co", Role: "owner"}); err != workspacedomain.ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	_, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{
		Email:       "a@b.co",
		Permissions: map[string]bool{"canDelete": true},
	})
	if err != workspacedomain.ErrInvalidPermissions {
		t.Fatalf("expected ErrInvalidPermissions, got %v", err)
	}
}

func TestSendRejectsExistingMember(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	member := f.principal("member@example.com")
	f.registerUser(t, member)
	wsID := f.createWorkspace(t, owner, true)
	f.addMember(t, wsID, member.ID, permission.RoleViewer)

	_, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: member.Email})
	if err != domain.ErrAlreadyMember {
		t.Fatalf("expected ErrAlreadyMember, got %v", err)
	}
}

func TestInviteGateHonorsWorkspacePolicy(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	editor := f.principal("editor@example.com")
	admin := f.principal("admin@example.com")
	wsID := f.createWorkspace(t, owner, false)
	f.addMember(t, wsID, admin.ID, permission.RoleAdmin)

	// Editor with an explicit canInvite grant still fails while member
	// invitations are disabled.
	set := permission.Set{CanView: true, CanEdit: true, CanAdd: true, CanInvite: true}
	if _, err := membership.New(f.db, f.node).AddMember(context.Background(), wsID, editor.ID, permission.RoleEditor, set, f.clock.Now()); err != nil {
		t.Fatal(err)
	}

	if _, err := f.service.Send(context.Background(), editor, wsID.String(), domain.SendRequest{Email: "x@y.co"}); err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.service.Send(context.Background(), admin, wsID.String(), domain.SendRequest{Email: "x@y.co"}); err != nil {
		t.Fatalf("admin blocked: %v", err)
	}
	if _, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: "z@y.co"}); err != nil {
		t.Fatalf("owner blocked: %v", err)
	}
}

func TestAcceptLifecycle(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	invitee := f.principal("invitee@example.com")
	f.registerUser(t, invitee)
	wsID := f.createWorkspace(t, owner, true)

	sent, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{
		Email: invitee.Email,
		Role:  "editor",
	})
	if err != nil {
		t.Fatal(err)
	}
	token := f.token(t, sent.ID)

	resp, err := f.service.Accept(context.Background(), invitee, token)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resp.AlreadyMember {
		t.Fatal("first accept reported as replay")
	}
	if resp.Role != permission.RoleEditor {
		t.Fatalf("role = %q", resp.Role)
	}

	var member workspacedomain.Member
	if err := f.db.First(&member, "workspace_id = ? AND user_id = ?", wsID, invitee.ID).Error; err != nil {
		t.Fatalf("membership missing: %v", err)
	}

	// Idempotent replay: same answer, no second membership write.
	again, err := f.service.Accept(context.Background(), invitee, token)
	if err != nil {
		t.Fatalf("replay accept: %v", err)
	}
	if !again.AlreadyMember {
		t.Fatal("replay not flagged")
	}

	var count int64
	f.db.Model(&workspacedomain.Member{}).
		Where("workspace_id = ? AND user_id = ?", wsID, invitee.ID).
		Count(&count)
	if count != 1 {
		t.Fatalf("membership rows = %d", count)
	}
}

func TestAcceptGuards(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	invitee := f.principal("invitee@example.com")
	interloper := f.principal("other@example.com")
	wsID := f.createWorkspace(t, owner, true)

	sent, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: invitee.Email})
	if err != nil {
		t.Fatal(err)
	}
	token := f.token(t, sent.ID)

	if _, err := f.service.Accept(context.Background(), interloper, token); err != domain.ErrEmailMismatch {
		t.Fatalf("expected ErrEmailMismatch, got %v", err)
	}

	// The invitee has no account yet.
	if _, err := f.service.Accept(context.Background(), invitee, token); err != domain.ErrRegistrationRequired {
		t.Fatalf("expected ErrRegistrationRequired, got %v", err)
	}

	if _, err := f.service.Accept(context.Background(), invitee, "no-such-token"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAcceptAfterExpiryFlipsStatus(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	invitee := f.principal("invitee@example.com")
	f.registerUser(t, invitee)
	wsID := f.createWorkspace(t, owner, true)

	sent, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: invitee.Email})
	if err != nil {
		t.Fatal(err)
	}
	token := f.token(t, sent.ID)

	f.clock.Advance(168*time.Hour + time.Minute)

	if _, err := f.service.Accept(context.Background(), invitee, token); err != domain.ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	var inv domain.Invitation
	f.db.First(&inv, "id = ?", sent.ID)
	if inv.Status != domain.StatusExpired {
		t.Fatalf("status not recorded: %q", inv.Status)
	}

	// Second attempt hits the stored terminal status.
	if _, err := f.service.Accept(context.Background(), invitee, token); err != domain.ErrExpired {
		t.Fatalf("expected ErrExpired from stored status, got %v", err)
	}
}

func TestRejectLifecycle(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	invitee := f.principal("invitee@example.com")
	f.registerUser(t, invitee)
	wsID := f.createWorkspace(t, owner, true)

	sent, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: invitee.Email})
	if err != nil {
		t.Fatal(err)
	}
	token := f.token(t, sent.ID)

	if err := f.service.Reject(context.Background(), invitee, token); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if err := f.service.Reject(context.Background(), invitee, token); err != domain.ErrNotPending {
		t.Fatalf("expected ErrNotPending on second reject, got %v", err)
	}
	if _, err := f.service.Accept(context.Background(), invitee, token); err != domain.ErrNotPending {
		t.Fatalf("expected ErrNotPending on accept after reject, got %v", err)
	}

	var count int64
	f.db.Model(&workspacedomain.Member{}).
		Where("workspace_id = ? AND user_id = ?", wsID, invitee.ID).
		Count(&count)
	if count != 0 {
		t.Fatalf("rejected invitation created membership: %d", count)
	}
}

func TestCancelAndResend(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	wsID := f.createWorkspace(t, owner, true)

	sent, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: "a@b.co"})
	if err != nil {
		t.Fatal(err)
	}
	firstToken := f.token(t, sent.ID)
	firstExpiry := sent.ExpiresAt

	f.clock.Advance(24 * time.Hour)

	resent, err := f.service.Resend(context.Background(), owner, wsID.String(), sent.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if !resent.ExpiresAt.After(firstExpiry) {
		t.Fatalf("expiry not extended: %v -> %v", firstExpiry, resent.ExpiresAt)
	}
	// The original link must keep working after a resend.
	if f.token(t, sent.ID) != firstToken {
		t.Fatal("token changed on resend")
	}

	if err := f.service.Cancel(context.Background(), owner, wsID.String(), sent.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.service.Cancel(context.Background(), owner, wsID.String(), sent.ID); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListByWorkspaceFilters(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	invitee := f.principal("invitee@example.com")
	f.registerUser(t, invitee)
	wsID := f.createWorkspace(t, owner, true)

	sent, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: invitee.Email})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: "b@c.co"}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.service.Accept(context.Background(), invitee, f.token(t, sent.ID)); err != nil {
		t.Fatal(err)
	}

	all, err := f.service.ListByWorkspace(context.Background(), owner, wsID.String(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("all = %d", len(all))
	}

	pending, err := f.service.ListByWorkspace(context.Background(), owner, wsID.String(), "pending")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].Email != "b@c.co" {
		t.Fatalf("pending = %+v", pending)
	}

	if _, err := f.service.ListByWorkspace(context.Background(), owner, wsID.String(), "bogus"); err != domain.ErrInvalidInvitation {
		t.Fatalf("expected ErrInvalidInvitation, got %v", err)
	}
}

func TestSweep(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	invitee := f.principal("invitee@example.com")
	f.registerUser(t, invitee)
	wsID := f.createWorkspace(t, owner, true)

	elapsed, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: "old@b.co"})
	if err != nil {
		t.Fatal(err)
	}

	rejected, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: invitee.Email})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.service.Reject(context.Background(), invitee, f.token(t, rejected.ID)); err != nil {
		t.Fatal(err)
	}

	// Past the invitation window but within retention: the pending one
	// expires, the rejected one survives.
	f.clock.Advance(169 * time.Hour)
	result, err := f.service.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Expired != 1 || result.Purged != 0 {
		t.Fatalf("sweep = %+v", result)
	}

	var inv domain.Invitation
	f.db.First(&inv, "id = ?", elapsed.ID)
	if inv.Status != domain.StatusExpired {
		t.Fatalf("status = %q", inv.Status)
	}

	// Sweeping again is a no-op.
	result, err = f.service.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Expired != 0 || result.Purged != 0 {
		t.Fatalf("second sweep = %+v", result)
	}

	// Past retention both terminal rows are purged.
	f.clock.Advance(31 * 24 * time.Hour)
	result, err = f.service.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Purged != 2 {
		t.Fatalf("purged = %d", result.Purged)
	}

	var count int64
	f.db.Model(&domain.Invitation{}).Count(&count)
	if count != 0 {
		t.Fatalf("rows after purge = %d", count)
	}
}

func TestAcceptWithTokenOnly(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	invitee := f.principal("invitee@example.com")
	f.registerUser(t, invitee)
	wsID := f.createWorkspace(t, owner, true)

	sent, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: invitee.Email})
	if err != nil {
		t.Fatal(err)
	}

	// No gateway identity: the token is the credential and the invitee is
	// resolved by the invited address.
	resp, err := f.service.Accept(context.Background(), identity.Principal{}, f.token(t, sent.ID))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resp.AlreadyMember {
		t.Fatal("first accept reported as replay")
	}

	var count int64
	f.db.Model(&workspacedomain.Member{}).
		Where("workspace_id = ? AND user_id = ?", wsID, invitee.ID).
		Count(&count)
	if count != 1 {
		t.Fatalf("membership rows = %d", count)
	}
}

func TestReinviteAfterWindowElapses(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	wsID := f.createWorkspace(t, owner, true)

	first, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: "a@b.co"})
	if err != nil {
		t.Fatal(err)
	}

	// The elapsed invitation still has status=pending in storage; a new
	// send retires it instead of stacking a second pending row.
	f.clock.Advance(169 * time.Hour)
	if _, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: "a@b.co"}); err != nil {
		t.Fatalf("reinvite: %v", err)
	}

	var pending int64
	f.db.Model(&domain.Invitation{}).
		Where("workspace_id = ? AND email = ? AND status = ?", wsID, "a@b.co", domain.StatusPending).
		Count(&pending)
	if pending != 1 {
		t.Fatalf("pending rows = %d", pending)
	}

	var old domain.Invitation
	f.db.First(&old, "id = ?", first.ID)
	if old.Status != domain.StatusExpired {
		t.Fatalf("first invitation status = %q", old.Status)
	}
}

func TestRejectAfterExpiryFlipsStatus(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	invitee := f.principal("invitee@example.com")
	f.registerUser(t, invitee)
	wsID := f.createWorkspace(t, owner, true)

	sent, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: invitee.Email})
	if err != nil {
		t.Fatal(err)
	}
	token := f.token(t, sent.ID)

	f.clock.Advance(168*time.Hour + time.Minute)

	if err := f.service.Reject(context.Background(), invitee, token); err != domain.ErrExpired {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	var inv domain.Invitation
	f.db.First(&inv, "id = ?", sent.ID)
	if inv.Status != domain.StatusExpired {
		t.Fatalf("status not recorded: %q", inv.Status)
	}
}

// staleReadRepo serves a pending snapshot for GetByToken even after another
// accept has landed, so the conditional transition inside the transaction
// loses the way it would under two simultaneous requests.
type staleReadRepo struct {
	domain.Repository
}

func (r *staleReadRepo) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	inv, err := r.Repository.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	stale := *inv
	stale.Status = domain.StatusPending
	return &stale, nil
}

func TestAcceptLosingRaceReportsMembership(t *testing.T) {
	f := setup(t)
	owner := f.principal("owner@example.com")
	invitee := f.principal("invitee@example.com")
	f.registerUser(t, invitee)
	wsID := f.createWorkspace(t, owner, true)

	sent, err := f.service.Send(context.Background(), owner, wsID.String(), domain.SendRequest{Email: invitee.Email})
	if err != nil {
		t.Fatal(err)
	}
	token := f.token(t, sent.ID)

	winner, err := f.service.Accept(context.Background(), invitee, token)
	if err != nil {
		t.Fatalf("winning accept: %v", err)
	}
	if winner.AlreadyMember {
		t.Fatal("winner reported as replay")
	}

	racing := NewService(
		f.db,
		&staleReadRepo{invitationrepo.NewRepository(f.db)},
		workspacerepo.NewRepository(f.db),
		userrepo.NewRepository(f.db),
		membership.New(f.db, f.node),
		f.mailer,
		nil,
		f.node,
		f.clock,
		f.cfg,
	)

	loser, err := racing.Accept(context.Background(), invitee, token)
	if err != nil {
		t.Fatalf("losing accept: %v", err)
	}
	if !loser.AlreadyMember {
		t.Fatal("loser not resolved to the winning outcome")
	}

	var count int64
	f.db.Model(&workspacedomain.Member{}).
		Where("workspace_id = ? AND user_id = ?", wsID, invitee.ID).
		Count(&count)
	if count != 1 {
		t.Fatalf("membership rows = %d", count)
	}
}
