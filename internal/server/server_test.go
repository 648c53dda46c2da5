package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/docuspace/docuspace/internal/config"
	"github.com/docuspace/docuspace/internal/identity"
	invitationdomain "github.com/docuspace/docuspace/internal/invitation/domain"
	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	"github.com/gin-gonic/gin"
)

type workspaceStub struct {
	createResp *workspacedomain.WorkspaceResponse
	err        error
}

func (s *workspaceStub) Create(_ context.Context, _ identity.Principal, _ workspacedomain.CreateRequest) (*workspacedomain.WorkspaceResponse, error) {
	return s.createResp, s.err
}

func (s *workspaceStub) GetByID(context.Context, identity.Principal, string) (*workspacedomain.WorkspaceResponse, error) {
	return s.createResp, s.err
}

func (s *workspaceStub) ListByUser(context.Context, identity.Principal) ([]workspacedomain.WorkspaceListResponseItem, error) {
	return nil, s.err
}

func (s *workspaceStub) Update(context.Context, identity.Principal, string, workspacedomain.UpdateRequest) (*workspacedomain.WorkspaceResponse, error) {
	return s.createResp, s.err
}

func (s *workspaceStub) Delete(context.Context, identity.Principal, string) error { return s.err }

func (s *workspaceStub) ListMembers(context.Context, identity.Principal, string) ([]workspacedomain.MemberResponse, error) {
	return nil, s.err
}

func (s *workspaceStub) UpdateMemberRole(context.Context, identity.Principal, string, string, workspacedomain.UpdateMemberRequest) (*workspacedomain.MemberResponse, error) {
	return nil, s.err
}

func (s *workspaceStub) RemoveMember(context.Context, identity.Principal, string, string) error {
	return s.err
}

func (s *workspaceStub) Leave(context.Context, identity.Principal, string) error { return s.err }

type invitationStub struct {
	acceptResp *invitationdomain.AcceptResponse
	err        error
}

func (s *invitationStub) Send(context.Context, identity.Principal, string, invitationdomain.SendRequest) (*invitationdomain.InvitationResponse, error) {
	return nil, s.err
}

func (s *invitationStub) Accept(context.Context, identity.Principal, string) (*invitationdomain.AcceptResponse, error) {
	return s.acceptResp, s.err
}

func (s *invitationStub) Reject(context.Context, identity.Principal, string) error { return s.err }

func (s *invitationStub) Cancel(context.Context, identity.Principal, string, string) error {
	return s.err
}

func (s *invitationStub) Resend(context.Context, identity.Principal, string, string) (*invitationdomain.InvitationResponse, error) {
	return nil, s.err
}

func (s *invitationStub) ListByWorkspace(context.Context, identity.Principal, string, string) ([]invitationdomain.InvitationResponse, error) {
	return nil, s.err
}

func (s *invitationStub) Sweep(context.Context) (invitationdomain.SweepResult, error) {
	return invitationdomain.SweepResult{}, s.err
}

func newTestServer(t *testing.T, ws workspacedomain.Service, inv invitationdomain.Service) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	NewServer(ServerParams{
		Gin:           engine,
		Cfg:           config.Config{},
		WorkspaceSvc:  ws,
		InvitationSvc: inv,
	})
	return engine
}

func doRequest(engine *gin.Engine, method, path, body string, authed bool) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		req.Header.Set("X-User-Id", "1234567890")
		req.Header.Set("X-User-Email", "user@example.com")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestRequestsWithoutIdentityAreRejected(t *testing.T) {
	engine := newTestServer(t, &workspaceStub{}, &invitationStub{})

	rec := doRequest(engine, http.MethodGet, "/api/v1/workspaces", "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCreateWorkspace(t *testing.T) {
	stub := &workspaceStub{createResp: &workspacedomain.WorkspaceResponse{ID: "42", Name: "Docs"}}
	engine := newTestServer(t, stub, &invitationStub{})

	rec := doRequest(engine, http.MethodPost, "/api/v1/workspaces", `{"name":"Docs"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp workspacedomain.WorkspaceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.ID != "42" {
		t.Fatalf("id = %q", resp.ID)
	}

	// Missing required field is a 400 before the service is reached.
	rec = doRequest(engine, http.MethodPost, "/api/v1/workspaces", `{}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"name taken", workspacedomain.ErrNameTaken, http.StatusConflict},
		{"forbidden", workspacedomain.ErrForbidden, http.StatusForbidden},
		{"not found", workspacedomain.ErrNotFound, http.StatusNotFound},
		{"invalid name", workspacedomain.ErrInvalidName, http.StatusBadRequest},
		{"owner immutable", workspacedomain.ErrOwnerImmutable, http.StatusUnprocessableEntity},
		{"not empty", workspacedomain.ErrNotEmpty, http.StatusConflict},
	}
	for _, tc := range cases {
		engine := newTestServer(t, &workspaceStub{err: tc.err}, &invitationStub{})
		rec := doRequest(engine, http.MethodPost, "/api/v1/workspaces", `{"name":"Docs"}`, true)
		if rec.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.status)
		}
	}
}

func TestInvitationErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"expired", invitationdomain.ErrExpired, http.StatusGone},
		{"not pending", invitationdomain.ErrNotPending, http.StatusUnprocessableEntity},
		{"registration required", invitationdomain.ErrRegistrationRequired, http.StatusUnprocessableEntity},
		{"email mismatch", invitationdomain.ErrEmailMismatch, http.StatusForbidden},
		{"not found", invitationdomain.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range cases {
		engine := newTestServer(t, &workspaceStub{}, &invitationStub{err: tc.err})
		rec := doRequest(engine, http.MethodPost, "/api/v1/invitations/tok/accept", "", true)
		if rec.Code != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.status)
		}
	}
}

func TestTokenRoutesAllowAnonymousCallers(t *testing.T) {
	stub := &invitationStub{acceptResp: &invitationdomain.AcceptResponse{WorkspaceID: "77"}}
	engine := newTestServer(t, &workspaceStub{}, stub)

	// The token in the path is the credential; no gateway headers needed.
	rec := doRequest(engine, http.MethodPost, "/api/v1/invitations/tok/accept", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(engine, http.MethodPost, "/api/v1/invitations/tok/reject", "", false)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reject status = %d", rec.Code)
	}
}

func TestAcceptInvitation(t *testing.T) {
	stub := &invitationStub{acceptResp: &invitationdomain.AcceptResponse{
		WorkspaceID:   "77",
		AlreadyMember: true,
	}}
	engine := newTestServer(t, &workspaceStub{}, stub)

	rec := doRequest(engine, http.MethodPost, "/api/v1/invitations/tok/accept", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp invitationdomain.AcceptResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.WorkspaceID != "77" || !resp.AlreadyMember {
		t.Fatalf("resp = %+v", resp)
	}
}
