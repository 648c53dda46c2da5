package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/access"
	"github.com/docuspace/docuspace/internal/clock"
	"github.com/docuspace/docuspace/internal/documents"
	"github.com/docuspace/docuspace/internal/identity"
	"github.com/docuspace/docuspace/internal/membership"
	"github.com/docuspace/docuspace/internal/observability/logger"
	"github.com/docuspace/docuspace/internal/permission"
	"github.com/docuspace/docuspace/internal/workspace/domain"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type service struct {
	db      *gorm.DB
	repo    domain.Repository
	docs    documents.Counter
	access  access.Evaluator
	members *membership.Synchronizer
	genID   *snowflake.Node
	clock   clock.Clock
}

func NewService(
	db *gorm.DB,
	repo domain.Repository,
	docs documents.Counter,
	evaluator access.Evaluator,
	members *membership.Synchronizer,
	genID *snowflake.Node,
	clk clock.Clock,
) domain.Service {
	return &service{
		db:      db,
		repo:    repo,
		docs:    docs,
		access:  evaluator,
		members: members,
		genID:   genID,
		clock:   clk,
	}
}

func (s *service) Create(ctx context.Context, principal identity.Principal, req domain.CreateRequest) (*domain.WorkspaceResponse, error) {
	if !principal.Valid() {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	taken, err := s.repo.NameTaken(ctx, principal.ID, name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrNameTaken
	}

	now := s.clock.Now()
	ws := domain.Workspace{
		ID:                 s.genID.Generate(),
		Name:               name,
		Slug:               slug.Make(name),
		Description:        strings.TrimSpace(req.Description),
		OwnerID:            principal.ID,
		IsPublic:           req.IsPublic,
		AllowMemberInvites: req.AllowMemberInvites,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// The owner is seeded as an admin member in the same transaction so a
	// workspace never exists without its owner membership.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, ws); err != nil {
			return err
		}
		_, err := s.members.WithTx(tx).AddMember(ctx, ws.ID, principal.ID, permission.RoleAdmin, permission.OwnerSet(), now)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("workspace created",
		zap.String("workspace_id", ws.ID.String()),
		zap.String("owner_id", principal.ID.String()),
	)
	return s.toResponse(ctx, &ws, false)
}

func (s *service) GetByID(ctx context.Context, principal identity.Principal, id string) (*domain.WorkspaceResponse, error) {
	workspaceID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidWorkspace
	}

	ws, err := s.repo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	if ws.OwnerID != principal.ID && !ws.IsPublic {
		set, err := s.access.EffectivePermissions(ctx, principal, workspaceID)
		if err != nil {
			return nil, err
		}
		if set == nil || !set.Has(permission.CapView) {
			return nil, domain.ErrForbidden
		}
	}

	return s.toResponse(ctx, ws, true)
}

func (s *service) ListByUser(ctx context.Context, principal identity.Principal) ([]domain.WorkspaceListResponseItem, error) {
	if !principal.Valid() {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListByUser(ctx, principal.ID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.WorkspaceListResponseItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.WorkspaceListResponseItem{
			ID:       item.ID.String(),
			Name:     item.Name,
			Role:     item.Role,
			JoinedAt: item.JoinedAt,
		})
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, principal identity.Principal, id string, req domain.UpdateRequest) (*domain.WorkspaceResponse, error) {
	workspaceID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrInvalidWorkspace
	}

	ws, err := s.repo.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}
	// Renaming and settings changes are admin operations; canEdit only
	// covers content inside the workspace.
	if err := s.access.RequireAdmin(ctx, principal, workspaceID); err != nil {
		return nil, domain.ErrForbidden
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		if !strings.EqualFold(name, ws.Name) {
			taken, err := s.repo.NameTaken(ctx, ws.OwnerID, name, ws.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, domain.ErrNameTaken
			}
		}
		ws.Name = name
		ws.Slug = slug.Make(name)
	}
	if req.Description != nil {
		ws.Description = strings.TrimSpace(*req.Description)
	}
	if req.IsPublic != nil {
		ws.IsPublic = *req.IsPublic
	}
	if req.AllowMemberInvites != nil {
		ws.AllowMemberInvites = *req.AllowMemberInvites
	}
	ws.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, *ws); err != nil {
		return nil, err
	}
	return s.toResponse(ctx, ws, false)
}

func (s *service) Delete(ctx context.Context, principal identity.Principal, id string) error {
	workspaceID, err := parseID(id)
	if err != nil {
		return domain.ErrInvalidWorkspace
	}

	ws, err := s.repo.GetByID(ctx, workspaceID)
	if err != nil {
		return err
	}
	if ws.OwnerID != principal.ID {
		if err := s.access.Require(ctx, principal, workspaceID, permission.CapDelete); err != nil {
			return domain.ErrForbidden
		}
	}

	count, err := s.docs.CountByWorkspace(ctx, workspaceID)
	if err != nil {
		return err
	}
	if count > 0 {
		return domain.ErrNotEmpty
	}

	if err := s.repo.Delete(ctx, workspaceID); err != nil {
		return err
	}

	logger.FromContext(ctx).Info("workspace deleted",
		zap.String("workspace_id", workspaceID.String()),
		zap.String("actor_id", principal.ID.String()),
	)
	return nil
}

func (s *service) ListMembers(ctx context.Context, principal identity.Principal, workspaceID string) ([]domain.MemberResponse, error) {
	id, err := parseID(workspaceID)
	if err != nil {
		return nil, domain.ErrInvalidWorkspace
	}

	ws, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.OwnerID != principal.ID {
		if err := s.access.Require(ctx, principal, id, permission.CapView); err != nil {
			return nil, domain.ErrForbidden
		}
	}

	members, err := s.repo.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}

	out := make([]domain.MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, toMemberResponse(m))
	}
	return out, nil
}

func (s *service) UpdateMemberRole(ctx context.Context, principal identity.Principal, workspaceID, memberUserID string, req domain.UpdateMemberRequest) (*domain.MemberResponse, error) {
	id, err := parseID(workspaceID)
	if err != nil {
		return nil, domain.ErrInvalidWorkspace
	}
	targetID, err := parseID(memberUserID)
	if err != nil {
		return nil, domain.ErrInvalidUser
	}

	ws, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ws.OwnerID == targetID {
		return nil, domain.ErrOwnerImmutable
	}
	if err := s.access.RequireAdmin(ctx, principal, id); err != nil {
		return nil, domain.ErrForbidden
	}

	current, err := s.repo.GetMember(ctx, id, targetID)
	if err != nil {
		return nil, err
	}

	role := current.Role
	if req.Role != "" {
		role, err = permission.ParseRole(req.Role)
		if err != nil {
			return nil, domain.ErrInvalidRole
		}
	}

	var set permission.Set
	switch {
	case len(req.Permissions) > 0:
		set, err = permission.ParseAny(req.Permissions)
		if err != nil {
			return nil, domain.ErrInvalidPermissions
		}
		if errs := permission.Validate(set); len(errs) > 0 {
			return nil, domain.ErrInvalidPermissions
		}
	case req.Role != "":
		// A role change without explicit permissions resets the
		// capability set to the role defaults.
		set, err = permission.DefaultsForRole(role)
		if err != nil {
			return nil, domain.ErrInvalidRole
		}
	default:
		return nil, domain.ErrInvalidPermissions
	}

	updated, err := s.repo.UpdateMember(ctx, id, targetID, role, set)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, domain.ErrMemberNotFound
	}

	current.Role = role
	current.ApplyPermissions(set)
	resp := toMemberResponse(*current)
	return &resp, nil
}

func (s *service) RemoveMember(ctx context.Context, principal identity.Principal, workspaceID, memberUserID string) error {
	id, err := parseID(workspaceID)
	if err != nil {
		return domain.ErrInvalidWorkspace
	}
	targetID, err := parseID(memberUserID)
	if err != nil {
		return domain.ErrInvalidUser
	}

	ws, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ws.OwnerID == targetID {
		return domain.ErrOwnerImmutable
	}
	if err := s.access.RequireAdmin(ctx, principal, id); err != nil {
		return domain.ErrForbidden
	}

	removed, err := s.repo.RemoveMember(ctx, id, targetID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrMemberNotFound
	}

	logger.FromContext(ctx).Info("member removed",
		zap.String("workspace_id", id.String()),
		zap.String("member_id", targetID.String()),
		zap.String("actor_id", principal.ID.String()),
	)
	return nil
}

func (s *service) Leave(ctx context.Context, principal identity.Principal, workspaceID string) error {
	id, err := parseID(workspaceID)
	if err != nil {
		return domain.ErrInvalidWorkspace
	}

	ws, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if ws.OwnerID == principal.ID {
		return domain.ErrOwnerImmutable
	}

	removed, err := s.repo.RemoveMember(ctx, id, principal.ID)
	if err != nil {
		return err
	}
	if !removed {
		return domain.ErrMemberNotFound
	}
	return nil
}

func (s *service) toResponse(ctx context.Context, ws *domain.Workspace, withMembers bool) (*domain.WorkspaceResponse, error) {
	resp := &domain.WorkspaceResponse{
		ID:                 ws.ID.String(),
		Name:               ws.Name,
		Slug:               ws.Slug,
		Description:        ws.Description,
		OwnerID:            ws.OwnerID.String(),
		IsPublic:           ws.IsPublic,
		AllowMemberInvites: ws.AllowMemberInvites,
		CreatedAt:          ws.CreatedAt,
	}
	if withMembers {
		members, err := s.repo.ListMembers(ctx, ws.ID)
		if err != nil {
			return nil, err
		}
		resp.Members = make([]domain.MemberResponse, 0, len(members))
		for _, m := range members {
			resp.Members = append(resp.Members, toMemberResponse(m))
		}
	}
	return resp, nil
}

func toMemberResponse(m domain.Member) domain.MemberResponse {
	return domain.MemberResponse{
		UserID:      m.UserID.String(),
		Role:        m.Role,
		Permissions: m.Permissions(),
		JoinedAt:    m.JoinedAt,
	}
}

func parseID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	return id, nil
}
