package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/permission"
	"github.com/docuspace/docuspace/internal/workspace/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, ws domain.Workspace) error {
	return r.db.WithContext(ctx).Create(&ws).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Workspace, error) {
	var ws domain.Workspace
	err := r.db.WithContext(ctx).First(&ws, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &ws, nil
}

func (r *repository) Update(ctx context.Context, ws domain.Workspace) error {
	return r.db.WithContext(ctx).
		Model(&domain.Workspace{}).
		Where("id = ?", ws.ID).
		Updates(map[string]any{
			"name":                 ws.Name,
			"slug":                 ws.Slug,
			"description":          ws.Description,
			"is_public":            ws.IsPublic,
			"allow_member_invites": ws.AllowMemberInvites,
			"updated_at":           ws.UpdatedAt,
		}).Error
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workspace_id = ?", id).Delete(&domain.Member{}).Error; err != nil {
			return err
		}
		if err := tx.Where("workspace_id = ?", id).Delete(&domain.UserWorkspace{}).Error; err != nil {
			return err
		}
		return tx.Delete(&domain.Workspace{}, "id = ?", id).Error
	})
}

func (r *repository) NameTaken(ctx context.Context, userID snowflake.ID, name string, excludeID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(*)
		 FROM workspaces w
		 WHERE LOWER(w.name) = LOWER(?)
		   AND w.id <> ?
		   AND (w.owner_id = ? OR EXISTS (
		       SELECT 1 FROM user_workspaces uw
		       WHERE uw.workspace_id = w.id AND uw.user_id = ?))`,
		name, excludeID, userID, userID,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) GetMember(ctx context.Context, workspaceID, userID snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := r.db.WithContext(ctx).
		First(&member, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListMembers(ctx context.Context, workspaceID snowflake.ID) ([]domain.Member, error) {
	var members []domain.Member
	err := r.db.WithContext(ctx).
		Where("workspace_id = ?", workspaceID).
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (r *repository) UpdateMember(ctx context.Context, workspaceID, userID snowflake.ID, role permission.Role, set permission.Set) (bool, error) {
	var updated bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Member{}).
			Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
			Updates(map[string]any{
				"role":       role,
				"can_view":   set.CanView,
				"can_edit":   set.CanEdit,
				"can_add":    set.CanAdd,
				"can_delete": set.CanDelete,
				"can_invite": set.CanInvite,
			})
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected > 0
		if !updated {
			return nil
		}
		return tx.Model(&domain.UserWorkspace{}).
			Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
			Update("role", role).Error
	})
	return updated, err
}

func (r *repository) RemoveMember(ctx context.Context, workspaceID, userID snowflake.ID) (bool, error) {
	var removed bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
			Delete(&domain.Member{})
		if res.Error != nil {
			return res.Error
		}
		removed = res.RowsAffected > 0
		return tx.Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
			Delete(&domain.UserWorkspace{}).Error
	})
	return removed, err
}

func (r *repository) ListByUser(ctx context.Context, userID snowflake.ID) ([]domain.WorkspaceListItem, error) {
	var items []domain.WorkspaceListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT w.id, w.name, uw.role, uw.joined_at
		 FROM workspaces w
		 JOIN user_workspaces uw ON uw.workspace_id = w.id
		 WHERE uw.user_id = ?
		 ORDER BY uw.joined_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
