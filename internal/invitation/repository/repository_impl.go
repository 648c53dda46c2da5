package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/invitation/domain"
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

func (r *repository) Create(ctx context.Context, inv domain.Invitation) error {
	return r.db.WithContext(ctx).Create(&inv).Error
}

func (r *repository) GetByID(ctx context.Context, id snowflake.ID) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).First(&inv, "token = ?", token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func (r *repository) ListByWorkspace(ctx context.Context, workspaceID snowflake.ID, status domain.Status) ([]domain.Invitation, error) {
	query := r.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var invitations []domain.Invitation
	if err := query.Order("created_at DESC").Find(&invitations).Error; err != nil {
		return nil, err
	}
	return invitations, nil
}

func (r *repository) HasPending(ctx context.Context, workspaceID snowflake.ID, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("workspace_id = ? AND LOWER(email) = LOWER(?) AND status = ?",
			workspaceID, email, domain.StatusPending).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) TransitionStatus(ctx context.Context, id snowflake.ID, from, to domain.Status, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case domain.StatusAccepted:
		updates["accepted_at"] = at
	case domain.StatusRejected:
		updates["rejected_at"] = at
	}

	res := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ExtendExpiry(ctx context.Context, id snowflake.ID, expiresAt, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]any{
			"expires_at": expiresAt,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&domain.Invitation{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) ExpireElapsed(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("status = ? AND expires_at <= ?", domain.StatusPending, now).
		Updates(map[string]any{
			"status":     domain.StatusExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) ExpireElapsedFor(ctx context.Context, workspaceID snowflake.ID, email string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Invitation{}).
		Where("workspace_id = ? AND LOWER(email) = LOWER(?) AND status = ? AND expires_at <= ?",
			workspaceID, email, domain.StatusPending, now).
		Updates(map[string]any{
			"status":     domain.StatusExpired,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *repository) PurgeTerminal(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]domain.Status{domain.StatusRejected, domain.StatusExpired}, cutoff).
		Delete(&domain.Invitation{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
