// Package membership is the single authoritative write path for workspace
// membership. Every non-owner member enters a workspace through AddMember,
// which performs a conditional insert-or-update against the unique
// (workspace_id, user_id) index so concurrent acceptances can never produce
// duplicate membership rows. The per-user workspace index is mirrored with
// the same conflict-safe pattern.
package membership

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/permission"
	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Result reports whether a membership write created a new row or rewrote an
// existing one.
type Result string

const (
	ResultAdded   Result = "added"
	ResultUpdated Result = "updated"
)

type Synchronizer struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func New(db *gorm.DB, genID *snowflake.Node) *Synchronizer {
	return &Synchronizer{db: db, genID: genID}
}

// WithTx returns a Synchronizer bound to the given transaction.
func (s *Synchronizer) WithTx(tx *gorm.DB) *Synchronizer {
	return &Synchronizer{db: tx, genID: s.genID}
}

// AddMember inserts or updates the membership for (workspaceID, userID) and
// mirrors it into the user workspace index. The insert carries an ON CONFLICT
// DO NOTHING clause; when the row already exists the role and capability set
// are rewritten in place with a conditional UPDATE keyed on the same columns.
func (s *Synchronizer) AddMember(ctx context.Context, workspaceID, userID snowflake.ID, role permission.Role, set permission.Set, joinedAt time.Time) (Result, error) {
	member := workspacedomain.Member{
		ID:          s.genID.Generate(),
		WorkspaceID: workspaceID,
		UserID:      userID,
		Role:        role,
		JoinedAt:    joinedAt.UTC(),
	}
	member.ApplyPermissions(set)

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "workspace_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&member)
	if res.Error != nil {
		return "", res.Error
	}

	result := ResultAdded
	if res.RowsAffected == 0 {
		// Row already present: rewrite role and capabilities in place.
		err := s.db.WithContext(ctx).Model(&workspacedomain.Member{}).
			Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
			Updates(map[string]any{
				"role":       role,
				"can_view":   set.CanView,
				"can_edit":   set.CanEdit,
				"can_add":    set.CanAdd,
				"can_delete": set.CanDelete,
				"can_invite": set.CanInvite,
			}).Error
		if err != nil {
			return "", err
		}
		result = ResultUpdated
	}

	if err := s.mirrorIndex(ctx, workspaceID, userID, role, joinedAt); err != nil {
		return "", err
	}
	return result, nil
}

func (s *Synchronizer) mirrorIndex(ctx context.Context, workspaceID, userID snowflake.ID, role permission.Role, joinedAt time.Time) error {
	entry := workspacedomain.UserWorkspace{
		ID:          s.genID.Generate(),
		UserID:      userID,
		WorkspaceID: workspaceID,
		Role:        role,
		JoinedAt:    joinedAt.UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "workspace_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(&entry).Error
}
