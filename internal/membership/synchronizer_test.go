package membership

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuspace/docuspace/internal/permission"
	workspacedomain "github.com/docuspace/docuspace/internal/workspace/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.AutoMigrate(&workspacedomain.Member{}, &workspacedomain.UserWorkspace{}); err != nil {
		t.Fatal(err)
	}
	return db
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatal(err)
	}
	return node
}

func TestAddMemberCreatesRowAndIndex(t *testing.T) {
	db := setupDB(t)
	node := mustNode(t)
	sync := New(db, node)

	workspaceID := node.Generate()
	userID := node.Generate()
	set, _ := permission.DefaultsForRole(permission.RoleEditor)
	joined := time.Now().UTC()

	result, err := sync.AddMember(context.Background(), workspaceID, userID, permission.RoleEditor, set, joined)
	if err != nil {
		t.Fatalf("add member: %v", err)
	}
	if result != ResultAdded {
		t.Fatalf("result = %q, want %q", result, ResultAdded)
	}

	var member workspacedomain.Member
	if err := db.First(&member, "workspace_id = ? AND user_id = ?", workspaceID, userID).Error; err != nil {
		t.Fatalf("member row missing: %v", err)
	}
	if member.Role != permission.RoleEditor || !member.CanView || !member.CanEdit || !member.CanAdd {
		t.Fatalf("member stored wrong: %+v", member)
	}
	if member.CanDelete || member.CanInvite {
		t.Fatalf("member granted too much: %+v", member)
	}

	var entry workspacedomain.UserWorkspace
	if err := db.First(&entry, "user_id = ? AND workspace_id = ?", userID, workspaceID).Error; err != nil {
		t.Fatalf("index row missing: %v", err)
	}
	if entry.Role != permission.RoleEditor {
		t.Fatalf("index role = %q", entry.Role)
	}
}

func TestAddMemberSecondWriteUpdatesInPlace(t *testing.T) {
	db := setupDB(t)
	node := mustNode(t)
	sync := New(db, node)

	workspaceID := node.Generate()
	userID := node.Generate()
	editorSet, _ := permission.DefaultsForRole(permission.RoleEditor)
	adminSet, _ := permission.DefaultsForRole(permission.RoleAdmin)

	if _, err := sync.AddMember(context.Background(), workspaceID, userID, permission.RoleEditor, editorSet, time.Now()); err != nil {
		t.Fatal(err)
	}
	result, err := sync.AddMember(context.Background(), workspaceID, userID, permission.RoleAdmin, adminSet, time.Now())
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if result != ResultUpdated {
		t.Fatalf("result = %q, want %q", result, ResultUpdated)
	}

	var count int64
	db.Model(&workspacedomain.Member{}).
		Where("workspace_id = ? AND user_id = ?", workspaceID, userID).
		Count(&count)
	if count != 1 {
		t.Fatalf("duplicate membership rows: %d", count)
	}

	var member workspacedomain.Member
	db.First(&member, "workspace_id = ? AND user_id = ?", workspaceID, userID)
	if member.Role != permission.RoleAdmin || !member.CanDelete || !member.CanInvite {
		t.Fatalf("update did not rewrite capabilities: %+v", member)
	}

	var indexCount int64
	db.Model(&workspacedomain.UserWorkspace{}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Count(&indexCount)
	if indexCount != 1 {
		t.Fatalf("duplicate index rows: %d", indexCount)
	}
}
