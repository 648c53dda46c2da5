package permission

import (
	"testing"
)

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"admin":  RoleAdmin,
		"Editor": RoleEditor,
		" VIEWER ": RoleViewer,
	}
	for raw, want := range cases {
		got, err := ParseRole(raw)
		if err != nil {
			t.Fatalf("ParseRole(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseRole(%q) = %q, want %q", raw, got, want)
		}
	}

	if _, err := ParseRole("owner"); err == nil {
		t.Fatal("expected owner to be rejected as a stored role")
	}
	if _, err := ParseRole(""); err == nil {
		t.Fatal("expected empty role to be rejected")
	}
}

func TestDefaultsForRole(t *testing.T) {
	admin, err := DefaultsForRole(RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if !admin.CanView || !admin.CanEdit || !admin.CanAdd || !admin.CanDelete || !admin.CanInvite {
		t.Fatalf("admin defaults incomplete: %+v", admin)
	}

	editor, err := DefaultsForRole(RoleEditor)
	if err != nil {
		t.Fatal(err)
	}
	if !editor.CanView || !editor.CanEdit || !editor.CanAdd {
		t.Fatalf("editor defaults missing grants: %+v", editor)
	}
	if editor.CanDelete || editor.CanInvite {
		t.Fatalf("editor defaults too broad: %+v", editor)
	}

	viewer, err := DefaultsForRole(RoleViewer)
	if err != nil {
		t.Fatal(err)
	}
	if !viewer.CanView || viewer.CanEdit || viewer.CanAdd || viewer.CanDelete || viewer.CanInvite {
		t.Fatalf("viewer defaults wrong: %+v", viewer)
	}

	for _, role := range []Role{RoleAdmin, RoleEditor, RoleViewer} {
		set, _ := DefaultsForRole(role)
		if errs := Validate(set); len(errs) != 0 {
			t.Fatalf("defaults for %s violate implication rules: %v", role, errs)
		}
	}
}

func TestValidateImplications(t *testing.T) {
	cases := []struct {
		name string
		set  Set
		want int
	}{
		{"edit without view", Set{CanEdit: true}, 1},
		{"delete without edit", Set{CanView: true, CanDelete: true}, 1},
		{"add without view", Set{CanAdd: true}, 1},
		{"all violations", Set{CanEdit: true, CanDelete: false, CanAdd: true}, 2},
		{"empty set valid", Set{}, 0},
		{"full set valid", OwnerSet(), 0},
	}
	for _, tc := range cases {
		if got := len(Validate(tc.set)); got != tc.want {
			t.Fatalf("%s: got %d violations, want %d", tc.name, got, tc.want)
		}
	}
}

func TestExternalVocabularyRoundTrip(t *testing.T) {
	original := Set{CanView: true, CanEdit: true, CanAdd: true}

	external := ToExternal(original)
	if !external["read"] || !external["write"] || !external["manage"] {
		t.Fatalf("unexpected external form: %v", external)
	}
	if external["delete"] || external["invite"] {
		t.Fatalf("external form grants too much: %v", external)
	}

	back, err := ToInternal(external)
	if err != nil {
		t.Fatal(err)
	}
	if back != original {
		t.Fatalf("round trip lost information: %+v != %+v", back, original)
	}
}

func TestToInternalRejectsUnknownKeys(t *testing.T) {
	if _, err := ToInternal(map[string]bool{"read": true, "admin": true}); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
	if _, err := FromCanonicalMap(map[string]bool{"canView": true, "canFly": true}); err == nil {
		t.Fatal("expected unknown canonical key to be rejected")
	}
}

func TestParseAny(t *testing.T) {
	canonical, err := ParseAny(map[string]bool{"canView": true, "canEdit": true})
	if err != nil {
		t.Fatal(err)
	}
	if !canonical.CanView || !canonical.CanEdit {
		t.Fatalf("canonical parse wrong: %+v", canonical)
	}

	alias, err := ParseAny(map[string]bool{"read": true, "manage": true})
	if err != nil {
		t.Fatal(err)
	}
	if !alias.CanView || !alias.CanAdd {
		t.Fatalf("alias parse wrong: %+v", alias)
	}

	if _, err := ParseAny(map[string]bool{"read": true, "canEdit": true}); err == nil {
		t.Fatal("expected mixed vocabularies to be rejected")
	}
	if _, err := ParseAny(nil); err == nil {
		t.Fatal("expected empty map to be rejected")
	}
}
