// Package permission defines the canonical capability set attached to a
// workspace membership, role presets, validation rules, and the translation
// to the alias vocabulary used by external API callers.
package permission

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the coarse label a member carries. It seeds the default capability
// set; access decisions always consult the stored capability set, not the
// role label.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Capability names a single gated action.
type Capability string

const (
	CapView   Capability = "canView"
	CapEdit   Capability = "canEdit"
	CapAdd    Capability = "canAdd"
	CapDelete Capability = "canDelete"
	CapInvite Capability = "canInvite"
)

// Set is the canonical five-key capability set.
type Set struct {
	CanView   bool `json:"canView"`
	CanEdit   bool `json:"canEdit"`
	CanAdd    bool `json:"canAdd"`
	CanDelete bool `json:"canDelete"`
	CanInvite bool `json:"canInvite"`
}

var (
	ErrInvalidRole = errors.New("invalid_role")

	// Monotonicity violations.
	ErrEditRequiresView   = errors.New("canEdit requires canView")
	ErrDeleteRequiresEdit = errors.New("canDelete requires canEdit")
	ErrAddRequiresView    = errors.New("canAdd requires canView")
)

// ParseRole normalizes and validates a role label.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleEditor:
		return RoleEditor, nil
	case RoleViewer:
		return RoleViewer, nil
	default:
		return "", ErrInvalidRole
	}
}

// DefaultsForRole returns the capability preset for a stored role.
func DefaultsForRole(role Role) (Set, error) {
	switch role {
	case RoleAdmin:
		return Set{CanView: true, CanEdit: true, CanAdd: true, CanDelete: true, CanInvite: true}, nil
	case RoleEditor:
		return Set{CanView: true, CanEdit: true, CanAdd: true}, nil
	case RoleViewer:
		return Set{CanView: true}, nil
	default:
		return Set{}, ErrInvalidRole
	}
}

// OwnerSet is the workspace owner's capability set. It is never derived from
// a stored role and never persisted per member.
func OwnerSet() Set {
	return Set{CanView: true, CanEdit: true, CanAdd: true, CanDelete: true, CanInvite: true}
}

// Has reports whether the set grants the capability.
func (s Set) Has(c Capability) bool {
	switch c {
	case CapView:
		return s.CanView
	case CapEdit:
		return s.CanEdit
	case CapAdd:
		return s.CanAdd
	case CapDelete:
		return s.CanDelete
	case CapInvite:
		return s.CanInvite
	default:
		return false
	}
}

// Validate enforces the implication rules between capabilities. Callers must
// reject sets that fail validation; no coercion is performed here.
func Validate(s Set) []error {
	var errs []error
	if s.CanEdit && !s.CanView {
		errs = append(errs, ErrEditRequiresView)
	}
	if s.CanDelete && !s.CanEdit {
		errs = append(errs, ErrDeleteRequiresEdit)
	}
	if s.CanAdd && !s.CanView {
		errs = append(errs, ErrAddRequiresView)
	}
	return errs
}

// Alias vocabulary used by some API callers. The mapping is a strict
// bijection so round-trips are lossless.
const (
	extRead   = "read"
	extWrite  = "write"
	extDelete = "delete"
	extManage = "manage"
	extInvite = "invite"
)

// ToExternal translates the canonical set into the alias vocabulary.
func ToExternal(s Set) map[string]bool {
	return map[string]bool{
		extRead:   s.CanView,
		extWrite:  s.CanEdit,
		extManage: s.CanAdd,
		extDelete: s.CanDelete,
		extInvite: s.CanInvite,
	}
}

// ToInternal translates the alias vocabulary back into the canonical set.
// Unknown keys are rejected; absent keys default to false.
func ToInternal(m map[string]bool) (Set, error) {
	var s Set
	for key, value := range m {
		switch key {
		case extRead:
			s.CanView = value
		case extWrite:
			s.CanEdit = value
		case extManage:
			s.CanAdd = value
		case extDelete:
			s.CanDelete = value
		case extInvite:
			s.CanInvite = value
		default:
			return Set{}, fmt.Errorf("unknown permission key %q", key)
		}
	}
	return s, nil
}

// FromCanonicalMap decodes the canonical vocabulary from a generic map.
// Unknown keys are rejected; absent keys default to false.
func FromCanonicalMap(m map[string]bool) (Set, error) {
	var s Set
	for key, value := range m {
		switch Capability(key) {
		case CapView:
			s.CanView = value
		case CapEdit:
			s.CanEdit = value
		case CapAdd:
			s.CanAdd = value
		case CapDelete:
			s.CanDelete = value
		case CapInvite:
			s.CanInvite = value
		default:
			return Set{}, fmt.Errorf("unknown permission key %q", key)
		}
	}
	return s, nil
}

// ParseAny accepts a permission map in either the canonical or the alias
// vocabulary and returns the canonical set. Mixed vocabularies are rejected.
func ParseAny(m map[string]bool) (Set, error) {
	if len(m) == 0 {
		return Set{}, errors.New("empty permission set")
	}

	canonical, alias := 0, 0
	for key := range m {
		switch Capability(key) {
		case CapView, CapEdit, CapAdd, CapDelete, CapInvite:
			canonical++
			continue
		}
		switch key {
		case extRead, extWrite, extManage, extDelete, extInvite:
			alias++
		default:
			return Set{}, fmt.Errorf("unknown permission key %q", key)
		}
	}
	if canonical > 0 && alias > 0 {
		return Set{}, errors.New("mixed permission vocabularies")
	}
	if alias > 0 {
		return ToInternal(m)
	}
	return FromCanonicalMap(m)
}
