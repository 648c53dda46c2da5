// Package identity carries the authenticated actor supplied by the upstream
// gateway. Token verification happens before requests reach this service.
package identity

import (
	"strings"

	"github.com/bwmarrin/snowflake"
)

// Principal is the authenticated actor issuing a command.
type Principal struct {
	ID    snowflake.ID
	Email string
}

// Valid reports whether the principal carries a usable identity.
func (p Principal) Valid() bool {
	return p.ID != 0 && strings.TrimSpace(p.Email) != ""
}
