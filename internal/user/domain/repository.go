package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Repository looks accounts up by id or email. Email lookups are
// case-insensitive; addresses are matched on their lowercased form.
type Repository interface {
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
}
