// Package domain contains the user directory models. The directory is
// read-only from the access engine's point of view; accounts are provisioned
// by an upstream identity service.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is a registered account in the directory.
type User struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Email     string       `gorm:"type:text;not null;uniqueIndex:ux_user_email" json:"email"`
	Name      string       `gorm:"type:text" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

var ErrNotFound = errors.New("user_not_found")
