// Package users is the managed-user directory consumed as an
// authorization gate: a (username, district, active) lookup plus a
// credential check. It is not reconciled financially.
package users

import (
	"fmt"
	"time"

	"github.com/gstledger/gstledger/internal/shared"
)

// Role separates the two actors in the lifecycle.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleDistrict Role = "DISTRICT"
)

// ErrUserNotFound indicates a missing user.
var ErrUserNotFound = fmt.Errorf("%w: user", shared.ErrNotFound)

// User is a managed login with district scope.
type User struct {
	ID           int64
	Username     string
	District     string
	Role         Role
	Active       bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
