package auth

import (
	"slices"

	"github.com/ledgerkit/account-service/internal/domain"
)

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Caller is the authenticated identity attached to every request by the
// transport layer.
type Caller struct {
	ID    int64
	Roles []string
}

func (c Caller) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// IsUser reports whether the caller is a valid user: a positive id carrying
// the USER role.
func IsUser(c Caller) bool {
	return c.ID >= 1 && c.HasRole(RoleUser)
}

// IsAdmin reports whether the caller is a valid user carrying the ADMIN role.
func IsAdmin(c Caller) bool {
	return IsUser(c) && c.HasRole(RoleAdmin)
}

// RequireUser fails with ErrMissingPermission unless the caller is a valid
// user.
func RequireUser(c Caller) error {
	if !IsUser(c) {
		return domain.ErrMissingPermission
	}
	return nil
}

// RequireAccess fails with ErrMissingPermission unless the caller is a valid
// user and either owns the resource or is an admin.
func RequireAccess(c Caller, owner int64) error {
	if err := RequireUser(c); err != nil {
		return err
	}
	if c.ID == owner || IsAdmin(c) {
		return nil
	}
	return domain.ErrMissingPermission
}
