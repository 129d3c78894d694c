package domain

import (
	"strings"
	"time"
)

// =============================================================================
// USER DOMAIN TYPES
// =============================================================================

// Role is the coarse role stored on a user account.
type Role string

const (
	RoleCustomer   Role = "CUSTOMER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsStaff reports whether r may use the admin surface.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is a persisted account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Principal is the authenticated identity attached to a request.
// It is what a verified session token resolves to.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Principal returns the session identity of u.
func (u *User) Principal() *Principal {
	return &Principal{ID: u.ID, Email: u.Email, Role: u.Role}
}

// NormalizeEmail lower-cases and trims an email for comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// User-related errors.
var (
	ErrUserNotFound       = &Error{Code: ENOTFOUND, Message: "user not found"}
	ErrInvalidCredentials = &Error{Code: EUNAUTHORIZED, Message: "invalid email or password"}
	ErrSessionRequired    = &Error{Code: EUNAUTHORIZED, Message: "authentication required"}
	ErrStaffRequired      = &Error{Code: EFORBIDDEN, Message: "admin access required"}
	ErrEmailTaken         = &Error{Code: ECONFLICT, Message: "email already registered"}
)
