package auth

import "github.com/google/uuid"

// Role is the coarse permission level carried by a bearer credential.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleHost    Role = "HOST"
	RoleCaptain Role = "CAPTAIN"
	RoleViewer  Role = "VIEWER"
)

// Actor is the resolved identity behind a request.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
