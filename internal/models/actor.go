package models

import "github.com/google/uuid"

// Actor roles.
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// Actor is the typed session principal passed explicitly into every engine
// entry point. There is no implicit session lookup inside the core.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Role string    `json:"role"`
}

// ValidRole reports whether r is a known role.
func ValidRole(r string) bool {
	return r == RoleClient || r == RoleFreelancer || r == RoleAdmin
}
