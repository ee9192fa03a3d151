package auth

import (
	"github.com/google/uuid"
)

// Role is the caller's resolved role.
type Role string

const (
	RoleStudent  Role = "student"
	RoleLecturer Role = "lecturer"
	RoleAdmin    Role = "admin"
)

// Actor is the caller's identity plus what it may do. It is resolved once
// per request by the middleware; handlers and services ask the Actor
// instead of comparing role strings.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsAdmin reports whether the actor has unrestricted access.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// IsStudent reports whether the actor redeems tokens rather than issuing them.
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }

// CanIssue reports whether the actor may mint attendance sessions.
func (a Actor) CanIssue() bool { return a.Role == RoleLecturer || a.Role == RoleAdmin }

// Owns reports whether the actor controls a session created by lecturerID.
// Admins own everything.
func (a Actor) Owns(lecturerID uuid.UUID) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == RoleLecturer && a.ID == lecturerID
}

func actorFromClaims(c Claims) (Actor, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return Actor{}, err
	}
	switch Role(c.Role) {
	case RoleStudent, RoleLecturer, RoleAdmin:
		return Actor{ID: id, Role: Role(c.Role)}, nil
	}
	return Actor{}, errUnknownRole
}
