package rbac

import (
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleAuthor Role = "author"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

var allRoles = []Role{RoleAuthor, RoleEditor, RoleAdmin}

var ErrUnknownRole = errors.New("unknown role")

// Roles returns every known role in a stable order.
func Roles() []Role {
	return append([]Role(nil), allRoles...)
}

func ParseRole(value string) (Role, error) {
	candidate := Role(strings.ToLower(strings.TrimSpace(value)))
	for _, role := range allRoles {
		if role == candidate {
			return role, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
}

// Normalize maps unrecognized roles to the empty role, which no predicate grants anything.
func Normalize(value string) Role {
	role, err := ParseRole(value)
	if err != nil {
		return ""
	}
	return role
}

// WorkRef is the ownership view of a work that the predicates need.
type WorkRef struct {
	AuthorID string
	EditorID string
}

// CanAccessWork reports whether the user may read a work and its chapters:
// the author, the assigned editor, or any admin.
func CanAccessWork(userID string, role Role, work WorkRef) bool {
	if userID == "" {
		return false
	}
	switch role {
	case RoleAdmin:
		return true
	case RoleAuthor:
		return work.AuthorID == userID
	case RoleEditor:
		return work.EditorID != "" && work.EditorID == userID
	default:
		return false
	}
}

// CanEditWork reports whether the user holds destructive rights over the work
// itself. Editors never do.
func CanEditWork(userID string, role Role, work WorkRef) bool {
	if userID == "" {
		return false
	}
	switch role {
	case RoleAdmin:
		return true
	case RoleAuthor:
		return work.AuthorID == userID
	default:
		return false
	}
}
