// Package roles holds the fixed role set and its database registry. The
// three roles are reference data: seeded once at startup, never mutated by
// request flow.
package roles

import (
	"fmt"
)

// The closed set of role names
const (
	Student   = "student"
	Moderator = "moderator"
	Admin     = "admin"
)

// All returns every known role name
func All() []string {
	return []string{Student, Moderator, Admin}
}

// labels maps role names to the Spanish labels used in client-facing
// messages ("Requiere rol de administrador")
var labels = map[string]string{
	Student:   "estudiante",
	Moderator: "moderador",
	Admin:     "administrador",
}

// Label returns the client-facing Spanish label for a role name. Unknown
// names fall back to the name itself.
func Label(name string) string {
	if l, ok := labels[name]; ok {
		return l
	}
	return name
}

// UnknownRoleError reports a role name outside the known set, carrying the
// exact offending string
type UnknownRoleError struct {
	Name string
}

func (e *UnknownRoleError) Error() string {
	return fmt.Sprintf("unknown role: %s", e.Name)
}

// ValidateNames checks every name against the known role set and reports
// the first unknown one
func ValidateNames(names []string) error {
	for _, name := range names {
		if _, ok := labels[name]; !ok {
			return &UnknownRoleError{Name: name}
		}
	}
	return nil
}
