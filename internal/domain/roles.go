package domain

import "strings"

// NormalizeRole maps free-form job titles and legacy role names onto the two
// access roles. Anything mentioning admin is an admin; everyone else,
// including the legacy "gerente", is a manager.
func NormalizeRole(raw string) string {
	if strings.Contains(strings.ToLower(raw), "admin") {
		return RoleAdmin
	}
	return RoleManager
}
