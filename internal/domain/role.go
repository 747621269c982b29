package domain

import "strings"

// Role identifies one stage of the five-stage creative pipeline.
type Role string

const (
	Role1 Role = "role1"
	Role2 Role = "role2"
	Role3 Role = "role3"
	Role4 Role = "role4"
	Role5 Role = "role5"
)

// Roles lists every role in pipeline order.
var Roles = []Role{Role1, Role2, Role3, Role4, Role5}

// BranchRoles are the enrichment roles that run concurrently when a theme
// enables branching.
var BranchRoles = []Role{Role2, Role3, Role4}

// ParseRole normalizes free-form input into a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}
