// Package authz implements the authorization kernel: scope grammar parsing
// and the hierarchical check described in spec 3.5/4.3. The kernel is pure
// and stateless so it is safe to call from any code path, including the
// xDS stream loop.
package authz

import (
	"strings"

	"github.com/flexcp/flexcp/internal/apierr"
)

// Scope is one parsed grant from a principal's scope set.
type Scope struct {
	Raw string

	AdminAll bool

	// org:{org}:{role}
	IsOrgScope bool
	Org        string
	OrgRole    string // "admin" or "member"

	// team:{team}:{resource}:{action} and team:{team}:*:*
	IsTeamScope bool
	Team        string
	Resource    string
	Action      string

	// bare "{resource}:{action}" — a global scope, only meaningful for
	// admins; on a non-admin principal it is a privilege-escalation signal
	// and must always be denied (spec 3.5, 4.3 step 4).
	IsGlobalScope bool

	IsAPIExecute bool
}

// ParseScope parses a single scope string per the grammar in spec 3.5.
// Parsing is pure; malformed or empty-segment scopes are rejected rather
// than silently ignored, since a caller that built a scope set from
// untrusted input must know which entries were garbage.
func ParseScope(raw string) (Scope, error) {
	if raw == "" {
		return Scope{}, apierr.Validation("scope", "scope string must not be empty")
	}
	if raw == "admin:all" {
		return Scope{Raw: raw, AdminAll: true}, nil
	}
	if raw == "api:execute" {
		return Scope{Raw: raw, IsAPIExecute: true}, nil
	}

	parts := strings.Split(raw, ":")
	for _, p := range parts {
		if p == "" {
			return Scope{}, apierr.Validation("scope", "scope segments must not be empty: "+raw)
		}
	}

	switch {
	case len(parts) == 3 && parts[0] == "org":
		role := parts[2]
		if role != "admin" && role != "member" {
			return Scope{}, apierr.ValidationEnum("scope", "unknown org role", []string{"admin", "member"})
		}
		return Scope{Raw: raw, IsOrgScope: true, Org: parts[1], OrgRole: role}, nil

	case len(parts) == 4 && parts[0] == "team":
		return Scope{Raw: raw, IsTeamScope: true, Team: parts[1], Resource: parts[2], Action: parts[3]}, nil

	case len(parts) == 2:
		return Scope{Raw: raw, IsGlobalScope: true, Resource: parts[0], Action: parts[1]}, nil

	default:
		return Scope{}, apierr.Validation("scope", "does not match the scope grammar: "+raw)
	}
}

// ParseScopes parses a set of raw scope strings, returning the first
// validation error encountered.
func ParseScopes(raw []string) ([]Scope, error) {
	out := make([]Scope, 0, len(raw))
	for _, r := range raw {
		s, err := ParseScope(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// ExtractOrgScopes returns the set of distinct org ids referenced by org:
// scopes in the set. Used by token parsing to detect and reject
// multi-org tokens before the kernel ever sees them (spec 4.3).
func ExtractOrgScopes(scopes []Scope) []string {
	seen := map[string]bool{}
	var out []string
	for _, s := range scopes {
		if s.IsOrgScope && !seen[s.Org] {
			seen[s.Org] = true
			out = append(out, s.Org)
		}
	}
	return out
}
