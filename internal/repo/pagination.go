package repo

// Pagination is a clamped (limit, offset) pair per spec 4.2: limit in
// [1, 1000] default 50; limit = 0 is rejected by the caller (apierr
// Validation), limit > 1000 is clamped rather than rejected.
type Pagination struct {
	Limit  int
	Offset int
}

const (
	defaultLimit = 50
	maxLimit     = 1000
)

// ClampPagination applies spec 4.2's pagination rule. A zero limit means
// "unspecified" and gets the default; callers that must reject an
// explicit zero (spec 8: "limit = 0 rejected") do so before calling this,
// since by the time a Pagination reaches the repository the REST/CLI
// front-end has already distinguished "absent" from "explicit zero".
func ClampPagination(limit, offset int) Pagination {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Pagination{Limit: limit, Offset: offset}
}

// AllowedTeams is the team_filter parameter threaded through every
// list/get operation (spec 4.2). An admin principal passes AnyTeam; every
// other principal passes the concrete set of teams its scopes grant it.
type AllowedTeams struct {
	Any   bool
	Teams map[string]bool
}

// AnyTeam is the "any team" sentinel admins pass.
func AnyTeam() AllowedTeams { return AllowedTeams{Any: true} }

func TeamSet(teams ...string) AllowedTeams {
	m := make(map[string]bool, len(teams))
	for _, t := range teams {
		m[t] = true
	}
	return AllowedTeams{Teams: m}
}

func (a AllowedTeams) Allows(team string) bool {
	if a.Any {
		return true
	}
	return a.Teams[team]
}
