package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func scopes(t *testing.T, raw ...string) []Scope {
	t.Helper()
	s, err := ParseScopes(raw)
	require.NoError(t, err)
	return s
}

func TestCheckResourceAccess_AdminAll(t *testing.T) {
	ctx := AuthContext{Scopes: scopes(t, "admin:all")}
	require.True(t, CheckResourceAccess(ctx, CheckRequest{Resource: "clusters", Action: "write", OwningTeam: "team-a"}))
}

func TestCheckResourceAccess_TeamScoped(t *testing.T) {
	ctx := AuthContext{Scopes: scopes(t, "team:team-a:clusters:read")}
	require.True(t, CheckResourceAccess(ctx, CheckRequest{Resource: "clusters", Action: "read", OwningTeam: "team-a"}))
	require.False(t, CheckResourceAccess(ctx, CheckRequest{Resource: "clusters", Action: "write", OwningTeam: "team-a"}))
	require.False(t, CheckResourceAccess(ctx, CheckRequest{Resource: "clusters", Action: "read", OwningTeam: "team-b"}))
}

func TestCheckResourceAccess_TeamWildcard(t *testing.T) {
	ctx := AuthContext{Scopes: scopes(t, "team:team-a:*:*")}
	require.True(t, CheckResourceAccess(ctx, CheckRequest{Resource: "listeners", Action: "delete", OwningTeam: "team-a"}))
}

func TestCheckResourceAccess_OrgAdmin(t *testing.T) {
	ctx := AuthContext{Scopes: scopes(t, "org:org-1:admin")}
	require.True(t, CheckResourceAccess(ctx, CheckRequest{Resource: "clusters", Action: "write", OwningOrg: "org-1"}))
	require.False(t, CheckResourceAccess(ctx, CheckRequest{Resource: "clusters", Action: "write", OwningOrg: "org-2"}))
}

func TestCheckResourceAccess_OrgMemberDoesNotGrantWrite(t *testing.T) {
	ctx := AuthContext{Scopes: scopes(t, "org:org-1:member")}
	require.False(t, CheckResourceAccess(ctx, CheckRequest{Resource: "clusters", Action: "write", OwningOrg: "org-1"}))
}

// TestCheckResourceAccess_GlobalScopeEscalationDenied is spec 8 property 4:
// for all non-admin principals and all global scopes, access must be denied.
func TestCheckResourceAccess_GlobalScopeEscalationDenied(t *testing.T) {
	ctx := AuthContext{Scopes: scopes(t, "clusters:write")}
	for _, team := range []string{"team-a", "team-b", ""} {
		require.False(t, CheckResourceAccess(ctx, CheckRequest{Resource: "clusters", Action: "write", OwningTeam: team}))
	}
}

func TestVerifyOrgBoundary(t *testing.T) {
	admin := AuthContext{Scopes: scopes(t, "admin:all"), OrgID: "org-1"}
	require.False(t, VerifyOrgBoundary(admin, "org-2"))

	member := AuthContext{OrgID: "org-1"}
	require.True(t, VerifyOrgBoundary(member, "org-2"))
	require.False(t, VerifyOrgBoundary(member, "org-1"))
}

func TestParseScope_RejectsEmptySegment(t *testing.T) {
	_, err := ParseScope("team::routes:read")
	require.Error(t, err)
}

func TestParseScope_Grammar(t *testing.T) {
	s, err := ParseScope("team:team-a:clusters:read")
	require.NoError(t, err)
	require.True(t, s.IsTeamScope)
	require.Equal(t, "team-a", s.Team)

	s, err = ParseScope("org:org-1:admin")
	require.NoError(t, err)
	require.True(t, s.IsOrgScope)

	s, err = ParseScope("clusters:write")
	require.NoError(t, err)
	require.True(t, s.IsGlobalScope)

	s, err = ParseScope("admin:all")
	require.NoError(t, err)
	require.True(t, s.AdminAll)

	s, err = ParseScope("api:execute")
	require.NoError(t, err)
	require.True(t, s.IsAPIExecute)
}

func TestExtractOrgScopes_MultipleDistinctOrgs(t *testing.T) {
	s := scopes(t, "org:org-1:admin", "org:org-2:member", "org:org-1:member")
	orgs := ExtractOrgScopes(s)
	require.ElementsMatch(t, []string{"org-1", "org-2"}, orgs)
}
