package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// ClampPagination treats 0 as "unspecified" and defaults it -- rejecting
// an explicit "limit=0" is the REST front-end's job (internal/rest's
// paginationFrom), done before a Pagination ever reaches this layer.
func TestClampPagination_DefaultsAndClamps(t *testing.T) {
	require.Equal(t, Pagination{Limit: defaultLimit, Offset: 0}, ClampPagination(0, 0))
	require.Equal(t, Pagination{Limit: maxLimit, Offset: 0}, ClampPagination(5000, 0))
	require.Equal(t, Pagination{Limit: 10, Offset: 20}, ClampPagination(10, 20))
	require.Equal(t, Pagination{Limit: defaultLimit, Offset: 0}, ClampPagination(-1, -5))
}

func TestAllowedTeams_AnyAllowsEverything(t *testing.T) {
	require.True(t, AnyTeam().Allows("any-team-id"))
}

func TestAllowedTeams_TeamSetAllowsOnlyListedTeams(t *testing.T) {
	ts := TeamSet("team-a", "team-b")
	require.True(t, ts.Allows("team-a"))
	require.False(t, ts.Allows("team-c"))
}
