package repo

import (
	"testing"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMapWriteError_UniqueViolation(t *testing.T) {
	err := mapWriteError(&pgconn.PgError{Code: sqlStateUniqueViolation, ConstraintName: "clusters_name_key"}, "create", "clusters", nil)
	require.True(t, apierr.Is(err, apierr.KindAlreadyExists))
}

func TestMapWriteError_ForeignKeyViolation_NoBlockers(t *testing.T) {
	err := mapWriteError(&pgconn.PgError{Code: sqlStateForeignKeyViolation, ConstraintName: "route_configs_cluster_name_fkey"}, "create", "route_configs", nil)
	require.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestMapWriteError_ForeignKeyViolation_WithBlockers(t *testing.T) {
	err := mapWriteError(&pgconn.PgError{Code: sqlStateForeignKeyViolation}, "delete", "clusters", []string{"rc1"})
	require.True(t, apierr.Is(err, apierr.KindConflict))
	e, _ := apierr.As(err)
	require.Equal(t, []string{"rc1"}, e.Blocked)
}

func TestMapWriteError_Nil(t *testing.T) {
	require.NoError(t, mapWriteError(nil, "create", "clusters", nil))
}

func TestClampPagination(t *testing.T) {
	cases := []struct {
		limit, offset   int
		wantL, wantO    int
	}{
		{0, 0, defaultLimit, 0},
		{-5, -5, defaultLimit, 0},
		{2000, 10, maxLimit, 10},
		{25, 10, 25, 10},
	}
	for _, c := range cases {
		p := ClampPagination(c.limit, c.offset)
		require.Equal(t, c.wantL, p.Limit)
		require.Equal(t, c.wantO, p.Offset)
	}
}

func TestAllowedTeams(t *testing.T) {
	any := AnyTeam()
	require.True(t, any.Allows("team-a"))

	set := TeamSet("team-a", "team-b")
	require.True(t, set.Allows("team-a"))
	require.False(t, set.Allows("team-c"))
}
