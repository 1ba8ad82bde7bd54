package rest

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcp/flexcp/internal/repo"
)

func TestPaginationFrom_AbsentLimitDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/clusters", nil)
	page, err := paginationFrom(r)
	require.NoError(t, err)
	require.Equal(t, repo.ClampPagination(0, 0), page)
}

func TestPaginationFrom_ExplicitZeroLimitRejected(t *testing.T) {
	r := httptest.NewRequest("GET", "/clusters?limit=0", nil)
	_, err := paginationFrom(r)
	require.Error(t, err)
}

func TestPaginationFrom_NonNumericLimitRejected(t *testing.T) {
	r := httptest.NewRequest("GET", "/clusters?limit=abc", nil)
	_, err := paginationFrom(r)
	require.Error(t, err)
}

func TestPaginationFrom_ExplicitPositiveLimitHonored(t *testing.T) {
	r := httptest.NewRequest("GET", "/clusters?limit=10&offset=20", nil)
	page, err := paginationFrom(r)
	require.NoError(t, err)
	require.Equal(t, repo.Pagination{Limit: 10, Offset: 20}, page)
}
