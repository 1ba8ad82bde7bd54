package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRouteConfig_Valid(t *testing.T) {
	team := NewTeamID()
	rc, err := NewRouteConfig("rc1", team, "c1", nil, true)
	require.NoError(t, err)
	require.Equal(t, "rc1", rc.Name)
	require.Equal(t, "c1", rc.DefaultCluster)
}

func TestNewRouteConfig_NoDefaultClusterIsValid(t *testing.T) {
	rc, err := NewRouteConfig("rc1", NewTeamID(), "", nil, false)
	require.NoError(t, err)
	require.Empty(t, rc.DefaultCluster)
}

func TestNewRouteConfig_DefaultClusterMustExist(t *testing.T) {
	_, err := NewRouteConfig("rc1", NewTeamID(), "missing-cluster", nil, false)
	require.Error(t, err)
}

func TestNewVirtualHost_Valid(t *testing.T) {
	vh, err := NewVirtualHost(NewRouteConfigID(), "vh1", []string{"example.com"}, 0)
	require.NoError(t, err)
	require.Equal(t, "vh1", vh.Name)
}

func TestNewVirtualHost_WildcardAlone(t *testing.T) {
	_, err := NewVirtualHost(NewRouteConfigID(), "vh1", []string{"*"}, 0)
	require.NoError(t, err)
}

func TestNewVirtualHost_WildcardMixedWithOthersFails(t *testing.T) {
	_, err := NewVirtualHost(NewRouteConfigID(), "vh1", []string{"*", "example.com"}, 0)
	require.Error(t, err)
}

func TestNewVirtualHost_EmptyDomainsFails(t *testing.T) {
	_, err := NewVirtualHost(NewRouteConfigID(), "vh1", nil, 0)
	require.Error(t, err)
}

func TestNewVirtualHost_BlankDomainFails(t *testing.T) {
	_, err := NewVirtualHost(NewRouteConfigID(), "vh1", []string{"example.com", ""}, 0)
	require.Error(t, err)
}
