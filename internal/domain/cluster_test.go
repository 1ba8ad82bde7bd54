package domain

import (
	"testing"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/stretchr/testify/require"
)

func validClusterConfig() ClusterConfig {
	return ClusterConfig{
		Endpoints:             []Endpoint{{Host: "10.0.0.1", Port: 8080}},
		ConnectTimeoutSeconds: 5,
		LBPolicy:              LBRoundRobin,
		DNSLookupFamily:       DNSV4Only,
	}
}

func TestNewCluster_Valid(t *testing.T) {
	team := NewTeamID()
	c, err := NewCluster("my-cluster", "my-service", team, validClusterConfig(), SourceNative)
	require.NoError(t, err)
	require.Equal(t, "my-cluster", c.Name)
	require.Equal(t, team, c.Team)
}

func TestNewCluster_EmptyEndpoints(t *testing.T) {
	cfg := validClusterConfig()
	cfg.Endpoints = nil
	_, err := NewCluster("c1", "s1", NewTeamID(), cfg, SourceNative)
	require.Error(t, err)
	require.True(t, apierr.Is(err, apierr.KindValidation))
}

func TestNewCluster_TooManyEndpoints(t *testing.T) {
	cfg := validClusterConfig()
	eps := make([]Endpoint, 101)
	for i := range eps {
		eps[i] = Endpoint{Host: "10.0.0.1", Port: 80}
	}
	cfg.Endpoints = eps
	_, err := NewCluster("c1", "s1", NewTeamID(), cfg, SourceNative)
	require.Error(t, err)
}

func TestNewCluster_BadPort(t *testing.T) {
	for _, p := range []int{0, -1, 65536, 100000} {
		cfg := validClusterConfig()
		cfg.Endpoints[0].Port = p
		_, err := NewCluster("c1", "s1", NewTeamID(), cfg, SourceNative)
		require.Error(t, err, "port %d should be invalid", p)
	}
}

func TestNewCluster_BadLBPolicy(t *testing.T) {
	cfg := validClusterConfig()
	cfg.LBPolicy = "not-a-policy"
	_, err := NewCluster("c1", "s1", NewTeamID(), cfg, SourceNative)
	require.Error(t, err)
	e, ok := apierr.As(err)
	require.True(t, ok)
	require.NotEmpty(t, e.Allowed)
}

func TestNewCluster_HTTPHealthCheckRequiresPath(t *testing.T) {
	cfg := validClusterConfig()
	cfg.HealthCheck = &HealthCheck{Type: HealthCheckHTTP}
	_, err := NewCluster("c1", "s1", NewTeamID(), cfg, SourceNative)
	require.Error(t, err)
}

func TestNewCluster_TCPHealthCheckNoPathRequired(t *testing.T) {
	cfg := validClusterConfig()
	cfg.HealthCheck = &HealthCheck{Type: HealthCheckTCP}
	_, err := NewCluster("c1", "s1", NewTeamID(), cfg, SourceNative)
	require.NoError(t, err)
}

func TestValidateName(t *testing.T) {
	good := []string{"a", "a1", "my-cluster", "my_cluster", "a23456789012345678901234567890123456789012345678901234567890"}
	for _, n := range good {
		require.NoError(t, ValidateName("name", n), "expected %q to be valid", n)
	}
	bad := []string{"", "-abc", "ABC", "a b", "a.b", string(make([]byte, 64))}
	for _, n := range bad {
		require.Error(t, ValidateName("name", n), "expected %q to be invalid", n)
	}
}
