package compiler

import (
	"testing"

	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	"github.com/stretchr/testify/require"

	"github.com/flexcp/flexcp/internal/domain"
)

func TestCluster_StaticEndpointsAndDefaults(t *testing.T) {
	c := domain.Cluster{
		Name:        "payments",
		ServiceName: "payments-svc",
		Config: domain.ClusterConfig{
			Endpoints: []domain.Endpoint{{Host: "10.0.0.1", Port: 8080}, {Host: "10.0.0.2", Port: 8080}},
		},
	}

	out, cla, err := Cluster(c)
	require.NoError(t, err)
	require.Equal(t, "payments", out.Name)
	require.Equal(t, clusterv3.Cluster_STATIC, out.GetClusterDiscoveryType().(*clusterv3.Cluster_Type).Type)
	require.Equal(t, clusterv3.Cluster_ROUND_ROBIN, out.LbPolicy)
	require.Equal(t, float64(5), out.ConnectTimeout.AsDuration().Seconds())
	require.Len(t, cla.Endpoints[0].LbEndpoints, 2)
	require.Nil(t, out.TransportSocket)
}

func TestCluster_TLSEnabledSetsTransportSocket(t *testing.T) {
	c := domain.Cluster{
		Name: "secure-svc",
		Config: domain.ClusterConfig{
			Endpoints:  []domain.Endpoint{{Host: "10.0.0.1", Port: 443}},
			TLSEnabled: true,
			SNI:        "secure.internal",
		},
	}

	out, _, err := Cluster(c)
	require.NoError(t, err)
	require.NotNil(t, out.TransportSocket)
	require.Equal(t, "envoy.transport_sockets.tls", out.TransportSocket.Name)
}

func TestCluster_HealthCheckUnsupportedTypeErrors(t *testing.T) {
	c := domain.Cluster{
		Name: "bad-hc",
		Config: domain.ClusterConfig{
			Endpoints:   []domain.Endpoint{{Host: "10.0.0.1", Port: 80}},
			HealthCheck: &domain.HealthCheck{Type: "bogus"},
		},
	}

	_, _, err := Cluster(c)
	require.Error(t, err)
}

func TestCluster_CircuitBreakerHighPriorityAdded(t *testing.T) {
	c := domain.Cluster{
		Name: "tiered",
		Config: domain.ClusterConfig{
			Endpoints:             []domain.Endpoint{{Host: "10.0.0.1", Port: 80}},
			CircuitBreakerDefault: domain.CircuitBreakerThresholds{MaxConnections: 100},
			CircuitBreakerHigh:    &domain.CircuitBreakerThresholds{MaxConnections: 500},
		},
	}

	out, _, err := Cluster(c)
	require.NoError(t, err)
	require.Len(t, out.CircuitBreakers.Thresholds, 2)
}
