// Package compiler turns stored domain resources into Envoy v3 xDS protobuf
// resources, the way the teacher's SnapshotManager turned DiscoveredService
// records into clusters/endpoints/routes/listeners.
package compiler

import (
	"fmt"
	"time"

	clusterv3 "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	endpointv3 "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	tlsv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/transport_sockets/tls/v3"
	"github.com/flexcp/flexcp/internal/domain"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var lbPolicyMap = map[domain.LBPolicy]clusterv3.Cluster_LbPolicy{
	domain.LBRoundRobin:   clusterv3.Cluster_ROUND_ROBIN,
	domain.LBLeastRequest: clusterv3.Cluster_LEAST_REQUEST,
	domain.LBRingHash:     clusterv3.Cluster_RING_HASH,
	domain.LBRandom:       clusterv3.Cluster_RANDOM,
	domain.LBMaglev:       clusterv3.Cluster_MAGLEV,
}

var dnsFamilyMap = map[domain.DNSLookupFamily]clusterv3.Cluster_DnsLookupFamily{
	domain.DNSAuto:   clusterv3.Cluster_AUTO,
	domain.DNSV4Only: clusterv3.Cluster_V4_ONLY,
	domain.DNSV6Only: clusterv3.Cluster_V6_ONLY,
	domain.DNSAll:    clusterv3.Cluster_ALL,
}

// Cluster compiles a domain.Cluster into its Envoy v3 cluster and
// ClusterLoadAssignment resources. Endpoints are handed to Envoy inline via
// STATIC discovery with an accompanying EDS-style ClusterLoadAssignment
// (spec 1: "it does not perform service discovery beyond what Envoy itself
// does from the clusters it is handed" -- endpoints come from the store,
// not from DNS or a catalog).
func Cluster(c domain.Cluster) (*clusterv3.Cluster, *endpointv3.ClusterLoadAssignment, error) {
	cla := &endpointv3.ClusterLoadAssignment{
		ClusterName: c.Name,
		Endpoints:   []*endpointv3.LocalityLbEndpoints{{LbEndpoints: lbEndpoints(c.Config.Endpoints)}},
	}

	connectTimeout := time.Duration(c.Config.ConnectTimeoutSeconds) * time.Second
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	out := &clusterv3.Cluster{
		Name:                 c.Name,
		ConnectTimeout:       durationpb.New(connectTimeout),
		ClusterDiscoveryType: &clusterv3.Cluster_Type{Type: clusterv3.Cluster_STATIC},
		LbPolicy:             lbPolicyOrDefault(c.Config.LBPolicy),
		LoadAssignment:       cla,
	}

	if c.Config.DNSLookupFamily != "" {
		out.DnsLookupFamily = dnsFamilyMap[c.Config.DNSLookupFamily]
	}

	if hc := c.Config.HealthCheck; hc != nil {
		envoyHC, err := healthCheck(hc)
		if err != nil {
			return nil, nil, err
		}
		out.HealthChecks = []*corev3.HealthCheck{envoyHC}
	}

	out.CircuitBreakers = circuitBreakers(c.Config.CircuitBreakerDefault, c.Config.CircuitBreakerHigh)

	if od := c.Config.OutlierDetection; od != nil && od.Enabled {
		out.OutlierDetection = &clusterv3.OutlierDetection{
			Consecutive_5Xx:                    wrapperspb.UInt32(uint32(od.ConsecutiveErrors)),
			Interval:                           durationpb.New(time.Duration(od.IntervalSeconds) * time.Second),
			BaseEjectionTime:                   durationpb.New(time.Duration(od.BaseEjectionSeconds) * time.Second),
			MaxEjectionPercent:                 wrapperspb.UInt32(uint32(od.MaxEjectionPercent)),
		}
	}

	if c.Config.TLSEnabled {
		upstreamTLS := &tlsv3.UpstreamTlsContext{
			CommonTlsContext: &tlsv3.CommonTlsContext{},
		}
		if c.Config.SNI != "" {
			upstreamTLS.Sni = c.Config.SNI
		}
		tlsAny, err := anypb.New(upstreamTLS)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal upstream tls context for cluster %s: %w", c.Name, err)
		}
		out.TransportSocket = &corev3.TransportSocket{
			Name:       "envoy.transport_sockets.tls",
			ConfigType: &corev3.TransportSocket_TypedConfig{TypedConfig: tlsAny},
		}
	}

	return out, cla, nil
}

func lbPolicyOrDefault(p domain.LBPolicy) clusterv3.Cluster_LbPolicy {
	if v, ok := lbPolicyMap[p]; ok {
		return v
	}
	return clusterv3.Cluster_ROUND_ROBIN
}

func lbEndpoints(eps []domain.Endpoint) []*endpointv3.LbEndpoint {
	out := make([]*endpointv3.LbEndpoint, 0, len(eps))
	for _, ep := range eps {
		out = append(out, &endpointv3.LbEndpoint{
			HostIdentifier: &endpointv3.LbEndpoint_Endpoint{
				Endpoint: &endpointv3.Endpoint{
					Address: &corev3.Address{
						Address: &corev3.Address_SocketAddress{
							SocketAddress: &corev3.SocketAddress{
								Address:       ep.Host,
								PortSpecifier: &corev3.SocketAddress_PortValue{PortValue: uint32(ep.Port)},
							},
						},
					},
				},
			},
		})
	}
	return out
}

func healthCheck(hc *domain.HealthCheck) (*corev3.HealthCheck, error) {
	out := &corev3.HealthCheck{
		Interval:           durationpb.New(time.Duration(hc.IntervalSeconds) * time.Second),
		Timeout:            durationpb.New(time.Duration(hc.TimeoutSeconds) * time.Second),
		HealthyThreshold:   wrapperspb.UInt32(uint32(hc.HealthyThreshold)),
		UnhealthyThreshold: wrapperspb.UInt32(uint32(hc.UnhealthyThreshold)),
	}
	switch hc.Type {
	case domain.HealthCheckHTTP:
		out.HealthChecker = &corev3.HealthCheck_HttpHealthCheck_{
			HttpHealthCheck: &corev3.HealthCheck_HttpHealthCheck{Path: hc.Path},
		}
	case domain.HealthCheckTCP:
		out.HealthChecker = &corev3.HealthCheck_TcpHealthCheck_{
			TcpHealthCheck: &corev3.HealthCheck_TcpHealthCheck{},
		}
	default:
		return nil, fmt.Errorf("unsupported health check type %q", hc.Type)
	}
	return out, nil
}

func circuitBreakers(def domain.CircuitBreakerThresholds, high *domain.CircuitBreakerThresholds) *clusterv3.CircuitBreakers {
	thresholds := []*clusterv3.CircuitBreakers_Thresholds{thresholdFor(corev3.RoutingPriority_DEFAULT, def)}
	if high != nil {
		thresholds = append(thresholds, thresholdFor(corev3.RoutingPriority_HIGH, *high))
	}
	return &clusterv3.CircuitBreakers{Thresholds: thresholds}
}

func thresholdFor(priority corev3.RoutingPriority, t domain.CircuitBreakerThresholds) *clusterv3.CircuitBreakers_Thresholds {
	out := &clusterv3.CircuitBreakers_Thresholds{Priority: priority}
	if t.MaxConnections > 0 {
		out.MaxConnections = wrapperspb.UInt32(uint32(t.MaxConnections))
	}
	if t.MaxPendingRequests > 0 {
		out.MaxPendingRequests = wrapperspb.UInt32(uint32(t.MaxPendingRequests))
	}
	if t.MaxRequests > 0 {
		out.MaxRequests = wrapperspb.UInt32(uint32(t.MaxRequests))
	}
	if t.MaxRetries > 0 {
		out.MaxRetries = wrapperspb.UInt32(uint32(t.MaxRetries))
	}
	return out
}
