package compiler

import (
	"fmt"

	corev3 "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	listenerv3 "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	hcmv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	tlsv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/transport_sockets/tls/v3"
	"github.com/envoyproxy/go-control-plane/pkg/wellknown"
	"github.com/flexcp/flexcp/internal/domain"
	"google.golang.org/protobuf/types/known/anypb"
)

// FilterLookup resolves a Filter by name within the Team that owns a
// Listener; the compiler is a pure function of the resources it is handed,
// so the caller (snapshot builder) supplies this rather than the compiler
// reaching back into the repository itself.
type FilterLookup func(name string) (domain.Filter, bool)

// Listener compiles a domain.Listener into its Envoy v3 Listener resource.
// Each FilterChain's HCM gets an RDS pointer when RouteConfigName is set, and
// an ordered HTTP filter chain built from the Team's attached Filters,
// always terminated by the router filter (spec 3.4).
func Listener(l domain.Listener, lookupFilter FilterLookup) (*listenerv3.Listener, error) {
	out := &listenerv3.Listener{
		Name: l.Name,
		Address: &corev3.Address{
			Address: &corev3.Address_SocketAddress{
				SocketAddress: &corev3.SocketAddress{
					Address:       l.Address,
					PortSpecifier: &corev3.SocketAddress_PortValue{PortValue: uint32(l.Port)},
				},
			},
		},
	}

	for _, fc := range l.Config.FilterChains {
		compiled, err := filterChain(fc, lookupFilter)
		if err != nil {
			return nil, fmt.Errorf("listener %s: %w", l.Name, err)
		}
		out.FilterChains = append(out.FilterChains, compiled)
	}
	return out, nil
}

func filterChain(fc domain.FilterChain, lookupFilter FilterLookup) (*listenerv3.FilterChain, error) {
	out := &listenerv3.FilterChain{Name: fc.Name}

	switch {
	case fc.HCM != nil:
		hcmFilter, err := httpConnectionManager(fc.HCM, lookupFilter)
		if err != nil {
			return nil, err
		}
		out.Filters = []*listenerv3.Filter{hcmFilter}
		if fc.HCM.TLS != nil && fc.HCM.TLS.Enabled {
			ts, err := downstreamTLS(fc.HCM.TLS)
			if err != nil {
				return nil, err
			}
			out.TransportSocket = ts
		}
	default:
		return nil, fmt.Errorf("filter chain %s: tcp (non-HTTP) filter chains are not yet compiled", fc.Name)
	}
	return out, nil
}

func httpConnectionManager(hcm *domain.HTTPConnectionManager, lookupFilter FilterLookup) (*listenerv3.Filter, error) {
	cfg := &hcmv3.HttpConnectionManager{
		StatPrefix: "ingress_http",
		CodecType:  hcmv3.HttpConnectionManager_AUTO,
	}

	if hcm.RouteConfigName != "" {
		cfg.RouteSpecifier = &hcmv3.HttpConnectionManager_Rds{
			Rds: &hcmv3.Rds{
				ConfigSource: &corev3.ConfigSource{
					ResourceApiVersion: corev3.ApiVersion_V3,
					ConfigSourceSpecifier: &corev3.ConfigSource_Ads{
						Ads: &corev3.AggregatedConfigSource{},
					},
				},
				RouteConfigName: hcm.RouteConfigName,
			},
		}
	}

	for _, entry := range orderedHTTPFilters(hcm.HTTPFilters) {
		f, ok := lookupFilter(entry.FilterName)
		if !ok {
			return nil, fmt.Errorf("http filter %q not found", entry.FilterName)
		}
		compiled, err := HTTPFilter(f)
		if err != nil {
			return nil, err
		}
		cfg.HttpFilters = append(cfg.HttpFilters, compiled)
	}
	router, err := Router()
	if err != nil {
		return nil, err
	}
	cfg.HttpFilters = append(cfg.HttpFilters, router)

	any, err := anypb.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling http connection manager: %w", err)
	}
	return &listenerv3.Filter{
		Name:       wellknown.HTTPConnectionManager,
		ConfigType: &listenerv3.Filter_TypedConfig{TypedConfig: any},
	}, nil
}

func orderedHTTPFilters(entries []domain.HTTPFilterEntry) []domain.HTTPFilterEntry {
	out := make([]domain.HTTPFilterEntry, len(entries))
	copy(out, entries)
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j-1].Order > out[j].Order {
			out[j-1], out[j] = out[j], out[j-1]
			j--
		}
	}
	return out
}

func downstreamTLS(tls *domain.TLSContext) (*corev3.TransportSocket, error) {
	cfg := &tlsv3.DownstreamTlsContext{
		CommonTlsContext: &tlsv3.CommonTlsContext{
			TlsCertificates: []*tlsv3.TlsCertificate{{
				CertificateChain: &corev3.DataSource{Specifier: &corev3.DataSource_Filename{Filename: tls.CertChainPath}},
				PrivateKey:       &corev3.DataSource{Specifier: &corev3.DataSource_Filename{Filename: tls.PrivateKeyPath}},
			}},
		},
		RequireClientCertificate: boolOrNil(tls.RequireClientCert),
	}
	any, err := anypb.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling downstream tls context: %w", err)
	}
	return &corev3.TransportSocket{
		Name:       "envoy.transport_sockets.tls",
		ConfigType: &corev3.TransportSocket_TypedConfig{TypedConfig: any},
	}, nil
}
