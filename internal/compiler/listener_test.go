package compiler

import (
	"encoding/json"
	"testing"

	hcmv3 "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	"github.com/envoyproxy/go-control-plane/pkg/wellknown"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"

	"github.com/flexcp/flexcp/internal/domain"
)

func TestListener_OrdersHTTPFiltersAndAppendsRouter(t *testing.T) {
	filters := map[string]domain.Filter{
		"cors": {Name: "cors", Type: domain.FilterCORS, Config: json.RawMessage(`{}`)},
		"rbac": {Name: "rbac", Type: domain.FilterRBAC, Config: json.RawMessage(`{"policies":{}}`)},
	}
	lookup := func(name string) (domain.Filter, bool) {
		f, ok := filters[name]
		return f, ok
	}

	l := domain.Listener{
		Name:    "l1",
		Address: "0.0.0.0",
		Port:    10000,
		Config: domain.ListenerConfig{
			FilterChains: []domain.FilterChain{{
				Name: "default",
				HCM: &domain.HTTPConnectionManager{
					RouteConfigName: "rc1",
					HTTPFilters: []domain.HTTPFilterEntry{
						{FilterName: "rbac", Order: 20},
						{FilterName: "cors", Order: 10},
					},
				},
			}},
		},
	}

	out, err := Listener(l, lookup)
	require.NoError(t, err)
	require.Len(t, out.FilterChains, 1)

	hcmFilter := out.FilterChains[0].Filters[0]
	require.Equal(t, wellknown.HTTPConnectionManager, hcmFilter.Name)

	var cfg hcmv3.HttpConnectionManager
	require.NoError(t, proto.Unmarshal(hcmFilter.GetTypedConfig().GetValue(), &cfg))
	require.Len(t, cfg.HttpFilters, 3)
	require.Equal(t, wellknown.CORS, cfg.HttpFilters[0].Name)
	require.Equal(t, wellknown.HTTPRoleBasedAccessControl, cfg.HttpFilters[1].Name)
	require.Equal(t, wellknown.Router, cfg.HttpFilters[2].Name)
}

func TestListener_SwappedOrderReversesChain(t *testing.T) {
	filters := map[string]domain.Filter{
		"cors": {Name: "cors", Type: domain.FilterCORS, Config: json.RawMessage(`{}`)},
		"rbac": {Name: "rbac", Type: domain.FilterRBAC, Config: json.RawMessage(`{"policies":{}}`)},
	}
	lookup := func(name string) (domain.Filter, bool) {
		f, ok := filters[name]
		return f, ok
	}
	build := func(corsOrder, rbacOrder int) *hcmv3.HttpConnectionManager {
		l := domain.Listener{
			Name:    "l1",
			Address: "0.0.0.0",
			Port:    10000,
			Config: domain.ListenerConfig{
				FilterChains: []domain.FilterChain{{
					Name: "default",
					HCM: &domain.HTTPConnectionManager{
						HTTPFilters: []domain.HTTPFilterEntry{
							{FilterName: "cors", Order: corsOrder},
							{FilterName: "rbac", Order: rbacOrder},
						},
					},
				}},
			},
		}
		out, err := Listener(l, lookup)
		require.NoError(t, err)
		var cfg hcmv3.HttpConnectionManager
		require.NoError(t, proto.Unmarshal(out.FilterChains[0].Filters[0].GetTypedConfig().GetValue(), &cfg))
		return &cfg
	}

	first := build(10, 20)
	require.Equal(t, wellknown.CORS, first.HttpFilters[0].Name)
	require.Equal(t, wellknown.HTTPRoleBasedAccessControl, first.HttpFilters[1].Name)

	swapped := build(20, 10)
	require.Equal(t, wellknown.HTTPRoleBasedAccessControl, swapped.HttpFilters[0].Name)
	require.Equal(t, wellknown.CORS, swapped.HttpFilters[1].Name)
}

func TestListener_UnknownFilterErrors(t *testing.T) {
	lookup := func(string) (domain.Filter, bool) { return domain.Filter{}, false }
	l := domain.Listener{
		Name:    "l1",
		Address: "0.0.0.0",
		Port:    10000,
		Config: domain.ListenerConfig{
			FilterChains: []domain.FilterChain{{
				Name: "default",
				HCM: &domain.HTTPConnectionManager{
					HTTPFilters: []domain.HTTPFilterEntry{{FilterName: "missing", Order: 1}},
				},
			}},
		},
	}
	_, err := Listener(l, lookup)
	require.Error(t, err)
}

func TestListener_TCPOnlyFilterChainUnsupported(t *testing.T) {
	lookup := func(string) (domain.Filter, bool) { return domain.Filter{}, false }
	l := domain.Listener{
		Name:    "l1",
		Address: "0.0.0.0",
		Port:    10000,
		Config:  domain.ListenerConfig{FilterChains: []domain.FilterChain{{Name: "tcp-only"}}},
	}
	_, err := Listener(l, lookup)
	require.Error(t, err)
}
