package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexcp/flexcp/internal/domain"
)

func TestRouteConfig_PrefixAndExactMatches(t *testing.T) {
	rc := domain.RouteConfig{Name: "rc1"}
	vhosts := []VirtualHostInput{{
		VH: domain.VirtualHost{Name: "vh1", Domains: []string{"example.com"}},
		Routes: []domain.Route{
			{Name: "r1", Match: domain.PathMatch{Kind: domain.PathPrefix, Pattern: "/api"}, Action: domain.RouteAction{Kind: domain.ActionForward, ClusterName: "c1"}},
			{Name: "r2", Match: domain.PathMatch{Kind: domain.PathExact, Pattern: "/health"}, Action: domain.RouteAction{Kind: domain.ActionForward, ClusterName: "c1"}},
		},
	}}

	out, err := RouteConfig(rc, vhosts)
	require.NoError(t, err)
	require.Len(t, out.VirtualHosts, 1)
	require.Len(t, out.VirtualHosts[0].Routes, 2)
	require.Equal(t, "/api", out.VirtualHosts[0].Routes[0].Match.GetPrefix())
	require.Equal(t, "/health", out.VirtualHosts[0].Routes[1].Match.GetPath())
}

func TestRouteConfig_TemplateCompilesToAnchoredRegex(t *testing.T) {
	rc := domain.RouteConfig{Name: "rc1"}
	vhosts := []VirtualHostInput{{
		VH: domain.VirtualHost{Name: "vh1", Domains: []string{"*"}},
		Routes: []domain.Route{
			{Name: "r1", Match: domain.PathMatch{Kind: domain.PathTemplate, Pattern: "/users/{id}/orders/{orderId}"},
				Action: domain.RouteAction{Kind: domain.ActionForward, ClusterName: "c1"}},
		},
	}}

	out, err := RouteConfig(rc, vhosts)
	require.NoError(t, err)
	regex := out.VirtualHosts[0].Routes[0].Match.GetSafeRegex().GetRegex()
	require.Equal(t, `^/users/([^/]+)/orders/([^/]+)$`, regex)
}

func TestRouteConfig_WeightedClustersSortedByName(t *testing.T) {
	rc := domain.RouteConfig{Name: "rc1"}
	vhosts := []VirtualHostInput{{
		VH: domain.VirtualHost{Name: "vh1", Domains: []string{"*"}},
		Routes: []domain.Route{
			{Name: "r1", Match: domain.PathMatch{Kind: domain.PathPrefix, Pattern: "/"},
				Action: domain.RouteAction{
					Kind: domain.ActionWeightedCluster,
					WeightedClusters: []domain.WeightedCluster{
						{ClusterName: "zeta", Weight: 1},
						{ClusterName: "alpha", Weight: 2},
					},
				}},
		},
	}}

	out, err := RouteConfig(rc, vhosts)
	require.NoError(t, err)
	wc := out.VirtualHosts[0].Routes[0].GetRoute().GetWeightedClusters()
	require.Equal(t, "alpha", wc.Clusters[0].Name)
	require.Equal(t, "zeta", wc.Clusters[1].Name)
	require.Equal(t, uint32(3), wc.TotalWeight.GetValue())
}

func TestRouteConfig_HeaderAndQueryMatchers(t *testing.T) {
	rc := domain.RouteConfig{Name: "rc1"}
	vhosts := []VirtualHostInput{{
		VH: domain.VirtualHost{Name: "vh1", Domains: []string{"*"}},
		Routes: []domain.Route{
			{Name: "r1", Match: domain.PathMatch{Kind: domain.PathPrefix, Pattern: "/"},
				Headers:     []domain.HeaderMatcher{{Name: "x-env", Exact: "prod"}},
				QueryParams: []domain.QueryParamMatcher{{Name: "debug", Present: true}},
				Action:      domain.RouteAction{Kind: domain.ActionForward, ClusterName: "c1"}},
		},
	}}

	out, err := RouteConfig(rc, vhosts)
	require.NoError(t, err)
	r := out.VirtualHosts[0].Routes[0]
	require.Len(t, r.Match.Headers, 1)
	require.Equal(t, "prod", r.Match.Headers[0].GetStringMatch().GetExact())
	require.Len(t, r.Match.QueryParameters, 1)
	require.True(t, r.Match.QueryParameters[0].GetPresentMatch())
}

func TestRouteConfig_UnsupportedActionErrors(t *testing.T) {
	rc := domain.RouteConfig{Name: "rc1"}
	vhosts := []VirtualHostInput{{
		VH: domain.VirtualHost{Name: "vh1", Domains: []string{"*"}},
		Routes: []domain.Route{
			{Name: "r1", Match: domain.PathMatch{Kind: domain.PathPrefix, Pattern: "/"}, Action: domain.RouteAction{Kind: "redirect"}},
		},
	}}

	_, err := RouteConfig(rc, vhosts)
	require.Error(t, err)
}
