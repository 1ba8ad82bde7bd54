package compiler

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	routev3 "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	matcherv3 "github.com/envoyproxy/go-control-plane/envoy/type/matcher/v3"
	"github.com/flexcp/flexcp/internal/domain"
	"google.golang.org/protobuf/types/known/durationpb"
)

// RouteConfig compiles a RouteConfig plus its VirtualHosts/Routes into an
// Envoy v3 RouteConfiguration. Ordering within a VirtualHost's routes, and
// across the VirtualHosts list itself, is stable-sorted by RuleOrder with id
// as the tiebreaker before this function ever sees them (spec 9 Open
// Question resolution: "rule_order ties broken by id") -- the repository's
// ORDER BY rule_order, id clause is what establishes that order.
func RouteConfig(rc domain.RouteConfig, vhosts []VirtualHostInput) (*routev3.RouteConfiguration, error) {
	out := &routev3.RouteConfiguration{Name: rc.Name}
	for _, vhi := range vhosts {
		vh, err := virtualHost(vhi)
		if err != nil {
			return nil, fmt.Errorf("route config %s: %w", rc.Name, err)
		}
		out.VirtualHosts = append(out.VirtualHosts, vh)
	}
	return out, nil
}

// VirtualHostInput mirrors repo.VirtualHostInput without importing the repo
// package into the compiler, keeping the compiler a pure function of
// domain types.
type VirtualHostInput struct {
	VH     domain.VirtualHost
	Routes []domain.Route
}

func virtualHost(vhi VirtualHostInput) (*routev3.VirtualHost, error) {
	out := &routev3.VirtualHost{
		Name:    vhi.VH.Name,
		Domains: vhi.VH.Domains,
	}
	for _, rt := range vhi.Routes {
		compiled, err := compileRoute(rt)
		if err != nil {
			return nil, err
		}
		out.Routes = append(out.Routes, compiled)
	}
	return out, nil
}

func compileRoute(rt domain.Route) (*routev3.Route, error) {
	match, err := routeMatch(rt.Match)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", rt.Name, err)
	}
	match.Headers = headerMatchers(rt.Headers)
	match.QueryParameters = queryMatchers(rt.QueryParams)

	out := &routev3.Route{Name: rt.Name, Match: match}
	switch rt.Action.Kind {
	case domain.ActionForward:
		out.Action = &routev3.Route_Route{Route: forwardAction(rt.Action)}
	case domain.ActionWeightedCluster:
		out.Action = &routev3.Route_Route{Route: weightedClusterAction(rt.Action)}
	default:
		return nil, fmt.Errorf("route %s: unsupported action kind %q", rt.Name, rt.Action.Kind)
	}
	return out, nil
}

func routeMatch(pm domain.PathMatch) (*routev3.RouteMatch, error) {
	switch pm.Kind {
	case domain.PathPrefix:
		return &routev3.RouteMatch{PathSpecifier: &routev3.RouteMatch_Prefix{Prefix: pm.Pattern}}, nil
	case domain.PathExact:
		return &routev3.RouteMatch{PathSpecifier: &routev3.RouteMatch_Path{Path: pm.Pattern}}, nil
	case domain.PathRegex:
		return &routev3.RouteMatch{PathSpecifier: &routev3.RouteMatch_SafeRegex{
			SafeRegex: &matcherv3.RegexMatcher{Regex: pm.Pattern},
		}}, nil
	case domain.PathTemplate:
		regex, err := templateToRegex(pm.Pattern)
		if err != nil {
			return nil, err
		}
		return &routev3.RouteMatch{PathSpecifier: &routev3.RouteMatch_SafeRegex{
			SafeRegex: &matcherv3.RegexMatcher{Regex: regex},
		}}, nil
	default:
		return nil, fmt.Errorf("unsupported path match kind %q", pm.Kind)
	}
}

// templateParamRE mirrors domain.templateParamRE; duplicated rather than
// exported since the compiler only needs the substitution, not the capture
// bookkeeping domain.NewPathMatch already did at write time.
var templateParamRE = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// templateToRegex rewrites a path template like "/users/{id}/posts/{postId}"
// into the safe_regex Envoy matches against: each {name} segment becomes a
// single-segment capture group ([^/]+), and the whole expression is
// anchored so "/users/1/posts/2/extra" does not match.
func templateToRegex(pattern string) (string, error) {
	var b strings.Builder
	b.WriteString("^")
	last := 0
	for _, loc := range templateParamRE.FindAllStringIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:loc[0]]))
		b.WriteString("([^/]+)")
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))
	b.WriteString("$")
	out := b.String()
	if _, err := regexp.Compile(out); err != nil {
		return "", fmt.Errorf("compiling template %q to regex: %w", pattern, err)
	}
	return out, nil
}

func headerMatchers(hs []domain.HeaderMatcher) []*routev3.HeaderMatcher {
	if len(hs) == 0 {
		return nil
	}
	out := make([]*routev3.HeaderMatcher, 0, len(hs))
	for _, h := range hs {
		m := &routev3.HeaderMatcher{Name: h.Name}
		if h.Present {
			m.HeaderMatchSpecifier = &routev3.HeaderMatcher_PresentMatch{PresentMatch: true}
		} else {
			m.HeaderMatchSpecifier = &routev3.HeaderMatcher_StringMatch{
				StringMatch: &matcherv3.StringMatcher{
					MatchPattern: &matcherv3.StringMatcher_Exact{Exact: h.Exact},
				},
			}
		}
		out = append(out, m)
	}
	return out
}

func queryMatchers(qs []domain.QueryParamMatcher) []*routev3.QueryParameterMatcher {
	if len(qs) == 0 {
		return nil
	}
	out := make([]*routev3.QueryParameterMatcher, 0, len(qs))
	for _, q := range qs {
		m := &routev3.QueryParameterMatcher{Name: q.Name}
		if q.Present {
			m.QueryParameterMatchSpecifier = &routev3.QueryParameterMatcher_PresentMatch{PresentMatch: true}
		} else {
			m.QueryParameterMatchSpecifier = &routev3.QueryParameterMatcher_StringMatch{
				StringMatch: &matcherv3.StringMatcher{
					MatchPattern: &matcherv3.StringMatcher_Exact{Exact: q.Exact},
				},
			}
		}
		out = append(out, m)
	}
	return out
}

func forwardAction(a domain.RouteAction) *routev3.RouteAction {
	out := &routev3.RouteAction{
		ClusterSpecifier: &routev3.RouteAction_Cluster{Cluster: a.ClusterName},
	}
	if a.TimeoutSeconds > 0 {
		out.Timeout = durationpb.New(time.Duration(a.TimeoutSeconds) * time.Second)
	}
	if a.PrefixRewrite != "" {
		out.PrefixRewrite = a.PrefixRewrite
	}
	if a.Retry != nil {
		out.RetryPolicy = &routev3.RetryPolicy{
			RetryOn:    a.Retry.RetryOn,
			NumRetries: wrapperOrNil(a.Retry.NumRetries),
		}
		if a.Retry.PerTryTimeoutSeconds > 0 {
			out.RetryPolicy.PerTryTimeout = durationpb.New(time.Duration(a.Retry.PerTryTimeoutSeconds) * time.Second)
		}
	}
	return out
}

func weightedClusterAction(a domain.RouteAction) *routev3.RouteAction {
	clusters := make([]domain.WeightedCluster, len(a.WeightedClusters))
	copy(clusters, a.WeightedClusters)
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ClusterName < clusters[j].ClusterName })

	var total int
	wcs := make([]*routev3.WeightedCluster_ClusterWeight, 0, len(clusters))
	for _, c := range clusters {
		total += c.Weight
		wcs = append(wcs, &routev3.WeightedCluster_ClusterWeight{
			Name:   c.ClusterName,
			Weight: wrapperOrNil(c.Weight),
		})
	}
	return &routev3.RouteAction{
		ClusterSpecifier: &routev3.RouteAction_WeightedClusters{
			WeightedClusters: &routev3.WeightedCluster{
				Clusters:    wcs,
				TotalWeight: wrapperOrNil(total),
			},
		},
	}
}
