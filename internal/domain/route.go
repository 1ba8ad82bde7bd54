package domain

import (
	"regexp"
	"strings"

	"github.com/flexcp/flexcp/internal/apierr"
)

// HeaderMatcher matches a request header by exact value or presence.
type HeaderMatcher struct {
	Name    string
	Exact   string
	Present bool
}

// QueryParamMatcher matches a query parameter by exact value or presence.
type QueryParamMatcher struct {
	Name    string
	Exact   string
	Present bool
}

// PathMatch is the tagged-variant path match for a Route.
type PathMatch struct {
	Kind    PathMatchKind
	Pattern string
	// Params holds, in order, the {name} captures for Kind == PathTemplate.
	Params []string
}

var templateParamRE = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

func NewPathMatch(kind PathMatchKind, pattern string) (PathMatch, error) {
	if !kind.Valid() {
		return PathMatch{}, apierr.ValidationEnum("path_match.kind", "unknown path match kind", AllowedPathMatchKinds())
	}
	if pattern == "" {
		return PathMatch{}, apierr.Validation("path_match.pattern", "must not be empty")
	}
	pm := PathMatch{Kind: kind, Pattern: pattern}
	switch kind {
	case PathPrefix, PathExact:
		if !strings.HasPrefix(pattern, "/") {
			return PathMatch{}, apierr.Validation("path_match.pattern", "must start with '/'")
		}
	case PathRegex:
		if _, err := regexp.Compile(pattern); err != nil {
			return PathMatch{}, apierr.Validation("path_match.pattern", "not a valid regular expression: "+err.Error())
		}
	case PathTemplate:
		if !strings.HasPrefix(pattern, "/") {
			return PathMatch{}, apierr.Validation("path_match.pattern", "must start with '/'")
		}
		for _, m := range templateParamRE.FindAllStringSubmatch(pattern, -1) {
			pm.Params = append(pm.Params, m[1])
		}
	}
	return pm, nil
}

// WeightedCluster is one entry of a weighted_clusters RouteAction.
type WeightedCluster struct {
	ClusterName string
	Weight      int
}

// RetryPolicy configures Envoy's per-route retry behavior.
type RetryPolicy struct {
	RetryOn       string
	NumRetries    int
	PerTryTimeoutSeconds int
}

// RouteAction is the tagged-variant action a Route performs when matched.
type RouteAction struct {
	Kind RouteActionKind

	// ActionForward
	ClusterName     string
	TimeoutSeconds  int
	PrefixRewrite   string
	Retry           *RetryPolicy

	// ActionWeightedCluster
	WeightedClusters []WeightedCluster

	// ActionRedirect is out of scope for the core (spec 3.2); the kind is
	// representable so a stored RouteAction round-trips, but the compiler
	// treats it as unsupported today.
}

func NewForwardAction(clusterName string, timeoutSeconds int, prefixRewrite string, retry *RetryPolicy, clusterExists bool) (RouteAction, error) {
	if err := ValidateName("action.cluster_name", clusterName); err != nil {
		return RouteAction{}, err
	}
	if !clusterExists {
		return RouteAction{}, apierr.Validation("action.cluster_name", "referenced cluster does not exist")
	}
	return RouteAction{
		Kind:           ActionForward,
		ClusterName:    clusterName,
		TimeoutSeconds: timeoutSeconds,
		PrefixRewrite:  prefixRewrite,
		Retry:          retry,
	}, nil
}

func NewWeightedClusterAction(clusters []WeightedCluster, existsFn func(name string) bool) (RouteAction, error) {
	if len(clusters) == 0 {
		return RouteAction{}, apierr.Validation("action.weighted_clusters", "must contain at least one cluster")
	}
	sum := 0
	for _, wc := range clusters {
		if wc.Weight <= 0 {
			return RouteAction{}, apierr.Validation("action.weighted_clusters", "weights must be positive integers")
		}
		if existsFn != nil && !existsFn(wc.ClusterName) {
			return RouteAction{}, apierr.Validation("action.weighted_clusters", "referenced cluster does not exist: "+wc.ClusterName)
		}
		sum += wc.Weight
	}
	if sum <= 0 {
		return RouteAction{}, apierr.Validation("action.weighted_clusters", "weights must sum to a positive integer")
	}
	return RouteAction{Kind: ActionWeightedCluster, WeightedClusters: clusters}, nil
}

// Route is a match/action rule inside a VirtualHost.
type Route struct {
	ID              RouteID
	VirtualHostID   VirtualHostID
	Name            string
	Match           PathMatch
	Headers         []HeaderMatcher
	QueryParams     []QueryParamMatcher
	Action          RouteAction
	RuleOrder       int
}

func NewRoute(vhID VirtualHostID, name string, match PathMatch, headers []HeaderMatcher, qp []QueryParamMatcher, action RouteAction, ruleOrder int) (Route, error) {
	if err := ValidateName("name", name); err != nil {
		return Route{}, err
	}
	if action.Kind == "" {
		return Route{}, apierr.Validation("action", "must specify a forward or weighted_clusters action")
	}
	return Route{
		VirtualHostID: vhID,
		Name:          name,
		Match:         match,
		Headers:       headers,
		QueryParams:   qp,
		Action:        action,
		RuleOrder:     ruleOrder,
	}, nil
}
