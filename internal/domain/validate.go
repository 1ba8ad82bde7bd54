package domain

import (
	"regexp"

	"github.com/flexcp/flexcp/internal/apierr"
)

// nameRE is the single naming grammar every entity name in the system must
// satisfy: lowercase alphanumeric plus '-'/'_', 1-63 chars, starting alnum.
var nameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

func ValidateName(field, name string) error {
	if !nameRE.MatchString(name) {
		return apierr.Validation(field, "must be 1-63 lowercase alphanumeric, '-' or '_' characters, starting with a letter or digit")
	}
	return nil
}

// LBPolicy is the enumerated load-balancing policy for a Cluster.
type LBPolicy string

const (
	LBRoundRobin       LBPolicy = "round_robin"
	LBLeastRequest     LBPolicy = "least_request"
	LBRingHash         LBPolicy = "ring_hash"
	LBRandom           LBPolicy = "random"
	LBMaglev           LBPolicy = "maglev"
)

var allLBPolicies = []LBPolicy{LBRoundRobin, LBLeastRequest, LBRingHash, LBRandom, LBMaglev}

func AllowedLBPolicies() []string {
	out := make([]string, len(allLBPolicies))
	for i, p := range allLBPolicies {
		out[i] = string(p)
	}
	return out
}

func (p LBPolicy) Valid() bool {
	for _, v := range allLBPolicies {
		if v == p {
			return true
		}
	}
	return false
}

// DNSLookupFamily mirrors Envoy's DnsLookupFamily enum for STRICT/LOGICAL_DNS clusters.
type DNSLookupFamily string

const (
	DNSAuto   DNSLookupFamily = "auto"
	DNSV4Only DNSLookupFamily = "v4_only"
	DNSV6Only DNSLookupFamily = "v6_only"
	DNSAll    DNSLookupFamily = "all"
)

var allDNSFamilies = []DNSLookupFamily{DNSAuto, DNSV4Only, DNSV6Only, DNSAll}

func AllowedDNSFamilies() []string {
	out := make([]string, len(allDNSFamilies))
	for i, f := range allDNSFamilies {
		out[i] = string(f)
	}
	return out
}

func (f DNSLookupFamily) Valid() bool {
	for _, v := range allDNSFamilies {
		if v == f {
			return true
		}
	}
	return false
}

// HealthCheckType distinguishes HTTP from TCP health checks.
type HealthCheckType string

const (
	HealthCheckHTTP HealthCheckType = "http"
	HealthCheckTCP  HealthCheckType = "tcp"
)

func (t HealthCheckType) Valid() bool {
	return t == HealthCheckHTTP || t == HealthCheckTCP
}

// PathMatchKind is the enumerated Route path match type.
type PathMatchKind string

const (
	PathPrefix   PathMatchKind = "prefix"
	PathExact    PathMatchKind = "exact"
	PathTemplate PathMatchKind = "template"
	PathRegex    PathMatchKind = "regex"
)

var allPathMatchKinds = []PathMatchKind{PathPrefix, PathExact, PathTemplate, PathRegex}

func AllowedPathMatchKinds() []string {
	out := make([]string, len(allPathMatchKinds))
	for i, k := range allPathMatchKinds {
		out[i] = string(k)
	}
	return out
}

func (k PathMatchKind) Valid() bool {
	for _, v := range allPathMatchKinds {
		if v == k {
			return true
		}
	}
	return false
}

// RouteActionKind selects which action a Route carries.
type RouteActionKind string

const (
	ActionForward         RouteActionKind = "forward"
	ActionWeightedCluster RouteActionKind = "weighted_clusters"
	ActionRedirect        RouteActionKind = "redirect"
)

// ListenerProtocol is the enumerated Listener protocol.
type ListenerProtocol string

const (
	ProtocolHTTP ListenerProtocol = "http"
	ProtocolTCP  ListenerProtocol = "tcp"
)

func (p ListenerProtocol) Valid() bool {
	return p == ProtocolHTTP || p == ProtocolTCP
}

// ListenerStatus is a Listener's lifecycle status (spec 3.4: deletion is
// hard except for Listeners, which additionally track active/draining).
type ListenerStatus string

const (
	ListenerActive   ListenerStatus = "active"
	ListenerDraining ListenerStatus = "draining"
)

// FilterType is the enumerated set of supported HTTP filter kinds. Unknown
// variants fail validation with apierr.Validation (spec 4.1: UnknownFilterType).
type FilterType string

const (
	FilterCORS           FilterType = "cors"
	FilterHeaderMutation FilterType = "header_mutation"
	FilterLocalRateLimit FilterType = "local_rate_limit"
	FilterExtAuthz       FilterType = "ext_authz"
	FilterJWTAuthn       FilterType = "jwt_authn"
	FilterRBAC           FilterType = "rbac"
	FilterLua            FilterType = "lua"
	FilterWasm           FilterType = "wasm"
	FilterCustomResponse FilterType = "custom_response"
)

var allFilterTypes = []FilterType{
	FilterCORS, FilterHeaderMutation, FilterLocalRateLimit, FilterExtAuthz,
	FilterJWTAuthn, FilterRBAC, FilterLua, FilterWasm, FilterCustomResponse,
}

func AllowedFilterTypes() []string {
	out := make([]string, len(allFilterTypes))
	for i, t := range allFilterTypes {
		out[i] = string(t)
	}
	return out
}

func (t FilterType) Valid() bool {
	for _, v := range allFilterTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ClusterSource tags whether a Cluster was entered by hand or produced by
// an OpenAPI import (external collaborator per spec 1).
type ClusterSource string

const (
	SourceNative   ClusterSource = "native"
	SourceImported ClusterSource = "imported"
)
