package domain

import (
	"time"

	"github.com/flexcp/flexcp/internal/apierr"
)

// RouteConfig is a named collection of virtual hosts.
type RouteConfig struct {
	ID             RouteConfigID
	Name           string
	Team           TeamID
	ImportID       *ImportID
	DefaultCluster string
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewRouteConfig validates raw input. clusterExists is supplied by the
// caller (repository layer) since existence is a write-time referential
// check, not a pure structural one.
func NewRouteConfig(name string, team TeamID, defaultCluster string, importID *ImportID, clusterExists bool) (RouteConfig, error) {
	if err := ValidateName("name", name); err != nil {
		return RouteConfig{}, err
	}
	if defaultCluster != "" {
		if err := ValidateName("default_cluster", defaultCluster); err != nil {
			return RouteConfig{}, err
		}
		if !clusterExists {
			return RouteConfig{}, apierr.Validation("default_cluster", "referenced cluster does not exist")
		}
	}
	return RouteConfig{
		Name:           name,
		Team:           team,
		DefaultCluster: defaultCluster,
		ImportID:       importID,
	}, nil
}

// VirtualHost is a set of domains inside a RouteConfig.
type VirtualHost struct {
	ID            VirtualHostID
	RouteConfigID RouteConfigID
	Name          string
	Domains       []string
	RuleOrder     int
}

func NewVirtualHost(routeConfigID RouteConfigID, name string, domains []string, ruleOrder int) (VirtualHost, error) {
	if err := ValidateName("name", name); err != nil {
		return VirtualHost{}, err
	}
	if len(domains) == 0 {
		return VirtualHost{}, apierr.Validation("domains", "must contain at least one domain")
	}
	hasWildcard := false
	for _, d := range domains {
		if d == "*" {
			hasWildcard = true
			continue
		}
		if d == "" {
			return VirtualHost{}, apierr.Validation("domains", "domain must not be empty")
		}
	}
	if hasWildcard && len(domains) > 1 {
		return VirtualHost{}, apierr.Validation("domains", "'*' must not be mixed with other domains")
	}
	return VirtualHost{
		RouteConfigID: routeConfigID,
		Name:          name,
		Domains:       domains,
		RuleOrder:     ruleOrder,
	}, nil
}
