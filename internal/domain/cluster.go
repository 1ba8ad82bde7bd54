package domain

import (
	"time"

	"github.com/flexcp/flexcp/internal/apierr"
)

// Endpoint is a single upstream address/port pair.
type Endpoint struct {
	Host string
	Port int
}

// HealthCheck configures either an HTTP or TCP active health check.
type HealthCheck struct {
	Type               HealthCheckType
	Path               string // required when Type == HealthCheckHTTP
	IntervalSeconds    int
	TimeoutSeconds     int
	HealthyThreshold   int
	UnhealthyThreshold int
}

// CircuitBreakerThresholds bounds in-flight work for one priority tier.
type CircuitBreakerThresholds struct {
	MaxConnections     int
	MaxPendingRequests int
	MaxRequests        int
	MaxRetries         int
}

// OutlierDetection configures passive ejection of unhealthy endpoints.
type OutlierDetection struct {
	Enabled                bool
	ConsecutiveErrors      int
	IntervalSeconds        int
	BaseEjectionSeconds    int
	MaxEjectionPercent     int
}

// ClusterConfig is the full configuration blob stored for a Cluster.
type ClusterConfig struct {
	Endpoints             []Endpoint
	ConnectTimeoutSeconds int
	TLSEnabled            bool
	SNI                   string
	DNSLookupFamily       DNSLookupFamily
	LBPolicy              LBPolicy
	HealthCheck           *HealthCheck
	CircuitBreakerDefault CircuitBreakerThresholds
	CircuitBreakerHigh    *CircuitBreakerThresholds
	OutlierDetection      *OutlierDetection
}

// Cluster is an upstream service with a set of endpoints.
type Cluster struct {
	ID          ClusterID
	Name        string
	ServiceName string
	Team        TeamID
	Config      ClusterConfig
	Version     int64
	Source      ClusterSource
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewCluster validates raw input and constructs a Cluster ready to persist.
// ID/Version/timestamps are server-set and left zero here.
func NewCluster(name, serviceName string, team TeamID, cfg ClusterConfig, source ClusterSource) (Cluster, error) {
	if err := ValidateName("name", name); err != nil {
		return Cluster{}, err
	}
	if err := ValidateName("service_name", serviceName); err != nil {
		return Cluster{}, err
	}
	if err := validateClusterConfig(cfg); err != nil {
		return Cluster{}, err
	}
	if source != SourceNative && source != SourceImported {
		return Cluster{}, apierr.ValidationEnum("source", "unknown cluster source", []string{string(SourceNative), string(SourceImported)})
	}
	return Cluster{
		Name:        name,
		ServiceName: serviceName,
		Team:        team,
		Config:      cfg,
		Source:      source,
	}, nil
}

func validateClusterConfig(cfg ClusterConfig) error {
	if len(cfg.Endpoints) == 0 {
		return apierr.Validation("endpoints", "must contain at least one endpoint")
	}
	if len(cfg.Endpoints) > 100 {
		return apierr.Validation("endpoints", "must contain at most 100 endpoints")
	}
	for i, ep := range cfg.Endpoints {
		if ep.Port < 1 || ep.Port > 65535 {
			return apierr.Validation("endpoints", "port must be in [1, 65535]")
		}
		if ep.Host == "" {
			return apierr.Validation("endpoints", "host must be set")
		}
		_ = i
	}
	if !cfg.LBPolicy.Valid() {
		return apierr.ValidationEnum("lb_policy", "unknown load-balancing policy", AllowedLBPolicies())
	}
	if cfg.DNSLookupFamily != "" && !cfg.DNSLookupFamily.Valid() {
		return apierr.ValidationEnum("dns_lookup_family", "unknown DNS lookup family", AllowedDNSFamilies())
	}
	if cfg.HealthCheck != nil {
		if !cfg.HealthCheck.Type.Valid() {
			return apierr.ValidationEnum("health_check.type", "unknown health check type", []string{string(HealthCheckHTTP), string(HealthCheckTCP)})
		}
		if cfg.HealthCheck.Type == HealthCheckHTTP && cfg.HealthCheck.Path == "" {
			return apierr.Validation("health_check.path", "required when health check type is http")
		}
	}
	if cfg.ConnectTimeoutSeconds < 0 {
		return apierr.Validation("connect_timeout_seconds", "must be non-negative")
	}
	return nil
}
