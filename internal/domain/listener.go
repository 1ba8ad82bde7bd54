package domain

import (
	"time"

	"github.com/flexcp/flexcp/internal/apierr"
)

// TLSContext configures downstream TLS termination for a filter chain.
type TLSContext struct {
	Enabled        bool
	CertChainPath  string
	PrivateKeyPath string
	RequireClientCert bool
}

// HTTPFilterEntry is one ordered slot in an HCM's filter chain, pointing at
// a reusable Filter (by name) plus this listener's attachment order.
type HTTPFilterEntry struct {
	FilterName string
	Order      int
}

// HTTPConnectionManager is the HCM network filter's configuration.
type HTTPConnectionManager struct {
	RouteConfigName string // RDS pointer; when empty the compiled HCM has no route specifier
	HTTPFilters     []HTTPFilterEntry
	TLS             *TLSContext
}

// FilterChain is one sequence of network filters on a Listener.
type FilterChain struct {
	Name string
	HCM  *HTTPConnectionManager
}

// ListenerConfig is the configuration blob stored for a Listener.
type ListenerConfig struct {
	FilterChains []FilterChain
}

// Listener is a bound network socket with a filter chain.
type Listener struct {
	ID        ListenerID
	Name      string
	Team      TeamID
	Address   string
	Port      int
	Protocol  ListenerProtocol
	Config    ListenerConfig
	Status    ListenerStatus
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewListener(name string, team TeamID, address string, port int, protocol ListenerProtocol, cfg ListenerConfig) (Listener, error) {
	if err := ValidateName("name", name); err != nil {
		return Listener{}, err
	}
	if address == "" {
		return Listener{}, apierr.Validation("address", "must not be empty")
	}
	if port < 1 || port > 65535 {
		return Listener{}, apierr.Validation("port", "must be in [1, 65535]")
	}
	if !protocol.Valid() {
		return Listener{}, apierr.ValidationEnum("protocol", "unknown protocol", []string{string(ProtocolHTTP), string(ProtocolTCP)})
	}
	if len(cfg.FilterChains) == 0 {
		return Listener{}, apierr.Validation("configuration.filter_chains", "must contain at least one filter chain")
	}
	for _, fc := range cfg.FilterChains {
		if protocol == ProtocolHTTP && fc.HCM == nil {
			return Listener{}, apierr.Validation("configuration.filter_chains", "http listeners require an HTTP connection manager filter")
		}
	}
	return Listener{
		Name:     name,
		Team:     team,
		Address:  address,
		Port:     port,
		Protocol: protocol,
		Config:   cfg,
		Status:   ListenerActive,
	}, nil
}
