package domain

import (
	"encoding/json"
	"time"

	"github.com/flexcp/flexcp/internal/apierr"
)

// Filter is a reusable HTTP filter configuration, independent of any
// specific listener. Its Config is validated against the per-type schema
// registered for FilterType (see filter_schema.go); the in-memory representation
// stays a tagged variant (raw JSON here, typed accessors in the compiler)
// so the compiler can stay total over FilterType.
type Filter struct {
	ID               FilterID
	Name             string
	Team             TeamID
	Type             FilterType
	Config           json.RawMessage
	Version          int64
	AttachmentCount  int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func NewFilter(name string, team TeamID, typ FilterType, config json.RawMessage) (Filter, error) {
	if err := ValidateName("name", name); err != nil {
		return Filter{}, err
	}
	if !typ.Valid() {
		return Filter{}, apierr.ValidationEnum("filter_type", "unknown filter type", AllowedFilterTypes())
	}
	if err := ValidateFilterConfig(typ, config); err != nil {
		return Filter{}, err
	}
	return Filter{Name: name, Team: team, Type: typ, Config: config}, nil
}

// FilterAttachment orders a Filter into a Listener's HCM filter chain.
// Order is an integer with ties broken by insertion id (spec 3.2).
type FilterAttachment struct {
	FilterID   FilterID
	ListenerID ListenerID
	Order      int
	InsertedAt time.Time
}

// RouteFilterOverride supplies a typed per-filter override at a specific route.
type RouteFilterOverride struct {
	FilterID FilterID
	RouteID  RouteID
	Config   json.RawMessage
}
