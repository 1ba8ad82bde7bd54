package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Opaque surrogate key types. Distinct named types keep the compiler from
// accepting e.g. a ClusterID where a ListenerID is expected.
type (
	OrgID          uuid.UUID
	TeamID         uuid.UUID
	ClusterID      uuid.UUID
	RouteConfigID  uuid.UUID
	VirtualHostID  uuid.UUID
	RouteID        uuid.UUID
	ListenerID     uuid.UUID
	FilterID       uuid.UUID
	DataplaneID    uuid.UUID
	ImportID       uuid.UUID
	AuditEventID   uuid.UUID
	PrincipalID    uuid.UUID
)

func NewOrgID() OrgID                 { return OrgID(uuid.New()) }
func NewTeamID() TeamID                { return TeamID(uuid.New()) }
func NewClusterID() ClusterID             { return ClusterID(uuid.New()) }
func NewRouteConfigID() RouteConfigID         { return RouteConfigID(uuid.New()) }
func NewVirtualHostID() VirtualHostID         { return VirtualHostID(uuid.New()) }
func NewRouteID() RouteID               { return RouteID(uuid.New()) }
func NewListenerID() ListenerID            { return ListenerID(uuid.New()) }
func NewFilterID() FilterID              { return FilterID(uuid.New()) }
func NewDataplaneID() DataplaneID           { return DataplaneID(uuid.New()) }
func NewImportID() ImportID              { return ImportID(uuid.New()) }
func NewAuditEventID() AuditEventID          { return AuditEventID(uuid.New()) }

func (i OrgID) String() string         { return uuid.UUID(i).String() }
func (i TeamID) String() string        { return uuid.UUID(i).String() }
func (i ClusterID) String() string     { return uuid.UUID(i).String() }
func (i RouteConfigID) String() string { return uuid.UUID(i).String() }
func (i VirtualHostID) String() string { return uuid.UUID(i).String() }
func (i RouteID) String() string       { return uuid.UUID(i).String() }
func (i ListenerID) String() string    { return uuid.UUID(i).String() }
func (i FilterID) String() string      { return uuid.UUID(i).String() }
func (i DataplaneID) String() string   { return uuid.UUID(i).String() }
func (i ImportID) String() string      { return uuid.UUID(i).String() }
func (i AuditEventID) String() string  { return uuid.UUID(i).String() }

func ParseClusterID(s string) (ClusterID, error) {
	u, err := uuid.Parse(s)
	return ClusterID(u), err
}

func ParseRouteConfigID(s string) (RouteConfigID, error) {
	u, err := uuid.Parse(s)
	return RouteConfigID(u), err
}

func ParseListenerID(s string) (ListenerID, error) {
	u, err := uuid.Parse(s)
	return ListenerID(u), err
}

func ParseFilterID(s string) (FilterID, error) {
	u, err := uuid.Parse(s)
	return FilterID(u), err
}

func ParseTeamID(s string) (TeamID, error) {
	u, err := uuid.Parse(s)
	return TeamID(u), err
}

func ParseOrgID(s string) (OrgID, error) {
	u, err := uuid.Parse(s)
	return OrgID(u), err
}

func ParseDataplaneID(s string) (DataplaneID, error) {
	u, err := uuid.Parse(s)
	return DataplaneID(u), err
}

// NodeKey identifies which snapshot a connected Envoy receives: a Team and,
// optionally, a Dataplane scoping it to a subset of the Team's resources.
type NodeKey struct {
	Team       TeamID
	Dataplane  DataplaneID
	HasDP      bool
}

func (k NodeKey) String() string {
	if k.HasDP {
		return k.Team.String() + "/" + k.Dataplane.String()
	}
	return k.Team.String()
}

// ParseNodeKey parses the "team" or "team/dataplane" string a connected
// Envoy's bootstrap node.id must carry (spec 3: node identity resolves
// team and optional dataplane). It is the inverse of NodeKey.String.
func ParseNodeKey(nodeID string) (NodeKey, error) {
	team, dp, hasDP := strings.Cut(nodeID, "/")
	teamID, err := ParseTeamID(team)
	if err != nil {
		return NodeKey{}, fmt.Errorf("parsing team from node id %q: %w", nodeID, err)
	}
	if !hasDP {
		return NodeKey{Team: teamID}, nil
	}
	dpID, err := ParseDataplaneID(dp)
	if err != nil {
		return NodeKey{}, fmt.Errorf("parsing dataplane from node id %q: %w", nodeID, err)
	}
	return NodeKey{Team: teamID, Dataplane: dpID, HasDP: true}, nil
}
