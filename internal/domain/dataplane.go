package domain

import "time"

// Dataplane is a named proxy instance or group within a Team. Optional;
// when present it subdivides a Team's resources so a node can subscribe to
// a subset (spec 3.2). GatewayHost and Description are free-form operator
// metadata, not referenced by node-key resolution or compilation.
type Dataplane struct {
	ID          DataplaneID
	Team        TeamID
	Name        string
	GatewayHost string
	Description string
	CreatedAt   time.Time
}

func NewDataplane(name string, team TeamID) (Dataplane, error) {
	if err := ValidateName("name", name); err != nil {
		return Dataplane{}, err
	}
	return Dataplane{Name: name, Team: team}, nil
}

// ImportMetadata records an OpenAPI import that produced a set of
// resources, keeping the originating document for diffing (spec 3.2). The
// importer itself is an external collaborator (spec 1); the core only
// stores the record it is handed.
type ImportMetadata struct {
	ID             ImportID
	SpecName       string
	SpecVersion    string
	SpecChecksum   string
	Team           TeamID
	SourceContent  string
	ListenerName   string
	ImportedAt     time.Time
}

// AuditEvent records one successful write for replay/inspection.
type AuditEvent struct {
	ID            AuditEventID
	PrincipalID   PrincipalID
	Action        string
	ResourceKind  string
	ResourceID    string
	Before        string // JSON summary, empty on create
	After         string // JSON summary, empty on delete
	CorrelationID string
	CreatedAt     time.Time
}
