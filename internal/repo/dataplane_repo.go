package repo

import (
	"context"
	"time"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/flexcp/flexcp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// DataplaneRepo persists Dataplanes (the optional node-key subdivision
// within a Team, spec 3.2) and ImportMetadata records.
type DataplaneRepo struct {
	db    *DB
	audit *AuditRepo
}

func NewDataplaneRepo(db *DB, audit *AuditRepo) *DataplaneRepo {
	return &DataplaneRepo{db: db, audit: audit}
}

func (r *DataplaneRepo) Create(ctx context.Context, principal domain.PrincipalID, d domain.Dataplane) (domain.Dataplane, error) {
	var out domain.Dataplane
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		id := uuid.New()
		now := time.Now().UTC()
		row := tx.QueryRow(ctx, `
			INSERT INTO dataplanes (id, name, team, gateway_host, description, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, name, team, gateway_host, description, created_at
		`, id, d.Name, uuid.UUID(d.Team), nullableText(d.GatewayHost), nullableText(d.Description), now)

		var err error
		out, err = scanDataplane(row)
		if err != nil {
			return mapWriteError(err, "create", "dataplanes", nil)
		}
		return r.audit.record(ctx, tx, principal, "create", "dataplane", out.ID.String(), "", `{"name":"`+out.Name+`"}`)
	})
	return out, err
}

func (r *DataplaneRepo) GetByName(ctx context.Context, team domain.TeamID, name string) (domain.Dataplane, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, team, gateway_host, description, created_at FROM dataplanes WHERE team = $1 AND name = $2
	`, uuid.UUID(team), name)
	d, err := scanDataplane(row)
	if err != nil {
		return domain.Dataplane{}, mapWriteError(err, "get_by_name", "dataplanes", nil)
	}
	return d, nil
}

func (r *DataplaneRepo) List(ctx context.Context, allowed AllowedTeams, p Pagination) ([]domain.Dataplane, error) {
	var rows pgx.Rows
	var err error
	if allowed.Any {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, name, team, gateway_host, description, created_at FROM dataplanes ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2
		`, p.Limit, p.Offset)
	} else {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, name, team, gateway_host, description, created_at FROM dataplanes WHERE team = ANY($1) ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3
		`, teamUUIDs(allowed), p.Limit, p.Offset)
	}
	if err != nil {
		return nil, mapWriteError(err, "list", "dataplanes", nil)
	}
	defer rows.Close()

	var out []domain.Dataplane
	for rows.Next() {
		d, err := scanDataplane(rows)
		if err != nil {
			return nil, apierr.Internal(err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update changes a Dataplane's GatewayHost/Description operator metadata
// (original_source's internal_api/dataplanes.rs update()); it does not
// touch Name/Team, which are the node-key identity xDS resolution keys off
// of, and carries no version counter since nothing compiled depends on it.
func (r *DataplaneRepo) Update(ctx context.Context, principal domain.PrincipalID, id domain.DataplaneID, gatewayHost, description string) (domain.Dataplane, error) {
	var before, out domain.Dataplane
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, name, team, gateway_host, description, created_at FROM dataplanes WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		var err error
		before, err = scanDataplane(row)
		if err != nil {
			return mapWriteError(err, "update", "dataplanes", nil)
		}

		row = tx.QueryRow(ctx, `
			UPDATE dataplanes SET gateway_host = $2, description = $3
			WHERE id = $1
			RETURNING id, name, team, gateway_host, description, created_at
		`, uuid.UUID(id), nullableText(gatewayHost), nullableText(description))
		out, err = scanDataplane(row)
		if err != nil {
			return mapWriteError(err, "update", "dataplanes", nil)
		}
		return r.audit.record(ctx, tx, principal, "update", "dataplane", out.ID.String(),
			`{"gateway_host":"`+before.GatewayHost+`"}`, `{"gateway_host":"`+out.GatewayHost+`"}`)
	})
	return out, err
}

func (r *DataplaneRepo) Delete(ctx context.Context, principal domain.PrincipalID, id domain.DataplaneID) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `SELECT id, name, team, gateway_host, description, created_at FROM dataplanes WHERE id = $1 FOR UPDATE`, uuid.UUID(id))
		before, err := scanDataplane(row)
		if err != nil {
			return mapWriteError(err, "delete", "dataplanes", nil)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM dataplanes WHERE id = $1`, uuid.UUID(id)); err != nil {
			return mapWriteError(err, "delete", "dataplanes", nil)
		}
		return r.audit.record(ctx, tx, principal, "delete", "dataplane", before.ID.String(), `{"name":"`+before.Name+`"}`, "")
	})
}

// RecordImport stores the ImportMetadata produced by an external OpenAPI
// importer (spec 1: importers are an external collaborator; the core only
// stores what it is handed).
func (r *DataplaneRepo) RecordImport(ctx context.Context, principal domain.PrincipalID, m domain.ImportMetadata) (domain.ImportMetadata, error) {
	var out domain.ImportMetadata
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		id := uuid.New()
		now := time.Now().UTC()
		row := tx.QueryRow(ctx, `
			INSERT INTO import_metadata (id, spec_name, spec_version, spec_checksum, team, source_content, listener_name, imported_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, spec_name, spec_version, spec_checksum, team, source_content, listener_name, imported_at
		`, id, m.SpecName, m.SpecVersion, m.SpecChecksum, uuid.UUID(m.Team), m.SourceContent, m.ListenerName, now)

		var err error
		out, err = scanImportMetadata(row)
		if err != nil {
			return mapWriteError(err, "create", "import_metadata", nil)
		}
		return r.audit.record(ctx, tx, principal, "import", "import_metadata", out.ID.String(), "", `{"spec_name":"`+out.SpecName+`"}`)
	})
	return out, err
}

func scanDataplane(row pgx.Row) (domain.Dataplane, error) {
	var id, team uuid.UUID
	var name string
	var gatewayHost, description *string
	var createdAt time.Time
	if err := row.Scan(&id, &name, &team, &gatewayHost, &description, &createdAt); err != nil {
		return domain.Dataplane{}, err
	}
	d := domain.Dataplane{ID: domain.DataplaneID(id), Name: name, Team: domain.TeamID(team), CreatedAt: createdAt}
	if gatewayHost != nil {
		d.GatewayHost = *gatewayHost
	}
	if description != nil {
		d.Description = *description
	}
	return d, nil
}

// nullableText turns an empty Go string into a SQL NULL, used for optional
// text columns (gateway_host, description) that have no NOT NULL default.
func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanImportMetadata(row pgx.Row) (domain.ImportMetadata, error) {
	var id, team uuid.UUID
	var specName, specVersion, specChecksum, sourceContent, listenerName string
	var importedAt time.Time
	if err := row.Scan(&id, &specName, &specVersion, &specChecksum, &team, &sourceContent, &listenerName, &importedAt); err != nil {
		return domain.ImportMetadata{}, err
	}
	return domain.ImportMetadata{
		ID:            domain.ImportID(id),
		SpecName:      specName,
		SpecVersion:   specVersion,
		SpecChecksum:  specChecksum,
		Team:          domain.TeamID(team),
		SourceContent: sourceContent,
		ListenerName:  listenerName,
		ImportedAt:    importedAt,
	}, nil
}
