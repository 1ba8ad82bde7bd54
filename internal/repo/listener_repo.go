package repo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/flexcp/flexcp/internal/apierr"
	"github.com/flexcp/flexcp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ListenerRepo persists domain.Listener and its route-config attachments.
// Removal is two-step (spec 3.4), since Envoy listeners must drain
// in-flight connections before the bind is actually released: Drain flips
// Status to draining, and Delete removes the row only once it is draining.
type ListenerRepo struct {
	db    *DB
	audit *AuditRepo
}

func NewListenerRepo(db *DB, audit *AuditRepo) *ListenerRepo {
	return &ListenerRepo{db: db, audit: audit}
}

func (r *ListenerRepo) Create(ctx context.Context, principal domain.PrincipalID, l domain.Listener) (domain.Listener, error) {
	cfgJSON, err := json.Marshal(l.Config)
	if err != nil {
		return domain.Listener{}, apierr.Internal(err)
	}

	var out domain.Listener
	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		id := uuid.New()
		now := time.Now().UTC()
		row := tx.QueryRow(ctx, `
			INSERT INTO listeners (id, name, team, address, port, protocol, configuration, status, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9, $9)
			RETURNING id, name, team, address, port, protocol, configuration, status, version, created_at, updated_at
		`, id, l.Name, uuid.UUID(l.Team), l.Address, l.Port, string(l.Protocol), cfgJSON, string(domain.ListenerActive), now)

		var err error
		out, err = scanListener(row)
		if err != nil {
			return mapWriteError(err, "create", "listeners", nil)
		}
		if err := attachRouteConfigs(ctx, tx, out.ID, l.Config); err != nil {
			return err
		}
		return r.audit.record(ctx, tx, principal, "create", "listener", out.ID.String(), "", summarizeListener(out))
	})
	return out, err
}

func (r *ListenerRepo) GetByID(ctx context.Context, id domain.ListenerID, allowed AllowedTeams) (domain.Listener, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, team, address, port, protocol, configuration, status, version, created_at, updated_at
		FROM listeners WHERE id = $1
	`, uuid.UUID(id))
	l, err := scanListener(row)
	if err != nil {
		return domain.Listener{}, mapWriteError(err, "get_by_id", "listeners", nil)
	}
	if !allowed.Allows(l.Team.String()) {
		return domain.Listener{}, apierr.NotFound("listener not found")
	}
	return l, nil
}

func (r *ListenerRepo) List(ctx context.Context, allowed AllowedTeams, p Pagination) ([]domain.Listener, error) {
	var rows pgx.Rows
	var err error
	if allowed.Any {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, name, team, address, port, protocol, configuration, status, version, created_at, updated_at
			FROM listeners ORDER BY updated_at DESC, id DESC LIMIT $1 OFFSET $2
		`, p.Limit, p.Offset)
	} else {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, name, team, address, port, protocol, configuration, status, version, created_at, updated_at
			FROM listeners WHERE team = ANY($1) ORDER BY updated_at DESC, id DESC LIMIT $2 OFFSET $3
		`, teamUUIDs(allowed), p.Limit, p.Offset)
	}
	if err != nil {
		return nil, mapWriteError(err, "list", "listeners", nil)
	}
	defer rows.Close()

	var out []domain.Listener
	for rows.Next() {
		l, err := scanListener(rows)
		if err != nil {
			return nil, apierr.Internal(err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Update replaces a Listener's configuration and re-derives its route
// config attachments, incrementing version by exactly 1.
func (r *ListenerRepo) Update(ctx context.Context, principal domain.PrincipalID, id domain.ListenerID, cfg domain.ListenerConfig) (domain.Listener, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return domain.Listener{}, apierr.Internal(err)
	}

	var before, out domain.Listener
	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		beforeRow := tx.QueryRow(ctx, `
			SELECT id, name, team, address, port, protocol, configuration, status, version, created_at, updated_at
			FROM listeners WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		var err error
		before, err = scanListener(beforeRow)
		if err != nil {
			return mapWriteError(err, "update", "listeners", nil)
		}

		row := tx.QueryRow(ctx, `
			UPDATE listeners SET configuration = $1, version = version + 1, updated_at = now()
			WHERE id = $2
			RETURNING id, name, team, address, port, protocol, configuration, status, version, created_at, updated_at
		`, cfgJSON, uuid.UUID(id))
		out, err = scanListener(row)
		if err != nil {
			return mapWriteError(err, "update", "listeners", nil)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM listener_route_configs WHERE listener_id = $1`, uuid.UUID(id)); err != nil {
			return apierr.Internal(err)
		}
		if err := attachRouteConfigs(ctx, tx, out.ID, cfg); err != nil {
			return err
		}
		return r.audit.record(ctx, tx, principal, "update", "listener", out.ID.String(), summarizeListener(before), summarizeListener(out))
	})
	return out, err
}

// Drain marks a Listener as draining rather than deleting its row outright
// (spec 3.4). A draining listener is skipped by the snapshot builder
// (internal/snapshot/builder.go) but keeps its audit history intact.
func (r *ListenerRepo) Drain(ctx context.Context, principal domain.PrincipalID, id domain.ListenerID) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		beforeRow := tx.QueryRow(ctx, `
			SELECT id, name, team, address, port, protocol, configuration, status, version, created_at, updated_at
			FROM listeners WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		before, err := scanListener(beforeRow)
		if err != nil {
			return mapWriteError(err, "drain", "listeners", nil)
		}
		if before.Status == domain.ListenerDraining {
			return apierr.Conflict("listener is already draining", nil)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE listeners SET status = $1, version = version + 1, updated_at = now() WHERE id = $2
		`, string(domain.ListenerDraining), uuid.UUID(id)); err != nil {
			return mapWriteError(err, "drain", "listeners", nil)
		}
		return r.audit.record(ctx, tx, principal, "drain", "listener", before.ID.String(), summarizeListener(before), "")
	})
}

// Delete removes a draining Listener's row entirely, along with its route
// config attachments (cascade by FK). Deleting an active listener is
// rejected; callers must Drain first.
func (r *ListenerRepo) Delete(ctx context.Context, principal domain.PrincipalID, id domain.ListenerID) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		beforeRow := tx.QueryRow(ctx, `
			SELECT id, name, team, address, port, protocol, configuration, status, version, created_at, updated_at
			FROM listeners WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		before, err := scanListener(beforeRow)
		if err != nil {
			return mapWriteError(err, "delete", "listeners", nil)
		}
		if before.Status != domain.ListenerDraining {
			return apierr.Conflict("listener must be draining before it can be deleted", nil)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM listeners WHERE id = $1`, uuid.UUID(id)); err != nil {
			return mapWriteError(err, "delete", "listeners", nil)
		}
		return r.audit.record(ctx, tx, principal, "delete", "listener", before.ID.String(), summarizeListener(before), "")
	})
}

func attachRouteConfigs(ctx context.Context, tx pgx.Tx, listenerID domain.ListenerID, cfg domain.ListenerConfig) error {
	seen := map[string]bool{}
	for _, fc := range cfg.FilterChains {
		if fc.HCM == nil || fc.HCM.RouteConfigName == "" || seen[fc.HCM.RouteConfigName] {
			continue
		}
		seen[fc.HCM.RouteConfigName] = true
		_, err := tx.Exec(ctx, `
			INSERT INTO listener_route_configs (listener_id, route_config_id)
			SELECT $1, id FROM route_configs WHERE name = $2
		`, uuid.UUID(listenerID), fc.HCM.RouteConfigName)
		if err != nil {
			return mapWriteError(err, "create", "listener_route_configs", nil)
		}
	}
	return nil
}

func scanListener(row pgx.Row) (domain.Listener, error) {
	var (
		id, team             uuid.UUID
		name, address, proto, status string
		port                 int
		cfgJSON              []byte
		version              int64
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &name, &team, &address, &port, &proto, &cfgJSON, &status, &version, &createdAt, &updatedAt); err != nil {
		return domain.Listener{}, err
	}
	var cfg domain.ListenerConfig
	if err := json.Unmarshal(cfgJSON, &cfg); err != nil {
		return domain.Listener{}, err
	}
	return domain.Listener{
		ID:        domain.ListenerID(id),
		Name:      name,
		Team:      domain.TeamID(team),
		Address:   address,
		Port:      port,
		Protocol:  domain.ListenerProtocol(proto),
		Config:    cfg,
		Status:    domain.ListenerStatus(status),
		Version:   version,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func summarizeListener(l domain.Listener) string {
	b, _ := json.Marshal(struct {
		Name    string `json:"name"`
		Status  string `json:"status"`
		Version int64  `json:"version"`
	}{l.Name, string(l.Status), l.Version})
	return string(b)
}
