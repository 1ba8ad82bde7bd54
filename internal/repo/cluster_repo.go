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

// ClusterRepo persists domain.Cluster rows. Every write runs inside its own
// transaction so the business row and its AuditEvent commit together
// (spec 4.2: "The audit repository writes these in the same transaction as
// the business write").
type ClusterRepo struct {
	db    *DB
	audit *AuditRepo
}

func NewClusterRepo(db *DB, audit *AuditRepo) *ClusterRepo {
	return &ClusterRepo{db: db, audit: audit}
}

func (r *ClusterRepo) Create(ctx context.Context, principal domain.PrincipalID, c domain.Cluster) (domain.Cluster, error) {
	cfgJSON, err := json.Marshal(c.Config)
	if err != nil {
		return domain.Cluster{}, apierr.Internal(err)
	}

	var out domain.Cluster
	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		id := uuid.New()
		now := time.Now().UTC()
		row := tx.QueryRow(ctx, `
			INSERT INTO clusters (id, name, service_name, configuration, version, source, team, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5, $6, $7, $7)
			RETURNING id, name, service_name, configuration, version, source, team, created_at, updated_at
		`, id, c.Name, c.ServiceName, cfgJSON, string(c.Source), uuid.UUID(c.Team), now)

		var err error
		out, err = scanCluster(row)
		if err != nil {
			return mapWriteError(err, "create", "clusters", nil)
		}
		return r.audit.record(ctx, tx, principal, "create", "cluster", out.ID.String(), "", summarizeCluster(out))
	})
	return out, err
}

func (r *ClusterRepo) GetByID(ctx context.Context, id domain.ClusterID, allowed AllowedTeams) (domain.Cluster, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, service_name, configuration, version, source, team, created_at, updated_at
		FROM clusters WHERE id = $1
	`, uuid.UUID(id))
	c, err := scanCluster(row)
	if err != nil {
		return domain.Cluster{}, mapWriteError(err, "get_by_id", "clusters", nil)
	}
	// get_by_* that resolves to a disallowed team returns NotFound, never
	// Forbidden, to avoid enumeration (spec 4.2).
	if !allowed.Allows(c.Team.String()) {
		return domain.Cluster{}, apierr.NotFound("cluster not found")
	}
	return c, nil
}

func (r *ClusterRepo) GetByName(ctx context.Context, name string, allowed AllowedTeams) (domain.Cluster, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, service_name, configuration, version, source, team, created_at, updated_at
		FROM clusters WHERE name = $1
	`, name)
	c, err := scanCluster(row)
	if err != nil {
		return domain.Cluster{}, mapWriteError(err, "get_by_name", "clusters", nil)
	}
	if !allowed.Allows(c.Team.String()) {
		return domain.Cluster{}, apierr.NotFound("cluster not found")
	}
	return c, nil
}

func (r *ClusterRepo) List(ctx context.Context, allowed AllowedTeams, p Pagination) ([]domain.Cluster, error) {
	var rows pgx.Rows
	var err error
	if allowed.Any {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, name, service_name, configuration, version, source, team, created_at, updated_at
			FROM clusters ORDER BY updated_at DESC, id DESC LIMIT $1 OFFSET $2
		`, p.Limit, p.Offset)
	} else {
		teams := teamUUIDs(allowed)
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, name, service_name, configuration, version, source, team, created_at, updated_at
			FROM clusters WHERE team = ANY($1) ORDER BY updated_at DESC, id DESC LIMIT $2 OFFSET $3
		`, teams, p.Limit, p.Offset)
	}
	if err != nil {
		return nil, mapWriteError(err, "list", "clusters", nil)
	}
	defer rows.Close()

	var out []domain.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, apierr.Internal(err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update applies a full replacement of the mutable fields and increments
// version by exactly 1 (spec 4.2).
func (r *ClusterRepo) Update(ctx context.Context, principal domain.PrincipalID, id domain.ClusterID, serviceName string, cfg domain.ClusterConfig) (domain.Cluster, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return domain.Cluster{}, apierr.Internal(err)
	}

	var before, out domain.Cluster
	err = r.db.WithTx(ctx, func(tx pgx.Tx) error {
		beforeRow := tx.QueryRow(ctx, `
			SELECT id, name, service_name, configuration, version, source, team, created_at, updated_at
			FROM clusters WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		var err error
		before, err = scanCluster(beforeRow)
		if err != nil {
			return mapWriteError(err, "update", "clusters", nil)
		}

		row := tx.QueryRow(ctx, `
			UPDATE clusters SET service_name = $1, configuration = $2, version = version + 1, updated_at = now()
			WHERE id = $3
			RETURNING id, name, service_name, configuration, version, source, team, created_at, updated_at
		`, serviceName, cfgJSON, uuid.UUID(id))
		out, err = scanCluster(row)
		if err != nil {
			return mapWriteError(err, "update", "clusters", nil)
		}
		return r.audit.record(ctx, tx, principal, "update", "cluster", out.ID.String(), summarizeCluster(before), summarizeCluster(out))
	})
	return out, err
}

// Delete removes a Cluster. A delete that would dangle a RouteConfig
// reference fails with Conflict naming the blocking rows (spec 3.3); the
// FK is non-cascading so Postgres itself rejects the delete and we
// surface the blockers from a pre-check query for a useful error message.
func (r *ClusterRepo) Delete(ctx context.Context, principal domain.PrincipalID, id domain.ClusterID) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		beforeRow := tx.QueryRow(ctx, `
			SELECT id, name, service_name, configuration, version, source, team, created_at, updated_at
			FROM clusters WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		before, err := scanCluster(beforeRow)
		if err != nil {
			return mapWriteError(err, "delete", "clusters", nil)
		}

		blockers, err := blockingRouteConfigs(ctx, tx, before.Name)
		if err != nil {
			return apierr.Internal(err)
		}
		if len(blockers) > 0 {
			return apierr.Conflict("cluster is referenced by route configs", blockers)
		}

		_, err = tx.Exec(ctx, `DELETE FROM clusters WHERE id = $1`, uuid.UUID(id))
		if err != nil {
			return mapWriteError(err, "delete", "clusters", blockers)
		}
		return r.audit.record(ctx, tx, principal, "delete", "cluster", before.ID.String(), summarizeCluster(before), "")
	})
}

func blockingRouteConfigs(ctx context.Context, tx pgx.Tx, clusterName string) ([]string, error) {
	rows, err := tx.Query(ctx, `SELECT name FROM route_configs WHERE cluster_name = $1`, clusterName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func teamUUIDs(a AllowedTeams) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(a.Teams))
	for t := range a.Teams {
		if id, err := uuid.Parse(t); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func scanCluster(row pgx.Row) (domain.Cluster, error) {
	var (
		id, team         uuid.UUID
		name, svc, src   string
		cfgJSON          []byte
		version          int64
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &name, &svc, &cfgJSON, &version, &src, &team, &createdAt, &updatedAt); err != nil {
		return domain.Cluster{}, err
	}
	var cfg domain.ClusterConfig
	if err := json.Unmarshal(cfgJSON, &cfg); err != nil {
		return domain.Cluster{}, err
	}
	return domain.Cluster{
		ID:          domain.ClusterID(id),
		Name:        name,
		ServiceName: svc,
		Team:        domain.TeamID(team),
		Config:      cfg,
		Version:     version,
		Source:      domain.ClusterSource(src),
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}, nil
}

func summarizeCluster(c domain.Cluster) string {
	b, _ := json.Marshal(struct {
		Name    string `json:"name"`
		Version int64  `json:"version"`
	}{c.Name, c.Version})
	return string(b)
}
