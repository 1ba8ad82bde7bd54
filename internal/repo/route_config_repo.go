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

// RouteConfigRepo persists RouteConfig together with its VirtualHosts and
// Routes. Composition (RouteConfig -> VirtualHost -> Route) cascades on
// delete by FK (spec 3.3); creation of the whole tree is one transaction
// (spec 4.2: "creating a RouteConfig plus its VirtualHosts and Routes ...
// run in one transaction").
type RouteConfigRepo struct {
	db    *DB
	audit *AuditRepo
}

func NewRouteConfigRepo(db *DB, audit *AuditRepo) *RouteConfigRepo {
	return &RouteConfigRepo{db: db, audit: audit}
}

// VirtualHostInput bundles a VirtualHost with the Routes nested under it,
// as accepted from the REST front end in one payload.
type VirtualHostInput struct {
	VH     domain.VirtualHost
	Routes []domain.Route
}

// routeRow is the on-disk shape of everything a Route carries beyond its
// match pattern, stored as jsonb rather than one column per matcher kind
// (same approach as clusters.configuration).
type routeRow struct {
	Headers     []domain.HeaderMatcher     `json:"headers,omitempty"`
	QueryParams []domain.QueryParamMatcher `json:"query_params,omitempty"`
	Action      domain.RouteAction         `json:"action"`
	MatchParams []string                   `json:"match_params,omitempty"`
}

func (r *RouteConfigRepo) Create(ctx context.Context, principal domain.PrincipalID, rc domain.RouteConfig, vhosts []VirtualHostInput) (domain.RouteConfig, error) {
	var out domain.RouteConfig
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		id := uuid.New()
		now := time.Now().UTC()
		var importID any
		if rc.ImportID != nil {
			importID = uuid.UUID(*rc.ImportID)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO route_configs (id, name, cluster_name, import_id, version, team, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 1, $5, $6, $6)
			RETURNING id, name, cluster_name, import_id, version, team, created_at, updated_at
		`, id, rc.Name, rc.DefaultCluster, importID, uuid.UUID(rc.Team), now)

		var err error
		out, err = scanRouteConfig(row)
		if err != nil {
			return mapWriteError(err, "create", "route_configs", nil)
		}

		for _, vhi := range vhosts {
			vhID := uuid.New()
			domainsJSON, err := json.Marshal(vhi.VH.Domains)
			if err != nil {
				return apierr.Internal(err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO virtual_hosts (id, route_config_id, name, domains, rule_order)
				VALUES ($1, $2, $3, $4, $5)
			`, vhID, id, vhi.VH.Name, domainsJSON, vhi.VH.RuleOrder)
			if err != nil {
				return mapWriteError(err, "create", "virtual_hosts", nil)
			}

			for _, rt := range vhi.Routes {
				if err := insertRoute(ctx, tx, domain.VirtualHostID(vhID), rt); err != nil {
					return err
				}
			}
		}

		return r.audit.record(ctx, tx, principal, "create", "route_config", out.ID.String(), "", summarizeRouteConfig(out))
	})
	return out, err
}

func (r *RouteConfigRepo) GetByID(ctx context.Context, id domain.RouteConfigID, allowed AllowedTeams) (domain.RouteConfig, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, cluster_name, import_id, version, team, created_at, updated_at
		FROM route_configs WHERE id = $1
	`, uuid.UUID(id))
	rc, err := scanRouteConfig(row)
	if err != nil {
		return domain.RouteConfig{}, mapWriteError(err, "get_by_id", "route_configs", nil)
	}
	if !allowed.Allows(rc.Team.String()) {
		return domain.RouteConfig{}, apierr.NotFound("route config not found")
	}
	return rc, nil
}

func (r *RouteConfigRepo) GetByName(ctx context.Context, name string, allowed AllowedTeams) (domain.RouteConfig, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, cluster_name, import_id, version, team, created_at, updated_at
		FROM route_configs WHERE name = $1
	`, name)
	rc, err := scanRouteConfig(row)
	if err != nil {
		return domain.RouteConfig{}, mapWriteError(err, "get_by_name", "route_configs", nil)
	}
	if !allowed.Allows(rc.Team.String()) {
		return domain.RouteConfig{}, apierr.NotFound("route config not found")
	}
	return rc, nil
}

func (r *RouteConfigRepo) List(ctx context.Context, allowed AllowedTeams, p Pagination) ([]domain.RouteConfig, error) {
	var rows pgx.Rows
	var err error
	if allowed.Any {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, name, cluster_name, import_id, version, team, created_at, updated_at
			FROM route_configs ORDER BY updated_at DESC, id DESC LIMIT $1 OFFSET $2
		`, p.Limit, p.Offset)
	} else {
		rows, err = r.db.Pool.Query(ctx, `
			SELECT id, name, cluster_name, import_id, version, team, created_at, updated_at
			FROM route_configs WHERE team = ANY($1) ORDER BY updated_at DESC, id DESC LIMIT $2 OFFSET $3
		`, teamUUIDs(allowed), p.Limit, p.Offset)
	}
	if err != nil {
		return nil, mapWriteError(err, "list", "route_configs", nil)
	}
	defer rows.Close()

	var out []domain.RouteConfig
	for rows.Next() {
		rc, err := scanRouteConfig(rows)
		if err != nil {
			return nil, apierr.Internal(err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

// ListVirtualHosts returns the VirtualHosts (and nested Routes) for a
// RouteConfig, ordered by rule_order with id as the deterministic
// tiebreaker (spec 9: ties in rule_order are broken by id).
func (r *RouteConfigRepo) ListVirtualHosts(ctx context.Context, rcID domain.RouteConfigID) ([]VirtualHostInput, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, route_config_id, name, domains, rule_order
		FROM virtual_hosts WHERE route_config_id = $1 ORDER BY rule_order, id
	`, uuid.UUID(rcID))
	if err != nil {
		return nil, mapWriteError(err, "list", "virtual_hosts", nil)
	}
	defer rows.Close()

	var vhs []domain.VirtualHost
	for rows.Next() {
		var vh domain.VirtualHost
		var id, rcid uuid.UUID
		var domainsJSON []byte
		if err := rows.Scan(&id, &rcid, &vh.Name, &domainsJSON, &vh.RuleOrder); err != nil {
			return nil, apierr.Internal(err)
		}
		vh.ID = domain.VirtualHostID(id)
		vh.RouteConfigID = domain.RouteConfigID(rcid)
		if err := json.Unmarshal(domainsJSON, &vh.Domains); err != nil {
			return nil, apierr.Internal(err)
		}
		vhs = append(vhs, vh)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]VirtualHostInput, 0, len(vhs))
	for _, vh := range vhs {
		routes, err := r.listRoutes(ctx, vh.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, VirtualHostInput{VH: vh, Routes: routes})
	}
	return out, nil
}

func (r *RouteConfigRepo) listRoutes(ctx context.Context, vhID domain.VirtualHostID) ([]domain.Route, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, virtual_host_id, name, path_pattern, match_type, rule_order, detail
		FROM routes WHERE virtual_host_id = $1 ORDER BY rule_order, id
	`, uuid.UUID(vhID))
	if err != nil {
		return nil, mapWriteError(err, "list", "routes", nil)
	}
	defer rows.Close()

	var out []domain.Route
	for rows.Next() {
		var rt domain.Route
		var id, vhid uuid.UUID
		var pattern, matchType string
		var detailJSON []byte
		if err := rows.Scan(&id, &vhid, &rt.Name, &pattern, &matchType, &rt.RuleOrder, &detailJSON); err != nil {
			return nil, apierr.Internal(err)
		}
		rt.ID = domain.RouteID(id)
		rt.VirtualHostID = domain.VirtualHostID(vhid)

		var detail routeRow
		if err := json.Unmarshal(detailJSON, &detail); err != nil {
			return nil, apierr.Internal(err)
		}
		pm, err := domain.NewPathMatch(domain.PathMatchKind(matchType), pattern)
		if err != nil {
			return nil, apierr.Internal(err)
		}
		pm.Params = detail.MatchParams
		rt.Match = pm
		rt.Headers = detail.Headers
		rt.QueryParams = detail.QueryParams
		rt.Action = detail.Action
		out = append(out, rt)
	}
	return out, rows.Err()
}

func insertRoute(ctx context.Context, tx pgx.Tx, vhID domain.VirtualHostID, rt domain.Route) error {
	detail := routeRow{
		Headers:     rt.Headers,
		QueryParams: rt.QueryParams,
		Action:      rt.Action,
		MatchParams: rt.Match.Params,
	}
	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return apierr.Internal(err)
	}
	id := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO routes (id, virtual_host_id, name, path_pattern, match_type, rule_order, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, uuid.UUID(vhID), rt.Name, rt.Match.Pattern, string(rt.Match.Kind), rt.RuleOrder, detailJSON)
	return mapWriteError(err, "create", "routes", nil)
}

// Update replaces a RouteConfig's default cluster and its whole
// VirtualHost/Route tree, incrementing version by exactly 1 (spec 4.2,
// §8 invariant 1). VirtualHosts and Routes are composition children that
// cascade by FK from RouteConfig (spec 3.3), so "new shape replaces old
// shape" is a delete-then-reinsert of that subtree inside the same
// transaction as the version bump, mirroring ListenerRepo.Update's
// delete-then-reattach of listener_route_configs.
func (r *RouteConfigRepo) Update(ctx context.Context, principal domain.PrincipalID, id domain.RouteConfigID, defaultCluster string, vhosts []VirtualHostInput) (domain.RouteConfig, error) {
	var before, out domain.RouteConfig
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		beforeRow := tx.QueryRow(ctx, `
			SELECT id, name, cluster_name, import_id, version, team, created_at, updated_at
			FROM route_configs WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		var err error
		before, err = scanRouteConfig(beforeRow)
		if err != nil {
			return mapWriteError(err, "update", "route_configs", nil)
		}

		row := tx.QueryRow(ctx, `
			UPDATE route_configs SET cluster_name = $1, version = version + 1, updated_at = now()
			WHERE id = $2
			RETURNING id, name, cluster_name, import_id, version, team, created_at, updated_at
		`, defaultCluster, uuid.UUID(id))
		out, err = scanRouteConfig(row)
		if err != nil {
			return mapWriteError(err, "update", "route_configs", nil)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM virtual_hosts WHERE route_config_id = $1`, uuid.UUID(id)); err != nil {
			return mapWriteError(err, "update", "virtual_hosts", nil)
		}
		for _, vhi := range vhosts {
			vhID := uuid.New()
			domainsJSON, err := json.Marshal(vhi.VH.Domains)
			if err != nil {
				return apierr.Internal(err)
			}
			_, err = tx.Exec(ctx, `
				INSERT INTO virtual_hosts (id, route_config_id, name, domains, rule_order)
				VALUES ($1, $2, $3, $4, $5)
			`, vhID, id, vhi.VH.Name, domainsJSON, vhi.VH.RuleOrder)
			if err != nil {
				return mapWriteError(err, "update", "virtual_hosts", nil)
			}
			for _, rt := range vhi.Routes {
				if err := insertRoute(ctx, tx, domain.VirtualHostID(vhID), rt); err != nil {
					return err
				}
			}
		}

		return r.audit.record(ctx, tx, principal, "update", "route_config", out.ID.String(), summarizeRouteConfig(before), summarizeRouteConfig(out))
	})
	return out, err
}

// Delete removes a RouteConfig. Children (VirtualHosts, Routes) cascade by
// FK; a delete that would dangle a Listener reference instead fails with
// Conflict naming the blocking listeners (spec 3.3, non-cascading reference).
func (r *RouteConfigRepo) Delete(ctx context.Context, principal domain.PrincipalID, id domain.RouteConfigID) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			SELECT id, name, cluster_name, import_id, version, team, created_at, updated_at
			FROM route_configs WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		before, err := scanRouteConfig(row)
		if err != nil {
			return mapWriteError(err, "delete", "route_configs", nil)
		}

		blockerRows, err := tx.Query(ctx, `
			SELECT l.name FROM listeners l
			JOIN listener_route_configs lrc ON lrc.listener_id = l.id
			WHERE lrc.route_config_id = $1
		`, uuid.UUID(id))
		if err != nil {
			return apierr.Internal(err)
		}
		var blockers []string
		for blockerRows.Next() {
			var n string
			if err := blockerRows.Scan(&n); err != nil {
				blockerRows.Close()
				return apierr.Internal(err)
			}
			blockers = append(blockers, n)
		}
		blockerRows.Close()
		if len(blockers) > 0 {
			return apierr.Conflict("route config is referenced by listeners", blockers)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM route_configs WHERE id = $1`, uuid.UUID(id)); err != nil {
			return mapWriteError(err, "delete", "route_configs", blockers)
		}
		return r.audit.record(ctx, tx, principal, "delete", "route_config", before.ID.String(), summarizeRouteConfig(before), "")
	})
}

func scanRouteConfig(row pgx.Row) (domain.RouteConfig, error) {
	var (
		id, team             uuid.UUID
		name, clusterName    string
		importID             *uuid.UUID
		version              int64
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &name, &clusterName, &importID, &version, &team, &createdAt, &updatedAt); err != nil {
		return domain.RouteConfig{}, err
	}
	rc := domain.RouteConfig{
		ID:             domain.RouteConfigID(id),
		Name:           name,
		DefaultCluster: clusterName,
		Team:           domain.TeamID(team),
		Version:        version,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
	if importID != nil {
		iid := domain.ImportID(*importID)
		rc.ImportID = &iid
	}
	return rc, nil
}

func summarizeRouteConfig(rc domain.RouteConfig) string {
	b, _ := json.Marshal(struct {
		Name    string `json:"name"`
		Version int64  `json:"version"`
	}{rc.Name, rc.Version})
	return string(b)
}
