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

// FilterRepo persists reusable Filters plus their Listener attachments and
// per-route overrides.
type FilterRepo struct {
	db    *DB
	audit *AuditRepo
}

func NewFilterRepo(db *DB, audit *AuditRepo) *FilterRepo {
	return &FilterRepo{db: db, audit: audit}
}

func (r *FilterRepo) Create(ctx context.Context, principal domain.PrincipalID, f domain.Filter) (domain.Filter, error) {
	var out domain.Filter
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		id := uuid.New()
		now := time.Now().UTC()
		row := tx.QueryRow(ctx, `
			INSERT INTO filters (id, name, team, type, configuration, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, 1, $6, $6)
			RETURNING id, name, team, type, configuration, version, created_at, updated_at
		`, id, f.Name, uuid.UUID(f.Team), string(f.Type), []byte(f.Config), now)

		var err error
		out, err = scanFilter(row)
		if err != nil {
			return mapWriteError(err, "create", "filters", nil)
		}
		return r.audit.record(ctx, tx, principal, "create", "filter", out.ID.String(), "", summarizeFilter(out))
	})
	return out, err
}

func (r *FilterRepo) GetByID(ctx context.Context, id domain.FilterID, allowed AllowedTeams) (domain.Filter, error) {
	row := r.db.Pool.QueryRow(ctx, `
		SELECT f.id, f.name, f.team, f.type, f.configuration, f.version, f.created_at, f.updated_at,
		       (SELECT count(*) FROM filter_installations fi WHERE fi.filter_id = f.id)
		FROM filters f WHERE f.id = $1
	`, uuid.UUID(id))
	f, err := scanFilterWithAttachments(row)
	if err != nil {
		return domain.Filter{}, mapWriteError(err, "get_by_id", "filters", nil)
	}
	if !allowed.Allows(f.Team.String()) {
		return domain.Filter{}, apierr.NotFound("filter not found")
	}
	return f, nil
}

func (r *FilterRepo) List(ctx context.Context, allowed AllowedTeams, p Pagination) ([]domain.Filter, error) {
	var rows pgx.Rows
	var err error
	const base = `
		SELECT f.id, f.name, f.team, f.type, f.configuration, f.version, f.created_at, f.updated_at,
		       (SELECT count(*) FROM filter_installations fi WHERE fi.filter_id = f.id)
		FROM filters f`
	if allowed.Any {
		rows, err = r.db.Pool.Query(ctx, base+` ORDER BY f.updated_at DESC, f.id DESC LIMIT $1 OFFSET $2`, p.Limit, p.Offset)
	} else {
		rows, err = r.db.Pool.Query(ctx, base+` WHERE f.team = ANY($1) ORDER BY f.updated_at DESC, f.id DESC LIMIT $2 OFFSET $3`,
			teamUUIDs(allowed), p.Limit, p.Offset)
	}
	if err != nil {
		return nil, mapWriteError(err, "list", "filters", nil)
	}
	defer rows.Close()

	var out []domain.Filter
	for rows.Next() {
		f, err := scanFilterWithAttachments(rows)
		if err != nil {
			return nil, apierr.Internal(err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *FilterRepo) Update(ctx context.Context, principal domain.PrincipalID, id domain.FilterID, config json.RawMessage) (domain.Filter, error) {
	var before, out domain.Filter
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		beforeRow := tx.QueryRow(ctx, `
			SELECT id, name, team, type, configuration, version, created_at, updated_at
			FROM filters WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		var err error
		before, err = scanFilter(beforeRow)
		if err != nil {
			return mapWriteError(err, "update", "filters", nil)
		}

		row := tx.QueryRow(ctx, `
			UPDATE filters SET configuration = $1, version = version + 1, updated_at = now()
			WHERE id = $2
			RETURNING id, name, team, type, configuration, version, created_at, updated_at
		`, []byte(config), uuid.UUID(id))
		out, err = scanFilter(row)
		if err != nil {
			return mapWriteError(err, "update", "filters", nil)
		}
		return r.audit.record(ctx, tx, principal, "update", "filter", out.ID.String(), summarizeFilter(before), summarizeFilter(out))
	})
	return out, err
}

// Delete removes a Filter. A delete that would dangle a Listener
// attachment instead fails with Conflict naming the blocking listeners.
func (r *FilterRepo) Delete(ctx context.Context, principal domain.PrincipalID, id domain.FilterID) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		beforeRow := tx.QueryRow(ctx, `
			SELECT id, name, team, type, configuration, version, created_at, updated_at
			FROM filters WHERE id = $1 FOR UPDATE
		`, uuid.UUID(id))
		before, err := scanFilter(beforeRow)
		if err != nil {
			return mapWriteError(err, "delete", "filters", nil)
		}

		blockerRows, err := tx.Query(ctx, `
			SELECT l.name FROM listeners l
			JOIN filter_installations fi ON fi.listener_id = l.id
			WHERE fi.filter_id = $1
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
			return apierr.Conflict("filter is attached to listeners", blockers)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM filters WHERE id = $1`, uuid.UUID(id)); err != nil {
			return mapWriteError(err, "delete", "filters", blockers)
		}
		return r.audit.record(ctx, tx, principal, "delete", "filter", before.ID.String(), summarizeFilter(before), "")
	})
}

// Attach inserts a FilterAttachment, ordering the filter into a listener's
// HCM chain. Order ties are broken by the inserted_at timestamp stamped
// here (spec 3.2), so insertion order itself, not a caller-supplied
// tiebreaker, is what ListAttachments sorts ties on.
func (r *FilterRepo) Attach(ctx context.Context, principal domain.PrincipalID, filterID domain.FilterID, listenerID domain.ListenerID, order int) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO filter_installations (filter_id, listener_id, "order", inserted_at)
			VALUES ($1, $2, $3, now())
		`, uuid.UUID(filterID), uuid.UUID(listenerID), order)
		if err != nil {
			return mapWriteError(err, "create", "filter_installations", nil)
		}
		return r.audit.record(ctx, tx, principal, "attach", "filter_installation", filterID.String()+"/"+listenerID.String(), "", "")
	})
}

func (r *FilterRepo) Detach(ctx context.Context, principal domain.PrincipalID, filterID domain.FilterID, listenerID domain.ListenerID) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			DELETE FROM filter_installations WHERE filter_id = $1 AND listener_id = $2
		`, uuid.UUID(filterID), uuid.UUID(listenerID))
		if err != nil {
			return mapWriteError(err, "delete", "filter_installations", nil)
		}
		if tag.RowsAffected() == 0 {
			return apierr.NotFound("filter attachment not found")
		}
		return r.audit.record(ctx, tx, principal, "detach", "filter_installation", filterID.String()+"/"+listenerID.String(), "", "")
	})
}

// SetRouteOverride upserts a per-route override for an attached filter.
func (r *FilterRepo) SetRouteOverride(ctx context.Context, principal domain.PrincipalID, o domain.RouteFilterOverride) error {
	return r.db.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO route_filter_overrides (filter_id, route_id, configuration)
			VALUES ($1, $2, $3)
			ON CONFLICT (filter_id, route_id) DO UPDATE SET configuration = EXCLUDED.configuration
		`, uuid.UUID(o.FilterID), uuid.UUID(o.RouteID), []byte(o.Config))
		if err != nil {
			return mapWriteError(err, "upsert", "route_filter_overrides", nil)
		}
		return r.audit.record(ctx, tx, principal, "set_override", "route_filter_override", o.FilterID.String()+"/"+o.RouteID.String(), "", "")
	})
}

func (r *FilterRepo) ListAttachments(ctx context.Context, listenerID domain.ListenerID) ([]domain.FilterAttachment, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT filter_id, listener_id, "order", inserted_at
		FROM filter_installations WHERE listener_id = $1 ORDER BY "order", inserted_at
	`, uuid.UUID(listenerID))
	if err != nil {
		return nil, mapWriteError(err, "list", "filter_installations", nil)
	}
	defer rows.Close()

	var out []domain.FilterAttachment
	for rows.Next() {
		var a domain.FilterAttachment
		var filterID, listenerID uuid.UUID
		if err := rows.Scan(&filterID, &listenerID, &a.Order, &a.InsertedAt); err != nil {
			return nil, apierr.Internal(err)
		}
		a.FilterID = domain.FilterID(filterID)
		a.ListenerID = domain.ListenerID(listenerID)
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanFilter(row pgx.Row) (domain.Filter, error) {
	var (
		id, team             uuid.UUID
		name, typ            string
		cfgJSON              []byte
		version              int64
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &name, &team, &typ, &cfgJSON, &version, &createdAt, &updatedAt); err != nil {
		return domain.Filter{}, err
	}
	return domain.Filter{
		ID:        domain.FilterID(id),
		Name:      name,
		Team:      domain.TeamID(team),
		Type:      domain.FilterType(typ),
		Config:    json.RawMessage(cfgJSON),
		Version:   version,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func scanFilterWithAttachments(row pgx.Row) (domain.Filter, error) {
	var (
		id, team             uuid.UUID
		name, typ            string
		cfgJSON              []byte
		version              int64
		createdAt, updatedAt time.Time
		attachmentCount      int
	)
	if err := row.Scan(&id, &name, &team, &typ, &cfgJSON, &version, &createdAt, &updatedAt, &attachmentCount); err != nil {
		return domain.Filter{}, err
	}
	return domain.Filter{
		ID:              domain.FilterID(id),
		Name:            name,
		Team:            domain.TeamID(team),
		Type:            domain.FilterType(typ),
		Config:          json.RawMessage(cfgJSON),
		Version:         version,
		AttachmentCount: attachmentCount,
		CreatedAt:       createdAt,
		UpdatedAt:       updatedAt,
	}, nil
}

func summarizeFilter(f domain.Filter) string {
	b, _ := json.Marshal(struct {
		Name    string `json:"name"`
		Type    string `json:"type"`
		Version int64  `json:"version"`
	}{f.Name, string(f.Type), f.Version})
	return string(b)
}
