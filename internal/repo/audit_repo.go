package repo

import (
	"context"

	"github.com/flexcp/flexcp/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditRepo writes AuditEvents. It is always called from inside another
// repository's transaction (spec 4.2) via record; List reads the audit
// trail back, and no REST route calls it.
type AuditRepo struct {
	db *DB
}

func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// record inserts one AuditEvent using tx, so it commits atomically with
// whatever business write triggered it.
func (r *AuditRepo) record(ctx context.Context, tx pgx.Tx, principal domain.PrincipalID, action, resourceKind, resourceID, before, after string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_events (id, principal_id, action, resource_kind, resource_id, before_summary, after_summary, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
	`, uuid.New(), uuid.UUID(principal), action, resourceKind, resourceID, before, after, correlationIDFromContext(ctx))
	return mapWriteError(err, "create", "audit_events", nil)
}

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation id to ctx for the audit trail.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

func correlationIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return v
	}
	return ""
}

func (r *AuditRepo) List(ctx context.Context, resourceKind, resourceID string, p Pagination) ([]domain.AuditEvent, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, principal_id, action, resource_kind, resource_id, before_summary, after_summary, correlation_id, created_at
		FROM audit_events WHERE resource_kind = $1 AND resource_id = $2
		ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4
	`, resourceKind, resourceID, p.Limit, p.Offset)
	if err != nil {
		return nil, mapWriteError(err, "list", "audit_events", nil)
	}
	defer rows.Close()

	var out []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		var id, principal uuid.UUID
		if err := rows.Scan(&id, &principal, &e.Action, &e.ResourceKind, &e.ResourceID, &e.Before, &e.After, &e.CorrelationID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ID = domain.AuditEventID(id)
		e.PrincipalID = domain.PrincipalID(principal)
		out = append(out, e)
	}
	return out, rows.Err()
}
