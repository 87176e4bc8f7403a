package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftops/gavel/internal/fanout/events"
	"github.com/draftops/gavel/internal/sqlutil"
)

// Repository persists outbox rows. InsertEvent participates in whatever
// transaction is bound to the context, so an event row commits or rolls
// back together with the state change that produced it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an outbox repository over the shared pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return sqlutil.WithTx(ctx, r.pool, fn)
}

func (r *Repository) InsertEvent(ctx context.Context, env events.Envelope) error {
	const query = `
INSERT INTO outbox_events (id, auction_id, event_type, payload, created_at)
VALUES ($1, $2, $3, $4, $5)`

	_, err := sqlutil.From(ctx, r.pool).Exec(ctx, query,
		env.EventID, env.AuctionID, env.EventType, env.Payload, env.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// FetchUnsent returns up to limit unpublished events in creation order.
// Rows are locked with SKIP LOCKED so concurrent pollers never hand the
// same event to the broker twice in one pass.
func (r *Repository) FetchUnsent(ctx context.Context, limit int32) ([]Event, error) {
	const query = `
SELECT id, auction_id, event_type, payload, created_at, sent_at
FROM outbox_events
WHERE sent_at IS NULL
ORDER BY created_at ASC
LIMIT $1
FOR UPDATE SKIP LOCKED`

	rows, err := sqlutil.From(ctx, r.pool).Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch unsent outbox events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.AuctionID, &e.EventType, &e.Payload, &e.CreatedAt, &e.SentAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repository) MarkSent(ctx context.Context, ids []uuid.UUID) error {
	const query = `UPDATE outbox_events SET sent_at = NOW() WHERE id = ANY($1)`
	if _, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("mark outbox events sent: %w", err)
	}
	return nil
}
