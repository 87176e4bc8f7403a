package cursor

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/models"
	"github.com/draftops/gavel/internal/queue"
	"github.com/draftops/gavel/internal/sqlutil"
)

// Repository is the pgx-backed cursor Store.
type Repository struct {
	pool  *pgxpool.Pool
	bids  *bid.Repository
	queue *queue.Repository
}

// NewRepository creates a cursor repository over the shared pool.
func NewRepository(pool *pgxpool.Pool, bids *bid.Repository, q *queue.Repository) *Repository {
	return &Repository{pool: pool, bids: bids, queue: q}
}

var _ Store = (*Repository)(nil)

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return sqlutil.WithTx(ctx, r.pool, fn)
}

func (r *Repository) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	return r.bids.GetAuction(ctx, auctionID)
}

func (r *Repository) GetByPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.QueuedPlayer, error) {
	return r.queue.GetByPlayer(ctx, auctionID, playerID)
}

func (r *Repository) GetCurrent(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	const query = `
SELECT id, auction_id, player_id, status, is_current, display_order,
       sold_to, sold_price, sold_at, is_replaced, replaced_by
FROM queued_players
WHERE auction_id = $1 AND is_current = TRUE`

	var qp models.QueuedPlayer
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, auctionID).Scan(
		&qp.ID, &qp.AuctionID, &qp.PlayerID, &qp.Status, &qp.IsCurrent, &qp.DisplayOrder,
		&qp.SoldTo, &qp.SoldPrice, &qp.SoldAt, &qp.IsReplaced, &qp.ReplacedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get current player: %w", err)
	}
	return &qp, nil
}

func (r *Repository) ListAvailable(ctx context.Context, auctionID uuid.UUID) ([]models.QueuedPlayer, error) {
	const query = `
SELECT id, auction_id, player_id, status, is_current, display_order,
       sold_to, sold_price, sold_at, is_replaced, replaced_by
FROM queued_players
WHERE auction_id = $1 AND status = 'AVAILABLE'
ORDER BY display_order ASC`

	rows, err := sqlutil.From(ctx, r.pool).Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list available players: %w", err)
	}
	defer rows.Close()

	var out []models.QueuedPlayer
	for rows.Next() {
		var qp models.QueuedPlayer
		if err := rows.Scan(
			&qp.ID, &qp.AuctionID, &qp.PlayerID, &qp.Status, &qp.IsCurrent, &qp.DisplayOrder,
			&qp.SoldTo, &qp.SoldPrice, &qp.SoldAt, &qp.IsReplaced, &qp.ReplacedBy,
		); err != nil {
			return nil, fmt.Errorf("scan queued player: %w", err)
		}
		out = append(out, qp)
	}
	return out, rows.Err()
}

func (r *Repository) SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error {
	const clear = `UPDATE queued_players SET is_current = FALSE WHERE auction_id = $1 AND is_current = TRUE`
	const set = `UPDATE queued_players SET is_current = TRUE WHERE id = $1 AND auction_id = $2`

	q := sqlutil.From(ctx, r.pool)
	if _, err := q.Exec(ctx, clear, auctionID); err != nil {
		return fmt.Errorf("clear current flag: %w", err)
	}
	tag, err := q.Exec(ctx, set, queuedPlayerID, auctionID)
	if err != nil {
		return fmt.Errorf("set current flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queued player %s not in auction %s", queuedPlayerID, auctionID)
	}
	return nil
}

func (r *Repository) ClearCurrentFlag(ctx context.Context, auctionID uuid.UUID) error {
	const query = `UPDATE queued_players SET is_current = FALSE WHERE auction_id = $1 AND is_current = TRUE`
	if _, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, auctionID); err != nil {
		return fmt.Errorf("clear current flag: %w", err)
	}
	return nil
}
