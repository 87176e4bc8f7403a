package sale

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/models"
	"github.com/draftops/gavel/internal/sqlutil"
	"github.com/draftops/gavel/internal/team"
)

// Repository is the pgx-backed sale Store.
type Repository struct {
	pool  *pgxpool.Pool
	bids  *bid.Repository
	teams *team.Repository
}

// NewRepository creates a sale repository over the shared pool.
func NewRepository(pool *pgxpool.Pool, bids *bid.Repository, teams *team.Repository) *Repository {
	return &Repository{pool: pool, bids: bids, teams: teams}
}

var _ Store = (*Repository)(nil)

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return sqlutil.WithTx(ctx, r.pool, fn)
}

func (r *Repository) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	return r.bids.GetAuction(ctx, auctionID)
}

func (r *Repository) LockCurrentPlayer(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	return r.bids.LockCurrentPlayer(ctx, auctionID)
}

func (r *Repository) GetWinningBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	return r.bids.GetWinningBid(ctx, auctionID, playerID)
}

func (r *Repository) ApplyPurchase(ctx context.Context, teamID uuid.UUID, price int64) error {
	return r.teams.ApplyPurchase(ctx, teamID, price)
}

func (r *Repository) MarkSold(ctx context.Context, queuedPlayerID, teamID uuid.UUID, price int64, at time.Time) error {
	const query = `
UPDATE queued_players
SET status = 'SOLD', sold_to = $2, sold_price = $3, sold_at = $4
WHERE id = $1 AND status = 'AVAILABLE'`

	tag, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, queuedPlayerID, teamID, price, at)
	if err != nil {
		return fmt.Errorf("mark sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queued player %s is not available", queuedPlayerID)
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

func (r *Repository) NextAvailableAfter(ctx context.Context, auctionID uuid.UUID, displayOrder int) (*models.QueuedPlayer, error) {
	const query = `
SELECT id, auction_id, player_id, status, is_current, display_order,
       sold_to, sold_price, sold_at, is_replaced, replaced_by
FROM queued_players
WHERE auction_id = $1 AND status = 'AVAILABLE' AND display_order > $2
ORDER BY display_order ASC
LIMIT 1`

	var qp models.QueuedPlayer
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, auctionID, displayOrder).Scan(
		&qp.ID, &qp.AuctionID, &qp.PlayerID, &qp.Status, &qp.IsCurrent, &qp.DisplayOrder,
		&qp.SoldTo, &qp.SoldPrice, &qp.SoldAt, &qp.IsReplaced, &qp.ReplacedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next available player: %w", err)
	}
	return &qp, nil
}

func (r *Repository) SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error {
	const query = `UPDATE queued_players SET is_current = TRUE WHERE id = $1 AND auction_id = $2`
	tag, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, queuedPlayerID, auctionID)
	if err != nil {
		return fmt.Errorf("set current flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queued player %s not in auction %s", queuedPlayerID, auctionID)
	}
	return nil
}
