package undo

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
	"github.com/draftops/gavel/internal/queue"
	"github.com/draftops/gavel/internal/sqlutil"
	"github.com/draftops/gavel/internal/team"
)

// Repository is the pgx-backed undo Store.
type Repository struct {
	pool  *pgxpool.Pool
	bids  *bid.Repository
	teams *team.Repository
	queue *queue.Repository
}

// NewRepository creates an undo repository over the shared pool.
func NewRepository(pool *pgxpool.Pool, bids *bid.Repository, teams *team.Repository, q *queue.Repository) *Repository {
	return &Repository{pool: pool, bids: bids, teams: teams, queue: q}
}

var _ Store = (*Repository)(nil)

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return sqlutil.WithTx(ctx, r.pool, fn)
}

func (r *Repository) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	return r.bids.GetAuction(ctx, auctionID)
}

func (r *Repository) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	return r.teams.GetTeam(ctx, teamID)
}

func (r *Repository) GetWinningBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	return r.bids.GetWinningBid(ctx, auctionID, playerID)
}

func (r *Repository) GetBid(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	const query = `
SELECT id, auction_id, player_id, team_id, amount, is_winning, is_undone,
       created_at, undone_at, undone_by
FROM bids WHERE id = $1`

	var b models.Bid
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, bidID).Scan(
		&b.ID, &b.AuctionID, &b.PlayerID, &b.TeamID, &b.Amount,
		&b.IsWinning, &b.IsUndone, &b.CreatedAt, &b.UndoneAt, &b.UndoneBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get bid: %w", err)
	}
	return &b, nil
}

func (r *Repository) MarkBidUndone(ctx context.Context, bidID, undoneBy uuid.UUID, at time.Time) error {
	const query = `
UPDATE bids SET is_winning = FALSE, is_undone = TRUE, undone_at = $2, undone_by = $3
WHERE id = $1 AND is_undone = FALSE`

	tag, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, bidID, at, undoneBy)
	if err != nil {
		return fmt.Errorf("mark bid undone: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bid %s already undone", bidID)
	}
	return nil
}

func (r *Repository) HighestRemainingBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	const query = `
SELECT id, auction_id, player_id, team_id, amount, is_winning, is_undone,
       created_at, undone_at, undone_by
FROM bids
WHERE auction_id = $1 AND player_id = $2 AND is_undone = FALSE
ORDER BY amount DESC, created_at DESC
LIMIT 1`

	var b models.Bid
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, auctionID, playerID).Scan(
		&b.ID, &b.AuctionID, &b.PlayerID, &b.TeamID, &b.Amount,
		&b.IsWinning, &b.IsUndone, &b.CreatedAt, &b.UndoneAt, &b.UndoneBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("highest remaining bid: %w", err)
	}
	return &b, nil
}

func (r *Repository) SetWinning(ctx context.Context, bidID uuid.UUID) error {
	const query = `UPDATE bids SET is_winning = TRUE WHERE id = $1 AND is_undone = FALSE`
	tag, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, bidID)
	if err != nil {
		return fmt.Errorf("set winning bid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bid %s cannot be promoted", bidID)
	}
	return nil
}

func (r *Repository) MarkAllBidsUndone(ctx context.Context, auctionID, playerID, undoneBy uuid.UUID, at time.Time) (int, error) {
	const query = `
UPDATE bids SET is_winning = FALSE, is_undone = TRUE, undone_at = $3, undone_by = $4
WHERE auction_id = $1 AND player_id = $2 AND is_undone = FALSE`

	tag, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, auctionID, playerID, at, undoneBy)
	if err != nil {
		return 0, fmt.Errorf("mark all bids undone: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// MostRecentSale locks the latest sold row so a concurrent second undo
// cannot reverse the same sale twice.
func (r *Repository) MostRecentSale(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	const query = `
SELECT id, auction_id, player_id, status, is_current, display_order,
       sold_to, sold_price, sold_at, is_replaced, replaced_by
FROM queued_players
WHERE auction_id = $1 AND status = 'SOLD' AND sold_at IS NOT NULL
ORDER BY sold_at DESC
LIMIT 1
FOR UPDATE`

	var qp models.QueuedPlayer
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, auctionID).Scan(
		&qp.ID, &qp.AuctionID, &qp.PlayerID, &qp.Status, &qp.IsCurrent, &qp.DisplayOrder,
		&qp.SoldTo, &qp.SoldPrice, &qp.SoldAt, &qp.IsReplaced, &qp.ReplacedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("most recent sale: %w", err)
	}
	return &qp, nil
}

func (r *Repository) MarkAvailable(ctx context.Context, queuedPlayerID uuid.UUID) error {
	const query = `
UPDATE queued_players
SET status = 'AVAILABLE', sold_to = NULL, sold_price = NULL, sold_at = NULL
WHERE id = $1 AND status = 'SOLD'`

	tag, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, queuedPlayerID)
	if err != nil {
		return fmt.Errorf("mark available: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queued player %s is not sold", queuedPlayerID)
	}
	return nil
}

func (r *Repository) SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error {
	const clear = `UPDATE queued_players SET is_current = FALSE WHERE auction_id = $1 AND is_current = TRUE`
	const set = `UPDATE queued_players SET is_current = TRUE WHERE id = $1 AND auction_id = $2`

	q := sqlutil.From(ctx, r.pool)
	if _, err := q.Exec(ctx, clear, auctionID); err != nil {
		return fmt.Errorf("clear current flag: %w", err)
	}
	if _, err := q.Exec(ctx, set, queuedPlayerID, auctionID); err != nil {
		return fmt.Errorf("set current flag: %w", err)
	}
	return nil
}

func (r *Repository) RefundPurchase(ctx context.Context, teamID uuid.UUID, price int64) error {
	return r.teams.RefundPurchase(ctx, teamID, price)
}

func (r *Repository) GetQueued(ctx context.Context, queuedPlayerID uuid.UUID) (*models.QueuedPlayer, error) {
	const query = `
SELECT id, auction_id, player_id, status, is_current, display_order,
       sold_to, sold_price, sold_at, is_replaced, replaced_by
FROM queued_players WHERE id = $1`

	var qp models.QueuedPlayer
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, queuedPlayerID).Scan(
		&qp.ID, &qp.AuctionID, &qp.PlayerID, &qp.Status, &qp.IsCurrent, &qp.DisplayOrder,
		&qp.SoldTo, &qp.SoldPrice, &qp.SoldAt, &qp.IsReplaced, &qp.ReplacedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get queued player: %w", err)
	}
	return &qp, nil
}

func (r *Repository) GetQueuedByPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.QueuedPlayer, error) {
	return r.queue.GetByPlayer(ctx, auctionID, playerID)
}

func (r *Repository) MarkReplaced(ctx context.Context, originalQueuedID, replacementPlayerID uuid.UUID) error {
	const query = `
UPDATE queued_players SET is_replaced = TRUE, replaced_by = $2, status = 'REPLACED'
WHERE id = $1 AND is_replaced = FALSE`

	tag, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, originalQueuedID, replacementPlayerID)
	if err != nil {
		return fmt.Errorf("mark replaced: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("queued player %s already replaced", originalQueuedID)
	}
	return nil
}

func (r *Repository) UpsertReplacementSold(ctx context.Context, auctionID, playerID, teamID uuid.UUID, at time.Time) (uuid.UUID, error) {
	const query = `
INSERT INTO queued_players (id, auction_id, player_id, status, is_current, display_order, sold_to, sold_price, sold_at)
VALUES ($1, $2, $3, 'SOLD', FALSE,
        COALESCE((SELECT MAX(display_order) + 1 FROM queued_players WHERE auction_id = $2), 1),
        $4, 0, $5)
ON CONFLICT (auction_id, player_id)
DO UPDATE SET status = 'SOLD', sold_to = $4, sold_price = 0, sold_at = $5
RETURNING id`

	var id uuid.UUID
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, uuid.New(), auctionID, playerID, teamID, at).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert replacement: %w", err)
	}
	return id, nil
}

func (r *Repository) InsertReplacementRecord(ctx context.Context, rec models.ReplacementRecord) error {
	const query = `
INSERT INTO replacement_records
	(id, original_queued_id, replacement_player_id, team_id, status, reason, requested_by, created_at, resolved_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := sqlutil.From(ctx, r.pool).Exec(ctx, query,
		rec.ID, rec.OriginalQueuedID, rec.ReplacementPlayerID, rec.TeamID,
		rec.Status, rec.Reason, rec.RequestedBy, rec.CreatedAt, rec.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("insert replacement record: %w", err)
	}
	return nil
}
