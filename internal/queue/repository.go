package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/models"
	"github.com/draftops/gavel/internal/sqlutil"
)

const queuedPlayerColumns = `id, auction_id, player_id, status, is_current, display_order,
       sold_to, sold_price, sold_at, is_replaced, replaced_by`

// Repository is the pgx-backed queue Store. Auction and team reads are
// delegated to the bid repository so validation sees the same rows.
type Repository struct {
	pool *pgxpool.Pool
	bids *bid.Repository
}

// NewRepository creates a queue repository over the shared pool.
func NewRepository(pool *pgxpool.Pool, bids *bid.Repository) *Repository {
	return &Repository{pool: pool, bids: bids}
}

var _ Store = (*Repository)(nil)

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return sqlutil.WithTx(ctx, r.pool, fn)
}

func (r *Repository) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	return r.bids.GetAuction(ctx, auctionID)
}

func (r *Repository) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	return r.bids.GetTeam(ctx, teamID)
}

func (r *Repository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.QueuedPlayer, error) {
	query := fmt.Sprintf(`
SELECT %s FROM queued_players
WHERE auction_id = $1
ORDER BY display_order ASC`, queuedPlayerColumns)

	rows, err := sqlutil.From(ctx, r.pool).Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list queued players: %w", err)
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

func (r *Repository) GetByPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.QueuedPlayer, error) {
	query := fmt.Sprintf(`
SELECT %s FROM queued_players
WHERE auction_id = $1 AND player_id = $2`, queuedPlayerColumns)

	var qp models.QueuedPlayer
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, auctionID, playerID).Scan(
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

// InsertSkip is idempotent: the unique (auction, player, team) constraint
// turns duplicates into no-ops.
func (r *Repository) InsertSkip(ctx context.Context, rec models.SkipRecord) error {
	const query = `
INSERT INTO skip_records (id, auction_id, player_id, team_id, skipped_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (auction_id, player_id, team_id) DO NOTHING`

	_, err := sqlutil.From(ctx, r.pool).Exec(ctx, query,
		rec.ID, rec.AuctionID, rec.PlayerID, rec.TeamID, rec.SkippedAt,
	)
	if err != nil {
		return fmt.Errorf("insert skip: %w", err)
	}
	return nil
}

func (r *Repository) DeleteSkip(ctx context.Context, auctionID, playerID, teamID uuid.UUID) error {
	const query = `
DELETE FROM skip_records WHERE auction_id = $1 AND player_id = $2 AND team_id = $3`

	_, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, auctionID, playerID, teamID)
	if err != nil {
		return fmt.Errorf("delete skip: %w", err)
	}
	return nil
}

func (r *Repository) ListSkips(ctx context.Context, auctionID, playerID uuid.UUID) ([]models.SkipRecord, error) {
	const query = `
SELECT id, auction_id, player_id, team_id, skipped_at
FROM skip_records
WHERE auction_id = $1 AND player_id = $2
ORDER BY skipped_at ASC`

	rows, err := sqlutil.From(ctx, r.pool).Query(ctx, query, auctionID, playerID)
	if err != nil {
		return nil, fmt.Errorf("list skips: %w", err)
	}
	defer rows.Close()

	var out []models.SkipRecord
	for rows.Next() {
		var rec models.SkipRecord
		if err := rows.Scan(&rec.ID, &rec.AuctionID, &rec.PlayerID, &rec.TeamID, &rec.SkippedAt); err != nil {
			return nil, fmt.Errorf("scan skip: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
