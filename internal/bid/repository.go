package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftops/gavel/internal/models"
	"github.com/draftops/gavel/internal/sqlutil"
)

// Repository is the pgx-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a bid repository over the shared pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// WithTx runs fn inside a transaction bound to the context.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return sqlutil.WithTx(ctx, r.pool, fn)
}

func (r *Repository) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	const query = `
SELECT id, tournament_id, host_user_id, status, min_bid_increment, auto_advance_on_sale,
       started_at, completed_at, created_at, updated_at
FROM auctions WHERE id = $1`

	var a models.Auction
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, auctionID).Scan(
		&a.ID, &a.TournamentID, &a.HostUserID, &a.Status,
		&a.Settings.MinBidIncrement, &a.Settings.AutoAdvanceOnSale,
		&a.StartedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get auction: %w", err)
	}
	return &a, nil
}

func (r *Repository) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	const query = `
SELECT id, auction_id, name, captain_user_id, purse_initial, purse_spent, player_count
FROM teams WHERE id = $1`

	var t models.Team
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, teamID).Scan(
		&t.ID, &t.AuctionID, &t.Name, &t.CaptainUserID,
		&t.PurseInitial, &t.PurseSpent, &t.PlayerCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get team: %w", err)
	}
	return &t, nil
}

// LockCurrentPlayer takes a row lock on the current queued player. All
// concurrent bid transactions for the same auction queue behind it.
func (r *Repository) LockCurrentPlayer(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	const query = `
SELECT id, auction_id, player_id, status, is_current, display_order,
       sold_to, sold_price, sold_at, is_replaced, replaced_by
FROM queued_players
WHERE auction_id = $1 AND is_current = TRUE
FOR UPDATE`

	qp, err := scanQueuedPlayer(sqlutil.From(ctx, r.pool).QueryRow(ctx, query, auctionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock current player: %w", err)
	}
	return qp, nil
}

func (r *Repository) FirstAvailableExcluding(ctx context.Context, auctionID uuid.UUID, exclude []uuid.UUID) (*models.QueuedPlayer, error) {
	const query = `
SELECT qp.id, qp.auction_id, qp.player_id, qp.status, qp.is_current, qp.display_order,
       qp.sold_to, qp.sold_price, qp.sold_at, qp.is_replaced, qp.replaced_by
FROM queued_players qp
JOIN players p ON p.id = qp.player_id
WHERE qp.auction_id = $1
  AND qp.status = 'AVAILABLE'
  AND p.is_captain = FALSE
  AND NOT (qp.player_id = ANY($2))
ORDER BY qp.display_order ASC
LIMIT 1`

	if exclude == nil {
		exclude = []uuid.UUID{}
	}
	qp, err := scanQueuedPlayer(sqlutil.From(ctx, r.pool).QueryRow(ctx, query, auctionID, exclude))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("first available player: %w", err)
	}
	return qp, nil
}

func (r *Repository) AssignCurrent(ctx context.Context, queuedPlayerID uuid.UUID) error {
	const clear = `
UPDATE queued_players SET is_current = FALSE
WHERE auction_id = (SELECT auction_id FROM queued_players WHERE id = $1) AND is_current = TRUE`
	const set = `UPDATE queued_players SET is_current = TRUE WHERE id = $1`

	q := sqlutil.From(ctx, r.pool)
	if _, err := q.Exec(ctx, clear, queuedPlayerID); err != nil {
		return fmt.Errorf("clear current flag: %w", err)
	}
	if _, err := q.Exec(ctx, set, queuedPlayerID); err != nil {
		return fmt.Errorf("set current flag: %w", err)
	}
	return nil
}

func (r *Repository) GetPlayer(ctx context.Context, playerID uuid.UUID) (*models.Player, error) {
	const query = `SELECT id, full_name, is_captain, base_price FROM players WHERE id = $1`

	var p models.Player
	err := sqlutil.From(ctx, r.pool).QueryRow(ctx, query, playerID).Scan(
		&p.ID, &p.FullName, &p.IsCaptain, &p.BasePrice,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get player: %w", err)
	}
	return &p, nil
}

func (r *Repository) GetWinningBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	const query = `
SELECT id, auction_id, player_id, team_id, amount, is_winning, is_undone,
       created_at, undone_at, undone_by
FROM bids
WHERE auction_id = $1 AND player_id = $2 AND is_winning = TRUE AND is_undone = FALSE`

	b, err := scanBid(sqlutil.From(ctx, r.pool).QueryRow(ctx, query, auctionID, playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get winning bid: %w", err)
	}
	return b, nil
}

func (r *Repository) ClearWinning(ctx context.Context, bidID uuid.UUID) error {
	const query = `UPDATE bids SET is_winning = FALSE WHERE id = $1`
	if _, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, bidID); err != nil {
		return fmt.Errorf("clear winning bid: %w", err)
	}
	return nil
}

func (r *Repository) InsertBid(ctx context.Context, b *models.Bid) error {
	const query = `
INSERT INTO bids (id, auction_id, player_id, team_id, amount, is_winning, is_undone, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := sqlutil.From(ctx, r.pool).Exec(ctx, query,
		b.ID, b.AuctionID, b.PlayerID, b.TeamID, b.Amount, b.IsWinning, b.IsUndone, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (r *Repository) ListBids(ctx context.Context, auctionID uuid.UUID, playerID *uuid.UUID, limit int) ([]models.Bid, error) {
	const query = `
SELECT id, auction_id, player_id, team_id, amount, is_winning, is_undone,
       created_at, undone_at, undone_by
FROM bids
WHERE auction_id = $1
  AND is_undone = FALSE
  AND ($2::uuid IS NULL OR player_id = $2)
ORDER BY created_at DESC
LIMIT $3`

	rows, err := sqlutil.From(ctx, r.pool).Query(ctx, query, auctionID, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	defer rows.Close()

	var bids []models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		bids = append(bids, *b)
	}
	return bids, rows.Err()
}

func scanBid(row pgx.Row) (*models.Bid, error) {
	var b models.Bid
	err := row.Scan(
		&b.ID, &b.AuctionID, &b.PlayerID, &b.TeamID, &b.Amount,
		&b.IsWinning, &b.IsUndone, &b.CreatedAt, &b.UndoneAt, &b.UndoneBy,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanQueuedPlayer(row pgx.Row) (*models.QueuedPlayer, error) {
	var qp models.QueuedPlayer
	err := row.Scan(
		&qp.ID, &qp.AuctionID, &qp.PlayerID, &qp.Status, &qp.IsCurrent, &qp.DisplayOrder,
		&qp.SoldTo, &qp.SoldPrice, &qp.SoldAt, &qp.IsReplaced, &qp.ReplacedBy,
	)
	if err != nil {
		return nil, err
	}
	return &qp, nil
}
