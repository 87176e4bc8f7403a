package team

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

// Repository owns team rows and purse accounting.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a team repository over the shared pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return sqlutil.WithTx(ctx, r.pool, fn)
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

func (r *Repository) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.Team, error) {
	const query = `
SELECT id, auction_id, name, captain_user_id, purse_initial, purse_spent, player_count
FROM teams WHERE auction_id = $1 ORDER BY name ASC`

	rows, err := sqlutil.From(ctx, r.pool).Query(ctx, query, auctionID)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer rows.Close()

	var out []models.Team
	for rows.Next() {
		var t models.Team
		if err := rows.Scan(
			&t.ID, &t.AuctionID, &t.Name, &t.CaptainUserID,
			&t.PurseInitial, &t.PurseSpent, &t.PlayerCount,
		); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ApplyPurchase commits a sale against the purse. The guard keeps
// purse_remaining >= 0 even if a racing write slipped past validation.
func (r *Repository) ApplyPurchase(ctx context.Context, teamID uuid.UUID, price int64) error {
	const query = `
UPDATE teams
SET purse_spent = purse_spent + $2, player_count = player_count + 1
WHERE id = $1 AND purse_initial - purse_spent >= $2`

	tag, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, teamID, price)
	if err != nil {
		return fmt.Errorf("apply purchase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purchase of %d exceeds remaining purse for team %s", price, teamID)
	}
	return nil
}

// RefundPurchase reverses a sale's purse effect.
func (r *Repository) RefundPurchase(ctx context.Context, teamID uuid.UUID, price int64) error {
	const query = `
UPDATE teams
SET purse_spent = GREATEST(purse_spent - $2, 0),
    player_count = GREATEST(player_count - 1, 0)
WHERE id = $1`

	_, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, teamID, price)
	if err != nil {
		return fmt.Errorf("refund purchase: %w", err)
	}
	return nil
}
