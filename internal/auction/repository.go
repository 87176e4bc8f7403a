package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/cursor"
	"github.com/draftops/gavel/internal/models"
	"github.com/draftops/gavel/internal/sqlutil"
)

// Repository is the pgx-backed auction lifecycle Store.
type Repository struct {
	pool   *pgxpool.Pool
	bids   *bid.Repository
	cursor *cursor.Repository
}

// NewRepository creates an auction repository over the shared pool.
func NewRepository(pool *pgxpool.Pool, bids *bid.Repository, cur *cursor.Repository) *Repository {
	return &Repository{pool: pool, bids: bids, cursor: cur}
}

var _ Store = (*Repository)(nil)

func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return sqlutil.WithTx(ctx, r.pool, fn)
}

func (r *Repository) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	return r.bids.GetAuction(ctx, auctionID)
}

func (r *Repository) SetStatus(ctx context.Context, auctionID uuid.UUID, status models.AuctionStatus, at time.Time) error {
	var query string
	switch status {
	case models.AuctionStatusLive:
		query = `UPDATE auctions SET status = $1, started_at = $2, updated_at = $2 WHERE id = $3`
	case models.AuctionStatusCompleted:
		query = `UPDATE auctions SET status = $1, completed_at = $2, updated_at = $2 WHERE id = $3`
	default:
		return fmt.Errorf("status %s is not a valid transition target", status)
	}

	tag, err := sqlutil.From(ctx, r.pool).Exec(ctx, query, status, at, auctionID)
	if err != nil {
		return fmt.Errorf("set auction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return bid.ErrAuctionNotFound
	}
	return nil
}

func (r *Repository) ClearCurrentFlag(ctx context.Context, auctionID uuid.UUID) error {
	return r.cursor.ClearCurrentFlag(ctx, auctionID)
}

func (r *Repository) FirstAvailable(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	return r.bids.FirstAvailableExcluding(ctx, auctionID, nil)
}

func (r *Repository) SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error {
	return r.cursor.SetCurrentFlag(ctx, auctionID, queuedPlayerID)
}
