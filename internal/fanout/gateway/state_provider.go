package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/cursor"
	"github.com/draftops/gavel/internal/queue"
	"github.com/draftops/gavel/internal/team"
)

const snapshotBidLimit = 100

// StateProvider assembles connect-time snapshots. It reads the
// repositories directly, never the cache, so reconnecting clients get
// the authoritative state.
type StateProvider struct {
	bids   *bid.Repository
	teams  *team.Repository
	queue  *queue.Repository
	cursor *cursor.Repository
}

// NewStateProvider wires a provider over the shared repositories.
func NewStateProvider(bids *bid.Repository, teams *team.Repository, q *queue.Repository, cur *cursor.Repository) *StateProvider {
	return &StateProvider{bids: bids, teams: teams, queue: q, cursor: cur}
}

// Snapshot loads the full auction view.
func (p *StateProvider) Snapshot(ctx context.Context, auctionID uuid.UUID) (*Snapshot, error) {
	auction, err := p.bids.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot auction: %w", err)
	}
	if auction == nil {
		return nil, bid.ErrAuctionNotFound
	}

	teams, err := p.teams.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot teams: %w", err)
	}

	queued, err := p.queue.ListByAuction(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot queue: %w", err)
	}

	current, err := p.cursor.GetCurrent(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("snapshot current player: %w", err)
	}

	recent, err := p.bids.ListBids(ctx, auctionID, nil, snapshotBidLimit)
	if err != nil {
		return nil, fmt.Errorf("snapshot bids: %w", err)
	}

	return &Snapshot{
		Auction:    auction,
		Teams:      teams,
		Queue:      queued,
		Current:    current,
		RecentBids: recent,
	}, nil
}
