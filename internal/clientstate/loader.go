package clientstate

import (
	"context"

	"github.com/google/uuid"

	"github.com/draftops/gavel/internal/fanout/gateway"
)

// SnapshotLoader adapts the gateway's connect-time snapshot into the
// session view, so Refresh and a fresh WebSocket connect see the same
// authoritative state.
type SnapshotLoader struct {
	provider *gateway.StateProvider
}

func NewSnapshotLoader(provider *gateway.StateProvider) *SnapshotLoader {
	return &SnapshotLoader{provider: provider}
}

var _ Loader = (*SnapshotLoader)(nil)

func (l *SnapshotLoader) Load(ctx context.Context, auctionID uuid.UUID) (*View, error) {
	snap, err := l.provider.Snapshot(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	view := newView()
	view.Auction = snap.Auction
	for _, t := range snap.Teams {
		view.Teams[t.ID] = t
	}
	view.Queue = snap.Queue
	view.Current = snap.Current
	view.RecentBids = snap.RecentBids

	// ListBids returns newest first; the ring is oldest first.
	for i, j := 0, len(view.RecentBids)-1; i < j; i, j = i+1, j-1 {
		view.RecentBids[i], view.RecentBids[j] = view.RecentBids[j], view.RecentBids[i]
	}
	for i := range view.RecentBids {
		b := view.RecentBids[i]
		if b.IsWinning && !b.IsUndone && view.Current != nil && b.PlayerID == view.Current.PlayerID {
			view.Winning = &b
		}
	}

	return view, nil
}
