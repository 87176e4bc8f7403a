package auction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/draftops/gavel/internal/auth"
	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/cache"
	"github.com/draftops/gavel/internal/fanout/events"
	"github.com/draftops/gavel/internal/models"
)

// Store is the auction lifecycle's slice of the relational store.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	SetStatus(ctx context.Context, auctionID uuid.UUID, status models.AuctionStatus, at time.Time) error
	ClearCurrentFlag(ctx context.Context, auctionID uuid.UUID) error
	FirstAvailable(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error)
	SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error
}

// App advances the auction lifecycle: draft -> live -> completed.
type App struct {
	store  Store
	outbox bid.Outbox
	cache  *cache.Cache
	clock  clockwork.Clock
}

// NewApp wires the auction application.
func NewApp(store Store, outbox bid.Outbox, c *cache.Cache, clock clockwork.Clock) *App {
	return &App{store: store, outbox: outbox, cache: c, clock: clock}
}

// Get returns the auction through the cache.
func (a *App) Get(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	key := cache.Key(cache.ClassAuction, auctionID)
	auction, err := cache.GetOrLoad(ctx, a.cache, key, cache.ClassAuction, func(ctx context.Context) (*models.Auction, error) {
		return a.store.GetAuction(ctx, auctionID)
	})
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, bid.ErrAuctionNotFound
	}
	return auction, nil
}

// Start takes a draft auction live and puts the first available player
// on the clock.
func (a *App) Start(ctx context.Context, auctionID uuid.UUID, actor auth.Actor) (*models.Auction, error) {
	return a.advance(ctx, auctionID, actor, models.AuctionStatusDraft, models.AuctionStatusLive, events.TypeAuctionStarted,
		func(ctx context.Context) error {
			first, err := a.store.FirstAvailable(ctx, auctionID)
			if err != nil {
				return err
			}
			if first != nil {
				return a.store.SetCurrentFlag(ctx, auctionID, first.ID)
			}
			return nil
		})
}

// Complete ends a live auction. Completed is terminal; the current flag
// is cleared so no player stays on the clock.
func (a *App) Complete(ctx context.Context, auctionID uuid.UUID, actor auth.Actor) (*models.Auction, error) {
	return a.advance(ctx, auctionID, actor, models.AuctionStatusLive, models.AuctionStatusCompleted, events.TypeAuctionCompleted,
		func(ctx context.Context) error {
			return a.store.ClearCurrentFlag(ctx, auctionID)
		})
}

func (a *App) advance(
	ctx context.Context,
	auctionID uuid.UUID,
	actor auth.Actor,
	from, to models.AuctionStatus,
	eventType string,
	also func(ctx context.Context) error,
) (*models.Auction, error) {
	var updated *models.Auction

	err := a.store.WithTx(ctx, func(ctx context.Context) error {
		auction, err := a.store.GetAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return bid.ErrAuctionNotFound
		}
		if err := auth.CanAct(actor, auction, nil); err != nil {
			return bid.ErrPermissionDenied
		}
		if auction.Status != from {
			return bid.ErrAuctionNotLive
		}

		now := a.clock.Now().UTC()
		if err := a.store.SetStatus(ctx, auctionID, to, now); err != nil {
			return err
		}
		if err := also(ctx); err != nil {
			return err
		}

		auction.Status = to
		switch to {
		case models.AuctionStatusLive:
			auction.StartedAt = &now
		case models.AuctionStatusCompleted:
			auction.CompletedAt = &now
		}
		updated = auction

		env, err := events.NewEnvelope(auctionID, eventType, events.AuctionStatusPayload{
			Status:    string(to),
			ChangedAt: now,
		})
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, env)
	})
	if err != nil {
		return nil, err
	}

	a.cache.Invalidate(
		cache.Key(cache.ClassAuction, auctionID),
		cache.Key(cache.ClassCurrentPlayer, auctionID),
	)
	a.cache.InvalidatePattern(cache.ScopePrefix(cache.ClassQueue, auctionID))

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("status", string(updated.Status)).
		Msg("auction status advanced")

	return updated, nil
}
