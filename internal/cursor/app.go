package cursor

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/draftops/gavel/internal/auth"
	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/cache"
	"github.com/draftops/gavel/internal/fanout/events"
	"github.com/draftops/gavel/internal/models"
)

// Store is the cursor's slice of the relational store. The cursor is the
// sole writer of the is_current flag.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	GetCurrent(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error)
	GetByPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.QueuedPlayer, error)
	ListAvailable(ctx context.Context, auctionID uuid.UUID) ([]models.QueuedPlayer, error)
	SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error
	ClearCurrentFlag(ctx context.Context, auctionID uuid.UUID) error
}

// Result reports where the cursor landed. Moved=false at a queue boundary
// means "no further player": a signal, not an error, and state is
// untouched.
type Result struct {
	Current *models.QueuedPlayer `json:"current,omitempty"`
	Moved   bool                 `json:"moved"`
}

// App drives the current-player state machine.
type App struct {
	store  Store
	outbox bid.Outbox
	cache  *cache.Cache
	clock  clockwork.Clock
}

// NewApp wires the cursor.
func NewApp(store Store, outbox bid.Outbox, c *cache.Cache, clock clockwork.Clock) *App {
	return &App{store: store, outbox: outbox, cache: c, clock: clock}
}

// Current returns the player on the clock through the short-TTL cache.
func (a *App) Current(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	key := cache.Key(cache.ClassCurrentPlayer, auctionID)
	return cache.GetOrLoad(ctx, a.cache, key, cache.ClassCurrentPlayer, func(ctx context.Context) (*models.QueuedPlayer, error) {
		return a.store.GetCurrent(ctx, auctionID)
	})
}

// SetCurrent puts a specific available player on the clock.
func (a *App) SetCurrent(ctx context.Context, auctionID, playerID uuid.UUID, actor auth.Actor) (*Result, error) {
	return a.transition(ctx, auctionID, actor, func(ctx context.Context, _ *models.QueuedPlayer) (*models.QueuedPlayer, bool, error) {
		qp, err := a.store.GetByPlayer(ctx, auctionID, playerID)
		if err != nil {
			return nil, false, err
		}
		if qp == nil {
			return nil, false, bid.ErrPlayerNotFound
		}
		if qp.Status != models.QueuedPlayerAvailable {
			return nil, false, bid.ErrPlayerUnavailable
		}
		return qp, true, nil
	})
}

// SetFirst puts the earliest available player on the clock.
func (a *App) SetFirst(ctx context.Context, auctionID uuid.UUID, actor auth.Actor) (*Result, error) {
	return a.transition(ctx, auctionID, actor, func(ctx context.Context, _ *models.QueuedPlayer) (*models.QueuedPlayer, bool, error) {
		available, err := a.store.ListAvailable(ctx, auctionID)
		if err != nil {
			return nil, false, err
		}
		if len(available) == 0 {
			return nil, false, nil
		}
		first := available[0]
		return &first, true, nil
	})
}

// Next advances to the next available player by display order, skipping
// sold and replaced entries. With no current player it behaves like
// SetFirst.
func (a *App) Next(ctx context.Context, auctionID uuid.UUID, actor auth.Actor) (*Result, error) {
	return a.transition(ctx, auctionID, actor, func(ctx context.Context, current *models.QueuedPlayer) (*models.QueuedPlayer, bool, error) {
		available, err := a.store.ListAvailable(ctx, auctionID)
		if err != nil {
			return nil, false, err
		}
		if current == nil {
			if len(available) == 0 {
				return nil, false, nil
			}
			first := available[0]
			return &first, true, nil
		}
		for _, qp := range available {
			if qp.DisplayOrder > current.DisplayOrder {
				next := qp
				return &next, true, nil
			}
		}
		return current, false, nil
	})
}

// Previous steps back to the closest earlier available player.
func (a *App) Previous(ctx context.Context, auctionID uuid.UUID, actor auth.Actor) (*Result, error) {
	return a.transition(ctx, auctionID, actor, func(ctx context.Context, current *models.QueuedPlayer) (*models.QueuedPlayer, bool, error) {
		if current == nil {
			return nil, false, nil
		}
		available, err := a.store.ListAvailable(ctx, auctionID)
		if err != nil {
			return nil, false, err
		}
		var prev *models.QueuedPlayer
		for i := range available {
			if available[i].DisplayOrder < current.DisplayOrder {
				prev = &available[i]
			}
		}
		if prev == nil {
			return current, false, nil
		}
		return prev, true, nil
	})
}

// ClearCurrent removes the current flag, leaving no player on the clock.
// Used when a sale completes without auto-advance and when the auction
// completes. Joins a caller's transaction when one is in flight.
func (a *App) ClearCurrent(ctx context.Context, auctionID uuid.UUID) error {
	err := a.store.WithTx(ctx, func(ctx context.Context) error {
		if err := a.store.ClearCurrentFlag(ctx, auctionID); err != nil {
			return err
		}
		env, err := events.NewEnvelope(auctionID, events.TypeCurrentPlayerChanged, events.CurrentPlayerChangedPayload{
			ChangedAt: a.clock.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, env)
	})
	if err != nil {
		return err
	}
	a.invalidate(auctionID)
	return nil
}

// transition runs one cursor move: validate the auction, pick the target
// under the pick function, flip the flag, emit the change event.
func (a *App) transition(
	ctx context.Context,
	auctionID uuid.UUID,
	actor auth.Actor,
	pick func(ctx context.Context, current *models.QueuedPlayer) (*models.QueuedPlayer, bool, error),
) (*Result, error) {
	var result *Result

	err := a.store.WithTx(ctx, func(ctx context.Context) error {
		auction, err := a.store.GetAuction(ctx, auctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return bid.ErrAuctionNotFound
		}
		if auction.Status != models.AuctionStatusLive {
			return bid.ErrAuctionNotLive
		}
		if err := auth.CanAct(actor, auction, nil); err != nil {
			return bid.ErrPermissionDenied
		}

		current, err := a.store.GetCurrent(ctx, auctionID)
		if err != nil {
			return err
		}

		target, moved, err := pick(ctx, current)
		if err != nil {
			return err
		}
		if !moved {
			// Boundary: no further player. State untouched.
			result = &Result{Current: current, Moved: false}
			return nil
		}

		if err := a.store.SetCurrentFlag(ctx, auctionID, target.ID); err != nil {
			return err
		}
		target.IsCurrent = true

		env, err := events.NewEnvelope(auctionID, events.TypeCurrentPlayerChanged, events.CurrentPlayerChangedPayload{
			QueuedPlayerID: &target.ID,
			PlayerID:       &target.PlayerID,
			ChangedAt:      a.clock.Now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := a.outbox.InsertEvent(ctx, env); err != nil {
			return err
		}

		result = &Result{Current: target, Moved: true}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Moved {
		a.invalidate(auctionID)
		log.Debug().
			Str("auction_id", auctionID.String()).
			Str("queued_player_id", result.Current.ID.String()).
			Msg("cursor moved")
	}
	return result, nil
}

func (a *App) invalidate(auctionID uuid.UUID) {
	a.cache.Invalidate(cache.Key(cache.ClassCurrentPlayer, auctionID))
	a.cache.InvalidatePattern(cache.ScopePrefix(cache.ClassQueue, auctionID))
}
