package queue

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/draftops/gavel/internal/auth"
	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/cache"
	"github.com/draftops/gavel/internal/fanout/events"
	"github.com/draftops/gavel/internal/models"
)

// Store is the queue's slice of the relational store.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.QueuedPlayer, error)
	GetByPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.QueuedPlayer, error)
	InsertSkip(ctx context.Context, rec models.SkipRecord) error
	DeleteSkip(ctx context.Context, auctionID, playerID, teamID uuid.UUID) error
	ListSkips(ctx context.Context, auctionID, playerID uuid.UUID) ([]models.SkipRecord, error)
}

// App serves queue reads and per-team skip declarations.
type App struct {
	store  Store
	outbox bid.Outbox
	cache  *cache.Cache
	clock  clockwork.Clock
}

// NewApp wires the queue application.
func NewApp(store Store, outbox bid.Outbox, c *cache.Cache, clock clockwork.Clock) *App {
	return &App{store: store, outbox: outbox, cache: c, clock: clock}
}

// ListByAuction returns the ordered queue through the cache.
func (a *App) ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]models.QueuedPlayer, error) {
	key := cache.Key(cache.ClassQueue, auctionID)
	return cache.GetOrLoad(ctx, a.cache, key, cache.ClassQueue, func(ctx context.Context) ([]models.QueuedPlayer, error) {
		return a.store.ListByAuction(ctx, auctionID)
	})
}

// Skip records a team's disinterest in the current player. Idempotent per
// (auction, player, team); valid only while the player is current and
// available.
func (a *App) Skip(ctx context.Context, auctionID, playerID, teamID uuid.UUID, actor auth.Actor) error {
	return a.store.WithTx(ctx, func(ctx context.Context) error {
		qp, err := a.validateSkipTarget(ctx, auctionID, playerID, teamID, actor)
		if err != nil {
			return err
		}

		rec := models.SkipRecord{
			ID:        uuid.New(),
			AuctionID: auctionID,
			PlayerID:  qp.PlayerID,
			TeamID:    teamID,
			SkippedAt: a.clock.Now().UTC(),
		}
		if err := a.store.InsertSkip(ctx, rec); err != nil {
			return err
		}

		env, err := events.NewEnvelope(auctionID, events.TypePlayerSkipped, events.PlayerSkippedPayload{
			PlayerID:  qp.PlayerID,
			TeamID:    teamID,
			SkippedAt: rec.SkippedAt,
		})
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, env)
	})
}

// Unskip removes a previous skip declaration. Removing a skip that does
// not exist is a no-op.
func (a *App) Unskip(ctx context.Context, auctionID, playerID, teamID uuid.UUID, actor auth.Actor) error {
	return a.store.WithTx(ctx, func(ctx context.Context) error {
		qp, err := a.validateSkipTarget(ctx, auctionID, playerID, teamID, actor)
		if err != nil {
			return err
		}

		if err := a.store.DeleteSkip(ctx, auctionID, qp.PlayerID, teamID); err != nil {
			return err
		}

		env, err := events.NewEnvelope(auctionID, events.TypePlayerUnskipped, events.PlayerSkippedPayload{
			PlayerID:  qp.PlayerID,
			TeamID:    teamID,
			SkippedAt: a.clock.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, env)
	})
}

// ListSkips returns the teams that skipped a player.
func (a *App) ListSkips(ctx context.Context, auctionID, playerID uuid.UUID) ([]models.SkipRecord, error) {
	return a.store.ListSkips(ctx, auctionID, playerID)
}

func (a *App) validateSkipTarget(ctx context.Context, auctionID, playerID, teamID uuid.UUID, actor auth.Actor) (*models.QueuedPlayer, error) {
	auction, err := a.store.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction == nil {
		return nil, bid.ErrAuctionNotFound
	}
	if auction.Status != models.AuctionStatusLive {
		return nil, bid.ErrAuctionNotLive
	}

	team, err := a.store.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if err := auth.CanAct(actor, auction, team); err != nil {
		return nil, bid.ErrPermissionDenied
	}
	if team == nil || team.AuctionID != auctionID {
		return nil, bid.ErrTeamNotFound
	}

	qp, err := a.store.GetByPlayer(ctx, auctionID, playerID)
	if err != nil {
		return nil, err
	}
	if qp == nil {
		return nil, bid.ErrPlayerNotFound
	}
	if !qp.IsCurrent {
		return nil, bid.ErrPlayerNotCurrent
	}
	if qp.Status != models.QueuedPlayerAvailable {
		return nil, bid.ErrPlayerUnavailable
	}
	return qp, nil
}
