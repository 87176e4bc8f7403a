package sale

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

// Store is the sale subsystem's slice of the relational store.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	LockCurrentPlayer(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error)
	GetWinningBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error)
	MarkSold(ctx context.Context, queuedPlayerID, teamID uuid.UUID, price int64, at time.Time) error
	ApplyPurchase(ctx context.Context, teamID uuid.UUID, price int64) error
	ClearCurrentFlag(ctx context.Context, auctionID uuid.UUID) error
	NextAvailableAfter(ctx context.Context, auctionID uuid.UUID, displayOrder int) (*models.QueuedPlayer, error)
	SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error
}

// Result reports a completed sale and where the cursor moved.
type Result struct {
	QueuedPlayer models.QueuedPlayer  `json:"queued_player"`
	Price        int64                `json:"price"`
	TeamID       uuid.UUID            `json:"team_id"`
	NextCurrent  *models.QueuedPlayer `json:"next_current,omitempty"`
}

// App completes sales: it hands the current player to the leading bidder.
type App struct {
	store  Store
	outbox bid.Outbox
	cache  *cache.Cache
	clock  clockwork.Clock
}

// NewApp wires the sale subsystem.
func NewApp(store Store, outbox bid.Outbox, c *cache.Cache, clock clockwork.Clock) *App {
	return &App{store: store, outbox: outbox, cache: c, clock: clock}
}

// AssignPlayer sells the current player to the team holding the winning
// bid at the winning amount. The queued-player row lock keeps the sale
// serialized with in-flight bids; a bid that commits first is reflected
// in the price, one that arrives after loses the lock race and fails its
// own validation against the sold player.
func (a *App) AssignPlayer(ctx context.Context, auctionID uuid.UUID, actor auth.Actor) (*Result, error) {
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

		current, err := a.store.LockCurrentPlayer(ctx, auctionID)
		if err != nil {
			return err
		}
		if current == nil {
			return bid.ErrNoCurrentPlayer
		}
		if current.Status != models.QueuedPlayerAvailable {
			return bid.ErrPlayerUnavailable
		}

		winning, err := a.store.GetWinningBid(ctx, auctionID, current.PlayerID)
		if err != nil {
			return err
		}
		if winning == nil {
			return bid.ErrNoWinningBid
		}

		soldAt := a.clock.Now().UTC()
		if err := a.store.MarkSold(ctx, current.ID, winning.TeamID, winning.Amount, soldAt); err != nil {
			return err
		}
		if err := a.store.ApplyPurchase(ctx, winning.TeamID, winning.Amount); err != nil {
			return err
		}
		if err := a.store.ClearCurrentFlag(ctx, auctionID); err != nil {
			return err
		}

		sold := *current
		sold.Status = models.QueuedPlayerSold
		sold.IsCurrent = false
		sold.SoldTo = &winning.TeamID
		sold.SoldPrice = &winning.Amount
		sold.SoldAt = &soldAt

		env, err := events.NewEnvelope(auctionID, events.TypePlayerSold, events.PlayerSoldPayload{
			QueuedPlayerID: sold.ID,
			PlayerID:       sold.PlayerID,
			TeamID:         winning.TeamID,
			Price:          winning.Amount,
			SoldAt:         soldAt,
		})
		if err != nil {
			return err
		}
		if err := a.outbox.InsertEvent(ctx, env); err != nil {
			return err
		}

		result = &Result{QueuedPlayer: sold, Price: winning.Amount, TeamID: winning.TeamID}

		if auction.Settings.AutoAdvanceOnSale {
			next, err := a.store.NextAvailableAfter(ctx, auctionID, current.DisplayOrder)
			if err != nil {
				return err
			}
			if next != nil {
				if err := a.store.SetCurrentFlag(ctx, auctionID, next.ID); err != nil {
					return err
				}
				next.IsCurrent = true
				result.NextCurrent = next
			}
		}

		cursorEnv, err := events.NewEnvelope(auctionID, events.TypeCurrentPlayerChanged, currentChangedPayload(result.NextCurrent, soldAt))
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, cursorEnv)
	})
	if err != nil {
		return nil, err
	}

	a.invalidate(auctionID)

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("queued_player_id", result.QueuedPlayer.ID.String()).
		Str("team_id", result.TeamID.String()).
		Int64("price", result.Price).
		Msg("player sold")

	return result, nil
}

func currentChangedPayload(next *models.QueuedPlayer, at time.Time) events.CurrentPlayerChangedPayload {
	payload := events.CurrentPlayerChangedPayload{ChangedAt: at}
	if next != nil {
		payload.QueuedPlayerID = &next.ID
		payload.PlayerID = &next.PlayerID
	}
	return payload
}

func (a *App) invalidate(auctionID uuid.UUID) {
	a.cache.InvalidatePattern(cache.ScopePrefix(cache.ClassBids, auctionID))
	a.cache.InvalidatePattern(cache.ScopePrefix(cache.ClassQueue, auctionID))
	a.cache.Invalidate(
		cache.Key(cache.ClassCurrentPlayer, auctionID),
		cache.Key(cache.ClassTeams, auctionID),
	)
}
