package bid

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/draftops/gavel/internal/auth"
	"github.com/draftops/gavel/internal/cache"
	"github.com/draftops/gavel/internal/fanout/events"
	"github.com/draftops/gavel/internal/models"
)

// Store is what the bid authority needs from the relational store. Every
// method participates in the transaction bound to ctx.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error)
	// LockCurrentPlayer reads the current queued player FOR UPDATE. The row
	// lock is the serialization point for concurrent bids on one player.
	LockCurrentPlayer(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error)
	FirstAvailableExcluding(ctx context.Context, auctionID uuid.UUID, exclude []uuid.UUID) (*models.QueuedPlayer, error)
	AssignCurrent(ctx context.Context, queuedPlayerID uuid.UUID) error
	GetPlayer(ctx context.Context, playerID uuid.UUID) (*models.Player, error)
	GetWinningBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error)
	ClearWinning(ctx context.Context, bidID uuid.UUID) error
	InsertBid(ctx context.Context, b *models.Bid) error
	ListBids(ctx context.Context, auctionID uuid.UUID, playerID *uuid.UUID, limit int) ([]models.Bid, error)
}

// Outbox inserts a change event inside the committing transaction.
type Outbox interface {
	InsertEvent(ctx context.Context, env events.Envelope) error
}

// App is the bid authority: sole writer of bids and the winning-bid flag.
type App struct {
	store  Store
	outbox Outbox
	cache  *cache.Cache
	clock  clockwork.Clock
}

// NewApp wires the bid authority.
func NewApp(store Store, outbox Outbox, c *cache.Cache, clock clockwork.Clock) *App {
	return &App{
		store:  store,
		outbox: outbox,
		cache:  c,
		clock:  clock,
	}
}

// PlaceBid validates and atomically commits one bid. The read of the
// current winning amount and the write of the new winning bid happen in
// one transaction under a row lock on the current queued player, so two
// concurrent attempts on the same player are totally ordered: the loser
// of an equal-amount race fails with BID_OUTDATED.
func (a *App) PlaceBid(ctx context.Context, req PlaceBidRequest) (*PlaceBidResult, error) {
	var result *PlaceBidResult

	err := a.store.WithTx(ctx, func(ctx context.Context) error {
		auction, err := a.store.GetAuction(ctx, req.AuctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return ErrAuctionNotFound
		}
		if auction.Status != models.AuctionStatusLive {
			return ErrAuctionNotLive
		}

		team, err := a.store.GetTeam(ctx, req.TeamID)
		if err != nil {
			return err
		}
		if err := auth.CanAct(req.Actor, auction, team); err != nil {
			return ErrPermissionDenied
		}
		if team == nil || team.AuctionID != auction.ID {
			return ErrTeamNotFound
		}

		current, err := a.lockOrRecoverCurrent(ctx, auction.ID)
		if err != nil {
			return err
		}

		winning, err := a.store.GetWinningBid(ctx, auction.ID, current.PlayerID)
		if err != nil {
			return err
		}
		if req.Amount <= 0 {
			return ErrInvalidIncrement
		}
		if winning != nil {
			if req.Amount <= winning.Amount {
				return ErrBidOutdated
			}
			if req.Amount < winning.Amount+auction.Settings.MinBidIncrement {
				return ErrInvalidIncrement
			}
		} else {
			player, err := a.store.GetPlayer(ctx, current.PlayerID)
			if err != nil {
				return err
			}
			if player == nil {
				return ErrPlayerNotFound
			}
			if req.Amount < player.BasePrice {
				return ErrInvalidIncrement
			}
		}

		// Fund checks read the authoritative row in-tx, never the cache.
		if team.PurseRemaining() < req.Amount {
			return ErrInsufficientFunds
		}

		if winning != nil {
			if err := a.store.ClearWinning(ctx, winning.ID); err != nil {
				return err
			}
		}

		b := models.Bid{
			ID:        uuid.New(),
			AuctionID: auction.ID,
			PlayerID:  current.PlayerID,
			TeamID:    team.ID,
			Amount:    req.Amount,
			IsWinning: true,
			CreatedAt: a.clock.Now().UTC(),
		}
		if err := a.store.InsertBid(ctx, &b); err != nil {
			return err
		}

		env, err := events.NewEnvelope(auction.ID, events.TypeBidPlaced, events.BidPlacedPayload{
			BidID:    b.ID,
			PlayerID: b.PlayerID,
			TeamID:   b.TeamID,
			Amount:   b.Amount,
			PlacedAt: b.CreatedAt,
		})
		if err != nil {
			return err
		}
		if err := a.outbox.InsertEvent(ctx, env); err != nil {
			return err
		}

		result = &PlaceBidResult{Bid: b, CurrentWinningAmount: b.Amount}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.cache.InvalidatePattern(cache.ScopePrefix(cache.ClassBids, req.AuctionID))
	a.cache.Invalidate(cache.Key(cache.ClassCurrentPlayer, req.AuctionID))

	log.Info().
		Str("auction_id", req.AuctionID.String()).
		Str("team_id", req.TeamID.String()).
		Int64("amount", req.Amount).
		Str("bid_id", result.Bid.ID.String()).
		Msg("bid accepted")

	return result, nil
}

// lockOrRecoverCurrent locks the current player row. If no player is on
// the clock the earliest available non-captain by display order is
// assigned instead of failing, then re-locked.
func (a *App) lockOrRecoverCurrent(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	current, err := a.store.LockCurrentPlayer(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return current, nil
	}

	next, err := a.store.FirstAvailableExcluding(ctx, auctionID, nil)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, ErrNoCurrentPlayer
	}
	if err := a.store.AssignCurrent(ctx, next.ID); err != nil {
		return nil, err
	}

	log.Warn().
		Str("auction_id", auctionID.String()).
		Str("queued_player_id", next.ID.String()).
		Msg("no player on the clock, recovered to earliest available")

	current, err = a.store.LockCurrentPlayer(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrNoCurrentPlayer
	}
	return current, nil
}

// ListBids returns non-undone bids newest first, capped at MaxListLimit.
// The read goes through the short-TTL bid cache.
func (a *App) ListBids(ctx context.Context, req ListBidsRequest) ([]models.Bid, error) {
	limit := req.Limit
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	scope := "all"
	if req.PlayerID != nil {
		scope = req.PlayerID.String()
	}
	key := cache.Key(cache.ClassBids, req.AuctionID, scope, strconv.Itoa(limit))

	return cache.GetOrLoad(ctx, a.cache, key, cache.ClassBids, func(ctx context.Context) ([]models.Bid, error) {
		return a.store.ListBids(ctx, req.AuctionID, req.PlayerID, limit)
	})
}
