package undo

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

// Store is the undo/replacement subsystem's slice of the relational
// store. It is the only writer allowed to revert a queued player from
// sold back to available.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error)
	GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error)
	GetBid(ctx context.Context, bidID uuid.UUID) (*models.Bid, error)
	GetWinningBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error)
	MarkBidUndone(ctx context.Context, bidID, undoneBy uuid.UUID, at time.Time) error
	// HighestRemainingBid returns the top non-undone bid for the player,
	// ordered by amount then recency.
	HighestRemainingBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error)
	SetWinning(ctx context.Context, bidID uuid.UUID) error
	MarkAllBidsUndone(ctx context.Context, auctionID, playerID, undoneBy uuid.UUID, at time.Time) (int, error)

	MostRecentSale(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error)
	MarkAvailable(ctx context.Context, queuedPlayerID uuid.UUID) error
	SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error
	RefundPurchase(ctx context.Context, teamID uuid.UUID, price int64) error

	GetQueued(ctx context.Context, queuedPlayerID uuid.UUID) (*models.QueuedPlayer, error)
	GetQueuedByPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.QueuedPlayer, error)
	MarkReplaced(ctx context.Context, originalQueuedID, replacementPlayerID uuid.UUID) error
	// UpsertReplacementSold creates or updates the replacement player's
	// queue entry as sold to the team at zero cost.
	UpsertReplacementSold(ctx context.Context, auctionID, playerID, teamID uuid.UUID, at time.Time) (uuid.UUID, error)
	InsertReplacementRecord(ctx context.Context, rec models.ReplacementRecord) error
}

// App reverses bids and sales, and substitutes players after completion.
type App struct {
	store  Store
	outbox bid.Outbox
	cache  *cache.Cache
	clock  clockwork.Clock
}

// NewApp wires the undo subsystem.
func NewApp(store Store, outbox bid.Outbox, c *cache.Cache, clock clockwork.Clock) *App {
	return &App{store: store, outbox: outbox, cache: c, clock: clock}
}

// UndoBid reverses the most recent non-undone winning bid for its player
// and promotes the highest remaining bid, ties broken by latest
// timestamp. With nothing left the player has no winning bid.
func (a *App) UndoBid(ctx context.Context, auctionID, bidID uuid.UUID, actor auth.Actor) (*models.Bid, error) {
	var promoted *models.Bid

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

		target, err := a.store.GetBid(ctx, bidID)
		if err != nil {
			return err
		}
		if target == nil || target.AuctionID != auctionID {
			return bid.ErrBidNotFound
		}
		if target.IsUndone || !target.IsWinning {
			return bid.ErrNotLatestBid
		}

		undoneAt := a.clock.Now().UTC()
		if err := a.store.MarkBidUndone(ctx, target.ID, actor.UserID, undoneAt); err != nil {
			return err
		}

		promoted, err = a.store.HighestRemainingBid(ctx, auctionID, target.PlayerID)
		if err != nil {
			return err
		}
		if promoted != nil {
			if err := a.store.SetWinning(ctx, promoted.ID); err != nil {
				return err
			}
			promoted.IsWinning = true
		}

		payload := events.BidUndonePayload{
			BidID:    target.ID,
			PlayerID: target.PlayerID,
			UndoneAt: undoneAt,
		}
		if promoted != nil {
			payload.PromotedBidID = &promoted.ID
		}
		env, err := events.NewEnvelope(auctionID, events.TypeBidUndone, payload)
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, env)
	})
	if err != nil {
		return nil, err
	}

	a.cache.InvalidatePattern(cache.ScopePrefix(cache.ClassBids, auctionID))
	a.cache.Invalidate(cache.Key(cache.ClassCurrentPlayer, auctionID))

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("bid_id", bidID.String()).
		Msg("bid undone")

	return promoted, nil
}

// UndoPlayerAssignment reverses the most recently completed sale. The
// primary reversal (player back to available and on the clock) must
// succeed or the operation fails. The purse refund and bid flagging are
// best-effort: a failure there is logged and leaves an inconsistency
// window for reconciliation instead of aborting the reversal.
func (a *App) UndoPlayerAssignment(ctx context.Context, auctionID uuid.UUID, actor auth.Actor) (*models.QueuedPlayer, error) {
	var reverted *models.QueuedPlayer
	var refundTeam uuid.UUID
	var refundPrice int64

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

		sold, err := a.store.MostRecentSale(ctx, auctionID)
		if err != nil {
			return err
		}
		if sold == nil {
			return bid.ErrNoCompletedSale
		}
		refundTeam = *sold.SoldTo
		refundPrice = *sold.SoldPrice

		if err := a.store.MarkAvailable(ctx, sold.ID); err != nil {
			return err
		}
		if err := a.store.SetCurrentFlag(ctx, auctionID, sold.ID); err != nil {
			return err
		}

		rv := *sold
		rv.Status = models.QueuedPlayerAvailable
		rv.IsCurrent = true
		rv.SoldTo = nil
		rv.SoldPrice = nil
		rv.SoldAt = nil
		reverted = &rv

		env, err := events.NewEnvelope(auctionID, events.TypeSaleUndone, events.SaleUndonePayload{
			QueuedPlayerID: sold.ID,
			PlayerID:       sold.PlayerID,
			TeamID:         refundTeam,
			RefundedPrice:  refundPrice,
			UndoneAt:       a.clock.Now().UTC(),
		})
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, env)
	})
	if err != nil {
		return nil, err
	}

	// Secondary effects, best-effort after the primary reversal committed.
	if err := a.store.RefundPurchase(ctx, refundTeam, refundPrice); err != nil {
		log.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Str("team_id", refundTeam.String()).
			Int64("price", refundPrice).
			Msg("sale reversed but purse refund failed, needs reconciliation")
	}
	if _, err := a.store.MarkAllBidsUndone(ctx, auctionID, reverted.PlayerID, actor.UserID, a.clock.Now().UTC()); err != nil {
		log.Error().Err(err).
			Str("auction_id", auctionID.String()).
			Str("player_id", reverted.PlayerID.String()).
			Msg("sale reversed but bid flagging failed, needs reconciliation")
	}

	a.invalidateAll(auctionID)

	log.Info().
		Str("auction_id", auctionID.String()).
		Str("queued_player_id", reverted.ID.String()).
		Msg("player assignment undone")

	return reverted, nil
}

// ReplaceRequest carries a post-completion substitution.
type ReplaceRequest struct {
	AuctionID           uuid.UUID
	TeamID              uuid.UUID
	OriginalQueuedID    uuid.UUID
	ReplacementPlayerID uuid.UUID
	Reason              string
	Actor               auth.Actor
}

// ReplacePlayer substitutes a sold player once the auction is completed.
// The original keeps its sale record but is flagged replaced; the
// replacement joins the same team at zero cost.
func (a *App) ReplacePlayer(ctx context.Context, req ReplaceRequest) (*models.ReplacementRecord, error) {
	var rec models.ReplacementRecord

	err := a.store.WithTx(ctx, func(ctx context.Context) error {
		auction, err := a.store.GetAuction(ctx, req.AuctionID)
		if err != nil {
			return err
		}
		if auction == nil {
			return bid.ErrAuctionNotFound
		}
		if auction.Status != models.AuctionStatusCompleted {
			return bid.ErrAuctionNotDone
		}

		team, err := a.store.GetTeam(ctx, req.TeamID)
		if err != nil {
			return err
		}
		if err := auth.CanAct(req.Actor, auction, team); err != nil {
			return bid.ErrPermissionDenied
		}
		if team == nil || team.AuctionID != req.AuctionID {
			return bid.ErrTeamNotFound
		}

		original, err := a.store.GetQueued(ctx, req.OriginalQueuedID)
		if err != nil {
			return err
		}
		if original == nil || original.AuctionID != req.AuctionID {
			return bid.ErrPlayerNotFound
		}
		if original.IsReplaced {
			return bid.ErrAlreadyReplaced
		}

		existing, err := a.store.GetQueuedByPlayer(ctx, req.AuctionID, req.ReplacementPlayerID)
		if err != nil {
			return err
		}
		if existing != nil && existing.Status == models.QueuedPlayerSold &&
			existing.SoldTo != nil && *existing.SoldTo != req.TeamID {
			return bid.ErrReplacementTaken
		}

		now := a.clock.Now().UTC()
		if err := a.store.MarkReplaced(ctx, original.ID, req.ReplacementPlayerID); err != nil {
			return err
		}
		if _, err := a.store.UpsertReplacementSold(ctx, req.AuctionID, req.ReplacementPlayerID, req.TeamID, now); err != nil {
			return err
		}

		rec = models.ReplacementRecord{
			ID:                  uuid.New(),
			OriginalQueuedID:    original.ID,
			ReplacementPlayerID: req.ReplacementPlayerID,
			TeamID:              req.TeamID,
			Status:              models.ReplacementStatusApproved,
			Reason:              req.Reason,
			RequestedBy:         req.Actor.UserID,
			CreatedAt:           now,
			ResolvedAt:          &now,
		}
		if err := a.store.InsertReplacementRecord(ctx, rec); err != nil {
			return err
		}

		env, err := events.NewEnvelope(req.AuctionID, events.TypePlayerReplaced, events.PlayerReplacedPayload{
			OriginalQueuedID:    original.ID,
			ReplacementPlayerID: req.ReplacementPlayerID,
			TeamID:              req.TeamID,
			ReplacedAt:          now,
		})
		if err != nil {
			return err
		}
		return a.outbox.InsertEvent(ctx, env)
	})
	if err != nil {
		return nil, err
	}

	a.invalidateAll(req.AuctionID)
	return &rec, nil
}

func (a *App) invalidateAll(auctionID uuid.UUID) {
	a.cache.InvalidatePattern(cache.ScopePrefix(cache.ClassBids, auctionID))
	a.cache.InvalidatePattern(cache.ScopePrefix(cache.ClassQueue, auctionID))
	a.cache.Invalidate(
		cache.Key(cache.ClassCurrentPlayer, auctionID),
		cache.Key(cache.ClassTeams, auctionID),
	)
}
