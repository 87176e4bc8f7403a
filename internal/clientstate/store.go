package clientstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/draftops/gavel/internal/fanout/events"
	"github.com/draftops/gavel/internal/models"
)

// Store errors surfaced to callers.
var (
	ErrActionPending   = errors.New("action already pending")
	ErrUnknownRollback = errors.New("no optimistic update for correlation id")
	ErrStoreClosed     = errors.New("store closed")
)

// Loader performs the full reload used on (re)connect. Implementations
// must read the authoritative store, not a cache.
type Loader interface {
	Load(ctx context.Context, auctionID uuid.UUID) (*View, error)
}

// Store holds one client session's auction view. All mutations funnel
// through a single worker goroutine, so every transition the session
// observes is atomic and ordered.
type Store struct {
	auctionID uuid.UUID
	loader    Loader
	clock     clockwork.Clock

	mailbox   chan message
	done      chan struct{}
	closeOnce sync.Once

	pendingMu sync.Mutex
	pending   map[string]bool

	// Worker-owned state. Only the run loop touches these.
	view       *View
	optimistic map[uuid.UUID]optimisticBid
}

type message struct {
	action string
	// hold keeps the pending flag set after fn succeeds; the operation
	// that resolves the round trip releases it.
	hold  bool
	fn    func() error
	reply chan error
}

// optimisticBid remembers what an optimistic update displaced so a
// rollback restores the exact prior state.
type optimisticBid struct {
	prevWinning *models.Bid
	prevRecent  []models.Bid
}

// ActionPlaceBid names the pending flag held across a bid round trip.
const ActionPlaceBid = "place_bid"

// NewStore creates a session store and starts its worker.
func NewStore(auctionID uuid.UUID, loader Loader, clock clockwork.Clock) *Store {
	s := &Store{
		auctionID:  auctionID,
		loader:     loader,
		clock:      clock,
		mailbox:    make(chan message, 64),
		done:       make(chan struct{}),
		view:       newView(),
		pending:    make(map[string]bool),
		optimistic: make(map[uuid.UUID]optimisticBid),
	}
	go s.run()
	return s
}

// Close stops the worker. Pending mailbox entries are drained with
// ErrStoreClosed.
func (s *Store) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Store) run() {
	for {
		select {
		case <-s.done:
			for {
				select {
				case msg := <-s.mailbox:
					s.clearPending(msg.action)
					msg.reply <- ErrStoreClosed
				default:
					return
				}
			}
		case msg := <-s.mailbox:
			err := msg.fn()
			if err != nil || !msg.hold {
				s.clearPending(msg.action)
			}
			msg.reply <- err
		}
	}
}

func (s *Store) clearPending(action string) {
	if action == "" {
		return
	}
	s.pendingMu.Lock()
	delete(s.pending, action)
	s.pendingMu.Unlock()
}

// submit enqueues fn on the worker and waits for it. A named action is
// rejected while a previous submission with the same name is pending,
// which is what lets a UI disable its button until the round trip ends.
func (s *Store) submit(ctx context.Context, action string, fn func() error) error {
	return s.enqueue(ctx, action, false, fn)
}

// submitHeld is submit for operations whose pending flag outlives the
// local apply: the flag stays set until clearPending is called by the
// operation that resolves the round trip.
func (s *Store) submitHeld(ctx context.Context, action string, fn func() error) error {
	return s.enqueue(ctx, action, true, fn)
}

func (s *Store) enqueue(ctx context.Context, action string, hold bool, fn func() error) error {
	if action != "" {
		s.pendingMu.Lock()
		if s.pending[action] {
			s.pendingMu.Unlock()
			return ErrActionPending
		}
		s.pending[action] = true
		s.pendingMu.Unlock()
	}

	msg := message{action: action, hold: hold, fn: fn, reply: make(chan error, 1)}
	select {
	case s.mailbox <- msg:
	case <-s.done:
		s.clearPending(action)
		return ErrStoreClosed
	case <-ctx.Done():
		s.clearPending(action)
		return ctx.Err()
	}

	select {
	case err := <-msg.reply:
		return err
	case <-s.done:
		// The worker may have exited before draining this message.
		s.clearPending(action)
		return ErrStoreClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns a copy of the current view.
func (s *Store) Snapshot(ctx context.Context) (View, error) {
	var out View
	err := s.submit(ctx, "", func() error {
		out = s.view.clone()
		return nil
	})
	return out, err
}

// OptimisticBid records a locally assumed winning bid before the server
// confirms it. The returned correlation id keys the later confirm or
// rollback. The place_bid pending flag stays held until that confirm or
// rollback resolves the round trip, so optimistic bids never stack: a
// rollback always restores the true pre-update state, never a snapshot
// that still contains another unconfirmed bid.
func (s *Store) OptimisticBid(ctx context.Context, teamID uuid.UUID, amount int64) (uuid.UUID, error) {
	correlationID := uuid.New()
	err := s.submitHeld(ctx, ActionPlaceBid, func() error {
		if s.view.Current == nil {
			return fmt.Errorf("no player on the clock")
		}

		s.optimistic[correlationID] = optimisticBid{
			prevWinning: s.view.Winning,
			prevRecent:  append([]models.Bid(nil), s.view.RecentBids...),
		}

		b := models.Bid{
			ID:        correlationID,
			AuctionID: s.auctionID,
			PlayerID:  s.view.Current.PlayerID,
			TeamID:    teamID,
			Amount:    amount,
			IsWinning: true,
			CreatedAt: s.clock.Now().UTC(),
		}
		s.view.Winning = &b
		s.view.pushBid(b)
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return correlationID, nil
}

// RollbackBid restores the exact state the optimistic update displaced.
func (s *Store) RollbackBid(ctx context.Context, correlationID uuid.UUID) error {
	return s.submit(ctx, "", func() error {
		snap, ok := s.optimistic[correlationID]
		if !ok {
			return ErrUnknownRollback
		}
		delete(s.optimistic, correlationID)
		s.clearPending(ActionPlaceBid)

		s.view.Winning = snap.prevWinning
		s.view.RecentBids = snap.prevRecent
		return nil
	})
}

// ApplyConfirmed replaces the optimistic entry with the bid the server
// actually accepted.
func (s *Store) ApplyConfirmed(ctx context.Context, correlationID uuid.UUID, confirmed models.Bid) error {
	return s.submit(ctx, "", func() error {
		snap, ok := s.optimistic[correlationID]
		if !ok {
			return ErrUnknownRollback
		}
		delete(s.optimistic, correlationID)
		s.clearPending(ActionPlaceBid)

		// Rebuild from the pre-optimistic state so the confirmed bid
		// lands exactly once.
		s.view.Winning = snap.prevWinning
		s.view.RecentBids = snap.prevRecent
		s.applyBidPlaced(confirmed)
		return nil
	})
}

// BatchUpdate applies a multi-field transition atomically.
func (s *Store) BatchUpdate(ctx context.Context, p Partial) error {
	return s.submit(ctx, "", func() error {
		s.view.apply(p)
		return nil
	})
}

// ApplyEvents folds one fan-out batch into the view, in batch order.
func (s *Store) ApplyEvents(ctx context.Context, batch []events.Envelope) error {
	return s.submit(ctx, "", func() error {
		for _, env := range batch {
			if err := s.applyEvent(env); err != nil {
				log.Warn().
					Err(err).
					Str("event_type", env.EventType).
					Str("event_id", env.EventID.String()).
					Msg("skipping unusable event")
			}
		}
		return nil
	})
}

// Refresh discards the view and reloads it from the authoritative store.
// Refreshes are never deduplicated: they queue on the worker in arrival
// order, so a newer refresh supersedes an older one by landing last.
func (s *Store) Refresh(ctx context.Context) error {
	return s.submit(ctx, "", func() error {
		fresh, err := s.loader.Load(ctx, s.auctionID)
		if err != nil {
			return fmt.Errorf("refresh view: %w", err)
		}
		s.view = fresh
		s.optimistic = make(map[uuid.UUID]optimisticBid)
		s.clearPending(ActionPlaceBid)
		return nil
	})
}

func (s *Store) applyEvent(env events.Envelope) error {
	switch env.EventType {
	case events.TypeBidPlaced:
		var p events.BidPlacedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		s.applyBidPlaced(models.Bid{
			ID:        p.BidID,
			AuctionID: env.AuctionID,
			PlayerID:  p.PlayerID,
			TeamID:    p.TeamID,
			Amount:    p.Amount,
			IsWinning: true,
			CreatedAt: p.PlacedAt,
		})

	case events.TypeBidUndone:
		var p events.BidUndonePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		if s.view.Winning != nil && s.view.Winning.ID == p.BidID {
			s.view.Winning = nil
		}
		for i := range s.view.RecentBids {
			switch s.view.RecentBids[i].ID {
			case p.BidID:
				s.view.RecentBids[i].IsWinning = false
				s.view.RecentBids[i].IsUndone = true
			default:
			}
			if p.PromotedBidID != nil && s.view.RecentBids[i].ID == *p.PromotedBidID {
				s.view.RecentBids[i].IsWinning = true
				promoted := s.view.RecentBids[i]
				s.view.Winning = &promoted
			}
		}

	case events.TypePlayerSold:
		var p events.PlayerSoldPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		if i := s.view.queueIndex(p.QueuedPlayerID); i >= 0 {
			s.view.Queue[i].Status = models.QueuedPlayerSold
			s.view.Queue[i].IsCurrent = false
			s.view.Queue[i].SoldTo = &p.TeamID
			s.view.Queue[i].SoldPrice = &p.Price
			soldAt := p.SoldAt
			s.view.Queue[i].SoldAt = &soldAt
		}
		if t, ok := s.view.Teams[p.TeamID]; ok {
			t.PurseSpent += p.Price
			t.PlayerCount++
			s.view.Teams[p.TeamID] = t
		}
		if s.view.Current != nil && s.view.Current.ID == p.QueuedPlayerID {
			s.view.Current = nil
		}
		s.view.Winning = nil

	case events.TypeSaleUndone:
		var p events.SaleUndonePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		if i := s.view.queueIndex(p.QueuedPlayerID); i >= 0 {
			s.view.Queue[i].Status = models.QueuedPlayerAvailable
			s.view.Queue[i].IsCurrent = true
			s.view.Queue[i].SoldTo = nil
			s.view.Queue[i].SoldPrice = nil
			s.view.Queue[i].SoldAt = nil
			restored := s.view.Queue[i]
			s.view.Current = &restored
		}
		if t, ok := s.view.Teams[p.TeamID]; ok {
			t.PurseSpent -= p.RefundedPrice
			if t.PlayerCount > 0 {
				t.PlayerCount--
			}
			s.view.Teams[p.TeamID] = t
		}
		s.view.Winning = nil

	case events.TypeCurrentPlayerChanged:
		var p events.CurrentPlayerChangedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		for i := range s.view.Queue {
			s.view.Queue[i].IsCurrent = p.QueuedPlayerID != nil && s.view.Queue[i].ID == *p.QueuedPlayerID
		}
		if p.QueuedPlayerID == nil {
			s.view.Current = nil
		} else if i := s.view.queueIndex(*p.QueuedPlayerID); i >= 0 {
			current := s.view.Queue[i]
			s.view.Current = &current
		}
		s.view.Winning = nil

	case events.TypePlayerReplaced:
		var p events.PlayerReplacedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		if i := s.view.queueIndex(p.OriginalQueuedID); i >= 0 {
			s.view.Queue[i].IsReplaced = true
			s.view.Queue[i].ReplacedBy = &p.ReplacementPlayerID
		}

	case events.TypePlayerSkipped, events.TypePlayerUnskipped:
		// Skips never change bid state; nothing to fold in.

	case events.TypeAuctionStarted, events.TypeAuctionCompleted:
		var p events.AuctionStatusPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		if s.view.Auction != nil {
			s.view.Auction.Status = models.AuctionStatus(p.Status)
		}
		if env.EventType == events.TypeAuctionCompleted {
			s.view.Current = nil
			s.view.Winning = nil
		}

	default:
		return fmt.Errorf("unknown event type %q", env.EventType)
	}
	return nil
}

func (s *Store) applyBidPlaced(b models.Bid) {
	if s.view.Winning != nil {
		for i := range s.view.RecentBids {
			if s.view.RecentBids[i].ID == s.view.Winning.ID {
				s.view.RecentBids[i].IsWinning = false
			}
		}
	}
	s.view.Winning = &b
	s.view.pushBid(b)
}
