package undo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftops/gavel/internal/auth"
	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/cache"
	"github.com/draftops/gavel/internal/fanout/events"
	"github.com/draftops/gavel/internal/models"
)

type fakeStore struct {
	mu           sync.Mutex
	auction      *models.Auction
	teams        map[uuid.UUID]*models.Team
	queue        []*models.QueuedPlayer
	bids         []*models.Bid
	replacements []models.ReplacementRecord
	failRefund   bool
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

func (f *fakeStore) GetAuction(ctx context.Context, auctionID uuid.UUID) (*models.Auction, error) {
	if f.auction == nil || f.auction.ID != auctionID {
		return nil, nil
	}
	a := *f.auction
	return &a, nil
}

func (f *fakeStore) GetTeam(ctx context.Context, teamID uuid.UUID) (*models.Team, error) {
	if team, ok := f.teams[teamID]; ok {
		cp := *team
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) GetBid(ctx context.Context, bidID uuid.UUID) (*models.Bid, error) {
	for _, b := range f.bids {
		if b.ID == bidID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetWinningBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	for _, b := range f.bids {
		if b.PlayerID == playerID && b.IsWinning && !b.IsUndone {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MarkBidUndone(ctx context.Context, bidID, undoneBy uuid.UUID, at time.Time) error {
	for _, b := range f.bids {
		if b.ID == bidID {
			b.IsUndone = true
			b.IsWinning = false
			b.UndoneAt = &at
			b.UndoneBy = &undoneBy
		}
	}
	return nil
}

func (f *fakeStore) HighestRemainingBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	var best *models.Bid
	for _, b := range f.bids {
		if b.PlayerID != playerID || b.IsUndone {
			continue
		}
		if best == nil || b.Amount > best.Amount ||
			(b.Amount == best.Amount && b.CreatedAt.After(best.CreatedAt)) {
			best = b
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeStore) SetWinning(ctx context.Context, bidID uuid.UUID) error {
	for _, b := range f.bids {
		if b.ID == bidID {
			b.IsWinning = true
		}
	}
	return nil
}

func (f *fakeStore) MarkAllBidsUndone(ctx context.Context, auctionID, playerID, undoneBy uuid.UUID, at time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, b := range f.bids {
		if b.PlayerID == playerID && !b.IsUndone {
			b.IsUndone = true
			b.IsWinning = false
			b.UndoneAt = &at
			b.UndoneBy = &undoneBy
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MostRecentSale(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	var latest *models.QueuedPlayer
	for _, qp := range f.queue {
		if qp.Status != models.QueuedPlayerSold || qp.SoldAt == nil {
			continue
		}
		if latest == nil || qp.SoldAt.After(*latest.SoldAt) {
			latest = qp
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) MarkAvailable(ctx context.Context, queuedPlayerID uuid.UUID) error {
	for _, qp := range f.queue {
		if qp.ID == queuedPlayerID {
			qp.Status = models.QueuedPlayerAvailable
			qp.SoldTo = nil
			qp.SoldPrice = nil
			qp.SoldAt = nil
		}
	}
	return nil
}

func (f *fakeStore) SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error {
	for _, qp := range f.queue {
		qp.IsCurrent = qp.ID == queuedPlayerID
	}
	return nil
}

func (f *fakeStore) RefundPurchase(ctx context.Context, teamID uuid.UUID, price int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRefund {
		return errors.New("refund failed")
	}
	team := f.teams[teamID]
	team.PurseSpent -= price
	team.PlayerCount--
	return nil
}

func (f *fakeStore) GetQueued(ctx context.Context, queuedPlayerID uuid.UUID) (*models.QueuedPlayer, error) {
	for _, qp := range f.queue {
		if qp.ID == queuedPlayerID {
			cp := *qp
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetQueuedByPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.QueuedPlayer, error) {
	for _, qp := range f.queue {
		if qp.PlayerID == playerID {
			cp := *qp
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MarkReplaced(ctx context.Context, originalQueuedID, replacementPlayerID uuid.UUID) error {
	for _, qp := range f.queue {
		if qp.ID == originalQueuedID {
			qp.IsReplaced = true
			qp.ReplacedBy = &replacementPlayerID
			qp.Status = models.QueuedPlayerReplaced
		}
	}
	return nil
}

func (f *fakeStore) UpsertReplacementSold(ctx context.Context, auctionID, playerID, teamID uuid.UUID, at time.Time) (uuid.UUID, error) {
	var zero int64
	for _, qp := range f.queue {
		if qp.PlayerID == playerID {
			qp.Status = models.QueuedPlayerSold
			qp.SoldTo = &teamID
			qp.SoldPrice = &zero
			qp.SoldAt = &at
			return qp.ID, nil
		}
	}
	qp := &models.QueuedPlayer{
		ID:           uuid.New(),
		AuctionID:    auctionID,
		PlayerID:     playerID,
		Status:       models.QueuedPlayerSold,
		DisplayOrder: len(f.queue) + 1,
		SoldTo:       &teamID,
		SoldPrice:    &zero,
		SoldAt:       &at,
	}
	f.queue = append(f.queue, qp)
	return qp.ID, nil
}

func (f *fakeStore) InsertReplacementRecord(ctx context.Context, rec models.ReplacementRecord) error {
	f.replacements = append(f.replacements, rec)
	return nil
}

type fakeOutbox struct {
	mu       sync.Mutex
	inserted []events.Envelope
}

func (f *fakeOutbox) InsertEvent(ctx context.Context, env events.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, env)
	return nil
}

type fixture struct {
	app    *App
	store  *fakeStore
	outbox *fakeOutbox
	clock  *clockwork.FakeClock
	host   auth.Actor
	team   *models.Team
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hostID := uuid.New()
	auction := &models.Auction{
		ID:         uuid.New(),
		HostUserID: hostID,
		Status:     models.AuctionStatusLive,
		Settings:   models.AuctionSettings{MinBidIncrement: 20},
	}
	team := &models.Team{
		ID:            uuid.New(),
		AuctionID:     auction.ID,
		Name:          "Red",
		CaptainUserID: uuid.New(),
		PurseInitial:  1000,
	}
	store := &fakeStore{
		auction: auction,
		teams:   map[uuid.UUID]*models.Team{team.ID: team},
	}
	outbox := &fakeOutbox{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	return &fixture{
		app:    NewApp(store, outbox, cache.NewDisabled(), clock),
		store:  store,
		outbox: outbox,
		clock:  clock,
		host:   auth.Actor{UserID: hostID, Role: auth.RoleHost},
		team:   team,
	}
}

func (fx *fixture) addBid(playerID uuid.UUID, amount int64, winning bool, offset time.Duration) *models.Bid {
	b := &models.Bid{
		ID:        uuid.New(),
		AuctionID: fx.store.auction.ID,
		PlayerID:  playerID,
		TeamID:    fx.team.ID,
		Amount:    amount,
		IsWinning: winning,
		CreatedAt: fx.clock.Now().Add(offset),
	}
	fx.store.bids = append(fx.store.bids, b)
	return b
}

func (fx *fixture) addQueued(order int, status models.QueuedPlayerStatus, current bool) *models.QueuedPlayer {
	qp := &models.QueuedPlayer{
		ID:           uuid.New(),
		AuctionID:    fx.store.auction.ID,
		PlayerID:     uuid.New(),
		Status:       status,
		IsCurrent:    current,
		DisplayOrder: order,
	}
	fx.store.queue = append(fx.store.queue, qp)
	return qp
}

func (fx *fixture) addSold(order int, price int64, soldAt time.Time) *models.QueuedPlayer {
	qp := fx.addQueued(order, models.QueuedPlayerSold, false)
	qp.SoldTo = &fx.team.ID
	qp.SoldPrice = &price
	qp.SoldAt = &soldAt
	fx.team.PurseSpent += price
	fx.team.PlayerCount++
	return qp
}

func TestUndoBid_PromotesHighestRemaining(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	playerID := uuid.New()
	fx.addBid(playerID, 100, false, 0)
	second := fx.addBid(playerID, 120, false, time.Second)
	top := fx.addBid(playerID, 140, true, 2*time.Second)

	promoted, err := fx.app.UndoBid(context.Background(), fx.store.auction.ID, top.ID, fx.host)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, second.ID, promoted.ID)
	assert.True(t, promoted.IsWinning)

	assert.True(t, fx.store.bids[2].IsUndone)
	assert.False(t, fx.store.bids[2].IsWinning)
	assert.True(t, fx.store.bids[1].IsWinning)

	require.Len(t, fx.outbox.inserted, 1)
	assert.Equal(t, events.TypeBidUndone, fx.outbox.inserted[0].EventType)
}

func TestUndoBid_SoleBidLeavesNoWinner(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	playerID := uuid.New()
	only := fx.addBid(playerID, 100, true, 0)

	promoted, err := fx.app.UndoBid(context.Background(), fx.store.auction.ID, only.ID, fx.host)
	require.NoError(t, err)
	assert.Nil(t, promoted)

	for _, b := range fx.store.bids {
		assert.False(t, b.IsWinning)
	}
}

func TestUndoBid_TieBrokenByRecency(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	playerID := uuid.New()
	fx.addBid(playerID, 120, false, 0)
	later := fx.addBid(playerID, 120, false, time.Second)
	top := fx.addBid(playerID, 140, true, 2*time.Second)

	promoted, err := fx.app.UndoBid(context.Background(), fx.store.auction.ID, top.ID, fx.host)
	require.NoError(t, err)
	require.NotNil(t, promoted)
	assert.Equal(t, later.ID, promoted.ID)
}

func TestUndoBid_RejectsNonWinning(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	playerID := uuid.New()
	older := fx.addBid(playerID, 100, false, 0)
	fx.addBid(playerID, 120, true, time.Second)

	_, err := fx.app.UndoBid(context.Background(), fx.store.auction.ID, older.ID, fx.host)
	assert.ErrorIs(t, err, bid.ErrNotLatestBid)
	assert.Empty(t, fx.outbox.inserted)
}

func TestUndoBid_Validation(t *testing.T) {
	t.Parallel()

	t.Run("auction not live", func(t *testing.T) {
		fx := newFixture(t)
		fx.store.auction.Status = models.AuctionStatusCompleted
		b := fx.addBid(uuid.New(), 100, true, 0)
		_, err := fx.app.UndoBid(context.Background(), fx.store.auction.ID, b.ID, fx.host)
		assert.ErrorIs(t, err, bid.ErrAuctionNotLive)
	})

	t.Run("unknown bid", func(t *testing.T) {
		fx := newFixture(t)
		_, err := fx.app.UndoBid(context.Background(), fx.store.auction.ID, uuid.New(), fx.host)
		assert.ErrorIs(t, err, bid.ErrBidNotFound)
	})

	t.Run("captain denied", func(t *testing.T) {
		fx := newFixture(t)
		b := fx.addBid(uuid.New(), 100, true, 0)
		captain := auth.Actor{UserID: fx.team.CaptainUserID, Role: auth.RoleCaptain}
		_, err := fx.app.UndoBid(context.Background(), fx.store.auction.ID, b.ID, captain)
		assert.ErrorIs(t, err, bid.ErrPermissionDenied)
	})
}

func TestUndoAssignment_RestoresMostRecentSale(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	base := fx.clock.Now()
	fx.addSold(1, 200, base.Add(-time.Hour))
	latest := fx.addSold(2, 340, base.Add(-time.Minute))
	fx.addBid(latest.PlayerID, 300, false, -2*time.Minute)
	fx.addBid(latest.PlayerID, 340, true, -time.Minute)

	reverted, err := fx.app.UndoPlayerAssignment(context.Background(), fx.store.auction.ID, fx.host)
	require.NoError(t, err)

	assert.Equal(t, latest.ID, reverted.ID)
	assert.Equal(t, models.QueuedPlayerAvailable, reverted.Status)
	assert.True(t, reverted.IsCurrent)
	assert.Nil(t, reverted.SoldTo)

	assert.Equal(t, models.QueuedPlayerAvailable, fx.store.queue[1].Status)
	assert.True(t, fx.store.queue[1].IsCurrent)
	// The earlier sale is untouched.
	assert.Equal(t, models.QueuedPlayerSold, fx.store.queue[0].Status)

	assert.Equal(t, int64(200), fx.team.PurseSpent)
	assert.Equal(t, 1, fx.team.PlayerCount)
	for _, b := range fx.store.bids {
		assert.True(t, b.IsUndone)
	}

	require.Len(t, fx.outbox.inserted, 1)
	assert.Equal(t, events.TypeSaleUndone, fx.outbox.inserted[0].EventType)
}

func TestUndoAssignment_NoCompletedSale(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.addQueued(1, models.QueuedPlayerAvailable, true)

	_, err := fx.app.UndoPlayerAssignment(context.Background(), fx.store.auction.ID, fx.host)
	assert.ErrorIs(t, err, bid.ErrNoCompletedSale)
}

func TestUndoAssignment_RefundFailureStillReverts(t *testing.T) {
	t.Parallel()
	fx := newFixture(t)
	fx.addSold(1, 340, fx.clock.Now().Add(-time.Minute))
	fx.store.failRefund = true

	reverted, err := fx.app.UndoPlayerAssignment(context.Background(), fx.store.auction.ID, fx.host)
	require.NoError(t, err)
	assert.Equal(t, models.QueuedPlayerAvailable, reverted.Status)
	assert.Equal(t, models.QueuedPlayerAvailable, fx.store.queue[0].Status)
	// Purse untouched, flagged for reconciliation.
	assert.Equal(t, int64(340), fx.team.PurseSpent)
}

func completedFixture(t *testing.T) *fixture {
	t.Helper()
	fx := newFixture(t)
	fx.store.auction.Status = models.AuctionStatusCompleted
	return fx
}

func TestReplacePlayer_Succeeds(t *testing.T) {
	t.Parallel()
	fx := completedFixture(t)
	original := fx.addSold(1, 340, fx.clock.Now().Add(-time.Hour))
	replacement := uuid.New()

	rec, err := fx.app.ReplacePlayer(context.Background(), ReplaceRequest{
		AuctionID:           fx.store.auction.ID,
		TeamID:              fx.team.ID,
		OriginalQueuedID:    original.ID,
		ReplacementPlayerID: replacement,
		Reason:              "injured",
		Actor:               fx.host,
	})
	require.NoError(t, err)

	assert.Equal(t, models.ReplacementStatusApproved, rec.Status)
	assert.Equal(t, original.ID, rec.OriginalQueuedID)
	assert.Equal(t, replacement, rec.ReplacementPlayerID)
	require.NotNil(t, rec.ResolvedAt)

	assert.True(t, fx.store.queue[0].IsReplaced)
	assert.Equal(t, models.QueuedPlayerReplaced, fx.store.queue[0].Status)

	require.Len(t, fx.store.queue, 2)
	added := fx.store.queue[1]
	assert.Equal(t, replacement, added.PlayerID)
	assert.Equal(t, models.QueuedPlayerSold, added.Status)
	assert.Equal(t, fx.team.ID, *added.SoldTo)
	assert.Zero(t, *added.SoldPrice)

	require.Len(t, fx.store.replacements, 1)
	require.Len(t, fx.outbox.inserted, 1)
	assert.Equal(t, events.TypePlayerReplaced, fx.outbox.inserted[0].EventType)
}

func TestReplacePlayer_CaptainOfOwnTeamAllowed(t *testing.T) {
	t.Parallel()
	fx := completedFixture(t)
	original := fx.addSold(1, 200, fx.clock.Now().Add(-time.Hour))
	captain := auth.Actor{UserID: fx.team.CaptainUserID, Role: auth.RoleCaptain}

	_, err := fx.app.ReplacePlayer(context.Background(), ReplaceRequest{
		AuctionID:           fx.store.auction.ID,
		TeamID:              fx.team.ID,
		OriginalQueuedID:    original.ID,
		ReplacementPlayerID: uuid.New(),
		Actor:               captain,
	})
	require.NoError(t, err)
}

func TestReplacePlayer_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("auction still live", func(t *testing.T) {
		fx := newFixture(t)
		original := fx.addSold(1, 200, fx.clock.Now())
		_, err := fx.app.ReplacePlayer(context.Background(), ReplaceRequest{
			AuctionID:           fx.store.auction.ID,
			TeamID:              fx.team.ID,
			OriginalQueuedID:    original.ID,
			ReplacementPlayerID: uuid.New(),
			Actor:               fx.host,
		})
		assert.ErrorIs(t, err, bid.ErrAuctionNotDone)
	})

	t.Run("already replaced", func(t *testing.T) {
		fx := completedFixture(t)
		original := fx.addSold(1, 200, fx.clock.Now().Add(-time.Hour))
		original.IsReplaced = true
		_, err := fx.app.ReplacePlayer(context.Background(), ReplaceRequest{
			AuctionID:           fx.store.auction.ID,
			TeamID:              fx.team.ID,
			OriginalQueuedID:    original.ID,
			ReplacementPlayerID: uuid.New(),
			Actor:               fx.host,
		})
		assert.ErrorIs(t, err, bid.ErrAlreadyReplaced)
	})

	t.Run("replacement sold to another team", func(t *testing.T) {
		fx := completedFixture(t)
		original := fx.addSold(1, 200, fx.clock.Now().Add(-time.Hour))
		taken := fx.addSold(2, 100, fx.clock.Now().Add(-time.Hour))
		other := uuid.New()
		taken.SoldTo = &other
		_, err := fx.app.ReplacePlayer(context.Background(), ReplaceRequest{
			AuctionID:           fx.store.auction.ID,
			TeamID:              fx.team.ID,
			OriginalQueuedID:    original.ID,
			ReplacementPlayerID: taken.PlayerID,
			Actor:               fx.host,
		})
		assert.ErrorIs(t, err, bid.ErrReplacementTaken)
	})

	t.Run("unknown original", func(t *testing.T) {
		fx := completedFixture(t)
		_, err := fx.app.ReplacePlayer(context.Background(), ReplaceRequest{
			AuctionID:           fx.store.auction.ID,
			TeamID:              fx.team.ID,
			OriginalQueuedID:    uuid.New(),
			ReplacementPlayerID: uuid.New(),
			Actor:               fx.host,
		})
		assert.ErrorIs(t, err, bid.ErrPlayerNotFound)
	})

	t.Run("viewer denied", func(t *testing.T) {
		fx := completedFixture(t)
		original := fx.addSold(1, 200, fx.clock.Now().Add(-time.Hour))
		viewer := auth.Actor{UserID: uuid.New(), Role: auth.RoleViewer}
		_, err := fx.app.ReplacePlayer(context.Background(), ReplaceRequest{
			AuctionID:           fx.store.auction.ID,
			TeamID:              fx.team.ID,
			OriginalQueuedID:    original.ID,
			ReplacementPlayerID: uuid.New(),
			Actor:               viewer,
		})
		assert.ErrorIs(t, err, bid.ErrPermissionDenied)
	})
}
