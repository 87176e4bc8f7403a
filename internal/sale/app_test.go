package sale

import (
	"context"
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
	mu      sync.Mutex
	auction *models.Auction
	teams   map[uuid.UUID]*models.Team
	queue   []*models.QueuedPlayer
	winning map[uuid.UUID]*models.Bid // keyed by player ID
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

func (f *fakeStore) LockCurrentPlayer(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	for _, qp := range f.queue {
		if qp.IsCurrent {
			cp := *qp
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetWinningBid(ctx context.Context, auctionID, playerID uuid.UUID) (*models.Bid, error) {
	if b, ok := f.winning[playerID]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) MarkSold(ctx context.Context, queuedPlayerID, teamID uuid.UUID, price int64, at time.Time) error {
	for _, qp := range f.queue {
		if qp.ID == queuedPlayerID {
			qp.Status = models.QueuedPlayerSold
			qp.SoldTo = &teamID
			qp.SoldPrice = &price
			qp.SoldAt = &at
		}
	}
	return nil
}

func (f *fakeStore) ApplyPurchase(ctx context.Context, teamID uuid.UUID, price int64) error {
	team := f.teams[teamID]
	team.PurseSpent += price
	team.PlayerCount++
	return nil
}

func (f *fakeStore) ClearCurrentFlag(ctx context.Context, auctionID uuid.UUID) error {
	for _, qp := range f.queue {
		qp.IsCurrent = false
	}
	return nil
}

func (f *fakeStore) NextAvailableAfter(ctx context.Context, auctionID uuid.UUID, displayOrder int) (*models.QueuedPlayer, error) {
	for _, qp := range f.queue {
		if qp.DisplayOrder > displayOrder && qp.Status == models.QueuedPlayerAvailable {
			cp := *qp
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error {
	for _, qp := range f.queue {
		qp.IsCurrent = qp.ID == queuedPlayerID
	}
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
	host   auth.Actor
	team   *models.Team
}

func newFixture(t *testing.T, autoAdvance bool, queue ...*models.QueuedPlayer) *fixture {
	t.Helper()
	hostID := uuid.New()
	auction := &models.Auction{
		ID:         uuid.New(),
		HostUserID: hostID,
		Status:     models.AuctionStatusLive,
		Settings:   models.AuctionSettings{MinBidIncrement: 20, AutoAdvanceOnSale: autoAdvance},
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
		winning: map[uuid.UUID]*models.Bid{},
	}
	for _, qp := range queue {
		qp.AuctionID = auction.ID
		store.queue = append(store.queue, qp)
	}
	outbox := &fakeOutbox{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	return &fixture{
		app:    NewApp(store, outbox, cache.NewDisabled(), clock),
		store:  store,
		outbox: outbox,
		host:   auth.Actor{UserID: hostID, Role: auth.RoleHost},
		team:   team,
	}
}

func queued(order int, status models.QueuedPlayerStatus, current bool) *models.QueuedPlayer {
	return &models.QueuedPlayer{
		ID:           uuid.New(),
		PlayerID:     uuid.New(),
		Status:       status,
		IsCurrent:    current,
		DisplayOrder: order,
	}
}

func (fx *fixture) setWinning(playerID uuid.UUID, amount int64) {
	fx.store.winning[playerID] = &models.Bid{
		ID:        uuid.New(),
		AuctionID: fx.store.auction.ID,
		PlayerID:  playerID,
		TeamID:    fx.team.ID,
		Amount:    amount,
		IsWinning: true,
	}
}

func TestAssignPlayer_SellsAndAutoAdvances(t *testing.T) {
	t.Parallel()
	current := queued(1, models.QueuedPlayerAvailable, true)
	next := queued(3, models.QueuedPlayerAvailable, false)
	fx := newFixture(t, true,
		current,
		queued(2, models.QueuedPlayerSold, false),
		next,
	)
	fx.setWinning(current.PlayerID, 340)

	result, err := fx.app.AssignPlayer(context.Background(), fx.store.auction.ID, fx.host)
	require.NoError(t, err)

	assert.Equal(t, models.QueuedPlayerSold, result.QueuedPlayer.Status)
	assert.Equal(t, int64(340), result.Price)
	assert.Equal(t, fx.team.ID, result.TeamID)
	require.NotNil(t, result.NextCurrent)
	assert.Equal(t, next.ID, result.NextCurrent.ID)

	assert.Equal(t, models.QueuedPlayerSold, fx.store.queue[0].Status)
	assert.False(t, fx.store.queue[0].IsCurrent)
	assert.True(t, fx.store.queue[2].IsCurrent)
	assert.Equal(t, int64(340), fx.team.PurseSpent)
	assert.Equal(t, 1, fx.team.PlayerCount)

	require.Len(t, fx.outbox.inserted, 2)
	assert.Equal(t, events.TypePlayerSold, fx.outbox.inserted[0].EventType)
	assert.Equal(t, events.TypeCurrentPlayerChanged, fx.outbox.inserted[1].EventType)
}

func TestAssignPlayer_NoAutoAdvanceLeavesNoCurrent(t *testing.T) {
	t.Parallel()
	current := queued(1, models.QueuedPlayerAvailable, true)
	fx := newFixture(t, false,
		current,
		queued(2, models.QueuedPlayerAvailable, false),
	)
	fx.setWinning(current.PlayerID, 120)

	result, err := fx.app.AssignPlayer(context.Background(), fx.store.auction.ID, fx.host)
	require.NoError(t, err)

	assert.Nil(t, result.NextCurrent)
	for _, qp := range fx.store.queue {
		assert.False(t, qp.IsCurrent)
	}
	// The cursor change still goes out so clients drop the clock display.
	require.Len(t, fx.outbox.inserted, 2)
	assert.Equal(t, events.TypeCurrentPlayerChanged, fx.outbox.inserted[1].EventType)
}

func TestAssignPlayer_LastPlayerSoldHasNoNext(t *testing.T) {
	t.Parallel()
	current := queued(2, models.QueuedPlayerAvailable, true)
	fx := newFixture(t, true,
		queued(1, models.QueuedPlayerSold, false),
		current,
	)
	fx.setWinning(current.PlayerID, 200)

	result, err := fx.app.AssignPlayer(context.Background(), fx.store.auction.ID, fx.host)
	require.NoError(t, err)
	assert.Nil(t, result.NextCurrent)
}

func TestAssignPlayer_NoWinningBid(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, true, queued(1, models.QueuedPlayerAvailable, true))

	_, err := fx.app.AssignPlayer(context.Background(), fx.store.auction.ID, fx.host)
	assert.ErrorIs(t, err, bid.ErrNoWinningBid)

	assert.Equal(t, models.QueuedPlayerAvailable, fx.store.queue[0].Status)
	assert.True(t, fx.store.queue[0].IsCurrent)
	assert.Empty(t, fx.outbox.inserted)
}

func TestAssignPlayer_NoCurrentPlayer(t *testing.T) {
	t.Parallel()
	fx := newFixture(t, true, queued(1, models.QueuedPlayerAvailable, false))

	_, err := fx.app.AssignPlayer(context.Background(), fx.store.auction.ID, fx.host)
	assert.ErrorIs(t, err, bid.ErrNoCurrentPlayer)
}

func TestAssignPlayer_Validation(t *testing.T) {
	t.Parallel()

	t.Run("auction not live", func(t *testing.T) {
		fx := newFixture(t, true, queued(1, models.QueuedPlayerAvailable, true))
		fx.store.auction.Status = models.AuctionStatusDraft
		_, err := fx.app.AssignPlayer(context.Background(), fx.store.auction.ID, fx.host)
		assert.ErrorIs(t, err, bid.ErrAuctionNotLive)
	})

	t.Run("unknown auction", func(t *testing.T) {
		fx := newFixture(t, true, queued(1, models.QueuedPlayerAvailable, true))
		_, err := fx.app.AssignPlayer(context.Background(), uuid.New(), fx.host)
		assert.ErrorIs(t, err, bid.ErrAuctionNotFound)
	})

	t.Run("captain denied", func(t *testing.T) {
		fx := newFixture(t, true, queued(1, models.QueuedPlayerAvailable, true))
		captain := auth.Actor{UserID: fx.team.CaptainUserID, Role: auth.RoleCaptain}
		_, err := fx.app.AssignPlayer(context.Background(), fx.store.auction.ID, captain)
		assert.ErrorIs(t, err, bid.ErrPermissionDenied)
	})
}
