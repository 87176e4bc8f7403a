package cursor

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
	queue   []*models.QueuedPlayer
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

func (f *fakeStore) GetCurrent(ctx context.Context, auctionID uuid.UUID) (*models.QueuedPlayer, error) {
	for _, qp := range f.queue {
		if qp.IsCurrent {
			cp := *qp
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetByPlayer(ctx context.Context, auctionID, playerID uuid.UUID) (*models.QueuedPlayer, error) {
	for _, qp := range f.queue {
		if qp.PlayerID == playerID {
			cp := *qp
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListAvailable(ctx context.Context, auctionID uuid.UUID) ([]models.QueuedPlayer, error) {
	var out []models.QueuedPlayer
	for _, qp := range f.queue {
		if qp.Status == models.QueuedPlayerAvailable {
			out = append(out, *qp)
		}
	}
	return out, nil
}

func (f *fakeStore) SetCurrentFlag(ctx context.Context, auctionID, queuedPlayerID uuid.UUID) error {
	for _, qp := range f.queue {
		qp.IsCurrent = qp.ID == queuedPlayerID
	}
	return nil
}

func (f *fakeStore) ClearCurrentFlag(ctx context.Context, auctionID uuid.UUID) error {
	for _, qp := range f.queue {
		qp.IsCurrent = false
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

func queued(auctionID uuid.UUID, order int, status models.QueuedPlayerStatus, current bool) *models.QueuedPlayer {
	return &models.QueuedPlayer{
		ID:           uuid.New(),
		AuctionID:    auctionID,
		PlayerID:     uuid.New(),
		Status:       status,
		IsCurrent:    current,
		DisplayOrder: order,
	}
}

func newApp(t *testing.T, queue ...*models.QueuedPlayer) (*App, *fakeStore, *fakeOutbox, auth.Actor) {
	t.Helper()
	hostID := uuid.New()
	store := &fakeStore{
		auction: &models.Auction{ID: uuid.New(), HostUserID: hostID, Status: models.AuctionStatusLive},
	}
	for _, qp := range queue {
		qp.AuctionID = store.auction.ID
		store.queue = append(store.queue, qp)
	}
	outbox := &fakeOutbox{}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	app := NewApp(store, outbox, cache.NewDisabled(), clock)
	return app, store, outbox, auth.Actor{UserID: hostID, Role: auth.RoleHost}
}

func TestNext_AdvancesSkippingSold(t *testing.T) {
	t.Parallel()
	app, store, outbox, host := newApp(t,
		queued(uuid.Nil, 1, models.QueuedPlayerAvailable, true),
		queued(uuid.Nil, 2, models.QueuedPlayerSold, false),
		queued(uuid.Nil, 3, models.QueuedPlayerAvailable, false),
	)

	result, err := app.Next(context.Background(), store.auction.ID, host)
	require.NoError(t, err)
	assert.True(t, result.Moved)
	assert.Equal(t, 3, result.Current.DisplayOrder)
	assert.True(t, store.queue[2].IsCurrent)
	assert.False(t, store.queue[0].IsCurrent)
	require.Len(t, outbox.inserted, 1)
	assert.Equal(t, events.TypeCurrentPlayerChanged, outbox.inserted[0].EventType)
}

// At the end of the queue Next reports Moved=false and changes nothing.
func TestNext_BoundaryIsNoOp(t *testing.T) {
	t.Parallel()
	app, store, outbox, host := newApp(t,
		queued(uuid.Nil, 1, models.QueuedPlayerSold, false),
		queued(uuid.Nil, 2, models.QueuedPlayerAvailable, true),
	)

	result, err := app.Next(context.Background(), store.auction.ID, host)
	require.NoError(t, err)
	assert.False(t, result.Moved)
	assert.Equal(t, 2, result.Current.DisplayOrder)
	assert.True(t, store.queue[1].IsCurrent)
	assert.Empty(t, outbox.inserted)
}

func TestNext_NoCurrentBehavesLikeSetFirst(t *testing.T) {
	t.Parallel()
	app, store, _, host := newApp(t,
		queued(uuid.Nil, 1, models.QueuedPlayerAvailable, false),
		queued(uuid.Nil, 2, models.QueuedPlayerAvailable, false),
	)

	result, err := app.Next(context.Background(), store.auction.ID, host)
	require.NoError(t, err)
	assert.True(t, result.Moved)
	assert.Equal(t, 1, result.Current.DisplayOrder)
}

func TestPrevious_StepsBack(t *testing.T) {
	t.Parallel()
	app, store, _, host := newApp(t,
		queued(uuid.Nil, 1, models.QueuedPlayerAvailable, false),
		queued(uuid.Nil, 2, models.QueuedPlayerSold, false),
		queued(uuid.Nil, 3, models.QueuedPlayerAvailable, true),
	)

	result, err := app.Previous(context.Background(), store.auction.ID, host)
	require.NoError(t, err)
	assert.True(t, result.Moved)
	assert.Equal(t, 1, result.Current.DisplayOrder)
}

func TestPrevious_AtStartIsNoOp(t *testing.T) {
	t.Parallel()
	app, store, _, host := newApp(t,
		queued(uuid.Nil, 1, models.QueuedPlayerAvailable, true),
		queued(uuid.Nil, 2, models.QueuedPlayerAvailable, false),
	)

	result, err := app.Previous(context.Background(), store.auction.ID, host)
	require.NoError(t, err)
	assert.False(t, result.Moved)
	assert.Equal(t, 1, result.Current.DisplayOrder)
}

func TestSetCurrent_RejectsSoldPlayer(t *testing.T) {
	t.Parallel()
	sold := queued(uuid.Nil, 1, models.QueuedPlayerSold, false)
	app, store, _, host := newApp(t, sold)

	_, err := app.SetCurrent(context.Background(), store.auction.ID, sold.PlayerID, host)
	assert.ErrorIs(t, err, bid.ErrPlayerUnavailable)
}

func TestTransition_RequiresLiveAuctionAndHost(t *testing.T) {
	t.Parallel()

	t.Run("not live", func(t *testing.T) {
		app, store, _, host := newApp(t, queued(uuid.Nil, 1, models.QueuedPlayerAvailable, false))
		store.auction.Status = models.AuctionStatusCompleted
		_, err := app.SetFirst(context.Background(), store.auction.ID, host)
		assert.ErrorIs(t, err, bid.ErrAuctionNotLive)
	})

	t.Run("viewer denied", func(t *testing.T) {
		app, store, _, _ := newApp(t, queued(uuid.Nil, 1, models.QueuedPlayerAvailable, false))
		viewer := auth.Actor{UserID: uuid.New(), Role: auth.RoleViewer}
		_, err := app.SetFirst(context.Background(), store.auction.ID, viewer)
		assert.ErrorIs(t, err, bid.ErrPermissionDenied)
	})
}

func TestClearCurrent_EmitsChange(t *testing.T) {
	t.Parallel()
	app, store, outbox, _ := newApp(t, queued(uuid.Nil, 1, models.QueuedPlayerAvailable, true))

	require.NoError(t, app.ClearCurrent(context.Background(), store.auction.ID))
	assert.False(t, store.queue[0].IsCurrent)
	require.Len(t, outbox.inserted, 1)
	assert.Equal(t, events.TypeCurrentPlayerChanged, outbox.inserted[0].EventType)
}
