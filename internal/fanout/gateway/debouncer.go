package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/draftops/gavel/internal/fanout/events"
)

// DefaultDebounceWindow bounds client render churn during bid bursts.
const DefaultDebounceWindow = 100 * time.Millisecond

// BatchSink receives flushed batches, normally the ConnectionManager.
type BatchSink interface {
	BroadcastToAuction(auctionID uuid.UUID, batch []events.Envelope)
}

// Debouncer buffers change events per auction and flushes one ordered
// batch per window. The first event of a quiet auction arms the window
// timer; everything arriving before it fires joins the same batch, in
// arrival order.
type Debouncer struct {
	sink   BatchSink
	clock  clockwork.Clock
	window time.Duration

	mu      sync.Mutex
	pending map[uuid.UUID][]events.Envelope
	timers  map[uuid.UUID]clockwork.Timer
	closed  bool
}

// NewDebouncer creates a debouncer flushing into sink.
func NewDebouncer(sink BatchSink, clock clockwork.Clock, window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	return &Debouncer{
		sink:    sink,
		clock:   clock,
		window:  window,
		pending: make(map[uuid.UUID][]events.Envelope),
		timers:  make(map[uuid.UUID]clockwork.Timer),
	}
}

// Add buffers one event for its auction.
func (d *Debouncer) Add(env events.Envelope) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	auctionID := env.AuctionID
	d.pending[auctionID] = append(d.pending[auctionID], env)

	if _, armed := d.timers[auctionID]; !armed {
		d.timers[auctionID] = d.clock.AfterFunc(d.window, func() {
			d.flush(auctionID)
		})
	}
}

func (d *Debouncer) flush(auctionID uuid.UUID) {
	d.mu.Lock()
	batch := d.pending[auctionID]
	delete(d.pending, auctionID)
	delete(d.timers, auctionID)
	d.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	d.sink.BroadcastToAuction(auctionID, batch)

	log.Debug().
		Str("auction_id", auctionID.String()).
		Int("events", len(batch)).
		Msg("debounced batch flushed")
}

// Close flushes every pending batch and stops accepting events.
func (d *Debouncer) Close() {
	d.mu.Lock()
	d.closed = true
	var auctionIDs []uuid.UUID
	for auctionID, timer := range d.timers {
		timer.Stop()
		auctionIDs = append(auctionIDs, auctionID)
	}
	d.mu.Unlock()

	for _, auctionID := range auctionIDs {
		d.flush(auctionID)
	}
}
