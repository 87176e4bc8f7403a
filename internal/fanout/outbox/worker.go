package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Config tunes the outbox poller.
type Config struct {
	PollInterval time.Duration
	BatchSize    int32
	MaxRetries   int
	RetryDelay   time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval: 2 * time.Second,
		BatchSize:    100,
		MaxRetries:   3,
		RetryDelay:   time.Second,
	}
}

// Store is the worker's slice of the outbox table.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FetchUnsent(ctx context.Context, limit int32) ([]Event, error)
	MarkSent(ctx context.Context, ids []uuid.UUID) error
}

// Worker polls the outbox table and pushes pending events to the broker.
type Worker struct {
	repo      Store
	publisher EventPublisher
	config    Config
	clock     clockwork.Clock

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewWorker(repo Store, publisher EventPublisher, cfg Config, clock clockwork.Clock) *Worker {
	return &Worker{
		repo:      repo,
		publisher: publisher,
		config:    cfg,
		clock:     clock,
		stopChan:  make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(ctx)

	log.Info().
		Dur("poll_interval", w.config.PollInterval).
		Int32("batch_size", w.config.BatchSize).
		Msg("outbox worker started")

	return nil
}

func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("outbox worker not running")
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopChan)
	w.wg.Wait()

	log.Info().Msg("outbox worker stopped")
	return nil
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := w.clock.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Drain whatever accumulated before the worker came up.
	w.processOutbox(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-ticker.Chan():
			w.processOutbox(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	err := w.repo.WithTx(ctx, func(ctx context.Context) error {
		pending, err := w.repo.FetchUnsent(ctx, w.config.BatchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		var sent []uuid.UUID
		for _, event := range pending {
			if err := w.publishWithRetry(ctx, event); err != nil {
				log.Error().
					Err(err).
					Str("event_id", event.ID.String()).
					Str("event_type", event.EventType).
					Msg("failed to publish outbox event")
				continue
			}
			sent = append(sent, event.ID)
		}

		if len(sent) > 0 {
			if err := w.repo.MarkSent(ctx, sent); err != nil {
				return err
			}
			log.Info().
				Int("total", len(pending)).
				Int("sent", len(sent)).
				Msg("processed outbox events")
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("outbox poll failed")
	}
}

func (w *Worker) publishWithRetry(ctx context.Context, event Event) error {
	var lastErr error

	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-w.clock.After(w.config.RetryDelay * time.Duration(attempt)):
			}
		}

		if err := w.publisher.Publish(ctx, event); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("publish failed, retrying")
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", w.config.MaxRetries+1, lastErr)
}
