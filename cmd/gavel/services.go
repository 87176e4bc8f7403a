package main

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/draftops/gavel/internal/auction"
	"github.com/draftops/gavel/internal/auth"
	"github.com/draftops/gavel/internal/bid"
	"github.com/draftops/gavel/internal/cache"
	"github.com/draftops/gavel/internal/cursor"
	"github.com/draftops/gavel/internal/fanout/gateway"
	"github.com/draftops/gavel/internal/fanout/outbox"
	"github.com/draftops/gavel/internal/httpapi"
	"github.com/draftops/gavel/internal/queue"
	"github.com/draftops/gavel/internal/sale"
	"github.com/draftops/gavel/internal/team"
	"github.com/draftops/gavel/internal/undo"
)

// services bundles every wired component of the engine.
type services struct {
	cache   *cache.Cache
	jwt     *auth.JWTProvider
	handler *httpapi.Handler

	outboxWorker *outbox.Worker
	publisher    *outbox.JetStreamPublisher

	connections *gateway.ConnectionManager
	debouncer   *gateway.Debouncer
	consumer    *gateway.EventConsumer
}

func buildServices(pool *pgxpool.Pool, cfg *Config) (*services, error) {
	clock := clockwork.NewRealClock()

	var c *cache.Cache
	if cfg.Cache.Disabled {
		c = cache.NewDisabled()
	} else {
		c = cache.New(cache.DefaultTTLs())
	}
	c.Start()

	jwt := auth.NewJWTProvider(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience)

	// Repositories share the pool; composite repositories delegate the
	// overlapping reads to the bid repository.
	bidRepo := bid.NewRepository(pool)
	teamRepo := team.NewRepository(pool)
	queueRepo := queue.NewRepository(pool, bidRepo)
	cursorRepo := cursor.NewRepository(pool, bidRepo, queueRepo)
	saleRepo := sale.NewRepository(pool, bidRepo, teamRepo)
	undoRepo := undo.NewRepository(pool, bidRepo, teamRepo, queueRepo)
	auctionRepo := auction.NewRepository(pool, bidRepo, cursorRepo)
	outboxRepo := outbox.NewRepository(pool)

	bidApp := bid.NewApp(bidRepo, outboxRepo, c, clock)
	teamApp := team.NewApp(teamRepo, c)
	queueApp := queue.NewApp(queueRepo, outboxRepo, c, clock)
	cursorApp := cursor.NewApp(cursorRepo, outboxRepo, c, clock)
	saleApp := sale.NewApp(saleRepo, outboxRepo, c, clock)
	undoApp := undo.NewApp(undoRepo, outboxRepo, c, clock)
	auctionApp := auction.NewApp(auctionRepo, outboxRepo, c, clock)

	// Outbox poller and broker publisher.
	jsCfg := outbox.DefaultJetStreamConfig()
	jsCfg.URL = cfg.NATS.URL
	jsCfg.StreamName = cfg.NATS.Stream
	jsCfg.SubjectPrefix = cfg.NATS.SubjectPrefix
	publisher, err := outbox.NewJetStreamPublisher(jsCfg)
	if err != nil {
		return nil, err
	}

	workerCfg := outbox.Config{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxRetries:   cfg.Outbox.MaxRetries,
		RetryDelay:   cfg.Outbox.RetryDelay,
	}
	worker := outbox.NewWorker(outboxRepo, publisher, workerCfg, clock)

	// Gateway: JetStream consumer -> debouncer -> connection pools.
	connections := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	debouncer := gateway.NewDebouncer(connections, clock, cfg.Gateway.DebounceWindow)

	consumerCfg := gateway.DefaultJetStreamConsumerConfig()
	consumerCfg.URL = cfg.NATS.URL
	consumerCfg.StreamName = cfg.NATS.Stream
	consumerCfg.ConsumerName = cfg.NATS.Consumer
	consumerCfg.SubjectFilter = cfg.NATS.SubjectPrefix + ".>"
	consumer, err := gateway.NewEventConsumer(debouncer, consumerCfg)
	if err != nil {
		publisher.Close()
		return nil, err
	}

	provider := gateway.NewStateProvider(bidRepo, teamRepo, queueRepo, cursorRepo)
	wsHandler := gateway.NewWebSocketHandler(connections, provider, jwt)

	handler := httpapi.NewHandler(auctionApp, bidApp, teamApp, queueApp, cursorApp, saleApp, undoApp, wsHandler, jwt)

	return &services{
		cache:        c,
		jwt:          jwt,
		handler:      handler,
		outboxWorker: worker,
		publisher:    publisher,
		connections:  connections,
		debouncer:    debouncer,
		consumer:     consumer,
	}, nil
}

func (s *services) shutdown() {
	s.debouncer.Close()
	_ = s.consumer.Stop()
	_ = s.publisher.Close()
	s.cache.Stop()
}
