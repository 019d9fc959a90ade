package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	seasonservice "fable/contexts/story-tournament/season-service"
	seasonpostgres "fable/contexts/story-tournament/season-service/adapters/postgres"
	seasonworkers "fable/contexts/story-tournament/season-service/application/workers"
	slotengine "fable/contexts/story-tournament/slot-engine"
	enginepostgres "fable/contexts/story-tournament/slot-engine/adapters/postgres"
	engineworkers "fable/contexts/story-tournament/slot-engine/application/workers"
	engineentities "fable/contexts/story-tournament/slot-engine/domain/entities"
	voteledger "fable/contexts/story-tournament/vote-ledger"
	ledgerpostgres "fable/contexts/story-tournament/vote-ledger/adapters/postgres"
	ledgerworkers "fable/contexts/story-tournament/vote-ledger/application/workers"
	"fable/internal/platform/config"
	"fable/internal/platform/db"
	"fable/internal/platform/httpserver"
	"fable/internal/platform/messaging"

	"github.com/lmittmann/tint"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres *db.Postgres

	seasonConsumer engineworkers.SeasonConsumer
	voteConsumer   engineworkers.VoteAggregateConsumer
	sweeper        engineworkers.ReconciliationSweeper
	expirer        engineworkers.VotingExpirer
	seasonRelay    seasonworkers.OutboxRelay
	engineRelay    engineworkers.OutboxRelay
	ledgerRelay    ledgerworkers.OutboxRelay

	sweepInterval  time.Duration
	expireInterval time.Duration
	relayInterval  time.Duration
	sweeperEnabled bool
	expirerEnabled bool
	logger         *slog.Logger
}

type modules struct {
	seasons seasonservice.Module
	engine  slotengine.Module
	ledger  voteledger.Module

	seasonRepo *seasonpostgres.Repository
	engineRepo *enginepostgres.Repository
	ledgerRepo *ledgerpostgres.Repository
}

func buildModules(cfg config.Config, pg *db.Postgres, logger *slog.Logger) modules {
	seasonRepo := seasonpostgres.NewRepository(pg.DB, logger)
	engineRepo := enginepostgres.NewRepository(pg.DB, logger)
	ledgerRepo := ledgerpostgres.NewRepository(pg.DB, logger)

	ledgerModule := voteledger.NewModule(voteledger.Dependencies{
		Votes:  ledgerRepo,
		Clips:  engineClipDirectory{repo: engineRepo},
		Outbox: ledgerRepo,
		Clock:  ledgerpostgres.SystemClock{},
		IDGen:  ledgerpostgres.UUIDGenerator{},
		Logger: logger,
	})

	engineModule := slotengine.NewModule(slotengine.Dependencies{
		Repo:           engineRepo,
		Idempotency:    engineRepo,
		Outbox:         engineRepo,
		Votes:          ledgerVotePurger{purge: ledgerModule.Purge},
		Clock:          enginepostgres.SystemClock{},
		IDGen:          enginepostgres.UUIDGenerator{},
		VotingWindow:   engineentities.DefaultVotingWindow,
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	})

	seasonModule := seasonservice.NewModule(seasonservice.Dependencies{
		Seasons:        seasonRepo,
		Idempotency:    seasonRepo,
		Outbox:         seasonRepo,
		Board:          engineSlotBoard{repo: engineRepo},
		Clock:          seasonpostgres.SystemClock{},
		IDGenerator:    seasonpostgres.UUIDGenerator{},
		IdempotencyTTL: cfg.IdempotencyTTL,
		Logger:         logger,
	})

	return modules{
		seasons:    seasonModule,
		engine:     engineModule,
		ledger:     ledgerModule,
		seasonRepo: seasonRepo,
		engineRepo: engineRepo,
		ledgerRepo: ledgerRepo,
	}
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := buildLogger(cfg, "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	mods := buildModules(cfg, pg, logger)
	server := httpserver.New(mods.seasons, mods.engine, mods.ledger, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := buildLogger(cfg, "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	mods := buildModules(cfg, pg, logger)
	return &WorkerApp{
		postgres: pg,
		seasonConsumer: engineworkers.SeasonConsumer{
			Subscriber:    kafka,
			Dedup:         mods.engineRepo,
			Repo:          mods.engineRepo,
			Clock:         enginepostgres.SystemClock{},
			ConsumerGroup: "slot-engine-season-cg",
			DedupTTL:      cfg.IdempotencyTTL,
			Disabled:      !cfg.EnableSeasonConsumer,
			Logger:        logger,
		},
		voteConsumer: engineworkers.VoteAggregateConsumer{
			Subscriber:    kafka,
			Dedup:         mods.engineRepo,
			Repo:          mods.engineRepo,
			Clock:         enginepostgres.SystemClock{},
			ConsumerGroup: "slot-engine-vote-cg",
			DedupTTL:      cfg.IdempotencyTTL,
			Disabled:      !cfg.EnableVoteConsumer,
			Logger:        logger,
		},
		sweeper: engineworkers.ReconciliationSweeper{
			Repo:   mods.engineRepo,
			Outbox: mods.engineRepo,
			Clock:  enginepostgres.SystemClock{},
			IDGen:  enginepostgres.UUIDGenerator{},
			Window: engineentities.DefaultVotingWindow,
			Logger: logger,
		},
		expirer: engineworkers.VotingExpirer{
			Repo:       mods.engineRepo,
			Tallies:    ledgerTallyReader{tallies: mods.ledger.Tallies},
			Tournament: mods.engine.Tournament,
			Outbox:     mods.engineRepo,
			Clock:      enginepostgres.SystemClock{},
			IDGen:      enginepostgres.UUIDGenerator{},
			BatchSize:  50,
			Window:     engineentities.DefaultVotingWindow,
			Logger:     logger,
		},
		seasonRelay: seasonworkers.OutboxRelay{
			Outbox:    mods.seasonRepo,
			Publisher: kafka,
			Clock:     seasonpostgres.SystemClock{},
			BatchSize: cfg.RelayBatchSize,
			Logger:    logger,
		},
		engineRelay: engineworkers.OutboxRelay{
			Outbox:    mods.engineRepo,
			Publisher: kafka,
			Clock:     enginepostgres.SystemClock{},
			BatchSize: cfg.RelayBatchSize,
			Logger:    logger,
		},
		ledgerRelay: ledgerworkers.OutboxRelay{
			Outbox:    mods.ledgerRepo,
			Publisher: kafka,
			Clock:     ledgerpostgres.SystemClock{},
			BatchSize: cfg.RelayBatchSize,
			Logger:    logger,
		},
		sweepInterval:  cfg.SweepInterval,
		expireInterval: cfg.ExpireInterval,
		relayInterval:  cfg.RelayInterval,
		sweeperEnabled: cfg.EnableSlotSweeper,
		expirerEnabled: cfg.EnableRoundExpirer,
		logger:         logger,
	}, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.seasonConsumer.Start(ctx); err != nil {
		return err
	}
	if err := w.voteConsumer.Start(ctx); err != nil {
		return err
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"sweep_interval", w.sweepInterval.String(),
		"expire_interval", w.expireInterval.String(),
		"relay_interval", w.relayInterval.String(),
	)

	group, ctx := errgroup.WithContext(ctx)
	if w.sweeperEnabled {
		group.Go(func() error {
			return w.runLoop(ctx, w.sweepInterval, w.sweeper.RunOnce)
		})
	}
	if w.expirerEnabled {
		group.Go(func() error {
			return w.runLoop(ctx, w.expireInterval, w.expirer.RunOnce)
		})
	}
	group.Go(func() error {
		return w.runLoop(ctx, w.relayInterval, func(ctx context.Context) error {
			if err := w.seasonRelay.RunOnce(ctx); err != nil {
				return err
			}
			if err := w.engineRelay.RunOnce(ctx); err != nil {
				return err
			}
			return w.ledgerRelay.RunOnce(ctx)
		})
	})
	return group.Wait()
}

// runLoop drives one worker on a fixed cadence. The first pass runs
// immediately so a fresh process drains backlog without waiting a tick.
func (w *WorkerApp) runLoop(ctx context.Context, interval time.Duration, run func(context.Context) error) error {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := run(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func buildLogger(cfg config.Config, process string) *slog.Logger {
	var handler slog.Handler
	switch strings.TrimSpace(strings.ToLower(cfg.LogFormat)) {
	case "console", "text":
		handler = tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: time.Kitchen})
	default:
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	logger := slog.New(handler).With("service", cfg.ServiceName, "process", process)
	slog.SetDefault(logger)
	return logger
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
