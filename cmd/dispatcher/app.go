package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/api"
	"github.com/ignite/dispatch-engine/internal/channel"
	"github.com/ignite/dispatch-engine/internal/config"
	"github.com/ignite/dispatch-engine/internal/notify"
	"github.com/ignite/dispatch-engine/internal/pkg/distlock"
	"github.com/ignite/dispatch-engine/internal/pkg/logger"
	"github.com/ignite/dispatch-engine/internal/repository/memory"
	"github.com/ignite/dispatch-engine/internal/repository/postgres"
	"github.com/ignite/dispatch-engine/internal/service/dispatch"
	"github.com/ignite/dispatch-engine/internal/service/identity"
	"github.com/ignite/dispatch-engine/internal/service/queue"
	"github.com/ignite/dispatch-engine/internal/service/sending"
	"github.com/ignite/dispatch-engine/internal/service/stats"
	"github.com/ignite/dispatch-engine/internal/tracking"
)

// repositories is one storage backend seen through every service port.
type repositories struct {
	directory sending.Directory
	queue     queue.Repository
	history   stats.Repository
	identity  identity.Repository
	tracking  tracking.Repository
}

// app holds the wired components shared by every subcommand.
type app struct {
	cfg *config.Config
	db  *sql.DB
	rdb *redis.Client

	apiChannel *channel.APIChannel
	notifier   *notify.Async

	sending   *sending.Service
	queue     *queue.Service
	stats     *stats.Service
	identity  *identity.Service
	tracking  *tracking.Service
	processor *queue.Processor
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger.Configure(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Format, cfg.Logging.RedactPII)
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	repos, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Dispatch.AutoProcessQueue {
		if err := repos.identity.SetAutoProcess(ctx, true); err != nil {
			a.Close()
			return nil, fmt.Errorf("enable auto-process: %w", err)
		}
	}

	if cfg.Redis.Enabled() {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, falling back to database lock", "addr", cfg.Redis.Addr, "error", err)
			a.rdb.Close()
			a.rdb = nil
		} else {
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	a.apiChannel = channel.NewAPIChannel(cfg.Channels.APITimeout())
	router := channel.NewRouter(a.apiChannel, channel.NewSMTPChannel(cfg.Channels.SMTPTimeout(), cfg.Channels.SMTPHelo))
	dispatcher := dispatch.New(repos.directory, router, cfg.Dispatch.SendDelay())

	a.stats = stats.NewService(repos.history)
	a.identity = identity.NewService(repos.identity)
	a.tracking = tracking.NewService(repos.tracking)
	a.queue = queue.NewService(repos.queue, dispatcher)
	a.sending = sending.NewService(repos.directory, dispatcher, a.stats)
	a.sending.SetTemplateSource(a.apiChannel)

	a.processor = queue.NewProcessor(repos.queue, dispatcher, a.stats, queue.ProcessorConfig{
		Owner:           cfg.Dispatch.WorkerID,
		PollInterval:    cfg.Dispatch.PollInterval(),
		Lease:           cfg.Dispatch.Lease(),
		MaxItemsPerTick: cfg.Dispatch.MaxItemsPerTick,
	})
	a.processor.SetAutoProcess(a.identity)
	a.processor.SetLock(distlock.NewLock(a.rdb, a.db, queue.PollLockKey, cfg.Dispatch.Lease()))

	a.notifier, err = notify.FromConfig(ctx, cfg.Notify)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("configure notifier: %w", err)
	}
	// A nil *Async must not reach the services as a non-nil interface.
	if a.notifier != nil {
		a.sending.SetNotifier(a.notifier)
		a.processor.SetNotifier(a.notifier)
		logger.Info("external sync enabled", "mode", cfg.Notify.Mode)
	}
	return a, nil
}

func (a *app) openStore(ctx context.Context) (*repositories, error) {
	switch a.cfg.Store.Driver {
	case config.StoreMemory:
		s := memory.NewStore()
		if a.cfg.Store.SeedFile != "" {
			if err := memory.LoadSeed(s, a.cfg.Store.SeedFile); err != nil {
				return nil, err
			}
			logger.Info("memory store seeded", "file", a.cfg.Store.SeedFile)
		}
		logger.Warn("using in-memory store, data is lost on exit")
		return &repositories{
			directory: s.Directory(),
			queue:     s.Queue(),
			history:   s.History(),
			identity:  s.Identity(),
			tracking:  s.Tracking(),
		}, nil

	default:
		db, err := postgres.Open(ctx, a.cfg.Database)
		if err != nil {
			return nil, err
		}
		a.db = db
		logger.Info("connected to database")
		return &repositories{
			directory: postgres.NewDirectoryRepo(db),
			queue:     postgres.NewQueueRepo(db),
			history:   postgres.NewHistoryRepo(db),
			identity:  postgres.NewIdentityRepo(db),
			tracking:  postgres.NewTrackingRepo(db),
		}, nil
	}
}

func (a *app) handlers() *api.Handlers {
	return api.NewHandlers(api.Services{
		Sending:  a.sending,
		Queue:    a.queue,
		Stats:    a.stats,
		Identity: a.identity,
		Tracking: a.tracking,
		Health:   api.NewHealthChecker(a.db, a.rdb),
	})
}

// Close waits for pending notifications and releases connections.
func (a *app) Close() {
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
