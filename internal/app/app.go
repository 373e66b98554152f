// Package app assembles the store, engine, remote source, cache and journal
// from a loaded config. The CLI and the tests share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/engine"
	"taskboard/internal/events"
	"taskboard/internal/migrate"
	"taskboard/internal/source"
	"taskboard/internal/store"
)

type App struct {
	Config *config.Config
	Store  *store.Store
	Engine engine.Engine
	Source source.Source
	// Journal is nil when the journal is disabled.
	Journal *sql.DB
	Logger  log.FieldLogger

	redis *redis.Client
}

// Options override pieces of the assembly. Source replaces the remote client,
// which keeps tests off the network.
type Options struct {
	Workspace string
	Logger    log.FieldLogger
	Source    source.Source
}

// Open builds an App. The store is empty until Hydrate is called.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	a := &App{Config: cfg, Store: store.New(), Logger: logger}

	src := opts.Source
	if src == nil {
		client := source.New(cfg.Source.BaseURL)
		client.Limit = cfg.Source.Limit
		if cfg.Source.Timeout > 0 {
			client.Timeout = cfg.Source.Timeout
		}
		src = client
	}
	if cfg.Cache.RedisURL != "" {
		ropts, err := redis.ParseURL(cfg.Cache.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("cache.redis_url: %w", err)
		}
		a.redis = redis.NewClient(ropts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unreachable, continuing without cache")
			a.redis.Close()
			a.redis = nil
		} else {
			src = source.NewCache(src, a.redis, cfg.Cache.TTL)
		}
	}
	a.Source = src

	e, err := engine.New(a.Store, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	e.Source = src
	e.Logger = logger

	if cfg.Journal.Enabled {
		conn, err := db.Open(db.Config{Path: cfg.JournalPath(opts.Workspace)})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		if err := migrate.Migrate(ctx, conn); err != nil {
			conn.Close()
			a.Close()
			return nil, fmt.Errorf("migrate journal: %w", err)
		}
		a.Journal = conn
		e.Journal = events.Writer{DB: conn}
	}
	a.Engine = e
	return a, nil
}

// Hydrate seeds the store from the remote source.
func (a *App) Hydrate(ctx context.Context) Result {
	return Hydrate(ctx, a.Source, a.Store, a.Logger)
}

// ErrNoCache is returned by EvictCache when no Redis cache is configured.
var ErrNoCache = errors.New("no remote cache configured (cache.redis_url)")

// EvictCache drops every cached remote response so the next hydration reads
// the remote API.
func (a *App) EvictCache(ctx context.Context) error {
	cache, ok := a.Source.(*source.Cache)
	if !ok {
		return ErrNoCache
	}
	if err := cache.Evict(ctx); err != nil {
		return fmt.Errorf("evict cache: %w", err)
	}
	a.Logger.Info("remote cache evicted")
	return nil
}

// SetNotifier routes activity entries to n.
func (a *App) SetNotifier(n engine.Notifier) {
	a.Engine.Notifier = n
}

// Close releases the journal and the Redis client.
func (a *App) Close() error {
	var errs []error
	if a.Journal != nil {
		errs = append(errs, a.Journal.Close())
		a.Journal = nil
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
		a.redis = nil
	}
	return errors.Join(errs...)
}
