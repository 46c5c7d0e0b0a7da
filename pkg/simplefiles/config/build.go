package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tendant/simple-files/pkg/simplefiles"
	"github.com/tendant/simple-files/pkg/simplefiles/events"
	"github.com/tendant/simple-files/pkg/simplefiles/events/inproc"
	natsevents "github.com/tendant/simple-files/pkg/simplefiles/events/nats"
	"github.com/tendant/simple-files/pkg/simplefiles/metrics"
	"github.com/tendant/simple-files/pkg/simplefiles/repo/memory"
	repopg "github.com/tendant/simple-files/pkg/simplefiles/repo/postgres"
	reporedis "github.com/tendant/simple-files/pkg/simplefiles/repo/redis"
	fsstorage "github.com/tendant/simple-files/pkg/simplefiles/storage/fs"
	memorystorage "github.com/tendant/simple-files/pkg/simplefiles/storage/memory"
	s3storage "github.com/tendant/simple-files/pkg/simplefiles/storage/s3"
)

// Runtime holds the service and the resources built for it.
type Runtime struct {
	Service simplefiles.Service

	// Metrics is nil when metrics are disabled.
	Metrics *metrics.Collector

	checks  []func(context.Context) error
	closers []namedCloser
}

type namedCloser struct {
	name string
	fn   func(context.Context) error
}

func (r *Runtime) onClose(name string, fn func(context.Context) error) {
	r.closers = append(r.closers, namedCloser{name: name, fn: fn})
}

// Ready runs the readiness checks of the configured backends.
func (r *Runtime) Ready(ctx context.Context) error {
	for _, check := range r.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources in reverse order of creation. The event transport
// is drained before the stores it writes to are closed.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close %s: %w", c.name, err))
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Build creates the record store, object store, event transport and service
// described by the configuration.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger) (*Runtime, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		if cerr := rt.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.ErrorContext(ctx, "Failed to release resources", "error", cerr)
		}
		return nil, err
	}

	options := []simplefiles.Option{
		simplefiles.WithLogger(logger),
		simplefiles.WithMaxUploadBytes(c.MaxUploadBytes),
	}

	if c.MetricsEnabled {
		collector, err := metrics.New(metrics.DefaultNamespace)
		if err != nil {
			return fail(err)
		}
		rt.Metrics = collector
		options = append(options, simplefiles.WithMetrics(collector))
	}

	repo, err := c.buildRepository(ctx, rt)
	if err != nil {
		return fail(fmt.Errorf("failed to build repository: %w", err))
	}
	options = append(options, simplefiles.WithRepository(repo))

	store, err := c.buildBlobStore(ctx)
	if err != nil {
		return fail(fmt.Errorf("failed to build storage backend: %w", err))
	}
	options = append(options, simplefiles.WithBlobStore(store))

	// The transport is started once the service it feeds exists.
	sink, start, err := c.buildEvents(ctx, rt, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to build event transport: %w", err))
	}
	options = append(options, simplefiles.WithEventSink(sink))

	svc, err := simplefiles.New(options...)
	if err != nil {
		return fail(err)
	}
	rt.Service = svc

	if start != nil {
		if err := start(ctx, events.ServiceHandler(svc, logger)); err != nil {
			return fail(fmt.Errorf("failed to start event transport: %w", err))
		}
	}

	logger.InfoContext(ctx, "Service configured",
		"database", kindOrEmpty(c.DatabaseKind),
		"storage", kindOrEmpty(c.StorageKind),
		"events", kindOrEmpty(c.EventsKind),
		"metrics", c.MetricsEnabled)

	return rt, nil
}

func kindOrEmpty(f func() (string, error)) string {
	k, _ := f()
	return k
}

func (c *ServerConfig) buildRepository(ctx context.Context, rt *Runtime) (simplefiles.Repository, error) {
	kind, err := c.DatabaseKind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case DatabaseMemory:
		return memory.New(), nil

	case DatabasePostgres:
		pool, err := NewPostgresPool(ctx, c.DatabaseURL, c.DBSchema)
		if err != nil {
			return nil, err
		}
		rt.onClose("postgres", func(context.Context) error {
			pool.Close()
			return nil
		})
		rt.checks = append(rt.checks, pool.Ping)

		repo := repopg.NewWithPool(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return repo, nil

	case DatabaseRedis:
		opts, err := redis.ParseURL(c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		client := redis.NewClient(opts)
		rt.onClose("redis", func(context.Context) error {
			return client.Close()
		})

		repo := reporedis.New(client, reporedis.DefaultPrefix)
		if err := repo.Ping(ctx); err != nil {
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		rt.checks = append(rt.checks, repo.Ping)
		return repo, nil
	}
	return nil, fmt.Errorf("unsupported database type: %s", kind)
}

// NewPostgresPool connects to Postgres, creates schema when missing and
// scopes every pooled connection to it through search_path.
func NewPostgresPool(ctx context.Context, databaseURL, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}
	if schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if schema != "" {
		if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize()); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
	}
	return pool, nil
}

func (c *ServerConfig) buildBlobStore(ctx context.Context) (simplefiles.BlobStore, error) {
	kind, err := c.StorageKind()
	if err != nil {
		return nil, err
	}

	switch kind {
	case StorageMemory:
		return memorystorage.New(), nil

	case StorageFile:
		return fsstorage.New(fsstorage.Config{
			BaseDir: strings.TrimPrefix(c.StorageURL, "file://"),
		})

	case StorageS3:
		s3Config, err := s3storage.ConfigFromURL(c.StorageURL)
		if err != nil {
			return nil, err
		}
		s3Config.AccessKeyID = c.S3AccessKeyID
		s3Config.SecretAccessKey = c.S3SecretAccessKey
		return s3storage.New(ctx, s3Config)
	}
	return nil, fmt.Errorf("unsupported storage backend type: %s", kind)
}

type startFunc func(ctx context.Context, handler events.Handler) error

func (c *ServerConfig) buildEvents(ctx context.Context, rt *Runtime, logger *slog.Logger) (simplefiles.EventSink, startFunc, error) {
	kind, err := c.EventsKind()
	if err != nil {
		return nil, nil, err
	}

	switch kind {
	case EventsNone:
		return simplefiles.NewLoggingEventSink(logger), nil, nil

	case EventsInproc:
		d := inproc.New(inproc.Config{Workers: c.EventWorkers, Logger: logger})
		rt.onClose("event dispatcher", d.Close)
		return d, d.Start, nil

	case EventsNATS:
		nc, err := natsevents.Connect(c.EventsURL)
		if err != nil {
			return nil, nil, err
		}
		rt.onClose("nats", func(context.Context) error {
			return nc.Drain()
		})
		rt.checks = append(rt.checks, func(context.Context) error {
			if !nc.IsConnected() {
				return fmt.Errorf("nats connection is %s", nc.Status())
			}
			return nil
		})

		start := func(ctx context.Context, handler events.Handler) error {
			_, err := natsevents.Subscribe(nc, c.EventsSubject, handler, logger)
			return err
		}
		return natsevents.NewPublisher(nc, c.EventsSubject), start, nil
	}
	return nil, nil, fmt.Errorf("unsupported events type: %s", kind)
}
