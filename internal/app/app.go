// Package app wires the postgres-backed ingestion service from configuration.
package app

import (
	"context"
	"fmt"

	"github.com/rpattn/sapingest/internal/config"
	"github.com/rpattn/sapingest/internal/db"
	"github.com/rpattn/sapingest/internal/distribution"
	"github.com/rpattn/sapingest/internal/export"
	"github.com/rpattn/sapingest/internal/ingestion"
	"github.com/rpattn/sapingest/internal/lock"
	"github.com/rpattn/sapingest/internal/metrics"
	"github.com/rpattn/sapingest/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Conn    *db.Connection
	Service *ingestion.Service
	Export  *export.Service

	redis *redis.Client
}

// Options controls what Open sets up besides the database pool.
type Options struct {
	Migrate bool
	Metrics *metrics.Ingestion
}

// Open connects to postgres (and redis when locking is enabled), optionally
// applies migrations and builds the ingestion service.
func Open(ctx context.Context, cfg config.Config, logger logrus.FieldLogger, opts Options) (*App, error) {
	if opts.Migrate {
		if err := db.RunMigrations(cfg.Database, logger); err != nil {
			return nil, err
		}
	}

	conn, err := db.NewConnection(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	a := &App{Conn: conn}

	var locker lock.Locker = lock.Noop{}
	if cfg.Lock.Enabled {
		client, err := lock.Dial(ctx, cfg.Lock)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to connect lock store: %w", err)
		}
		a.redis = client
		locker = lock.NewRedisLocker(client, cfg.Lock.TTL, cfg.Lock.Wait)
	}

	distributor := distribution.NewDistributor(
		repository.NewUnitOfWork(conn),
		distribution.WithLogger(logger),
	)
	batches := repository.NewImportBatchRepository(conn.Pool)
	rows := repository.NewImportRowRepository(conn.Pool)
	a.Service = ingestion.NewService(
		batches,
		rows,
		repository.NewIngestionLogRepository(conn.Pool),
		distributor,
		ingestion.WithLayout(cfg.Layout),
		ingestion.WithLogger(logger),
		ingestion.WithLocker(locker),
		ingestion.WithMetrics(opts.Metrics),
	)
	a.Export = export.NewService(batches, rows, export.WithLogger(logger))
	return a, nil
}

// Close releases the database pool and the redis client.
func (a *App) Close() error {
	var err error
	if a.redis != nil {
		err = a.redis.Close()
	}
	a.Conn.Close()
	return err
}
