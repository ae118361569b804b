// Package store selects and opens the core.Repository backend named in config.
package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"pharmacy-pos/internal/config"
	"pharmacy-pos/internal/core"
	"pharmacy-pos/internal/db"
	"pharmacy-pos/internal/store/memory"
	"pharmacy-pos/internal/store/postgres"
)

// Open returns the configured repository and a func that releases it.
// With the postgres driver, pending migrations are applied first when
// cfg.Database.AutoMigrate is set.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (core.Repository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreMemory:
		log.Warn("using in-memory store; data is lost on exit")
		return memory.New(), func() {}, nil

	case config.StorePostgres:
		if cfg.Database.AutoMigrate {
			if err := Migrate(cfg.Database.URL, log); err != nil {
				return nil, nil, err
			}
		}
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to postgres", zap.Int32("max_conns", pool.Config().MaxConns))
		return postgres.New(pool), pool.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// Migrate applies every pending embedded migration.
func Migrate(databaseURL string, log *zap.Logger) error {
	m, err := db.NewMigrator(databaseURL, log.Named("migrate"))
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}
