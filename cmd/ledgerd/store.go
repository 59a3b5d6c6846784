package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/chainledger/internal/ledger"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// openStore returns the configured persistent store and a func releasing it.
// The memory driver returns a nil store.
func openStore(ctx context.Context, driver string, logger *zap.Logger) (ledger.Store, func(), error) {
	switch driver {
	case "", "memory":
		return nil, func() {}, nil

	case "postgres":
		db, err := pgxpool.New(ctx, viper.GetString("store.postgres_url"))
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		logger.Info("connected to postgres")
		return ledger.NewPostgresStore(db, logger), db.Close, nil

	case "sqlite":
		dsn := viper.GetString("store.sqlite_dsn")
		s, err := ledger.OpenSQLiteStore(dsn)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened sqlite store", zap.String("dsn", dsn))
		return s, closer(s, logger), nil

	case "badger":
		dir := viper.GetString("store.badger_dir")
		s, err := ledger.OpenBadgerStore(dir, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened badger store", zap.String("dir", dir))
		return s, closer(s, logger), nil

	default:
		return nil, nil, fmt.Errorf("unknown store.driver %q (want memory, postgres, sqlite or badger)", driver)
	}
}

func closer(s ledger.Store, logger *zap.Logger) func() {
	return func() {
		if err := s.Close(); err != nil {
			logger.Warn("close store", zap.Error(err))
		}
	}
}
