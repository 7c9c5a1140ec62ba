// Package store selects the durable ledger.Backend named by configuration.
package store

import (
	"context"
	"fmt"

	"github.com/warp/shopledger/config"
	"github.com/warp/shopledger/ledger"
	"github.com/warp/shopledger/store/postgres"
	"github.com/warp/shopledger/store/sqlite"
)

// Open connects to the configured database and migrates its schema.
func Open(ctx context.Context, cfg config.DBConfig) (ledger.Backend, error) {
	switch cfg.Driver {
	case "sqlite":
		s, err := sqlite.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		s, err := postgres.New(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}
