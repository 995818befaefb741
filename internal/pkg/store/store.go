// Package store opens the configured flagged-record backend.
package store

import (
	"context"
	"fmt"

	"github.com/endorses/lippyguard/internal/pkg/config"
	"github.com/endorses/lippyguard/internal/pkg/logger"
	"github.com/endorses/lippyguard/internal/pkg/store/mongodb"
	"github.com/endorses/lippyguard/internal/pkg/store/sqlite"
	"github.com/endorses/lippyguard/internal/pkg/types"
)

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.Storage) (types.FlaggedStore, error) {
	switch cfg.Driver {
	case config.DriverNone, "":
		return Noop{}, nil
	case config.DriverSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		logger.Info("Flagged records stored in SQLite", "path", cfg.SQLite.Path)
		return s, nil
	case config.DriverMongoDB:
		s, err := mongodb.Open(ctx, mongodb.Options{
			URI:            cfg.MongoDB.URI,
			Database:       cfg.MongoDB.Database,
			Collection:     cfg.MongoDB.Collection,
			ConnectTimeout: cfg.MongoDB.ConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("Flagged records stored in MongoDB",
			"database", cfg.MongoDB.Database,
			"collection", cfg.MongoDB.Collection)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Noop discards records.
type Noop struct{}

func (Noop) InsertFlagged(context.Context, []*types.PacketRecord) error { return nil }
func (Noop) Close() error                                               { return nil }
