package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reloquent/schemacanvas/internal/config"
)

// Open builds the store selected by cfg, wrapped in a cache when
// cfg.CacheSize is set.
func Open(ctx context.Context, cfg config.PersistenceConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var (
		st  Store
		err error
	)
	switch cfg.Backend {
	case config.BackendFile, "":
		st, err = NewFile(cfg.Directory, logger)
	case config.BackendSQLite:
		st, err = OpenSQLite(cfg.DSN, logger)
	case config.BackendPostgres:
		st, err = OpenPostgres(ctx, cfg.DSN, logger)
	case config.BackendMongoDB:
		st, err = OpenMongo(ctx, cfg.DSN, cfg.Database, cfg.Collection, logger)
	case config.BackendMemory:
		st = NewMemory()
	default:
		return nil, fmt.Errorf("unsupported persistence backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("persistence opened", "backend", cfg.Backend, "cache_size", cfg.CacheSize)

	if cfg.CacheSize > 0 {
		cached, err := NewCached(st, cfg.CacheSize)
		if err != nil {
			st.Close()
			return nil, err
		}
		return cached, nil
	}
	return st, nil
}
