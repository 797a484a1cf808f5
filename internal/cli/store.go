package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aretw0/hitch/internal/config"
	"github.com/aretw0/hitch/pkg/adapters/file"
	"github.com/aretw0/hitch/pkg/adapters/memory"
	"github.com/aretw0/hitch/pkg/adapters/redis"
	"github.com/aretw0/hitch/pkg/adapters/sqlite"
	"github.com/aretw0/hitch/pkg/persistence/middleware"
	"github.com/aretw0/hitch/pkg/ports"
)

// Backend is an opened store with its optional cross-process locker.
type Backend struct {
	Store  ports.Store
	Locker ports.DistributedLocker
	close  func() error
}

// Close releases connections held by the store.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend builds the store selected by cfg. When an encryption key is
// set in the environment, records are encrypted at rest.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	b := &Backend{}

	switch cfg.Store.Driver {
	case config.DriverMemory:
		b.Store = memory.NewStore()
	case config.DriverFile:
		b.Store = file.New(cfg.Store.Path)
	case config.DriverSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		s, err := sqlite.Open(ctx, cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		b.Store, b.close = s, s.Close
	case config.DriverRedis:
		rc := cfg.Store.Redis
		s := redis.New(rc.Addr, rc.Password, rc.DB,
			redis.WithPrefix(rc.Prefix),
			redis.WithTTL(rc.TTLDuration()),
		)
		if err := s.Client().Ping(ctx).Err(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", rc.Addr, err)
		}
		b.Store, b.close = s, s.Close
		if rc.Lock {
			b.Locker = redis.NewLocker(s.Client(), s.Prefix())
		}
	default:
		return nil, fmt.Errorf("%w: unknown store driver %q", config.ErrInvalidConfig, cfg.Store.Driver)
	}

	active, fallback, err := config.EncryptionKeys()
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	if active != nil {
		b.Store = middleware.Chain(b.Store, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
		logger.Debug("encryption at rest enabled", "fallback_keys", len(fallback))
	}

	logger.Debug("store opened", "driver", cfg.Store.Driver, "path", cfg.Store.Path)
	return b, nil
}
