package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Config controls how the storage backend is opened.
type Config struct {
	Driver      string
	DSN         string // sqlite file, postgres DSN or directory for "file"
	AutoMigrate bool
	S3          S3Config
}

// Open constructs a Store based on the given configuration. The returned
// value also implements JobStore and Locker when the backend supports them.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (Store, error) {
	drv := cfg.Driver
	if drv == "" {
		drv = "memory"
	}
	log = log.With(zap.String("driver", drv))

	switch drv {
	case "memory":
		log.Info("storage: using in-memory backend")
		return NewMemory(), nil

	case "file":
		log.Info("storage: using file backend", zap.String("dir", cfg.DSN))
		return NewFile(cfg.DSN)

	case "s3":
		log.Info("storage: using s3 backend", zap.String("bucket", cfg.S3.Bucket))
		return OpenS3(cfg.S3)

	case "sqlite", "postgres":
		log.Info("storage: using gorm backend")
		st, err := NewGormStorage(drv, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				st.Close()
				return nil, fmt.Errorf("storage migrate: %w", err)
			}
		}
		return st, nil

	case "postgrespool":
		log.Info("storage: using pgx pool backend")
		st, err := OpenPostgresPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := st.Migrate(ctx); err != nil {
				st.Close()
				return nil, fmt.Errorf("storage migrate: %w", err)
			}
		}
		return st, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", drv)
	}
}
