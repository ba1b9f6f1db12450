package storage

import (
	"context"
	"time"
)

// Store persists report documents. Writes overwrite the whole document and
// reads return the whole document.
type Store interface {
	// GetDocument returns nil, nil when key does not exist.
	GetDocument(ctx context.Context, key string) (*Document, error)
	PutDocument(ctx context.Context, doc Document) error

	Ping(ctx context.Context) error
	// Close releases any resources (no-op for in-memory).
	Close() error
}

// JobStore records run bookkeeping. Backends that cannot hold it (file, s3)
// simply don't implement it; callers type-assert.
type JobStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	SaveRunProgress(ctx context.Context, p RunProgress) error
	ListRunProgress(ctx context.Context, runID string) ([]RunProgress, error)

	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error
}

// Locker provides cross-process advisory locks.
type Locker interface {
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
}
