package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bher20/tariffmanager/internal/metrics"
)

// MemoryStorage is an in-memory implementation of every storage interface,
// useful for tests and simple single-process deployments.
type MemoryStorage struct {
	mu       sync.RWMutex
	docs     map[string]Document
	progress map[string]map[string]RunProgress
	settings map[string]string
	jobs     map[string]ScheduledJob
	locks    map[int64]bool
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		docs:     make(map[string]Document),
		progress: make(map[string]map[string]RunProgress),
		settings: make(map[string]string),
		jobs:     make(map[string]ScheduledJob),
		locks:    make(map[int64]bool),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) GetDocument(ctx context.Context, key string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[key]
	if !ok {
		return nil, nil
	}
	d.Body = append([]byte(nil), d.Body...)
	return &d, nil
}

func (m *MemoryStorage) PutDocument(ctx context.Context, doc Document) error {
	doc.Body = append([]byte(nil), doc.Body...)
	m.mu.Lock()
	m.docs[doc.Key] = doc
	m.mu.Unlock()
	metrics.DocumentWritesTotal.WithLabelValues("memory").Inc()
	return nil
}

// Keys lists stored document keys in lexical order.
func (m *MemoryStorage) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.docs))
	for k := range m.docs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *MemoryStorage) SaveRunProgress(ctx context.Context, p RunProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.progress[p.RunID]
	if !ok {
		run = make(map[string]RunProgress)
		m.progress[p.RunID] = run
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	run[p.Country] = p
	return nil
}

func (m *MemoryStorage) ListRunProgress(ctx context.Context, runID string) ([]RunProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]RunProgress, 0, len(m.progress[runID]))
	for _, p := range m.progress[runID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out, nil
}

// RunIDs lists the runs that recorded progress.
func (m *MemoryStorage) RunIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.progress))
	for id := range m.progress {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[name] = ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return nil
}

// ScheduledJob returns the last recorded run of a job.
func (m *MemoryStorage) ScheduledJob(name string) (ScheduledJob, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[name]
	return j, ok
}

func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return false, nil
	}
	m.locks[key] = true
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	held := m.locks[key]
	delete(m.locks, key)
	return held, nil
}

var (
	_ Store    = (*MemoryStorage)(nil)
	_ JobStore = (*MemoryStorage)(nil)
	_ Locker   = (*MemoryStorage)(nil)
)
