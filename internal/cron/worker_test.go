package cron

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bher20/tariffmanager/internal/alerting"
	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/report"
	"github.com/bher20/tariffmanager/internal/storage"
)

type fakeRunner struct {
	mu   sync.Mutex
	seen []string
	fail map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, ind industries.Industry, sections ...string) (*report.RunResult, error) {
	f.mu.Lock()
	f.seen = append(f.seen, ind.Key)
	f.mu.Unlock()

	res := &report.RunResult{Industry: ind.Key}
	res.Sections = append(res.Sections, report.SectionResult{Key: "tariff-updates"})
	if f.fail[ind.Key] {
		res.Sections = append(res.Sections, report.SectionResult{Key: "tariff-impact", Error: "model overloaded"})
		return res, errors.New("tariff-impact: model overloaded")
	}
	res.Sections = append(res.Sections, report.SectionResult{Key: "tariff-impact"})
	return res, nil
}

func catalog(t *testing.T) *industries.Catalog {
	t.Helper()
	c, err := industries.NewCatalog([]industries.Industry{{Key: "steel"}, {Key: "automotive"}})
	require.NoError(t, err)
	return c
}

func TestRunOnce_AllIndustriesSucceed(t *testing.T) {
	store := storage.NewMemory()
	runner := &fakeRunner{}
	w := NewWorker(Config{}, store, catalog(t), runner, nil, nil, zap.NewNop())

	sum, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"automotive", "steel"}, runner.seen)
	require.Len(t, sum.Outcomes, 2)
	assert.Equal(t, []string{"tariff-updates", "tariff-impact"}, sum.Outcomes[0].Sections)

	job, ok := store.ScheduledJob(JobName)
	require.True(t, ok)
	assert.Equal(t, 1, job.LastSuccess)
	assert.Empty(t, job.LastError)
}

func TestRunOnce_FailureContinuesAndAlerts(t *testing.T) {
	var (
		mu      sync.Mutex
		payload map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := storage.NewMemory()
	runner := &fakeRunner{fail: map[string]bool{"automotive": true}}
	alerter := alerting.NewAlerter(alerting.AlertConfig{WebhookURL: srv.URL, WebhookType: "generic"}, zap.NewNop())
	w := NewWorker(Config{}, store, catalog(t), runner, alerter, nil, zap.NewNop())

	sum, err := w.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 industries failed")

	assert.Equal(t, []string{"automotive", "steel"}, runner.seen)
	assert.NotEmpty(t, sum.Outcomes[0].Error)
	assert.Equal(t, []string{"tariff-updates"}, sum.Outcomes[0].Sections)
	assert.Empty(t, sum.Outcomes[1].Error)

	job, ok := store.ScheduledJob(JobName)
	require.True(t, ok)
	assert.Equal(t, 0, job.LastSuccess)
	assert.Contains(t, job.LastError, "industries failed")

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, payload)
	assert.Equal(t, "report_run_failure", payload["alert_type"])
}

func TestRunOnce_SkipsWhenLocked(t *testing.T) {
	store := storage.NewMemory()
	got, err := store.AcquireAdvisoryLock(context.Background(), lockKey)
	require.NoError(t, err)
	require.True(t, got)

	runner := &fakeRunner{}
	w := NewWorker(Config{}, store, catalog(t), runner, nil, nil, zap.NewNop())

	_, err = w.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrLocked)
	assert.Empty(t, runner.seen)
}

func TestRunOnce_ReleasesLock(t *testing.T) {
	store := storage.NewMemory()
	w := NewWorker(Config{}, store, catalog(t), &fakeRunner{}, nil, nil, zap.NewNop())

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = w.RunOnce(context.Background())
	require.NoError(t, err)
}

func TestNormalizeSchedule(t *testing.T) {
	got, err := normalizeSchedule("3600")
	require.NoError(t, err)
	assert.Equal(t, "@every 3600s", got)

	got, err = normalizeSchedule(" 0 6 * * 1 ")
	require.NoError(t, err)
	assert.Equal(t, "0 6 * * 1", got)

	_, err = normalizeSchedule("every tuesday")
	assert.Error(t, err)
	_, err = normalizeSchedule("-5")
	assert.Error(t, err)
}

func TestSchedule_StoredSettingWins(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, store.SetSetting(ctx, ScheduleSetting, "@hourly"))

	w := NewWorker(Config{Schedule: "@daily"}, store, catalog(t), &fakeRunner{}, nil, nil, zap.NewNop())
	got, err := w.schedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, "@hourly", got)
}

func TestRun_RunOnStartAndStops(t *testing.T) {
	store := storage.NewMemory()
	runner := &fakeRunner{}
	w := NewWorker(Config{Schedule: "@daily", RunOnStart: true}, store, catalog(t), runner, nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := store.ScheduledJob(JobName)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

type blockingRunner struct {
	release  chan struct{}
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (b *blockingRunner) Run(ctx context.Context, ind industries.Industry, sections ...string) (*report.RunResult, error) {
	b.calls.Add(1)
	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	if n > b.maxSeen.Load() {
		b.maxSeen.Store(n)
	}
	<-b.release
	return &report.RunResult{Industry: ind.Key}, nil
}

func TestRun_StartupRunDoesNotOverlapScheduledTick(t *testing.T) {
	c, err := industries.NewCatalog([]industries.Industry{{Key: "steel"}})
	require.NoError(t, err)
	runner := &blockingRunner{release: make(chan struct{})}
	// file-like backend: no advisory lock to fall back on
	w := NewWorker(Config{Schedule: "@every 1s", RunOnStart: true}, noLockStore{storage.NewMemory()}, c, runner, nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	// let at least one scheduled tick fire while the start-up run is blocked
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(1), runner.calls.Load())
	assert.Equal(t, int32(1), runner.maxSeen.Load())

	close(runner.release)
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop")
	}
}

// noLockStore hides the memory backend's Locker and JobStore methods.
type noLockStore struct {
	storage.Store
}
