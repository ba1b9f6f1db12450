// Package cron runs the scheduled regeneration of every catalog industry.
package cron

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bher20/tariffmanager/internal/alerting"
	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/metrics"
	"github.com/bher20/tariffmanager/internal/notification"
	"github.com/bher20/tariffmanager/internal/report"
	"github.com/bher20/tariffmanager/internal/storage"
)

const (
	JobName = "tariff_refresh"
	// ScheduleSetting overrides the configured schedule when stored.
	ScheduleSetting = "cron_schedule"

	lockKey int64 = 0x7461726966 // "tarif"
)

// Runner runs report stages for one industry.
type Runner interface {
	Run(ctx context.Context, ind industries.Industry, sections ...string) (*report.RunResult, error)
}

type Config struct {
	Schedule   string
	RunOnStart bool
}

type Worker struct {
	cfg      Config
	store    storage.Store
	catalog  *industries.Catalog
	runner   Runner
	alerter  *alerting.Alerter
	notifier *notification.Service
	log      *zap.Logger
}

func NewWorker(cfg Config, store storage.Store, catalog *industries.Catalog, runner Runner, alerter *alerting.Alerter, notifier *notification.Service, log *zap.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		store:    store,
		catalog:  catalog,
		runner:   runner,
		alerter:  alerter,
		notifier: notifier,
		log:      log.Named("cron"),
	}
}

// normalizeSchedule accepts a cron expression, a descriptor ("@daily",
// "@every 6h") or a plain number of seconds.
func normalizeSchedule(s string) (string, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		if v <= 0 {
			return "", fmt.Errorf("invalid schedule %q", s)
		}
		s = fmt.Sprintf("@every %ds", v)
	}
	if _, err := cron.ParseStandard(s); err != nil {
		return "", fmt.Errorf("invalid schedule %q: %w", s, err)
	}
	return s, nil
}

func (w *Worker) schedule(ctx context.Context) (string, error) {
	setting := w.cfg.Schedule
	if jobs, ok := w.store.(storage.JobStore); ok {
		if v, err := jobs.GetSetting(ctx, ScheduleSetting); err == nil && v != "" {
			setting = v
		}
	}
	if setting == "" {
		setting = "@every 24h"
	}
	return normalizeSchedule(setting)
}

// Run schedules the refresh job and blocks until ctx is done. Runs never
// overlap; a run still going when the next one is due is skipped.
func (w *Worker) Run(ctx context.Context) error {
	sched, err := w.schedule(ctx)
	if err != nil {
		return err
	}

	clog := cronLogger{w.log.Sugar()}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	id, err := c.AddFunc(sched, func() { w.tick(ctx) })
	if err != nil {
		return err
	}

	w.log.Info("cron worker starting", zap.String("schedule", sched), zap.Int("industries", len(w.catalog.List())))
	if w.cfg.RunOnStart {
		// the wrapped job shares the skip-if-running guard with scheduled ticks
		go c.Entry(id).WrappedJob.Run()
	}
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

func (w *Worker) tick(ctx context.Context) {
	if _, err := w.RunOnce(ctx); err != nil && !errors.Is(err, ErrLocked) {
		w.log.Error("scheduled run failed", zap.Error(err))
	}
}

// ErrLocked means another replica holds the job lock.
var ErrLocked = errors.New("job lock held by another worker")

// RunOnce regenerates every industry once. Industries are processed one
// after another; a failed industry does not stop the others.
func (w *Worker) RunOnce(ctx context.Context) (notification.RunSummary, error) {
	started := time.Now()
	sum := notification.RunSummary{JobName: JobName, Started: started}

	if locker, ok := w.store.(storage.Locker); ok {
		got, err := locker.AcquireAdvisoryLock(ctx, lockKey)
		if err != nil {
			metrics.UpdateJobMetrics(JobName, started, err)
			return sum, fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !got {
			w.log.Info("advisory lock held by another worker, skipping run")
			return sum, ErrLocked
		}
		defer func() {
			if _, err := locker.ReleaseAdvisoryLock(context.WithoutCancel(ctx), lockKey); err != nil {
				w.log.Warn("release advisory lock failed", zap.Error(err))
			}
		}()
	}

	var failures []alerting.Failure
	for _, ind := range w.catalog.List() {
		if ctx.Err() != nil {
			break
		}
		out := notification.IndustryOutcome{Industry: ind.Key}
		res, err := w.runner.Run(ctx, ind)
		if res != nil {
			for _, s := range res.Sections {
				if s.Error == "" {
					out.Sections = append(out.Sections, s.Key)
				}
			}
		}
		if err != nil {
			out.Error = err.Error()
			f := alerting.Failure{Industry: ind.Key, Error: err.Error()}
			if res != nil {
				if failed, ok := res.Failed(); ok {
					f.Section = failed.Key
				}
			}
			failures = append(failures, f)
		}
		sum.Outcomes = append(sum.Outcomes, out)
	}
	sum.Duration = time.Since(started)

	var runErr error
	if len(failures) > 0 {
		runErr = fmt.Errorf("%d of %d industries failed", len(failures), len(sum.Outcomes))
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	w.record(ctx, started, sum.Duration, runErr)

	if len(failures) > 0 && w.alerter != nil {
		alert := alerting.RunAlert{
			JobName:      JobName,
			TotalCount:   len(sum.Outcomes),
			SuccessCount: len(sum.Outcomes) - len(failures),
			FailedCount:  len(failures),
			Duration:     sum.Duration,
			Failures:     failures,
			Timestamp:    time.Now(),
		}
		if err := w.alerter.SendRunAlert(ctx, alert); err != nil {
			w.log.Warn("send alert failed", zap.Error(err))
		}
	}
	if err := w.notifier.NotifyRun(ctx, sum); err != nil {
		w.log.Warn("send run summary failed", zap.Error(err))
	}
	return sum, runErr
}

func (w *Worker) record(ctx context.Context, started time.Time, dur time.Duration, runErr error) {
	metrics.UpdateJobMetrics(JobName, started, runErr)

	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
		w.log.Error("job completed with error", zap.String("job", JobName), zap.Duration("duration", dur), zap.Error(runErr))
	} else {
		w.log.Info("job completed successfully", zap.String("job", JobName), zap.Duration("duration", dur))
	}
	if jobs, ok := w.store.(storage.JobStore); ok {
		if err := jobs.UpdateScheduledJob(context.WithoutCancel(ctx), JobName, started, dur, runErr == nil, errMsg); err != nil {
			w.log.Warn("update scheduled_jobs failed", zap.Error(err))
		}
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
