package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bher20/tariffmanager/internal/alerting"
	"github.com/bher20/tariffmanager/internal/cron"
	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/llm"
	"github.com/bher20/tariffmanager/internal/notification"
	"github.com/bher20/tariffmanager/internal/report"
	"github.com/bher20/tariffmanager/internal/revalidate"
	"github.com/bher20/tariffmanager/internal/sources"
	"github.com/bher20/tariffmanager/internal/storage"
	"github.com/bher20/tariffmanager/internal/tariffs"
)

// app holds the dependencies shared by the subcommands.
type app struct {
	store       storage.Store
	catalog     *industries.Catalog
	gen         *llm.Generator
	tariffs     *tariffs.Service
	pipeline    *report.Pipeline
	revalidator *revalidate.Revalidator
}

// newApp opens storage and loads the catalog. The LLM client is only built
// when withLLM is set, so read-only commands work without API keys.
func newApp(ctx context.Context, withLLM bool) (*app, error) {
	catalog, err := industries.Load(cfg.IndustriesFile, cfg.IndustriesJSON)
	if err != nil {
		return nil, fmt.Errorf("load industries: %w", err)
	}

	store, err := storage.Open(ctx, storage.Config{
		Driver:      cfg.DBDriver,
		DSN:         cfg.DBDSN,
		AutoMigrate: cfg.AutoMigrate,
		S3: storage.S3Config{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &app{store: store, catalog: catalog}
	if !withLLM {
		return a, nil
	}

	client, err := llm.New(ctx, llm.Config{
		Provider:     cfg.LLMProvider,
		GeminiAPIKey: cfg.GeminiAPIKey,
		GeminiModel:  cfg.GeminiModel,
		OpenAIAPIKey: cfg.OpenAIAPIKey,
		OpenAIModel:  cfg.OpenAIModel,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("llm client: %w", err)
	}
	a.gen = llm.NewGenerator(client, llm.RetryConfig{
		MaxRetries:   cfg.LLMMaxRetries,
		InitialDelay: cfg.LLMInitialDelay,
	}, logger).WithRateLimit(cfg.LLMCallsPerMin)

	a.revalidator = revalidate.New(revalidate.Config{URL: cfg.RevalidateURL, Secret: cfg.RevalidateSecret}, logger)

	var library *sources.Library
	if cfg.SourcesDir != "" {
		library = sources.NewLibrary(cfg.SourcesDir, sources.DefaultMaxChars, logger)
	}
	a.tariffs = tariffs.NewService(a.gen, store, tariffs.Options{
		TopN:        cfg.TopNCountries,
		Grounded:    cfg.Grounded,
		Sources:     library,
		Revalidator: a.revalidator,
	}, logger)
	a.pipeline = report.NewPipeline(report.Env{
		Store:       store,
		Gen:         a.gen,
		Tariffs:     a.tariffs,
		Revalidator: a.revalidator,
		Grounded:    cfg.Grounded,
		Log:         logger,
	})

	logger.Info("llm configured",
		zap.String("provider", a.gen.Provider()),
		zap.Bool("grounded", cfg.Grounded),
		zap.Int("calls_per_minute", cfg.LLMCallsPerMin))
	return a, nil
}

func (a *app) worker(runOnStart bool) *cron.Worker {
	alerter := alerting.NewAlerter(alerting.AlertConfig{
		WebhookURL:  cfg.AlertWebhookURL,
		WebhookType: cfg.AlertWebhookType,
	}, logger)
	notifier := notification.NewService(notification.Config{
		APIKey: cfg.SendGridAPIKey,
		From:   cfg.NotifyFrom,
		To:     cfg.NotifyTo,
	}, logger)
	return cron.NewWorker(cron.Config{Schedule: cfg.CronSchedule, RunOnStart: runOnStart},
		a.store, a.catalog, a.pipeline, alerter, notifier, logger)
}

// Close waits for pending revalidation calls and closes storage.
func (a *app) Close() {
	a.revalidator.Wait()
	if err := a.store.Close(); err != nil {
		logger.Warn("close storage", zap.Error(err))
	}
}

const shutdownTimeout = 15 * time.Second
