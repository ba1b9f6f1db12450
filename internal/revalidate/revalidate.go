// Package revalidate tells the front-end to drop its cached copy of a report
// page after the page's documents were rewritten.
package revalidate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	URL     string
	Secret  string
	Timeout time.Duration
}

// Revalidator issues fire-and-forget revalidation calls. A zero URL turns
// every call into a no-op.
type Revalidator struct {
	cfg    Config
	client *http.Client
	log    *zap.Logger
	wg     sync.WaitGroup
}

func New(cfg Config, log *zap.Logger) *Revalidator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Revalidator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Named("revalidate"),
	}
}

// PathFor is the front-end path of an industry report.
func PathFor(industry string) string {
	return "/industry-tariff-report/" + industry
}

type payload struct {
	Path   string `json:"path"`
	Secret string `json:"secret,omitempty"`
}

// Trigger revalidates path in the background. Failures are logged only.
func (r *Revalidator) Trigger(ctx context.Context, path string) {
	if r == nil || r.cfg.URL == "" {
		return
	}
	// the call must outlive the request that caused the write
	ctx = context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.send(ctx, path); err != nil {
			r.log.Warn("revalidation failed", zap.String("path", path), zap.Error(err))
			return
		}
		r.log.Debug("revalidated", zap.String("path", path))
	}()
}

func (r *Revalidator) send(ctx context.Context, path string) error {
	body, err := json.Marshal(payload{Path: path, Secret: r.cfg.Secret})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("revalidate endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Wait blocks until every triggered call has finished.
func (r *Revalidator) Wait() {
	if r == nil {
		return
	}
	r.wg.Wait()
}
