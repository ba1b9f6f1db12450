// Package alerting posts scheduled-run failures to a chat webhook.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a Slack, Discord or custom endpoint.
	WebhookURL string
	// WebhookType selects the payload format: "slack", "discord" or "generic".
	// Empty means detect from the URL.
	WebhookType string
	// MinFailuresBeforeAlert is the threshold before sending alerts
	MinFailuresBeforeAlert int
	Timeout                time.Duration
}

func (c AlertConfig) enabled() bool { return c.WebhookURL != "" }

func detectType(url string) string {
	switch {
	case strings.Contains(url, "slack.com"):
		return "slack"
	case strings.Contains(url, "discord.com"):
		return "discord"
	default:
		return "generic"
	}
}

// Alerter sends alerts to configured webhooks.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
	log    *zap.Logger
}

func NewAlerter(cfg AlertConfig, log *zap.Logger) *Alerter {
	if cfg.WebhookType == "" {
		cfg.WebhookType = detectType(cfg.WebhookURL)
	}
	if cfg.MinFailuresBeforeAlert <= 0 {
		cfg.MinFailuresBeforeAlert = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log.Named("alerting"),
	}
}

// RunAlert summarizes a scheduled report run.
type RunAlert struct {
	JobName      string
	TotalCount   int
	SuccessCount int
	FailedCount  int
	Duration     time.Duration
	Failures     []Failure
	Timestamp    time.Time
}

// Failure is one industry whose report stopped at Section.
type Failure struct {
	Industry string `json:"industry"`
	Section  string `json:"section,omitempty"`
	Error    string `json:"error"`
}

// SendRunAlert posts an alert when the run failed for enough industries.
func (a *Alerter) SendRunAlert(ctx context.Context, alert RunAlert) error {
	if !a.cfg.enabled() {
		a.log.Debug("alerts disabled, skipping")
		return nil
	}
	if alert.FailedCount < a.cfg.MinFailuresBeforeAlert {
		a.log.Debug("failures below alert threshold, skipping",
			zap.Int("failed", alert.FailedCount),
			zap.Int("threshold", a.cfg.MinFailuresBeforeAlert))
		return nil
	}

	var payload []byte
	var err error
	switch a.cfg.WebhookType {
	case "slack":
		payload, err = buildSlackPayload(alert)
	case "discord":
		payload, err = buildDiscordPayload(alert)
	default:
		payload, err = buildGenericPayload(alert)
	}
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	a.log.Info("sent run alert", zap.String("job", alert.JobName), zap.Int("failed", alert.FailedCount))
	return nil
}

func failureLines(alert RunAlert, bold string) string {
	var b strings.Builder
	for _, f := range alert.Failures {
		where := f.Industry
		if f.Section != "" {
			where += "/" + f.Section
		}
		fmt.Fprintf(&b, "• %s%s%s: %s\n", bold, where, bold, f.Error)
	}
	return b.String()
}

func buildSlackPayload(alert RunAlert) ([]byte, error) {
	emoji := ":warning:"
	if alert.FailedCount == alert.TotalCount {
		emoji = ":x:"
	}

	payload := map[string]any{
		"blocks": []map[string]any{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Tariff report run: %s", emoji, alert.JobName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Status:*\n%d/%d failed", alert.FailedCount, alert.TotalCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", alert.Duration.Round(time.Millisecond))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Success:*\n%d", alert.SuccessCount)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Timestamp:*\n%s", alert.Timestamp.Format(time.RFC3339))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": "*Failed industries:*\n" + failureLines(alert, "*"),
				},
			},
		},
	}
	return json.Marshal(payload)
}

func buildDiscordPayload(alert RunAlert) ([]byte, error) {
	color := 16776960 // yellow
	if alert.FailedCount == alert.TotalCount {
		color = 16711680 // red
	}

	payload := map[string]any{
		"embeds": []map[string]any{
			{
				"title":       fmt.Sprintf("Tariff report run: %s", alert.JobName),
				"description": fmt.Sprintf("%d/%d industries failed", alert.FailedCount, alert.TotalCount),
				"color":       color,
				"fields": []map[string]any{
					{"name": "Success", "value": fmt.Sprintf("%d", alert.SuccessCount), "inline": true},
					{"name": "Failed", "value": fmt.Sprintf("%d", alert.FailedCount), "inline": true},
					{"name": "Duration", "value": alert.Duration.Round(time.Millisecond).String(), "inline": true},
					{"name": "Failed industries", "value": failureLines(alert, "**"), "inline": false},
				},
				"timestamp": alert.Timestamp.Format(time.RFC3339),
			},
		},
	}
	return json.Marshal(payload)
}

func buildGenericPayload(alert RunAlert) ([]byte, error) {
	payload := map[string]any{
		"alert_type":    "report_run_failure",
		"job_name":      alert.JobName,
		"total_count":   alert.TotalCount,
		"success_count": alert.SuccessCount,
		"failed_count":  alert.FailedCount,
		"duration_ms":   alert.Duration.Milliseconds(),
		"timestamp":     alert.Timestamp.Format(time.RFC3339),
		"failures":      alert.Failures,
	}
	return json.Marshal(payload)
}
