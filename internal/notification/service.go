// Package notification emails run summaries through SendGrid.
package notification

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

type Config struct {
	APIKey   string
	From     string
	FromName string
	To       []string
}

func (c Config) Enabled() bool {
	return c.APIKey != "" && c.From != "" && len(c.To) > 0
}

// Sender is the part of the SendGrid client the service uses.
type Sender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type Service struct {
	cfg    Config
	sender Sender
	log    *zap.Logger
}

var ErrDisabled = errors.New("email notifications are not configured")

func NewService(cfg Config, log *zap.Logger) *Service {
	var sender Sender
	if cfg.APIKey != "" {
		sender = sendgrid.NewSendClient(cfg.APIKey)
	}
	return NewServiceWithSender(cfg, sender, log)
}

func NewServiceWithSender(cfg Config, sender Sender, log *zap.Logger) *Service {
	if cfg.FromName == "" {
		cfg.FromName = "Tariff Manager"
	}
	return &Service{cfg: cfg, sender: sender, log: log.Named("notification")}
}

func (s *Service) Enabled() bool { return s != nil && s.cfg.Enabled() && s.sender != nil }

// SendEmail sends the same message to every configured recipient.
func (s *Service) SendEmail(ctx context.Context, subject, plain, htmlBody string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	msg := mail.NewV3Mail()
	msg.SetFrom(mail.NewEmail(s.cfg.FromName, s.cfg.From))
	msg.Subject = subject

	p := mail.NewPersonalization()
	for _, to := range s.cfg.To {
		p.AddTos(mail.NewEmail("", to))
	}
	msg.AddPersonalizations(p)
	msg.AddContent(mail.NewContent("text/plain", plain), mail.NewContent("text/html", htmlBody))

	resp, err := s.sender.SendWithContext(ctx, msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid error: %d %s", resp.StatusCode, resp.Body)
	}
	s.log.Info("email sent", zap.String("subject", subject), zap.Int("recipients", len(s.cfg.To)))
	return nil
}

// IndustryOutcome is one line of a run summary.
type IndustryOutcome struct {
	Industry string
	Sections []string
	Error    string
}

type RunSummary struct {
	JobName  string
	Started  time.Time
	Duration time.Duration
	Outcomes []IndustryOutcome
}

func (r RunSummary) failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Error != "" {
			n++
		}
	}
	return n
}

// NotifyRun emails a run summary. It is a no-op when email is not configured.
func (s *Service) NotifyRun(ctx context.Context, sum RunSummary) error {
	if !s.Enabled() {
		return nil
	}
	subject := fmt.Sprintf("[%s] %d/%d industries updated", sum.JobName, len(sum.Outcomes)-sum.failed(), len(sum.Outcomes))
	plain, htmlBody := renderSummary(sum)
	return s.SendEmail(ctx, subject, plain, htmlBody)
}

func renderSummary(sum RunSummary) (string, string) {
	var p, h strings.Builder
	fmt.Fprintf(&p, "Run %s started %s and took %s.\n\n", sum.JobName, sum.Started.UTC().Format(time.RFC3339), sum.Duration.Round(time.Second))
	fmt.Fprintf(&h, "<p>Run <b>%s</b> started %s and took %s.</p>\n<ul>\n",
		html.EscapeString(sum.JobName), sum.Started.UTC().Format(time.RFC3339), sum.Duration.Round(time.Second))
	for _, o := range sum.Outcomes {
		status := "ok: " + strings.Join(o.Sections, ", ")
		if o.Error != "" {
			status = "FAILED: " + o.Error
		}
		fmt.Fprintf(&p, "- %s %s\n", o.Industry, status)
		fmt.Fprintf(&h, "<li><b>%s</b> %s</li>\n", html.EscapeString(o.Industry), html.EscapeString(status))
	}
	h.WriteString("</ul>\n")
	return p.String(), h.String()
}
