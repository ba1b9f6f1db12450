package notification

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	status int
	sent   []*mail.SGMailV3
}

func (f *fakeSender) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, m)
	return &rest.Response{StatusCode: f.status, Body: "nope"}, nil
}

var cfg = Config{APIKey: "key", From: "reports@example.org", To: []string{"a@example.org", "b@example.org"}}

func TestNotifyRun(t *testing.T) {
	sender := &fakeSender{status: http.StatusAccepted}
	svc := NewServiceWithSender(cfg, sender, zap.NewNop())

	err := svc.NotifyRun(context.Background(), RunSummary{
		JobName:  "tariff_refresh",
		Started:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Duration: time.Minute,
		Outcomes: []IndustryOutcome{
			{Industry: "steel", Sections: []string{"tariff-updates", "tariff-impact"}},
			{Industry: "autos", Error: "<retries exhausted>"},
		},
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	m := sender.sent[0]
	assert.Equal(t, "[tariff_refresh] 1/2 industries updated", m.Subject)
	require.Len(t, m.Personalizations, 1)
	assert.Len(t, m.Personalizations[0].To, 2)
	require.Len(t, m.Content, 2)
	assert.Contains(t, m.Content[0].Value, "- steel ok: tariff-updates, tariff-impact")
	assert.Contains(t, m.Content[1].Value, "FAILED: &lt;retries exhausted&gt;")
}

func TestSendEmail_ErrorStatus(t *testing.T) {
	svc := NewServiceWithSender(cfg, &fakeSender{status: http.StatusUnauthorized}, zap.NewNop())
	err := svc.SendEmail(context.Background(), "s", "p", "<p>h</p>")
	assert.ErrorContains(t, err, "401")
}

func TestDisabled(t *testing.T) {
	svc := NewService(Config{}, zap.NewNop())
	assert.False(t, svc.Enabled())
	assert.ErrorIs(t, svc.SendEmail(context.Background(), "s", "p", "h"), ErrDisabled)
	assert.NoError(t, svc.NotifyRun(context.Background(), RunSummary{}))
}
