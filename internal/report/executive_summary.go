package report

import (
	"context"
	"strings"

	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/prompts"
	"github.com/bher20/tariffmanager/internal/storage"
)

const SectionExecutiveSummary = "executive-summary"

func init() {
	Register(Section{
		Key:      SectionExecutiveSummary,
		Name:     "Executive summary",
		Order:    30,
		Requires: []string{SectionTariffImpact},
		Run:      runExecutiveSummary,
	})
}

func runExecutiveSummary(ctx context.Context, env *Env, ind industries.Industry) error {
	_, raw, err := loadImpact(ctx, env.Store, ind.Key)
	if err != nil {
		return err
	}
	text, err := env.Gen.Text(ctx, "report.executive_summary", prompts.ExecutiveSummary(ind.Name, string(raw)), false)
	if err != nil {
		return err
	}
	md := strings.TrimSpace(stripFence(text)) + "\n"
	if err := storage.PutMarkdown(ctx, env.Store, storage.DocumentKey(ind.Key, SectionExecutiveSummary, "md"), md); err != nil {
		return err
	}
	return env.saved(ctx, ind)
}

// stripFence removes a ```markdown fence some models wrap answers in.
func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	t = strings.TrimPrefix(t, "```")
	if i := strings.IndexByte(t, '\n'); i >= 0 {
		t = t[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(t), "```")
}
