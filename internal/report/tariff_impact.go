package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/llm"
	"github.com/bher20/tariffmanager/internal/prompts"
	"github.com/bher20/tariffmanager/internal/storage"
	"github.com/bher20/tariffmanager/internal/tariffs"
)

const SectionTariffImpact = "tariff-impact"

// TariffImpact is the industry-wide assessment built from the per-country
// tariff updates.
type TariffImpact struct {
	Summary               string    `json:"summary"`
	PositiveImpacts       []string  `json:"positiveImpacts"`
	NegativeImpacts       []string  `json:"negativeImpacts"`
	MostAffectedCountries []string  `json:"mostAffectedCountries"`
	LastUpdated           time.Time `json:"lastUpdated"`
}

var tariffImpactSchema = llm.Object(map[string]*llm.Schema{
	"summary":               llm.String("Two or three paragraphs on the overall impact"),
	"positiveImpacts":       llm.ArrayOf(llm.String("One effect that helps US companies")),
	"negativeImpacts":       llm.ArrayOf(llm.String("One effect that hurts US companies")),
	"mostAffectedCountries": llm.ArrayOf(llm.String("Country name")),
})

func init() {
	Register(Section{
		Key:      SectionTariffImpact,
		Name:     "Tariff impact assessment",
		Order:    20,
		Requires: []string{tariffs.Section},
		Run:      runTariffImpact,
	})
}

func runTariffImpact(ctx context.Context, env *Env, ind industries.Industry) error {
	doc, err := env.Store.GetDocument(ctx, tariffs.Key(ind.Key))
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("%w: %s", ErrMissingInput, tariffs.Section)
	}

	var impact TariffImpact
	err = env.Gen.Generate(ctx, llm.Request{
		Op:     "report.tariff_impact",
		Prompt: prompts.TariffImpact(ind.Name, string(doc.Body)),
		Schema: tariffImpactSchema,
		// the analysis works from the stored updates only
		Grounded: false,
	}, &impact)
	if err != nil {
		return err
	}
	impact.LastUpdated = env.Now().UTC()

	if err := storage.PutJSON(ctx, env.Store, storage.DocumentKey(ind.Key, SectionTariffImpact, "json"), impact); err != nil {
		return err
	}
	md := TariffImpactMarkdown(ind.Name, &impact)
	if err := storage.PutMarkdown(ctx, env.Store, storage.DocumentKey(ind.Key, SectionTariffImpact, "md"), md); err != nil {
		return err
	}
	return env.saved(ctx, ind)
}

// TariffImpactMarkdown renders the structured assessment.
func TariffImpactMarkdown(industry string, t *TariffImpact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tariff Impact: %s\n\n", industry)
	b.WriteString(strings.TrimSpace(t.Summary))
	b.WriteString("\n")
	list(&b, "Positive impacts", t.PositiveImpacts)
	list(&b, "Negative impacts", t.NegativeImpacts)
	list(&b, "Most affected countries", t.MostAffectedCountries)
	return b.String()
}

func list(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n## %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", strings.TrimSpace(it))
	}
}

func loadImpact(ctx context.Context, s storage.Store, industry string) (*TariffImpact, []byte, error) {
	doc, err := s.GetDocument(ctx, storage.DocumentKey(industry, SectionTariffImpact, "json"))
	if err != nil {
		return nil, nil, err
	}
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrMissingInput, SectionTariffImpact)
	}
	var t TariffImpact
	if err := json.Unmarshal(doc.Body, &t); err != nil {
		return nil, nil, fmt.Errorf("decode %s: %w", SectionTariffImpact, err)
	}
	return &t, doc.Body, nil
}
