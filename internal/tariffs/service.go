package tariffs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/llm"
	"github.com/bher20/tariffmanager/internal/prompts"
	"github.com/bher20/tariffmanager/internal/revalidate"
	"github.com/bher20/tariffmanager/internal/sources"
	"github.com/bher20/tariffmanager/internal/storage"
)

// Section is the report section this package owns.
const Section = "tariff-updates"

const DefaultTopN = 10

type Options struct {
	TopN        int
	Grounded    bool
	Sources     *sources.Library
	Revalidator *revalidate.Revalidator
	// Now defaults to time.Now.
	Now func() time.Time
}

// Service generates, merges and persists the tariff-updates section.
type Service struct {
	gen   *llm.Generator
	store storage.Store
	opts  Options
	log   *zap.Logger
}

func NewService(gen *llm.Generator, store storage.Store, opts Options, log *zap.Logger) *Service {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{gen: gen, store: store, opts: opts, log: log.Named("tariffs")}
}

// Key is the storage key of an industry's tariff updates document.
func Key(industry string) string {
	return storage.DocumentKey(industry, Section, "json")
}

func MarkdownKey(industry string) string {
	return storage.DocumentKey(industry, Section, "md")
}

// Load returns the stored tariff updates of an industry, or nil when none
// were generated yet.
func (s *Service) Load(ctx context.Context, industry string) (*TariffUpdatesForIndustry, error) {
	var u TariffUpdatesForIndustry
	found, err := storage.GetJSON(ctx, s.store, Key(industry), &u)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

// TopTradingPartners ranks the industry's partner countries by estimated
// trade volume and returns at most n distinct names.
func (s *Service) TopTradingPartners(ctx context.Context, ind industries.Industry, n int) ([]string, error) {
	if n <= 0 {
		n = s.topN(ind)
	}
	var out struct {
		CountryNames []string `json:"countryNames"`
	}
	err := s.gen.Generate(ctx, llm.Request{
		Op:       "tariffs.top_partners",
		Prompt:   prompts.TopTradingPartners(ind.Name, n),
		Schema:   topPartnersSchema,
		Grounded: s.opts.Grounded,
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("top trading partners for %s: %w", ind.Key, err)
	}

	names := lo.Map(out.CountryNames, func(n string, _ int) string { return strings.Join(strings.Fields(n), " ") })
	names = lo.Filter(names, func(n string, _ int) bool { return n != "" && KeyOf(n) != KeyOf("United States") })
	names = lo.UniqBy(names, KeyOf)
	if len(names) == 0 {
		return nil, fmt.Errorf("top trading partners for %s: model returned no countries", ind.Key)
	}
	if len(names) > n {
		names = names[:n]
	}
	return names, nil
}

// CountryTariff generates the tariff record of one partner country.
func (s *Service) CountryTariff(ctx context.Context, ind industries.Industry, country string) (CountrySpecificTariff, error) {
	ref, err := s.opts.Sources.Context(ind.Key)
	if err != nil {
		s.log.Warn("reference documents unavailable", zap.String("industry", ind.Key), zap.Error(err))
		ref = ""
	}

	var rec CountrySpecificTariff
	err = s.gen.Generate(ctx, llm.Request{
		Op:       "tariffs.country",
		Prompt:   prompts.CountryTariff(ind.Name, country, s.opts.Now(), ref),
		Schema:   countryTariffSchema,
		Grounded: s.opts.Grounded,
	}, &rec)
	if err != nil {
		return CountrySpecificTariff{}, fmt.Errorf("tariffs for %s/%s: %w", ind.Key, country, err)
	}
	if strings.TrimSpace(rec.CountryName) == "" {
		rec.CountryName = country
	}
	return rec, nil
}

// Update regenerates the tariff updates of an industry and persists them.
// With country empty every top partner is regenerated, one request at a
// time; otherwise only that country is, and the stored order is kept.
func (s *Service) Update(ctx context.Context, ind industries.Industry, country string) (*MergeResult, error) {
	log := s.log.With(zap.String("industry", ind.Key))
	existing, err := s.Load(ctx, ind.Key)
	if err != nil {
		return nil, err
	}

	var fresh []CountrySpecificTariff
	if country == "" {
		fresh, err = s.fetchAll(ctx, ind)
	} else {
		fresh, err = s.fetchOne(ctx, ind, existing, country)
	}
	if err != nil {
		return nil, err
	}

	res, err := Merge(existing, country, fresh, s.opts.Now())
	if err != nil {
		var missing *MissingCountryError
		if errors.As(err, &missing) {
			log.Error("stored tariff data is inconsistent", zap.String("country", missing.Country), zap.Error(err))
		}
		return nil, fmt.Errorf("merge %s: %w", ind.Key, err)
	}
	for _, name := range res.StaleFallbacks() {
		log.Error("no regenerated record matched the country, keeping the stored record",
			zap.String("country", name),
			zap.String("requested", country))
	}

	if err := s.save(ctx, ind, res.Updates); err != nil {
		return nil, err
	}
	log.Info("tariff updates saved",
		zap.Int("countries", len(res.Updates.CountryNames)),
		zap.String("country", country),
		zap.Strings("stale", res.StaleFallbacks()))
	return res, nil
}

func (s *Service) fetchOne(ctx context.Context, ind industries.Industry, existing *TariffUpdatesForIndustry, country string) ([]CountrySpecificTariff, error) {
	if existing == nil || len(existing.CountryNames) == 0 {
		return nil, fmt.Errorf("%s: %w", ind.Key, ErrNoExistingData)
	}
	name, ok := lo.Find(existing.CountryNames, func(n string) bool { return KeyOf(n) == KeyOf(country) })
	if !ok {
		return nil, fmt.Errorf("%s: %w: %q", ind.Key, ErrUnknownCountry, country)
	}
	rec, err := s.CountryTariff(ctx, ind, name)
	if err != nil {
		return nil, err
	}
	return []CountrySpecificTariff{rec}, nil
}

func (s *Service) fetchAll(ctx context.Context, ind industries.Industry) ([]CountrySpecificTariff, error) {
	names, err := s.TopTradingPartners(ctx, ind, 0)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	jobs, _ := s.store.(storage.JobStore)
	progress := func(country, status string, cause error) {
		if jobs == nil {
			return
		}
		p := storage.RunProgress{RunID: runID, Industry: ind.Key, Country: country, Status: status}
		if status != storage.RunPending {
			p.Attempts = 1
		}
		if cause != nil {
			p.Error = cause.Error()
		}
		if err := jobs.SaveRunProgress(ctx, p); err != nil {
			s.log.Warn("failed to record run progress", zap.String("run_id", runID), zap.Error(err))
		}
	}
	for _, n := range names {
		progress(n, storage.RunPending, nil)
	}

	s.log.Info("regenerating all countries",
		zap.String("industry", ind.Key),
		zap.String("run_id", runID),
		zap.Strings("countries", names))

	out := make([]CountrySpecificTariff, 0, len(names))
	for _, name := range names {
		rec, err := s.CountryTariff(ctx, ind, name)
		if err != nil {
			progress(name, storage.RunFailed, err)
			return nil, err
		}
		progress(name, storage.RunDone, nil)
		// the ranked name is canonical; the model may spell it differently
		rec.CountryName = name
		out = append(out, rec)
	}
	return out, nil
}

func (s *Service) save(ctx context.Context, ind industries.Industry, u *TariffUpdatesForIndustry) error {
	if err := storage.PutJSON(ctx, s.store, Key(ind.Key), u); err != nil {
		return err
	}
	if err := storage.PutMarkdown(ctx, s.store, MarkdownKey(ind.Key), Markdown(ind.Name, u)); err != nil {
		return err
	}
	if err := storage.TouchLastModified(ctx, s.store, ind.Key, u.LastUpdated); err != nil {
		return err
	}
	s.opts.Revalidator.Trigger(ctx, revalidate.PathFor(ind.Key))
	return nil
}

func (s *Service) topN(ind industries.Industry) int {
	if ind.TopN > 0 {
		return ind.TopN
	}
	return s.opts.TopN
}
