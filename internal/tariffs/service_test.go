package tariffs_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/llm"
	"github.com/bher20/tariffmanager/internal/llm/llmtest"
	"github.com/bher20/tariffmanager/internal/revalidate"
	"github.com/bher20/tariffmanager/internal/storage"
	"github.com/bher20/tariffmanager/internal/tariffs"
)

var (
	steel   = industries.Industry{Key: "steel", Name: "Steel"}
	fixedAt = time.Date(2025, time.May, 2, 9, 0, 0, 0, time.UTC)
)

// countryOf pulls the quoted country name out of a country tariff prompt.
func countryOf(prompt string) string {
	const marker = `countryName: exactly "`
	i := strings.Index(prompt, marker)
	if i < 0 {
		return ""
	}
	rest := prompt[i+len(marker):]
	return rest[:strings.Index(rest, `"`)]
}

func record(country, tag string) string {
	b, _ := json.Marshal(tariffs.CountrySpecificTariff{
		CountryName:   country,
		TariffDetails: tag + " details",
		Changes:       tag + " changes",
		Amounts:       tag + " amounts",
	})
	return string(b)
}

// scripted answers partner and country prompts. rename lets a test make the
// model report a different country name.
func scripted(partners []string, tag string, rename map[string]string) *llmtest.Client {
	return llmtest.New(func(ctx context.Context, kind, prompt string) (string, error) {
		if strings.Contains(prompt, "trading partner countries") {
			b, _ := json.Marshal(map[string][]string{"countryNames": partners})
			return string(b), nil
		}
		c := countryOf(prompt)
		if r, ok := rename[c]; ok {
			c = r
		}
		return record(c, tag), nil
	})
}

func newService(t *testing.T, client llm.Client, store storage.Store, log *zap.Logger, opts tariffs.Options) *tariffs.Service {
	t.Helper()
	if log == nil {
		log = zap.NewNop()
	}
	gen := llm.NewGenerator(client, llm.RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond}, log)
	opts.Now = func() time.Time { return fixedAt }
	return tariffs.NewService(gen, store, opts, log)
}

func TestTopTradingPartners_DedupesAndTrims(t *testing.T) {
	client := scripted([]string{"China", " mexico ", "CHINA", "", "United States", "Canada", "Japan"}, "", nil)
	svc := newService(t, client, storage.NewMemory(), nil, tariffs.Options{})

	names, err := svc.TopTradingPartners(context.Background(), steel, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"China", "mexico", "Canada"}, names)
}

func TestTopTradingPartners_Empty(t *testing.T) {
	svc := newService(t, scripted(nil, "", nil), storage.NewMemory(), nil, tariffs.Options{})
	_, err := svc.TopTradingPartners(context.Background(), steel, 3)
	assert.Error(t, err)
}

func TestUpdate_FullRegenerationIsSequentialAndPersisted(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	var inFlight, maxInFlight int32
	inner := scripted([]string{"Mexico", "China", "Canada"}, "new", nil)
	client := llmtest.New(func(ctx context.Context, kind, prompt string) (string, error) {
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		if n > atomic.LoadInt32(&maxInFlight) {
			atomic.StoreInt32(&maxInFlight, n)
		}
		return inner.Respond(ctx, kind, prompt)
	})
	svc := newService(t, client, store, nil, tariffs.Options{TopN: 3})

	res, err := svc.Update(ctx, steel, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Mexico", "China", "Canada"}, res.Updates.CountryNames)
	assert.Equal(t, fixedAt, res.Updates.LastUpdated)
	assert.EqualValues(t, 1, maxInFlight)
	assert.Len(t, client.Calls(), 4)

	stored, err := svc.Load(ctx, "steel")
	require.NoError(t, err)
	assert.Equal(t, res.Updates.CountryNames, stored.CountryNames)
	require.NoError(t, stored.Validate())

	md, err := store.GetDocument(ctx, tariffs.MarkdownKey("steel"))
	require.NoError(t, err)
	require.NotNil(t, md)
	assert.Contains(t, string(md.Body), "## Mexico")

	idx, err := storage.LastModified(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, fixedAt, idx["steel"])
}

func TestUpdate_FailedCountryAbortsRun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	client := llmtest.New(func(ctx context.Context, kind, prompt string) (string, error) {
		if strings.Contains(prompt, "trading partner countries") {
			return `{"countryNames":["Mexico","China"]}`, nil
		}
		if countryOf(prompt) == "China" {
			return "", errors.New("upstream 503")
		}
		return record(countryOf(prompt), "new"), nil
	})
	svc := newService(t, client, store, nil, tariffs.Options{})

	_, err := svc.Update(ctx, steel, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrRetriesExhausted)

	doc, _ := store.GetDocument(ctx, tariffs.Key("steel"))
	assert.Nil(t, doc, "a failed run must not persist partial data")

	runs := store.RunIDs()
	require.Len(t, runs, 1)
	progress, err := store.ListRunProgress(ctx, runs[0])
	require.NoError(t, err)
	require.Len(t, progress, 2)
	assert.Equal(t, "China", progress[0].Country)
	assert.Equal(t, storage.RunFailed, progress[0].Status)
	assert.Contains(t, progress[0].Error, "upstream 503")
	assert.Equal(t, storage.RunDone, progress[1].Status)
}

func TestUpdate_SingleCountryKeepsOrderAndOtherRecords(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()

	first := newService(t, scripted([]string{"China", "Mexico", "Canada"}, "old", nil), store, nil, tariffs.Options{})
	_, err := first.Update(ctx, steel, "")
	require.NoError(t, err)

	client := scripted(nil, "new", nil)
	svc := newService(t, client, store, nil, tariffs.Options{})
	res, err := svc.Update(ctx, steel, "mexico")
	require.NoError(t, err)

	assert.Equal(t, []string{"China", "Mexico", "Canada"}, res.Updates.CountryNames)
	assert.Equal(t, "old details", res.Updates.CountrySpecificTariffs[0].TariffDetails)
	assert.Equal(t, "new details", res.Updates.CountrySpecificTariffs[1].TariffDetails)
	assert.Equal(t, "Mexico", res.Updates.CountrySpecificTariffs[1].CountryName)
	assert.Equal(t, "old details", res.Updates.CountrySpecificTariffs[2].TariffDetails)

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Mexico", countryOf(calls[0].Prompt), "the stored spelling is used in the prompt")
}

func TestUpdate_UnmatchedFreshRecordFallsBackAndLogs(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	first := newService(t, scripted([]string{"China", "South Korea"}, "old", nil), store, nil, tariffs.Options{})
	_, err := first.Update(ctx, steel, "")
	require.NoError(t, err)

	core, logs := observer.New(zap.ErrorLevel)
	svc := newService(t, scripted(nil, "new", map[string]string{"South Korea": "Republic of Korea"}), store, zap.New(core), tariffs.Options{})
	res, err := svc.Update(ctx, steel, "South Korea")
	require.NoError(t, err)

	assert.Equal(t, []string{"South Korea"}, res.StaleFallbacks())
	assert.Equal(t, "old details", res.Updates.CountrySpecificTariffs[1].TariffDetails)
	assert.Equal(t, fixedAt, res.Updates.LastUpdated)
	assert.Equal(t, 1, logs.FilterField(zap.String("country", "South Korea")).Len())
}

func TestUpdate_FullRegenerationKeepsRankedNames(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	client := scripted([]string{"China", "South Korea", "Korea"}, "new", map[string]string{
		"China":       "People's Republic of China",
		"South Korea": "Korea",
	})
	svc := newService(t, client, store, nil, tariffs.Options{})

	res, err := svc.Update(ctx, steel, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"China", "South Korea", "Korea"}, res.Updates.CountryNames)
	assert.Equal(t, "China", res.Updates.CountrySpecificTariffs[0].CountryName)
	assert.Equal(t, "South Korea", res.Updates.CountrySpecificTariffs[1].CountryName)
	require.NoError(t, res.Updates.Validate())

	again := newService(t, scripted(nil, "newer", nil), store, nil, tariffs.Options{})
	res, err = again.Update(ctx, steel, "China")
	require.NoError(t, err)
	assert.Equal(t, []string{"China", "South Korea", "Korea"}, res.Updates.CountryNames)
	assert.Equal(t, "newer details", res.Updates.CountrySpecificTariffs[0].TariffDetails)
}

func TestUpdate_SingleCountryErrors(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	client := scripted([]string{"China"}, "x", nil)
	svc := newService(t, client, store, nil, tariffs.Options{})

	_, err := svc.Update(ctx, steel, "China")
	assert.ErrorIs(t, err, tariffs.ErrNoExistingData)

	_, err = svc.Update(ctx, steel, "")
	require.NoError(t, err)
	calls := len(client.Calls())

	_, err = svc.Update(ctx, steel, "Peru")
	assert.ErrorIs(t, err, tariffs.ErrUnknownCountry)
	assert.Len(t, client.Calls(), calls, "no LLM call for an unknown country")
}

func TestUpdate_InconsistentStoredDataIsFatal(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemory()
	require.NoError(t, storage.PutJSON(ctx, store, tariffs.Key("steel"), tariffs.TariffUpdatesForIndustry{
		CountryNames: []string{"China", "Mexico"},
		CountrySpecificTariffs: []tariffs.CountrySpecificTariff{
			{CountryName: "China", TariffDetails: "old"},
		},
	}))

	svc := newService(t, scripted(nil, "new", nil), store, nil, tariffs.Options{})
	_, err := svc.Update(ctx, steel, "China")
	require.Error(t, err)
	assert.ErrorIs(t, err, tariffs.ErrCountryMissing)
	assert.Contains(t, err.Error(), "Mexico")
}

func TestUpdate_TriggersRevalidation(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p struct{ Path string }
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		paths = append(paths, p.Path)
		mu.Unlock()
	}))
	defer srv.Close()

	reval := revalidate.New(revalidate.Config{URL: srv.URL}, zap.NewNop())
	svc := newService(t, scripted([]string{"China"}, "x", nil), storage.NewMemory(), nil, tariffs.Options{Revalidator: reval})
	_, err := svc.Update(context.Background(), steel, "")
	require.NoError(t, err)
	reval.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{revalidate.PathFor("steel")}, paths)
}

func TestCountryTariff_IncludesReferenceContext(t *testing.T) {
	client := scripted(nil, "x", nil)
	svc := newService(t, client, storage.NewMemory(), nil, tariffs.Options{})

	rec, err := svc.CountryTariff(context.Background(), steel, "Japan")
	require.NoError(t, err)
	assert.Equal(t, "Japan", rec.CountryName)
	assert.Equal(t, "x details", rec.TariffDetails)
	assert.Contains(t, client.Calls()[0].Prompt, "May 2, 2025")
}
