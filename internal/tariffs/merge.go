package tariffs

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCountryMissing   = errors.New("country missing from tariff data")
	ErrNoExistingData   = errors.New("no existing tariff data to regenerate a single country in")
	ErrUnknownCountry   = errors.New("country is not part of the existing tariff data")
	ErrDuplicateCountry = errors.New("duplicate country")
	ErrNoFreshData      = errors.New("no freshly generated tariff data")
)

// MissingCountryError names a country in the preserved order for which no
// record exists at all.
type MissingCountryError struct {
	Country string
}

func (e *MissingCountryError) Error() string {
	return fmt.Sprintf("%s: no tariff record for %q", ErrCountryMissing, e.Country)
}

func (e *MissingCountryError) Unwrap() error { return ErrCountryMissing }

// Outcome records where a country's record in a merged document came from.
type Outcome int

const (
	// OutcomeFound: a current record was used (fresh for regenerated
	// countries, stored for the rest).
	OutcomeFound Outcome = iota
	// OutcomeStaleFallback: the country was regenerated but no fresh record
	// matched it, so the stored record was kept.
	OutcomeStaleFallback
	// OutcomeMissing: no record exists; the merge fails.
	OutcomeMissing
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeStaleFallback:
		return "stale-fallback"
	case OutcomeMissing:
		return "missing"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// MergeResult is a merged document plus the per-country outcomes.
type MergeResult struct {
	Updates  *TariffUpdatesForIndustry
	Outcomes map[CountryKey]Outcome
}

// StaleFallbacks lists the countries whose stored record was reused in place
// of a regenerated one.
func (r *MergeResult) StaleFallbacks() []string {
	var out []string
	for _, name := range r.Updates.CountryNames {
		if r.Outcomes[KeyOf(name)] == OutcomeStaleFallback {
			out = append(out, name)
		}
	}
	return out
}

// Merge combines freshly generated records with the stored document.
//
// With country empty, fresh is a full regeneration: its order becomes the
// document order and its records the document data. Otherwise only country
// was regenerated: the stored order is kept, the country's record is replaced
// by its fresh counterpart and every other record is kept verbatim.
//
// A country always gets the freshest record available for it. The merge only
// fails when a country in the order has no record at all.
func Merge(existing *TariffUpdatesForIndustry, country string, fresh []CountrySpecificTariff, now time.Time) (*MergeResult, error) {
	if country == "" {
		return mergeAll(fresh, now)
	}
	return mergeOne(existing, country, fresh, now)
}

func mergeAll(fresh []CountrySpecificTariff, now time.Time) (*MergeResult, error) {
	if len(fresh) == 0 {
		return nil, ErrNoFreshData
	}

	res := &MergeResult{
		Updates: &TariffUpdatesForIndustry{
			CountryNames:           make([]string, 0, len(fresh)),
			CountrySpecificTariffs: make([]CountrySpecificTariff, 0, len(fresh)),
			LastUpdated:            now.UTC(),
		},
		Outcomes: make(map[CountryKey]Outcome, len(fresh)),
	}
	for _, rec := range fresh {
		k := KeyOf(rec.CountryName)
		if k == "" {
			return nil, fmt.Errorf("fresh tariff record without a country name")
		}
		if _, dup := res.Outcomes[k]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateCountry, rec.CountryName)
		}
		res.Outcomes[k] = OutcomeFound
		res.Updates.CountryNames = append(res.Updates.CountryNames, rec.CountryName)
		res.Updates.CountrySpecificTariffs = append(res.Updates.CountrySpecificTariffs, rec)
	}
	return res, nil
}

func mergeOne(existing *TariffUpdatesForIndustry, country string, fresh []CountrySpecificTariff, now time.Time) (*MergeResult, error) {
	if existing == nil || len(existing.CountryNames) == 0 {
		return nil, ErrNoExistingData
	}
	target := KeyOf(country)

	names := make([]string, len(existing.CountryNames))
	copy(names, existing.CountryNames)

	inOrder := false
	for _, n := range names {
		if KeyOf(n) == target {
			inOrder = true
			break
		}
	}
	if !inOrder {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCountry, country)
	}

	freshByKey := index(fresh)
	storedByKey := index(existing.CountrySpecificTariffs)

	res := &MergeResult{
		Updates: &TariffUpdatesForIndustry{
			CountryNames:           names,
			CountrySpecificTariffs: make([]CountrySpecificTariff, 0, len(names)),
			LastUpdated:            now.UTC(),
		},
		Outcomes: make(map[CountryKey]Outcome, len(names)),
	}

	for _, name := range names {
		k := KeyOf(name)
		if k == target {
			if rec, ok := freshByKey[k]; ok {
				rec.CountryName = name
				res.add(k, rec, OutcomeFound)
				continue
			}
			if rec, ok := storedByKey[k]; ok {
				res.add(k, rec, OutcomeStaleFallback)
				continue
			}
		} else if rec, ok := storedByKey[k]; ok {
			res.add(k, rec, OutcomeFound)
			continue
		}
		res.Outcomes[k] = OutcomeMissing
		return nil, &MissingCountryError{Country: name}
	}

	if err := res.Updates.Validate(); err != nil {
		return nil, fmt.Errorf("merged tariff updates: %w", err)
	}
	return res, nil
}

func (r *MergeResult) add(k CountryKey, rec CountrySpecificTariff, o Outcome) {
	r.Outcomes[k] = o
	r.Updates.CountrySpecificTariffs = append(r.Updates.CountrySpecificTariffs, rec)
}

// index keys records by normalized name. The first record for a name wins.
func index(recs []CountrySpecificTariff) map[CountryKey]CountrySpecificTariff {
	out := make(map[CountryKey]CountrySpecificTariff, len(recs))
	for _, rec := range recs {
		k := KeyOf(rec.CountryName)
		if _, ok := out[k]; !ok {
			out[k] = rec
		}
	}
	return out
}
