package tariffs

import (
	"fmt"
	"time"

	"github.com/bher20/tariffmanager/internal/llm"
)

// CountrySpecificTariff is the LLM-written tariff picture for one partner
// country. It has no identity beyond CountryName and is replaced wholesale on
// regeneration.
type CountrySpecificTariff struct {
	CountryName   string `json:"countryName"`
	TariffDetails string `json:"tariffDetails"`
	Changes       string `json:"changes"`
	Amounts       string `json:"amounts"`
}

// TariffUpdatesForIndustry is the persisted tariff-updates section of an
// industry report. CountryNames defines display and storage order.
type TariffUpdatesForIndustry struct {
	CountryNames           []string                `json:"countryNames"`
	CountrySpecificTariffs []CountrySpecificTariff `json:"countrySpecificTariffs"`
	LastUpdated            time.Time               `json:"lastUpdated"`
}

// Validate checks that names are unique and that there is exactly one record
// per name, matched case-insensitively.
func (u *TariffUpdatesForIndustry) Validate() error {
	if len(u.CountryNames) != len(u.CountrySpecificTariffs) {
		return fmt.Errorf("tariff updates have %d country names but %d records",
			len(u.CountryNames), len(u.CountrySpecificTariffs))
	}
	names := make(map[CountryKey]bool, len(u.CountryNames))
	for _, n := range u.CountryNames {
		k := KeyOf(n)
		if names[k] {
			return fmt.Errorf("%w: %q", ErrDuplicateCountry, n)
		}
		names[k] = true
	}
	seen := make(map[CountryKey]bool, len(u.CountrySpecificTariffs))
	for _, rec := range u.CountrySpecificTariffs {
		k := KeyOf(rec.CountryName)
		if !names[k] {
			return fmt.Errorf("record for %q is not listed in countryNames", rec.CountryName)
		}
		if seen[k] {
			return fmt.Errorf("%w: more than one record for %q", ErrDuplicateCountry, rec.CountryName)
		}
		seen[k] = true
	}
	return nil
}

// Lookup returns the record for name, matched case-insensitively.
func (u *TariffUpdatesForIndustry) Lookup(name string) (CountrySpecificTariff, bool) {
	k := KeyOf(name)
	for _, rec := range u.CountrySpecificTariffs {
		if KeyOf(rec.CountryName) == k {
			return rec, true
		}
	}
	return CountrySpecificTariff{}, false
}

var countryTariffSchema = llm.Object(map[string]*llm.Schema{
	"countryName":   llm.String("The partner country's name"),
	"tariffDetails": llm.String("Tariffs currently in force affecting the industry"),
	"changes":       llm.String("Recent and announced tariff changes with effective dates"),
	"amounts":       llm.String("Tariff rates and affected trade volumes"),
})

var topPartnersSchema = llm.Object(map[string]*llm.Schema{
	"countryNames": llm.ArrayOf(llm.String("Partner country name")),
})
