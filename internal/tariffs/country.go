package tariffs

import (
	"strings"

	"golang.org/x/text/cases"
)

// CountryKey is a normalized country name used for matching. "Mexico",
// "mexico" and " MEXICO " share a key.
type CountryKey string

// KeyOf normalizes a country name with Unicode case folding.
func KeyOf(name string) CountryKey {
	return CountryKey(cases.Fold().String(strings.Join(strings.Fields(name), " ")))
}
