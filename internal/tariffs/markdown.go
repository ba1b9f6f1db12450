package tariffs

import (
	"fmt"
	"strings"
	"time"
)

// Markdown renders tariff updates in document order.
func Markdown(industry string, u *TariffUpdatesForIndustry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Tariff Updates: %s\n\n", industry)
	fmt.Fprintf(&b, "_Last updated %s_\n", u.LastUpdated.UTC().Format(time.RFC3339))
	for _, name := range u.CountryNames {
		rec, ok := u.Lookup(name)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", name)
		section(&b, "Tariff details", rec.TariffDetails)
		section(&b, "Changes", rec.Changes)
		section(&b, "Amounts", rec.Amounts)
	}
	return b.String()
}

func section(b *strings.Builder, title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	fmt.Fprintf(b, "### %s\n\n%s\n\n", title, body)
}
