// Package prompts builds the natural-language instructions sent to the LLM for
// each report section. Every function is pure: no I/O, no clock reads.
package prompts

import (
	"fmt"
	"strings"
	"text/template"
	"time"
)

var templates = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"date": func(t time.Time) string { return t.Format("January 2, 2006") },
}).Parse(`
{{define "top-partners"}}You are a trade analyst. List the top {{.N}} trading partner countries of the United States for the "{{.Industry}}" industry, ranked by estimated annual trade volume in that industry (imports plus exports), highest first.
Use common English country names (for example "China", "Mexico", "Canada"). Do not include the United States. Do not repeat a country.{{end}}

{{define "country-tariff"}}You are a trade policy analyst writing for executives in the "{{.Industry}}" industry.
As of {{date .AsOf}}, describe the current tariffs between the United States and {{.Country}} that affect this industry.
Fill in:
- countryName: exactly "{{.Country}}"
- tariffDetails: the tariffs currently in force, the products they cover, and the legal authority used
- changes: recent and announced changes, with effective dates
- amounts: the tariff rates and any trade volumes affected, with figures
Only use facts you can attribute to official or reputable sources. Prefer the most recent information.{{if .Reference}}

Reference material supplied by the analyst team:
"""
{{.Reference}}
"""{{end}}{{end}}

{{define "tariff-impact"}}You are a trade policy analyst. Using the per-country tariff updates below for the "{{.Industry}}" industry, assess the overall impact on US companies in this industry.
Fill in:
- summary: two or three paragraphs on the overall impact
- positiveImpacts: concrete effects that help US companies in this industry
- negativeImpacts: concrete effects that hurt US companies in this industry
- mostAffectedCountries: the countries whose tariff changes matter most, most important first

Tariff updates (JSON):
{{.Updates}}{{end}}

{{define "executive-summary"}}Write an executive summary in Markdown for a report titled "Tariff Impact on the {{.Industry}} Industry".
Use at most five short sections with "##" headings. Lead with the single most important takeaway. Do not invent figures that are not in the analysis below.

Analysis (JSON):
{{.Impact}}{{end}}

{{define "structure"}}Convert the research notes below into a JSON document that conforms to this JSON schema. Keep every fact and figure; do not add information that is not in the notes.

Schema:
{{.Schema}}

Notes:
"""
{{.Text}}
"""{{end}}
`))

func render(name string, data any) string {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		// Templates are static and data is typed, so this is a programming error.
		panic(fmt.Sprintf("prompts: render %s: %v", name, err))
	}
	return strings.TrimSpace(b.String())
}

// TopTradingPartners asks for the top n partner countries of an industry.
func TopTradingPartners(industry string, n int) string {
	return render("top-partners", struct {
		Industry string
		N        int
	}{industry, n})
}

// CountryTariff asks for the current tariff situation with one country.
// reference is optional analyst-supplied context and may be empty.
func CountryTariff(industry, country string, asOf time.Time, reference string) string {
	return render("country-tariff", struct {
		Industry  string
		Country   string
		AsOf      time.Time
		Reference string
	}{industry, country, asOf, strings.TrimSpace(reference)})
}

func TariffImpact(industry, updatesJSON string) string {
	return render("tariff-impact", struct {
		Industry string
		Updates  string
	}{industry, updatesJSON})
}

func ExecutiveSummary(industry, impactJSON string) string {
	return render("executive-summary", struct {
		Industry string
		Impact   string
	}{industry, impactJSON})
}

// StructureConversion asks the model to restate free text as schema-conforming JSON.
func StructureConversion(text, schemaJSON string) string {
	return render("structure", struct {
		Text   string
		Schema string
	}{text, schemaJSON})
}
