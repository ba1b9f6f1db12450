package llm

import (
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

func partnerSchema() *Schema {
	return Object(map[string]*Schema{
		"countries": ArrayOf(String("country name")),
		"year":      {Type: TypeInteger},
	})
}

func TestDecode_ValidatesAndStripsFences(t *testing.T) {
	var out struct {
		Countries []string `json:"countries"`
		Year      int      `json:"year"`
	}
	raw := "```json\n{\"countries\":[\"China\",\"Mexico\"],\"year\":2025}\n```"
	require.NoError(t, decode(raw, partnerSchema(), &out))
	assert.Equal(t, []string{"China", "Mexico"}, out.Countries)
	assert.Equal(t, 2025, out.Year)
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":         `countries: China`,
		"missing required": `{"countries":["China"]}`,
		"wrong item type":  `{"countries":[1],"year":2025}`,
		"fractional int":   `{"countries":[],"year":2025.5}`,
		"top-level array":  `["China"]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, decode(raw, partnerSchema(), nil))
		})
	}
}

func TestSchema_GenAI(t *testing.T) {
	gs := partnerSchema().genai()
	assert.Equal(t, genai.TypeObject, gs.Type)
	assert.Equal(t, []string{"countries", "year"}, gs.Required)
	assert.Equal(t, []string{"countries", "year"}, gs.PropertyOrdering)
	assert.Equal(t, genai.TypeArray, gs.Properties["countries"].Type)
	assert.Equal(t, genai.TypeString, gs.Properties["countries"].Items.Type)
	assert.Equal(t, genai.TypeInteger, gs.Properties["year"].Type)
}

func TestSchema_JSON(t *testing.T) {
	assert.Contains(t, partnerSchema().JSON(), `"required": [`)
}

func TestSchema_ValidateReusesCompiledSchema(t *testing.T) {
	doc := func(raw string) any {
		v, err := jsonschema.UnmarshalJSON(strings.NewReader(raw))
		require.NoError(t, err)
		return v
	}
	s := partnerSchema()
	require.NoError(t, s.Validate(doc(`{"countries":["China"],"year":2025}`)))
	first := s.compiled
	require.NotNil(t, first)

	err := s.Validate(doc(`{"countries":["China"]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "year")
	assert.Same(t, first, s.compiled)
}
