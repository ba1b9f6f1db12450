package industries

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load("", "")
	require.NoError(t, err)
	assert.Len(t, c.List(), len(Defaults()))

	ind, err := c.Get("steel")
	require.NoError(t, err)
	assert.Equal(t, "Steel", ind.Name)

	_, err = c.Get("textiles")
	assert.ErrorIs(t, err, ErrUnknownIndustry)
}

func TestLoad_YAMLFileWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "industries.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
industries:
  - key: solar
    name: Solar Panels
    htsChapters: ["8541"]
    topN: 5
  - key: lumber
`), 0o644))

	c, err := Load(path, `[{"key":"ignored"}]`)
	require.NoError(t, err)
	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "lumber", list[0].Key)
	assert.Equal(t, "lumber", list[0].Name)
	assert.Equal(t, 5, list[1].TopN)
	assert.Equal(t, []string{"8541"}, list[1].HTSChapters)
}

func TestLoad_JSON(t *testing.T) {
	c, err := Load("", `[{"key":"aluminum","name":"Aluminum"}]`)
	require.NoError(t, err)
	ind, err := c.Get("aluminum")
	require.NoError(t, err)
	assert.Equal(t, "Aluminum", ind.Name)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)

	_, err = Load("", `not json`)
	assert.Error(t, err)

	_, err = Load("", `[]`)
	assert.Error(t, err)
}

func TestNewCatalog_Validation(t *testing.T) {
	_, err := NewCatalog([]Industry{{Key: "../etc"}})
	assert.Error(t, err)

	_, err = NewCatalog([]Industry{{Key: "a"}, {Key: "a"}})
	assert.Error(t, err)
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("semiconductors"))
	assert.True(t, ValidKey("auto-parts2"))
	assert.False(t, ValidKey("Steel"))
	assert.False(t, ValidKey(""))
	assert.False(t, ValidKey("-x"))
}
