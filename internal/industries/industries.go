// Package industries holds the catalog of industries reports are generated
// for.
package industries

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// Industry describes one report subject.
type Industry struct {
	Key         string `json:"key" yaml:"key"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// HTSChapters narrows prompts to the relevant Harmonized Tariff Schedule
	// chapters.
	HTSChapters []string `json:"htsChapters,omitempty" yaml:"htsChapters,omitempty"`
	// TopN overrides the number of partner countries when set.
	TopN int `json:"topN,omitempty" yaml:"topN,omitempty"`
}

var keyRe = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

var ErrUnknownIndustry = errors.New("unknown industry")

// ValidKey reports whether key can be used as an industry key (and as a
// storage path segment).
func ValidKey(key string) bool { return keyRe.MatchString(key) }

func Defaults() []Industry {
	return []Industry{
		{
			Key:         "semiconductors",
			Name:        "Semiconductors",
			Description: "Integrated circuits, wafers and semiconductor manufacturing equipment",
			HTSChapters: []string{"8541", "8542", "8486"},
		},
		{
			Key:         "automotive",
			Name:        "Automotive",
			Description: "Passenger vehicles, light trucks and auto parts",
			HTSChapters: []string{"8703", "8704", "8708"},
		},
		{
			Key:         "steel",
			Name:        "Steel",
			Description: "Iron and steel mill products",
			HTSChapters: []string{"72", "73"},
		},
		{
			Key:         "pharmaceuticals",
			Name:        "Pharmaceuticals",
			Description: "Finished drugs and active pharmaceutical ingredients",
			HTSChapters: []string{"30", "2941"},
		},
	}
}

// Catalog is an immutable set of industries.
type Catalog struct {
	list  []Industry
	byKey map[string]Industry
}

func NewCatalog(list []Industry) (*Catalog, error) {
	c := &Catalog{byKey: make(map[string]Industry, len(list))}
	for _, ind := range list {
		if !ValidKey(ind.Key) {
			return nil, fmt.Errorf("invalid industry key %q", ind.Key)
		}
		if _, dup := c.byKey[ind.Key]; dup {
			return nil, fmt.Errorf("industry %q listed twice", ind.Key)
		}
		if ind.Name == "" {
			ind.Name = ind.Key
		}
		c.byKey[ind.Key] = ind
		c.list = append(c.list, ind)
	}
	sort.Slice(c.list, func(i, j int) bool { return c.list[i].Key < c.list[j].Key })
	return c, nil
}

type file struct {
	Industries []Industry `yaml:"industries"`
}

// Load builds the catalog: the YAML file when given, else the JSON override
// when given, else the defaults.
func Load(path, rawJSON string) (*Catalog, error) {
	switch {
	case path != "":
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read industries file: %w", err)
		}
		var f file
		if err := yaml.Unmarshal(b, &f); err != nil {
			return nil, fmt.Errorf("parse industries file: %w", err)
		}
		if len(f.Industries) == 0 {
			return nil, fmt.Errorf("industries file %s lists no industries", path)
		}
		return NewCatalog(f.Industries)
	case rawJSON != "":
		var list []Industry
		if err := json.Unmarshal([]byte(rawJSON), &list); err != nil {
			return nil, fmt.Errorf("parse industries json: %w", err)
		}
		if len(list) == 0 {
			return nil, errors.New("industries json lists no industries")
		}
		return NewCatalog(list)
	default:
		return NewCatalog(Defaults())
	}
}

// List returns the industries sorted by key.
func (c *Catalog) List() []Industry {
	out := make([]Industry, len(c.list))
	copy(out, c.list)
	return out
}

func (c *Catalog) Get(key string) (Industry, error) {
	ind, ok := c.byKey[key]
	if !ok {
		return Industry{}, fmt.Errorf("%w: %q", ErrUnknownIndustry, key)
	}
	return ind, nil
}
