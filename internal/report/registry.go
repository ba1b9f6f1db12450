package report

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bher20/tariffmanager/internal/industries"
)

// StageFunc produces and stores one section of an industry report.
type StageFunc func(ctx context.Context, env *Env, ind industries.Industry) error

// Section is one stage of the report pipeline.
type Section struct {
	// Key is the section's storage name, e.g. "tariff-impact".
	Key string

	Name string

	// Order places the stage in the pipeline; later stages read the
	// documents of earlier ones.
	Order int

	// Requires lists sections whose documents must exist before this one runs.
	Requires []string

	Run StageFunc
}

var (
	sectionsMu sync.RWMutex
	sections   = make(map[string]Section)
)

// Register adds a section to the pipeline. Called from init().
func Register(s Section) {
	if s.Key == "" {
		panic("report: Register called with empty key")
	}
	if s.Run == nil {
		panic(fmt.Sprintf("report: Register(%q) called with nil Run", s.Key))
	}

	sectionsMu.Lock()
	defer sectionsMu.Unlock()

	if _, exists := sections[s.Key]; exists {
		panic(fmt.Sprintf("report: Register called twice for key %q", s.Key))
	}
	sections[s.Key] = s
}

func Get(key string) (Section, bool) {
	sectionsMu.RLock()
	defer sectionsMu.RUnlock()

	s, ok := sections[key]
	return s, ok
}

// Sections returns every registered section in pipeline order.
func Sections() []Section {
	sectionsMu.RLock()
	defer sectionsMu.RUnlock()

	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Keys returns the registered section keys in pipeline order.
func Keys() []string {
	all := Sections()
	keys := make([]string, len(all))
	for i, s := range all {
		keys[i] = s.Key
	}
	return keys
}
