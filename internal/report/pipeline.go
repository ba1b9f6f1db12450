// Package report runs the multi-stage generation of an industry tariff
// report. Each stage reads the stored output of earlier stages and stores
// its own.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bher20/tariffmanager/internal/industries"
	"github.com/bher20/tariffmanager/internal/llm"
	"github.com/bher20/tariffmanager/internal/revalidate"
	"github.com/bher20/tariffmanager/internal/storage"
	"github.com/bher20/tariffmanager/internal/tariffs"
)

var (
	ErrUnknownSection = errors.New("unknown report section")
	ErrMissingInput   = errors.New("input section has not been generated")
)

// Env is what stages share.
type Env struct {
	Store       storage.Store
	Gen         *llm.Generator
	Tariffs     *tariffs.Service
	Revalidator *revalidate.Revalidator
	Grounded    bool
	Log         *zap.Logger
	Now         func() time.Time
}

// SectionResult reports how one stage went.
type SectionResult struct {
	Key      string        `json:"key"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

type RunResult struct {
	Industry string          `json:"industry"`
	Sections []SectionResult `json:"sections"`
}

// Failed returns the first failed section, if any.
func (r *RunResult) Failed() (SectionResult, bool) {
	for _, s := range r.Sections {
		if s.Error != "" {
			return s, true
		}
	}
	return SectionResult{}, false
}

type Pipeline struct {
	env *Env
}

func NewPipeline(env Env) *Pipeline {
	if env.Log == nil {
		env.Log = zap.NewNop()
	}
	env.Log = env.Log.Named("report")
	if env.Now == nil {
		env.Now = time.Now
	}
	return &Pipeline{env: &env}
}

// Resolve maps section keys to sections in pipeline order. No keys means
// every section.
func Resolve(keys ...string) ([]Section, error) {
	if len(keys) == 0 {
		return Sections(), nil
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		if _, ok := Get(k); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSection, k)
		}
		want[k] = true
	}
	var out []Section
	for _, s := range Sections() {
		if want[s.Key] {
			out = append(out, s)
		}
	}
	return out, nil
}

// Run executes the selected stages sequentially and stops at the first
// failure.
func (p *Pipeline) Run(ctx context.Context, ind industries.Industry, keys ...string) (*RunResult, error) {
	stages, err := Resolve(keys...)
	if err != nil {
		return nil, err
	}
	log := p.env.Log.With(zap.String("industry", ind.Key))
	res := &RunResult{Industry: ind.Key}

	for _, stage := range stages {
		started := time.Now()
		log.Info("running report stage", zap.String("section", stage.Key))

		err := p.checkInputs(ctx, ind, stage)
		if err == nil {
			err = stage.Run(ctx, p.env, ind)
		}
		sr := SectionResult{Key: stage.Key, Duration: time.Since(started)}
		if err != nil {
			sr.Error = err.Error()
			res.Sections = append(res.Sections, sr)
			log.Error("report stage failed", zap.String("section", stage.Key), zap.Error(err))
			return res, fmt.Errorf("%s/%s: %w", ind.Key, stage.Key, err)
		}
		res.Sections = append(res.Sections, sr)
		log.Info("report stage done", zap.String("section", stage.Key), zap.Duration("duration", sr.Duration))
	}
	return res, nil
}

func (p *Pipeline) checkInputs(ctx context.Context, ind industries.Industry, s Section) error {
	for _, dep := range s.Requires {
		doc, err := p.env.Store.GetDocument(ctx, storage.DocumentKey(ind.Key, dep, "json"))
		if err != nil {
			return err
		}
		if doc == nil {
			return fmt.Errorf("%w: %s", ErrMissingInput, dep)
		}
	}
	return nil
}

// saved finishes a stage: index touch and page revalidation.
func (e *Env) saved(ctx context.Context, ind industries.Industry) error {
	if err := storage.TouchLastModified(ctx, e.Store, ind.Key, e.Now()); err != nil {
		return err
	}
	e.Revalidator.Trigger(ctx, revalidate.PathFor(ind.Key))
	return nil
}
