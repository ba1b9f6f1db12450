package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bher20/tariffmanager/internal/prompts"
)

// Request describes one structured generation.
type Request struct {
	// Op names the call in logs and metrics, e.g. "tariffs.country".
	Op       string
	Prompt   string
	Schema   *Schema
	Grounded bool
}

// Generator wraps a Client with retries, schema validation and the grounded
// fallback path.
type Generator struct {
	client  Client
	retry   RetryConfig
	log     *zap.Logger
	limiter *rate.Limiter

	ungrounded sync.Once
}

func NewGenerator(client Client, retry RetryConfig, log *zap.Logger) *Generator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Generator{
		client: client,
		retry:  retry,
		log:    log.With(zap.String("provider", client.Name())),
	}
}

func (g *Generator) Provider() string { return g.client.Name() }

// WithRateLimit paces provider calls to perMinute. Zero or less disables
// pacing.
func (g *Generator) WithRateLimit(perMinute int) *Generator {
	if perMinute <= 0 {
		g.limiter = nil
		return g
	}
	g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
	return g
}

func (g *Generator) wait(ctx context.Context) error {
	if g.limiter == nil {
		return nil
	}
	return g.limiter.Wait(ctx)
}

// Generate fills out with a response conforming to req.Schema. Each retry
// attempt runs the full call sequence: for grounded requests on a provider
// that supports it, the combined grounded+structured call first, then on any
// error the two-step grounded text plus structuring pass.
func (g *Generator) Generate(ctx context.Context, req Request, out any) error {
	if req.Schema == nil {
		return fmt.Errorf("%s: request has no schema", req.Op)
	}
	grounded := req.Grounded && g.client.SupportsGrounding()
	if req.Grounded && !grounded {
		g.ungrounded.Do(func() {
			g.log.Warn("provider has no grounding, using plain structured output", zap.String("op", req.Op))
		})
	}

	_, err := Retry(ctx, g.retry, g.log, req.Op, func(ctx context.Context) (struct{}, error) {
		if err := g.wait(ctx); err != nil {
			return struct{}{}, err
		}
		if !grounded {
			raw, err := g.client.Structured(ctx, req.Prompt, req.Schema)
			if err != nil {
				return struct{}{}, err
			}
			return struct{}{}, decode(raw, req.Schema, out)
		}
		return struct{}{}, g.groundedStructured(ctx, req, out)
	})
	return err
}

func (g *Generator) groundedStructured(ctx context.Context, req Request, out any) error {
	raw, err := g.client.GroundedStructured(ctx, req.Prompt, req.Schema)
	if err == nil {
		err = decode(raw, req.Schema, out)
	}
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	g.log.Warn("combined grounded structured call failed, falling back to two-step generation",
		zap.String("op", req.Op),
		zap.Error(err))

	if err := g.wait(ctx); err != nil {
		return err
	}
	text, err := g.client.Grounded(ctx, req.Prompt)
	if err != nil {
		return fmt.Errorf("grounded generation: %w", err)
	}
	if err := g.wait(ctx); err != nil {
		return err
	}
	raw, err = g.client.Structured(ctx, prompts.StructureConversion(text, req.Schema.JSON()), req.Schema)
	if err != nil {
		return fmt.Errorf("structuring grounded response: %w", err)
	}
	return decode(raw, req.Schema, out)
}

// Text returns free text (markdown sections), grounded when asked and supported.
func (g *Generator) Text(ctx context.Context, op, prompt string, grounded bool) (string, error) {
	grounded = grounded && g.client.SupportsGrounding()
	return Retry(ctx, g.retry, g.log, op, func(ctx context.Context) (string, error) {
		if err := g.wait(ctx); err != nil {
			return "", err
		}
		if grounded {
			return g.client.Grounded(ctx, prompt)
		}
		return g.client.Text(ctx, prompt)
	})
}
