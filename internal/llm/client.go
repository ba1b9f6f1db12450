package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client is a single LLM provider. Implementations make exactly one provider
// call per method invocation; retrying is the Generator's job.
type Client interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// SupportsGrounding reports whether Grounded and GroundedStructured work.
	SupportsGrounding() bool

	// Text returns a free-text completion.
	Text(ctx context.Context, prompt string) (string, error)
	// Structured returns a JSON completion constrained to schema.
	Structured(ctx context.Context, prompt string, schema *Schema) (string, error)
	// Grounded returns a free-text completion augmented with web search.
	Grounded(ctx context.Context, prompt string) (string, error)
	// GroundedStructured combines search grounding and a response schema in one call.
	GroundedStructured(ctx context.Context, prompt string, schema *Schema) (string, error)
}

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string
}

// New constructs the configured provider client. It is meant to be called
// once at process start and the result passed to whatever needs it.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderGemini:
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	case ProviderOpenAI:
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
