package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/bher20/tariffmanager/internal/metrics"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiClient talks to the Gemini API through the genai SDK. It is the only
// provider that supports Google Search grounding.
type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

func (c *GeminiClient) Name() string { return "gemini:" + c.model }

func (c *GeminiClient) SupportsGrounding() bool { return true }

func (c *GeminiClient) Text(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "text", prompt, nil)
}

func (c *GeminiClient) Structured(ctx context.Context, prompt string, schema *Schema) (string, error) {
	return c.generate(ctx, "structured", prompt, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema.genai(),
	})
}

func (c *GeminiClient) Grounded(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "grounded", prompt, &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
}

func (c *GeminiClient) GroundedStructured(ctx context.Context, prompt string, schema *Schema) (string, error) {
	return c.generate(ctx, "grounded_structured", prompt, &genai.GenerateContentConfig{
		Tools:            []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema.genai(),
	})
}

func (c *GeminiClient) generate(ctx context.Context, kind, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	started := time.Now()
	defer metrics.ObserveLLMCall("gemini", kind, started)

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini %s call: %w", kind, err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}
