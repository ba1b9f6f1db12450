package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/bher20/tariffmanager/internal/metrics"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient talks to the OpenAI chat API through langchaingo. It has no
// search grounding.
type OpenAIClient struct {
	llm   llms.Model
	model string
}

func NewOpenAI(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}
	if strings.TrimSpace(model) == "" {
		model = defaultOpenAIModel
	}
	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &OpenAIClient{llm: client, model: model}, nil
}

func (c *OpenAIClient) Name() string { return "openai:" + c.model }

func (c *OpenAIClient) SupportsGrounding() bool { return false }

func (c *OpenAIClient) Text(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, "text", prompt)
}

func (c *OpenAIClient) Structured(ctx context.Context, prompt string, schema *Schema) (string, error) {
	full := prompt + "\n\nRespond only with a JSON document that conforms to this JSON schema:\n" + schema.JSON()
	return c.generate(ctx, "structured", full, llms.WithJSONMode())
}

func (c *OpenAIClient) Grounded(ctx context.Context, prompt string) (string, error) {
	return "", Fatal(fmt.Errorf("openai grounded generation: %w", ErrUnsupported))
}

func (c *OpenAIClient) GroundedStructured(ctx context.Context, prompt string, schema *Schema) (string, error) {
	return "", Fatal(fmt.Errorf("openai grounded structured generation: %w", ErrUnsupported))
}

func (c *OpenAIClient) generate(ctx context.Context, kind, prompt string, opts ...llms.CallOption) (string, error) {
	started := time.Now()
	defer metrics.ObserveLLMCall("openai", kind, started)

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
	res, err := c.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("openai %s call: %w", kind, err)
	}
	if len(res.Choices) == 0 || strings.TrimSpace(res.Choices[0].Content) == "" {
		return "", errors.New("openai returned an empty response")
	}
	return res.Choices[0].Content, nil
}
