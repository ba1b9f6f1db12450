// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/bher20/tariffmanager/internal/llm"
)

// Func answers one call. kind is "text", "structured", "grounded" or
// "grounded_structured".
type Func func(ctx context.Context, kind, prompt string) (string, error)

// Client records every call and answers with Respond.
type Client struct {
	Grounding bool
	Respond   Func

	mu    sync.Mutex
	calls []Call
}

type Call struct {
	Kind   string
	Prompt string
}

var ErrNoResponder = errors.New("llmtest: no responder configured")

func New(respond Func) *Client {
	return &Client{Respond: respond}
}

func (c *Client) Name() string { return "llmtest" }

func (c *Client) SupportsGrounding() bool { return c.Grounding }

func (c *Client) Text(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, "text", prompt)
}

func (c *Client) Structured(ctx context.Context, prompt string, _ *llm.Schema) (string, error) {
	return c.call(ctx, "structured", prompt)
}

func (c *Client) Grounded(ctx context.Context, prompt string) (string, error) {
	return c.call(ctx, "grounded", prompt)
}

func (c *Client) GroundedStructured(ctx context.Context, prompt string, _ *llm.Schema) (string, error) {
	return c.call(ctx, "grounded_structured", prompt)
}

func (c *Client) call(ctx context.Context, kind, prompt string) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Kind: kind, Prompt: prompt})
	respond := c.Respond
	c.mu.Unlock()

	if respond == nil {
		return "", ErrNoResponder
	}
	return respond(ctx, kind, prompt)
}

// Calls returns a copy of the recorded calls.
func (c *Client) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Kinds returns the kind of every recorded call, in order.
func (c *Client) Kinds() []string {
	calls := c.Calls()
	out := make([]string, len(calls))
	for i, call := range calls {
		out[i] = call.Kind
	}
	return out
}

var _ llm.Client = (*Client)(nil)
