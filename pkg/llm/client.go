// Package llm wraps the hosted language-model API behind the pipeline's
// text-in/text-out oracle contract. Callers must tolerate three failure
// modes: a nil client (no credential), an error return, and syntactically
// invalid text in a success return.
package llm

import (
	"context"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client defines the single model operation the valuation engines use.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Option configures the SDK-backed client.
type Option func(*sdkClient)

// WithModel overrides the default model ID.
func WithModel(model string) Option {
	return func(c *sdkClient) {
		c.model = model
	}
}

// WithMaxTokens overrides the response token budget.
func WithMaxTokens(n int64) Option {
	return func(c *sdkClient) {
		c.maxTokens = n
	}
}

// WithRateLimit bounds outgoing requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *sdkClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

type sdkClient struct {
	client    sdk.Client
	model     string
	maxTokens int64
	limiter   *rate.Limiter
}

// NewClient creates a model client backed by the official SDK. Returns
// nil when apiKey is empty so callers can treat "no credential" and
// "no client" uniformly.
func NewClient(apiKey string, opts ...Option) Client {
	if apiKey == "" {
		return nil
	}
	c := &sdkClient{
		client:    sdk.NewClient(option.WithAPIKey(apiKey)),
		model:     "claude-haiku-4-5-20251001",
		maxTokens: 2048,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *sdkClient) Generate(ctx context.Context, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "llm: rate limit wait")
		}
	}

	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "llm: create message")
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	zap.L().Debug("llm: generation complete",
		zap.String("model", c.model),
		zap.Int64("input_tokens", msg.Usage.InputTokens),
		zap.Int64("output_tokens", msg.Usage.OutputTokens),
		zap.Int("response_chars", len(text)),
	)

	return text, nil
}
