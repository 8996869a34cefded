// Package llm wraps the generative model behind two operations: a completion
// call over an assembled context window and an embedding call. Both absorb
// provider failures. The completion substitutes a fixed placeholder and the
// embedding reports absence with nil, so a model outage degrades the reply
// instead of crashing the run.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/aurorahq/aurora/internal/logger"
)

// Segment is one role-tagged element of the transient context window handed
// to the completion call.
type Segment struct {
	Role string // "user" or "assistant"
	Text string
}

// Fixed user-facing placeholders. Rate-limit failures get their own text so
// quota exhaustion is distinguishable from genuine errors in logs and in the
// client.
const (
	QuotaExceededReply  = "The assistant is over its usage quota right now. Please try again in a little while."
	GenericFailureReply = "Something went wrong while generating a response. Please try again."
	EmptyReply          = "No response was generated. Please try rephrasing."
)

const systemPrompt = `You are Aurora, a helpful realtime assistant.
Be accurate, concise, and friendly. Prefer actionable responses.
When a "relevant past context" block is present, use it only if it helps.`

// Embedder converts text to a fixed-dimension vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// Client is the language model client used by the orchestrator.
type Client struct {
	anthropic anthropic.Client
	embedder  Embedder
	model     anthropic.Model
	maxTokens int64
	log       *logger.Logger
}

// Config for NewClient. Model and MaxTokens fall back to sensible defaults.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int64
}

func NewClient(cfg Config, embedder Embedder, log *logger.Logger) *Client {
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	var opts []option.RequestOption
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	return &Client{
		anthropic: anthropic.NewClient(opts...),
		embedder:  embedder,
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		log:       log.With("client", "llm"),
	}
}

// Complete runs the completion call over the assembled segments. It never
// returns an empty string and never returns an error: rate limits yield the
// quota placeholder, other failures the generic one, and an empty provider
// response the empty-reply placeholder.
func (c *Client) Complete(ctx context.Context, segments []Segment) string {
	if len(segments) == 0 {
		return EmptyReply
	}

	messages := make([]anthropic.MessageParam, 0, len(segments))
	for _, seg := range segments {
		block := anthropic.NewTextBlock(seg.Text)
		if seg.Role == "assistant" {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	resp, err := c.anthropic.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  messages,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
	})
	if err != nil {
		if isRateLimited(err) {
			c.log.Warn("completion rate limited", "error", err)
			return QuotaExceededReply
		}
		c.log.Error("completion failed", "error", err)
		return GenericFailureReply
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := strings.TrimSpace(text.String())
	if out == "" {
		return EmptyReply
	}
	return out
}

// Embed converts text to a vector, or nil when the embedding backend fails.
// Callers treat nil as "skip the downstream memory write and query".
func (c *Client) Embed(ctx context.Context, text string) []float32 {
	vec, err := c.embedder.Embed(ctx, text)
	if err != nil {
		c.log.Error("embedding failed", "error", err)
		return nil
	}
	return vec
}

// Dimensions reports the system-wide embedding dimensionality.
func (c *Client) Dimensions() int {
	return c.embedder.Dimensions()
}

func isRateLimited(err error) bool {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 429
	}
	return false
}
