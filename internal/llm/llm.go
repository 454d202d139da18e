package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joescharf/comply/internal/apperr"
)

// Client wraps the Anthropic API for compliance review and copy revision.
type Client struct {
	api            *anthropic.Client
	model          anthropic.Model
	citationPrefix string
}

// NewClient creates an LLM client with the given API key and model.
// citationPrefix is the regulator prefix reviewers are asked to cite with.
func NewClient(apiKey, model, citationPrefix string, extra ...option.RequestOption) *Client {
	opts := []option.RequestOption{
		// Retries are owned by the review retry policy.
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	opts = append(opts, extra...)
	client := anthropic.NewClient(opts...)
	return &Client{
		api:            &client,
		model:          anthropic.Model(model),
		citationPrefix: citationPrefix,
	}
}

// complete sends one system+user exchange and returns the first text block.
func (c *Client) complete(ctx context.Context, op, system, user string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", classify(op, err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.UpstreamUnavailable(op, errors.New("no text content in API response"))
	}
	return text, nil
}

// classify marks rate limits, overload, server errors and transport failures
// as UpstreamUnavailable. Everything else (bad request, auth) is permanent.
func classify(op string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 408, apiErr.StatusCode == 429, apiErr.StatusCode >= 500:
			return apperr.UpstreamUnavailable(op, err)
		default:
			return fmt.Errorf("%s: anthropic API call: %w", op, err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.UpstreamUnavailable(op, err)
	}
	return fmt.Errorf("%s: anthropic API call: %w", op, err)
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
