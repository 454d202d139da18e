package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/review"
	"github.com/joescharf/comply/internal/wordcount"
)

var _ review.Composer = (*Client)(nil)

// Compose asks the model for one revised draft per channel in limits, or a
// single "default" draft when limits is empty.
func (c *Client) Compose(ctx context.Context, content string, feedback models.Verdict, limits models.ChannelLimits) (map[models.Channel]string, error) {
	system, user := buildComposePrompt(content, feedback, limits)
	text, err := c.complete(ctx, "compose", system, user, 4096)
	if err != nil {
		return nil, err
	}
	return parseDrafts(text)
}

// buildComposePrompt constructs the system and user prompts for a revision.
func buildComposePrompt(content string, feedback models.Verdict, limits models.ChannelLimits) (system string, user string) {
	channels := limits.Channels()
	keys := make([]string, len(channels))
	for i, ch := range channels {
		keys[i] = fmt.Sprintf("%q", ch)
	}
	if len(keys) == 0 {
		keys = []string{fmt.Sprintf("%q", models.ChannelDefault)}
	}

	system = `You revise financial promotion copy so that it passes compliance review. Return ONLY a JSON object mapping each channel name to the revised copy for that channel.

Rules:
- Fix every finding listed; keep the product facts (rates, names, protections) unchanged
- Never add claims that are absolute, guaranteed or risk-free
- Stay within the word limit given for each channel
- Return valid JSON only, no markdown fencing or explanation
- Channels: ` + strings.Join(keys, ", ")

	var sb strings.Builder
	if len(feedback.Issues) > 0 {
		sb.WriteString("Findings to fix:\n")
		for _, is := range feedback.Issues {
			fmt.Fprintf(&sb, "- [%s] %s", is.Severity, is.RuleKey)
			if is.MatchedText != "" {
				fmt.Fprintf(&sb, ": %q", is.MatchedText)
			}
			if is.Citation != "" {
				fmt.Fprintf(&sb, " (%s)", is.Citation)
			}
			if len(is.Fixes) > 0 {
				fmt.Fprintf(&sb, "; suggested: %s", strings.Join(is.Fixes, " / "))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	if len(channels) > 0 {
		sb.WriteString("Word limits:\n")
		for _, ch := range channels {
			l := limits[ch]
			if l == nil {
				fmt.Fprintf(&sb, "- %s: no limit\n", ch)
				continue
			}
			fmt.Fprintf(&sb, "- %s: %d words", ch, *l)
			if r := wordcount.SuggestReduction(content, *l); r.NeedsReduction {
				fmt.Fprintf(&sb, " (currently %d, %s)", r.CurrentWords, r.BandedSuggestion)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Copy to revise:\n\n")
	sb.WriteString(content)
	user = sb.String()
	return
}

// parseDrafts decodes the model's channel map.
func parseDrafts(text string) (map[models.Channel]string, error) {
	text = stripFences(text)
	var raw map[string]string
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("LLM response contains no drafts")
	}
	out := make(map[models.Channel]string, len(raw))
	for k, v := range raw {
		out[models.Channel(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out, nil
}
