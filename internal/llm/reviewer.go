package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/review"
)

// StageReviewer asks the model for one stage's commentary.
type StageReviewer struct {
	client       *Client
	identity     string
	instructions string
	marker       string
}

// Reviewer returns a review.Reviewer for the named stage. marker is the word
// the model is told to end a rejection with; empty asks for commentary only.
func (c *Client) Reviewer(identity, instructions, marker string) *StageReviewer {
	return &StageReviewer{client: c, identity: identity, instructions: instructions, marker: marker}
}

var _ review.Reviewer = (*StageReviewer)(nil)

// Review returns the model's free-text commentary. The stage decides the
// decision; the reply only needs to carry citations and the marker word.
func (r *StageReviewer) Review(ctx context.Context, content string, prior []models.Issue) (string, error) {
	system, user := buildReviewPrompt(r.identity, r.instructions, r.client.citationPrefix, r.marker, content, prior)
	return r.client.complete(ctx, "review "+r.identity, system, user, 1024)
}

// buildReviewPrompt constructs the system and user prompts for a stage review.
func buildReviewPrompt(identity, instructions, prefix, marker, content string, prior []models.Issue) (system string, user string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, a financial promotions compliance reviewer.\n", identity)
	if instructions != "" {
		sb.WriteString(strings.TrimSpace(instructions))
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, `
Rules:
- Review only the marketing copy you are given; do not rewrite it
- Cite every regulation you rely on as a single token with hyphens instead of spaces, for example %s-COBS-4.2.1R
- Explain each problem in one or two sentences
- Plain text only, no markdown headings`, prefix)
	if marker != "" {
		fmt.Fprintf(&sb, "\n- End with a line containing exactly APPROVED if the copy may be published, or %s if it may not", marker)
	}
	system = sb.String()

	var ub strings.Builder
	if len(prior) > 0 {
		ub.WriteString("Findings raised so far:\n")
		for _, is := range prior {
			fmt.Fprintf(&ub, "- [%s] %s", is.Severity, is.RuleKey)
			if is.MatchedText != "" {
				fmt.Fprintf(&ub, ": %q", is.MatchedText)
			}
			if is.Citation != "" {
				fmt.Fprintf(&ub, " (%s)", review.CitationToken(is.Citation))
			}
			ub.WriteString("\n")
		}
		ub.WriteString("\n")
	}
	ub.WriteString("Review this copy:\n\n")
	ub.WriteString(content)
	user = ub.String()
	return
}
