// Package review defines review stages: one specialist compliance check
// combining deterministic rule matching with an opaque Reviewer call.
package review

import (
	"context"
	"regexp"

	"github.com/joescharf/comply/internal/models"
)

// Reviewer produces free-text review commentary for content. Failures that
// may succeed on retry should be apperr.UpstreamUnavailable errors.
type Reviewer interface {
	Review(ctx context.Context, content string, prior []models.Issue) (string, error)
}

// ReviewerFunc adapts a function to Reviewer.
type ReviewerFunc func(ctx context.Context, content string, prior []models.Issue) (string, error)

func (f ReviewerFunc) Review(ctx context.Context, content string, prior []models.Issue) (string, error) {
	return f(ctx, content, prior)
}

// Composer revises content using a verdict as feedback, returning one draft
// per configured channel.
type Composer interface {
	Compose(ctx context.Context, content string, feedback models.Verdict, limits models.ChannelLimits) (map[models.Channel]string, error)
}

// ComposerFunc adapts a function to Composer.
type ComposerFunc func(ctx context.Context, content string, feedback models.Verdict, limits models.ChannelLimits) (map[models.Channel]string, error)

func (f ComposerFunc) Compose(ctx context.Context, content string, feedback models.Verdict, limits models.ChannelLimits) (map[models.Channel]string, error) {
	return f(ctx, content, feedback, limits)
}

// RejectionPredicate reports whether a Reviewer response explicitly
// rejects the content.
type RejectionPredicate func(raw string) bool

// DefaultRejectionMarker is the token reviewers are asked to emit.
const DefaultRejectionMarker = "REJECTED"

// MarkerPredicate matches marker as a whole word, case-sensitively.
func MarkerPredicate(marker string) RejectionPredicate {
	if marker == "" {
		return NeverRejects
	}
	re := regexp.MustCompile(`(^|\W)` + regexp.QuoteMeta(marker) + `($|\W)`)
	return re.MatchString
}

// NeverRejects is a predicate that ignores the Reviewer's text.
func NeverRejects(string) bool { return false }

// Outcome is a stage's verdict fragment for one draft.
type Outcome struct {
	Stage      string
	Decision   models.Decision
	RawMessage string
	Issues     []models.Issue
	Attempts   int
	Err        error // final Reviewer error when retries were exhausted
}

// Approved reports whether the stage approved the draft.
func (o Outcome) Approved() bool { return o.Decision == models.DecisionApproved }

// Stage is one specialist check. Run must not be interrupted part way: the
// pipeline only cancels between stages.
type Stage interface {
	Name() string
	// UsesPriorIssues reports whether Run reads prior; stages that do not
	// may run concurrently with their neighbours.
	UsesPriorIssues() bool
	Run(ctx context.Context, content models.ContentItem, prior []models.Issue) Outcome
}
