package review

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/rules"
	"github.com/joescharf/comply/internal/verdict"
)

// CatalogStage evaluates a rule catalog and asks a Reviewer for commentary.
// It approves only when no Critical issue is found and the Reviewer's reply
// does not trip the rejection predicate.
type CatalogStage struct {
	name      string
	catalog   *rules.Catalog
	reviewer  Reviewer
	rejects   RejectionPredicate
	usesPrior bool
	retry     RetryPolicy
	logger    *slog.Logger
}

// StageOptions holds the settings shared by every stage of a pipeline.
type StageOptions struct {
	Rejects RejectionPredicate
	Retry   RetryPolicy
	Logger  *slog.Logger
}

// NewCatalogStage builds a stage from its definition.
func NewCatalogStage(def rules.StageDefinition, catalog *rules.Catalog, reviewer Reviewer, opts StageOptions) *CatalogStage {
	rejects := opts.Rejects
	if rejects == nil {
		rejects = MarkerPredicate(DefaultRejectionMarker)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogStage{
		name:      def.Name,
		catalog:   catalog,
		reviewer:  reviewer,
		rejects:   rejects,
		usesPrior: def.UsesPriorIssues,
		retry:     opts.Retry,
		logger:    logger,
	}
}

// StagesFromSet builds one CatalogStage per stage definition, in order.
func StagesFromSet(set *rules.Set, reviewerFor func(def rules.StageDefinition) Reviewer, opts StageOptions) []Stage {
	stages := make([]Stage, len(set.Stages))
	for i, def := range set.Stages {
		stages[i] = NewCatalogStage(def, set.StageCatalog(def), reviewerFor(def), opts)
	}
	return stages
}

func (s *CatalogStage) Name() string          { return s.name }
func (s *CatalogStage) UsesPriorIssues() bool { return s.usesPrior }

// Run evaluates one draft. Reviewer failures are absorbed into the outcome
// as a Critical upstream_failure issue.
func (s *CatalogStage) Run(ctx context.Context, content models.ContentItem, prior []models.Issue) Outcome {
	out := Outcome{Stage: s.name}

	found := s.catalog.Evaluate(content.Text)
	raised := make(map[string]bool)
	if s.usesPrior {
		for _, is := range prior {
			raised[is.RuleKey] = true
		}
	}
	for _, is := range found {
		if raised[is.RuleKey] {
			continue
		}
		is.Stage = s.name
		out.Issues = append(out.Issues, is)
	}

	var reviewCtx []models.Issue
	if s.usesPrior {
		reviewCtx = append(reviewCtx, prior...)
	}
	reviewCtx = append(reviewCtx, out.Issues...)

	var raw string
	attempts, err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		raw, err = s.reviewer.Review(ctx, content.Text, reviewCtx)
		return err
	}, func(attempt int, err error, wait time.Duration) {
		s.logger.Warn("reviewer call failed, retrying",
			"stage", s.name, "attempt", attempt, "wait", wait, "error", err)
	})
	out.Attempts = attempts

	switch {
	case err != nil:
		out.Err = err
		out.RawMessage = fmt.Sprintf("Reviewer unavailable after %d attempt(s): %v", attempts, err)
		out.Issues = append(out.Issues, models.Issue{
			RuleKey:     models.RuleUpstreamFailure,
			MatchedText: "",
			Severity:    models.SeverityCritical,
			Fixes:       []string{"Re-run the review once the reviewer service is available"},
			Stage:       s.name,
		})
	case s.rejects(raw):
		out.RawMessage = raw
		out.Issues = append(out.Issues, models.Issue{
			RuleKey:  models.RuleReviewerRejected,
			Severity: models.SeverityCritical,
			Fixes:    []string{"Address the objections in the reviewer's commentary"},
			Stage:    s.name,
		})
	default:
		out.RawMessage = raw
	}

	out.Decision = models.DecisionApproved
	if verdict.HasCritical(out.Issues) {
		out.Decision = models.DecisionRejected
	}
	return out
}
