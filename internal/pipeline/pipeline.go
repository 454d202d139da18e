// Package pipeline drives content through review rounds until it is
// approved or finally rejected, recording every decision in an audit log.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joescharf/comply/internal/apperr"
	"github.com/joescharf/comply/internal/audit"
	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/review"
)

// Identities used for entries the pipeline writes itself.
const (
	IdentityPipeline = "Pipeline"
	IdentityComposer = "Composer"
)

// Config is the explicit pipeline configuration. MaxRounds has no default.
type Config struct {
	Stages   []review.Stage
	Composer review.Composer
	// MaxRounds is the number of revisions allowed; the pipeline reviews at
	// most MaxRounds+1 drafts.
	MaxRounds        int
	CitationPrefix   string
	Retry            review.RetryPolicy
	ConcurrentStages bool
	Logger           *slog.Logger
}

// Pipeline is the orchestration state machine. It holds no per-run state
// and may be shared.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg. All failures are configuration errors.
func New(cfg Config) (*Pipeline, error) {
	const op = "new pipeline"
	if len(cfg.Stages) == 0 {
		return nil, apperr.Configuration(op, "no review stages configured")
	}
	names := make(map[string]bool, len(cfg.Stages))
	for i, st := range cfg.Stages {
		if st == nil {
			return nil, apperr.Configuration(op, "stage %d is nil", i+1)
		}
		if names[st.Name()] {
			return nil, apperr.Configuration(op, "duplicate stage %q", st.Name())
		}
		names[st.Name()] = true
	}
	if cfg.MaxRounds < 0 {
		return nil, apperr.Configuration(op, "max_rounds must be >= 0, got %d", cfg.MaxRounds)
	}
	if cfg.MaxRounds > 0 && cfg.Composer == nil {
		return nil, apperr.Configuration(op, "max_rounds is %d but no composer is configured", cfg.MaxRounds)
	}
	if strings.TrimSpace(cfg.CitationPrefix) == "" {
		return nil, apperr.Configuration(op, "citation prefix is empty")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger}, nil
}

// CitationPrefix returns the prefix audit logs for this pipeline should use.
func (p *Pipeline) CitationPrefix() string { return p.cfg.CitationPrefix }

// NewLog creates an audit log configured for this pipeline.
func (p *Pipeline) NewLog(opts ...audit.Option) *audit.Log {
	return audit.NewLog(p.cfg.CitationPrefix, opts...)
}

// Draft is the content reviewed for one channel. An empty Channel means the
// draft serves every configured channel (the first round).
type Draft struct {
	Channel models.Channel
	Content models.ContentItem
}

// StageResult is one stage outcome for one draft, with its audit entry.
type StageResult struct {
	Channel  models.Channel
	Outcome  review.Outcome
	Sequence int64
}

// DraftReview is the review of one draft within a round.
type DraftReview struct {
	Draft      Draft
	Stages     []StageResult
	Issues     []models.Issue
	WordCounts []models.WordCountResult
}

// Round is one full pass of every stage over the current drafts. A Partial
// round was cancelled before every stage ran.
type Round struct {
	Number  int
	Reviews []DraftReview
	Verdict models.Verdict
	Partial bool
}

// Result is the terminal outcome of Run.
type Result struct {
	State       models.PipelineState
	Verdict     models.Verdict // from the latest round only
	Rounds      []Round
	Drafts      []Draft
	Transitions []models.PipelineState
	Cancelled   bool
	Reason      string
}

// Run reviews item until a terminal state. Only InvalidInput errors and
// audit persistence failures are returned; stage and composer failures end
// up in the verdict and the audit log.
func (p *Pipeline) Run(ctx context.Context, item models.ContentItem, log *audit.Log) (*Result, error) {
	if err := Validate(item); err != nil {
		return nil, err
	}
	item = models.NewContentItem(item.Text, item.ChannelLimits)
	limits := item.ChannelLimits

	res := &Result{}
	res.move(models.StateDrafted)
	drafts := []Draft{{Content: item}}

	for round := 0; ; round++ {
		res.move(models.StateUnderReview)
		p.logger.Info("review round started", "round", round+1, "drafts", len(drafts))

		rr, stop, err := p.reviewRound(ctx, round+1, drafts, limits, log)
		if err != nil {
			return nil, err
		}
		res.Drafts = drafts
		res.Rounds = append(res.Rounds, *rr)
		res.Verdict = rr.Verdict
		if stop.cancelled {
			return p.cancel(ctx, res, round+1, stop.after, log)
		}

		blockers := blockersOf(rr)
		if len(blockers) == 0 {
			if _, err := p.append(ctx, log, IdentityPipeline,
				fmt.Sprintf("Approved after %d round(s): all stages approved and every channel is within its word limit.", round+1),
				models.DecisionApproved); err != nil {
				return nil, err
			}
			res.move(models.StateApproved)
			p.logger.Info("content approved", "rounds", round+1)
			return res, nil
		}

		res.move(models.StateNeedsRevision)
		if round >= p.cfg.MaxRounds {
			res.Reason = fmt.Sprintf("round limit %d reached; blocked by %s", p.cfg.MaxRounds, strings.Join(blockers, "; "))
			if _, err := p.append(ctx, log, IdentityPipeline, "Rejected: "+res.Reason+".", models.DecisionRejected); err != nil {
				return nil, err
			}
			res.move(models.StateRejectedFinal)
			p.logger.Info("content rejected", "rounds", round+1, "blockers", len(blockers))
			return res, nil
		}

		if ctx.Err() != nil {
			return p.cancel(ctx, res, round+1, fmt.Sprintf("round %d", round+1), log)
		}

		res.move(models.StateRevising)
		next, err := p.revise(ctx, rr, limits)
		if err != nil {
			res.Reason = fmt.Sprintf("composer failed during revision %d: %v", round+1, err)
			if _, aerr := p.append(ctx, log, IdentityComposer, "Rejected: "+res.Reason+".", models.DecisionRejected); aerr != nil {
				return nil, aerr
			}
			res.move(models.StateRejectedFinal)
			return res, nil
		}
		drafts = next
		if _, err := p.append(ctx, log, IdentityComposer, revisionMessage(round+1, drafts), models.DecisionReviewed); err != nil {
			return nil, err
		}
	}
}

func (r *Result) move(s models.PipelineState) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}

// append writes an entry even when ctx is cancelled; dropping the record of
// a decision that was already made is never acceptable.
func (p *Pipeline) append(ctx context.Context, log *audit.Log, identity, msg string, d models.Decision) (models.AuditEntry, error) {
	e, err := log.Append(context.WithoutCancel(ctx), identity, msg, d)
	if err != nil {
		return e, fmt.Errorf("append audit entry: %w", err)
	}
	return e, nil
}

func (p *Pipeline) cancel(ctx context.Context, res *Result, round int, after string, log *audit.Log) (*Result, error) {
	where := fmt.Sprintf("before round %d completed", round)
	if after != "" {
		where = "after " + after
	}
	res.Cancelled = true
	// A cancelled run ends rejected, so its verdict is never compliant.
	res.Verdict.Overall = models.OverallNonCompliant
	res.Reason = fmt.Sprintf("review cancelled %s: %v", where, context.Cause(ctx))
	if _, err := p.append(ctx, log, IdentityPipeline, "Rejected: "+res.Reason+".", models.DecisionRejected); err != nil {
		return nil, err
	}
	res.move(models.StateRejectedFinal)
	p.logger.Warn("review cancelled", "round", round, "after", after)
	return res, nil
}

// blockersOf lists what prevents approval in a round, in stage order.
func blockersOf(rr *Round) []string {
	var out []string
	for _, dr := range rr.Reviews {
		for _, sr := range dr.Stages {
			if !sr.Outcome.Approved() {
				out = append(out, fmt.Sprintf("stage %s%s (%s)", sr.Outcome.Stage, channelSuffix(sr.Channel), issueKeys(sr.Outcome.Issues)))
			}
		}
	}
	for _, dr := range rr.Reviews {
		for _, wc := range dr.WordCounts {
			if !wc.WithinLimit {
				out = append(out, fmt.Sprintf("channel %s (%d words, limit %d)", wc.Channel, wc.Count, *wc.Limit))
			}
		}
	}
	return out
}

func issueKeys(issues []models.Issue) string {
	var keys []string
	for _, is := range issues {
		if is.Severity == models.SeverityCritical {
			keys = append(keys, is.RuleKey)
		}
	}
	if len(keys) == 0 {
		return "rejected"
	}
	return strings.Join(keys, ", ")
}

func channelSuffix(ch models.Channel) string {
	if ch == "" {
		return ""
	}
	return "[" + string(ch) + "]"
}

func revisionMessage(n int, drafts []Draft) string {
	parts := make([]string, len(drafts))
	for i, d := range drafts {
		name := string(d.Channel)
		if name == "" {
			name = "all channels"
		}
		parts[i] = fmt.Sprintf("%s (%d words)", name, len(strings.Fields(d.Content.Text)))
	}
	return fmt.Sprintf("Revision %d submitted for %s.", n, strings.Join(parts, ", "))
}
