// Package runs persists pipeline executions and their audit logs.
package runs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joescharf/comply/internal/audit"
	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/pipeline"
	"github.com/joescharf/comply/internal/store"
)

// ErrNoPipeline is returned by Review on a read-only Service.
var ErrNoPipeline = errors.New("no review pipeline configured")

// Service runs the pipeline against a store. Every run gets its own audit
// log whose entries are written to the store as they are appended.
type Service struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// NewService creates a Service. p may be nil for read-only use (listing,
// audit export, verification and corrections).
func NewService(st store.Store, p *pipeline.Pipeline, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, pipeline: p, logger: logger}
}

// Review validates item, records a new run, and drives it to a terminal
// state. Invalid input is rejected before anything is stored.
func (s *Service) Review(ctx context.Context, item models.ContentItem) (*models.Run, *pipeline.Result, error) {
	if s.pipeline == nil {
		return nil, nil, ErrNoPipeline
	}
	if err := pipeline.Validate(item); err != nil {
		return nil, nil, err
	}

	run := &models.Run{
		State:   models.StateDrafted,
		Content: item.Text,
		Limits:  item.ChannelLimits.Clone(),
	}
	if err := s.store.CreateRun(ctx, run); err != nil {
		return nil, nil, err
	}
	logger := s.logger.With("run", run.ID)
	logger.Info("review started", "channels", len(run.Limits))

	log := s.pipeline.NewLog(audit.WithSink(s.sink(run.ID)))
	res, err := s.pipeline.Run(ctx, item, log)
	if err != nil {
		run.Reason = "aborted: " + err.Error()
		if uerr := s.store.UpdateRun(context.WithoutCancel(ctx), run); uerr != nil {
			logger.Error("record aborted run", "error", uerr)
		}
		return run, nil, err
	}

	run.State = res.State
	run.Rounds = len(res.Rounds)
	run.Reason = res.Reason
	if len(res.Rounds) > 0 {
		v := res.Verdict
		run.Verdict = &v
	}
	run.Drafts = draftsOf(res.Drafts)
	if err := s.store.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		return run, res, err
	}
	logger.Info("review finished", "state", run.State, "rounds", run.Rounds)
	return run, res, nil
}

func (s *Service) sink(runID string) audit.Sink {
	return audit.SinkFunc(func(ctx context.Context, e *models.AuditEntry) error {
		return s.store.AppendAuditEntry(ctx, runID, e)
	})
}

func draftsOf(drafts []pipeline.Draft) map[models.Channel]string {
	if len(drafts) == 0 {
		return nil
	}
	out := make(map[models.Channel]string, len(drafts))
	for _, d := range drafts {
		ch := d.Channel
		if ch == "" {
			ch = models.ChannelDefault
		}
		out[ch] = d.Content.Text
	}
	return out
}

// Get returns a run.
func (s *Service) Get(ctx context.Context, id string) (*models.Run, error) {
	return s.store.GetRun(ctx, id)
}

// List returns runs, newest first.
func (s *Service) List(ctx context.Context, filter store.RunListFilter) ([]*models.Run, error) {
	return s.store.ListRuns(ctx, filter)
}

// Audit returns a run's audit entries in sequence order.
func (s *Service) Audit(ctx context.Context, id string) ([]models.AuditEntry, error) {
	if _, err := s.store.GetRun(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListAuditEntries(ctx, id)
}

// Verify checks the integrity of a run's stored audit log.
func (s *Service) Verify(ctx context.Context, id string) (audit.VerifyResult, error) {
	entries, err := s.Audit(ctx, id)
	if err != nil {
		return audit.VerifyResult{}, err
	}
	return audit.Verify(entries), nil
}

// Correct appends an entry superseding entry seq of run id. The stored log
// must verify cleanly first.
func (s *Service) Correct(ctx context.Context, id string, seq int64, identity, message string, decision models.Decision, citationPrefix string) (models.AuditEntry, error) {
	entries, err := s.Audit(ctx, id)
	if err != nil {
		return models.AuditEntry{}, err
	}
	log, err := audit.Restore(citationPrefix, entries, audit.WithSink(s.sink(id)))
	if err != nil {
		return models.AuditEntry{}, err
	}
	e, err := log.Correct(ctx, seq, identity, message, decision)
	if err != nil {
		return models.AuditEntry{}, err
	}
	s.logger.Info("audit entry corrected", "run", id, "supersedes", seq, "sequence", e.SequenceNumber)
	return e, nil
}
