package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/comply/internal/audit"
	"github.com/joescharf/comply/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	err = s.Migrate(context.Background())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "subdir", "test.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "subdir"))
	assert.NoError(t, err, "should create parent directory")
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Running migrate again should be a no-op
	err := s.Migrate(ctx)
	assert.NoError(t, err)
}

// --- Runs ---

func TestRunCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &models.Run{
		State:   models.StateDrafted,
		Content: "Guaranteed growth!",
		Limits:  models.ChannelLimits{models.ChannelMobile: models.Limit(30), models.ChannelDesktop: nil},
	}
	require.NoError(t, s.CreateRun(ctx, run))
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateDrafted, got.State)
	assert.Equal(t, "Guaranteed growth!", got.Content)
	require.Len(t, got.Limits, 2)
	assert.Equal(t, 30, *got.Limits[models.ChannelMobile])
	assert.Nil(t, got.Limits[models.ChannelDesktop])
	assert.Nil(t, got.Verdict)
	assert.Nil(t, got.Drafts)

	// Update
	run.State = models.StateRejectedFinal
	run.Rounds = 2
	run.Reason = "round limit 1 reached"
	run.Drafts = map[models.Channel]string{models.ChannelMobile: "Short copy"}
	run.Verdict = &models.Verdict{
		Overall: models.OverallNonCompliant,
		Issues:  []models.Issue{{RuleKey: "absolute_claims", Severity: models.SeverityCritical, MatchedText: "guaranteed"}},
	}
	require.NoError(t, s.UpdateRun(ctx, run))

	got, err = s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateRejectedFinal, got.State)
	assert.Equal(t, 2, got.Rounds)
	assert.Equal(t, "round limit 1 reached", got.Reason)
	assert.Equal(t, "Short copy", got.Drafts[models.ChannelMobile])
	require.NotNil(t, got.Verdict)
	assert.Equal(t, models.OverallNonCompliant, got.Verdict.Overall)
	assert.Equal(t, "absolute_claims", got.Verdict.Issues[0].RuleKey)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.UpdateRun(context.Background(), &models.Run{ID: "missing", State: models.StateApproved})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, st := range []models.PipelineState{models.StateApproved, models.StateRejectedFinal, models.StateApproved} {
		run := &models.Run{State: st, Content: "copy"}
		require.NoError(t, s.CreateRun(ctx, run), "run %d", i)
	}

	all, err := s.ListRuns(ctx, RunListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	approved, err := s.ListRuns(ctx, RunListFilter{State: models.StateApproved})
	require.NoError(t, err)
	assert.Len(t, approved, 2)

	limited, err := s.ListRuns(ctx, RunListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// --- Audit entries ---

func TestAuditEntries_RoundTripVerifies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := &models.Run{State: models.StateUnderReview, Content: "copy"}
	require.NoError(t, s.CreateRun(ctx, run))

	base := time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.UTC)
	n := 0
	clock := func() time.Time { n++; return base.Add(time.Duration(n) * time.Second) }
	log := audit.NewLog("FCA", audit.WithClock(clock), audit.WithSink(audit.SinkFunc(
		func(ctx context.Context, e *models.AuditEntry) error { return s.AppendAuditEntry(ctx, run.ID, e) })))

	_, err := log.Append(ctx, "FCA_Text_Validator", "Breaches FCA-COBS-4.2.1R. REJECTED", models.DecisionRejected)
	require.NoError(t, err)
	_, err = log.Append(ctx, "Pipeline", "Rejected: round limit 0 reached.", models.DecisionRejected)
	require.NoError(t, err)

	got, err := s.ListAuditEntries(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i, want := range log.Entries() {
		assert.Equal(t, want.Hash, got[i].Hash)
		assert.True(t, want.Timestamp.Equal(got[i].Timestamp))
		assert.Equal(t, want.Citations, got[i].Citations)
	}
	assert.True(t, audit.Verify(got).Valid)

	restored, err := audit.Restore("FCA", got)
	require.NoError(t, err)
	assert.Equal(t, 2, restored.Len())
}

func TestAuditEntries_DuplicateSequenceRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := &models.Run{State: models.StateUnderReview, Content: "copy"}
	require.NoError(t, s.CreateRun(ctx, run))

	e := &models.AuditEntry{SequenceNumber: 1, Timestamp: time.Now(), ReviewerIdentity: "a", Decision: models.DecisionApproved, Hash: "h"}
	require.NoError(t, s.AppendAuditEntry(ctx, run.ID, e))
	assert.Error(t, s.AppendAuditEntry(ctx, run.ID, e))
}

func TestAuditEntries_AppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	run := &models.Run{State: models.StateUnderReview, Content: "copy"}
	require.NoError(t, s.CreateRun(ctx, run))
	e := &models.AuditEntry{SequenceNumber: 1, Timestamp: time.Now(), ReviewerIdentity: "a", Decision: models.DecisionApproved, Hash: "h"}
	require.NoError(t, s.AppendAuditEntry(ctx, run.ID, e))

	_, err := s.db.ExecContext(ctx, `UPDATE audit_entries SET raw_message = 'edited'`)
	assert.ErrorContains(t, err, "append-only")
	_, err = s.db.ExecContext(ctx, `DELETE FROM audit_entries`)
	assert.ErrorContains(t, err, "append-only")
}

func TestAuditEntries_UnknownRun(t *testing.T) {
	s := newTestStore(t)
	e := &models.AuditEntry{SequenceNumber: 1, Timestamp: time.Now(), Decision: models.DecisionApproved, Hash: "h"}
	assert.Error(t, s.AppendAuditEntry(context.Background(), "missing", e))
}

func TestListAuditEntries_Empty(t *testing.T) {
	s := newTestStore(t)
	got, err := s.ListAuditEntries(context.Background(), "none")
	require.NoError(t, err)
	assert.Empty(t, got)
}
