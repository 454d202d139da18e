package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/comply/internal/apperr"
	"github.com/joescharf/comply/internal/models"
)

func fixedClock() func() time.Time {
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	var n int
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestAppend_AssignsSequence(t *testing.T) {
	ctx := context.Background()
	l := NewLog("FCA", WithClock(fixedClock()))

	e1, err := l.Append(ctx, "FCA_Text_Validator", "Breaches FCA COBS 4.2.1R, see FCA PRIN 2.1.", models.DecisionRejected)
	require.NoError(t, err)
	e2, err := l.Append(ctx, "Risk_Disclosure_Checker", "Looks fine.", models.DecisionApproved)
	require.NoError(t, err)

	assert.Equal(t, int64(1), e1.SequenceNumber)
	assert.Equal(t, int64(2), e2.SequenceNumber)
	assert.Equal(t, []string{"FCA"}, e1.Citations, "tokens are whitespace delimited")
	assert.Empty(t, e2.Citations)
	assert.Equal(t, e1.Hash, e2.PrevHash)
	assert.True(t, e2.Timestamp.After(e1.Timestamp))
	assert.Equal(t, time.UTC, e1.Timestamp.Location())
}

func TestEntries_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	l := NewLog("COBS")
	_, err := l.Append(ctx, "r", "cites COBS4.2.1R", models.DecisionReviewed)
	require.NoError(t, err)

	snap := l.Entries()
	snap[0].RawMessage = "tampered"
	snap[0].Citations[0] = "tampered"
	snap = append(snap, models.AuditEntry{SequenceNumber: 99})

	fresh := l.Entries()
	require.Len(t, fresh, 1)
	assert.Equal(t, "cites COBS4.2.1R", fresh[0].RawMessage)
	assert.Equal(t, []string{"COBS4.2.1R"}, fresh[0].Citations)
	assert.True(t, Verify(fresh).Valid)
}

func TestAppend_ConcurrentGapFree(t *testing.T) {
	ctx := context.Background()
	l := NewLog("FCA")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.Append(ctx, "stage", "FCA-COBS-4.2 noted", models.DecisionReviewed)
		}()
	}
	wg.Wait()

	entries := l.Entries()
	require.Len(t, entries, 50)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.SequenceNumber)
	}
	assert.True(t, Verify(entries).Valid)
}

func TestAppend_SinkFailureConsumesNoSequence(t *testing.T) {
	ctx := context.Background()
	fail := true
	var persisted []int64
	sink := SinkFunc(func(_ context.Context, e *models.AuditEntry) error {
		if fail {
			return errors.New("disk full")
		}
		persisted = append(persisted, e.SequenceNumber)
		return nil
	})
	l := NewLog("FCA", WithSink(sink))

	_, err := l.Append(ctx, "stage", "one", models.DecisionReviewed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 0, l.Len())

	fail = false
	e, err := l.Append(ctx, "stage", "two", models.DecisionReviewed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), e.SequenceNumber)
	assert.Equal(t, []int64{1}, persisted)
}

func TestCorrect(t *testing.T) {
	ctx := context.Background()
	l := NewLog("FCA")
	_, err := l.Append(ctx, "FCA_Text_Validator", "approved", models.DecisionApproved)
	require.NoError(t, err)

	c, err := l.Correct(ctx, 1, "compliance-officer", "Overturned: FCA COBS 4.2.1R applies", models.DecisionRejected)
	require.NoError(t, err)
	assert.Equal(t, int64(2), c.SequenceNumber)
	assert.Equal(t, int64(1), c.Supersedes)

	entries := l.Entries()
	assert.Equal(t, models.DecisionApproved, entries[0].Decision, "original entry untouched")
	assert.True(t, Verify(entries).Valid)

	_, err = l.Correct(ctx, 7, "x", "y", models.DecisionReviewed)
	assert.True(t, apperr.IsInvalidInput(err))
	_, err = l.Correct(ctx, 0, "x", "y", models.DecisionReviewed)
	assert.Error(t, err)
	assert.Equal(t, 2, l.Len())
}

func TestRestore_ContinuesChain(t *testing.T) {
	ctx := context.Background()
	l := NewLog("FCA")
	for i := 0; i < 3; i++ {
		_, err := l.Append(ctx, "stage", "entry", models.DecisionReviewed)
		require.NoError(t, err)
	}

	restored, err := Restore("FCA", l.Entries())
	require.NoError(t, err)
	e, err := restored.Append(ctx, "stage", "after restart", models.DecisionReviewed)
	require.NoError(t, err)
	assert.Equal(t, int64(4), e.SequenceNumber)
	assert.True(t, Verify(restored.Entries()).Valid)
}

func TestRestore_RejectsTampered(t *testing.T) {
	ctx := context.Background()
	l := NewLog("FCA")
	_, err := l.Append(ctx, "stage", "entry", models.DecisionReviewed)
	require.NoError(t, err)

	entries := l.Entries()
	entries[0].RawMessage = "rewritten history"
	_, err = Restore("FCA", entries)
	assert.Error(t, err)
}
