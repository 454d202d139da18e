// Package audit keeps the append-only, citation-bearing record of every
// review decision.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joescharf/comply/internal/apperr"
	"github.com/joescharf/comply/internal/models"
)

// Sink durably persists entries as they are appended. Append on the Log
// fails, and consumes no sequence number, if the sink fails.
type Sink interface {
	AppendAuditEntry(ctx context.Context, e *models.AuditEntry) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e *models.AuditEntry) error

func (f SinkFunc) AppendAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	return f(ctx, e)
}

// Option configures a Log.
type Option func(*Log)

// WithSink persists every appended entry through s.
func WithSink(s Sink) Option {
	return func(l *Log) { l.sink = s }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// Log is an append-only audit log. Appends are serialized, so sequence
// numbers are gap-free and strictly increasing within one Log.
type Log struct {
	mu       sync.Mutex
	prefix   string
	entries  []models.AuditEntry
	nextSeq  int64
	lastHash string
	sink     Sink
	now      func() time.Time
}

// NewLog creates an empty log extracting citations that start with prefix.
func NewLog(citationPrefix string, opts ...Option) *Log {
	l := &Log{
		prefix:  citationPrefix,
		nextSeq: 1,
		now:     time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Restore rebuilds a log from previously persisted entries so appends
// continue the sequence and hash chain. Entries must verify cleanly.
func Restore(citationPrefix string, entries []models.AuditEntry, opts ...Option) (*Log, error) {
	if res := Verify(entries); !res.Valid {
		return nil, fmt.Errorf("restore audit log: %s", res.Problems[0])
	}
	l := NewLog(citationPrefix, opts...)
	l.entries = cloneEntries(entries)
	if n := len(entries); n > 0 {
		l.nextSeq = entries[n-1].SequenceNumber + 1
		l.lastHash = entries[n-1].Hash
	}
	return l, nil
}

// Append records a decision. The sequence number, timestamp, citations and
// hash are assigned here and nowhere else.
func (l *Log) Append(ctx context.Context, identity, message string, decision models.Decision) (models.AuditEntry, error) {
	return l.append(ctx, identity, message, decision, 0)
}

// Correct appends an entry superseding an earlier one. The earlier entry is
// left untouched.
func (l *Log) Correct(ctx context.Context, supersedes int64, identity, message string, decision models.Decision) (models.AuditEntry, error) {
	l.mu.Lock()
	known := supersedes > 0 && supersedes < l.nextSeq
	l.mu.Unlock()
	if !known {
		return models.AuditEntry{}, apperr.InvalidInput("correct audit entry", "no entry with sequence number %d", supersedes)
	}
	return l.append(ctx, identity, message, decision, supersedes)
}

func (l *Log) append(ctx context.Context, identity, message string, decision models.Decision, supersedes int64) (models.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := models.AuditEntry{
		SequenceNumber:   l.nextSeq,
		Timestamp:        l.now().UTC(),
		ReviewerIdentity: identity,
		RawMessage:       message,
		Decision:         decision,
		Citations:        ExtractCitations(message, l.prefix),
		Supersedes:       supersedes,
		PrevHash:         l.lastHash,
	}
	e.Hash = HashEntry(&e)

	if l.sink != nil {
		if err := l.sink.AppendAuditEntry(ctx, &e); err != nil {
			return models.AuditEntry{}, fmt.Errorf("persist audit entry %d: %w", e.SequenceNumber, err)
		}
	}

	l.entries = append(l.entries, e)
	l.nextSeq++
	l.lastHash = e.Hash
	return cloneEntry(e), nil
}

// Entries returns a snapshot copy of the log in sequence order.
func (l *Log) Entries() []models.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneEntries(l.entries)
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func cloneEntries(in []models.AuditEntry) []models.AuditEntry {
	out := make([]models.AuditEntry, len(in))
	for i, e := range in {
		out[i] = cloneEntry(e)
	}
	return out
}

func cloneEntry(e models.AuditEntry) models.AuditEntry {
	e.Citations = append([]string(nil), e.Citations...)
	return e
}
