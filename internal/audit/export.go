package audit

import (
	"time"

	"github.com/joescharf/comply/internal/models"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// Record is the exported, serialized form of an audit entry.
type Record struct {
	SequenceNumber   int64    `json:"sequence_number"`
	Timestamp        string   `json:"timestamp"`
	ReviewerIdentity string   `json:"reviewer_identity"`
	Decision         string   `json:"decision"`
	Citations        []string `json:"citations"`
	Message          string   `json:"message"`
	Supersedes       int64    `json:"supersedes,omitempty"`
	Hash             string   `json:"hash,omitempty"`
}

// Export converts entries to records in sequence order.
func Export(entries []models.AuditEntry) []Record {
	out := make([]Record, len(entries))
	for i, e := range entries {
		out[i] = Record{
			SequenceNumber:   e.SequenceNumber,
			Timestamp:        e.Timestamp.UTC().Format(TimestampFormat),
			ReviewerIdentity: e.ReviewerIdentity,
			Decision:         string(e.Decision),
			Citations:        append([]string{}, e.Citations...),
			Message:          e.RawMessage,
			Supersedes:       e.Supersedes,
			Hash:             e.Hash,
		}
	}
	return out
}

// FormatTimestamp renders t the way exported records do.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}
