package models

import (
	"strings"
	"time"
)

// Decision is the outcome recorded for an audit entry.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
	DecisionReviewed Decision = "REVIEWED"
)

// ParseDecision validates a decision name, case-insensitively.
func ParseDecision(s string) (Decision, bool) {
	switch d := Decision(strings.ToUpper(strings.TrimSpace(s))); d {
	case DecisionApproved, DecisionRejected, DecisionReviewed:
		return d, true
	}
	return "", false
}

// AuditEntry is one immutable record in an audit log. SequenceNumber is
// assigned by the log at append time.
type AuditEntry struct {
	SequenceNumber   int64
	Timestamp        time.Time
	ReviewerIdentity string
	RawMessage       string
	Decision         Decision
	Citations        []string
	Supersedes       int64 // 0 = none
	PrevHash         string
	Hash             string
}
