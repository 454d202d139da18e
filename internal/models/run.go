package models

import "time"

// PipelineState is a state of the orchestration state machine.
type PipelineState string

const (
	StateDrafted       PipelineState = "drafted"
	StateUnderReview   PipelineState = "under_review"
	StateNeedsRevision PipelineState = "needs_revision"
	StateRevising      PipelineState = "revising"
	StateApproved      PipelineState = "approved"
	StateRejectedFinal PipelineState = "rejected_final"
)

// Terminal reports whether no transitions leave the state.
func (s PipelineState) Terminal() bool {
	return s == StateApproved || s == StateRejectedFinal
}

// Run is one persisted pipeline execution. Drafts holds the final copy per
// channel; a shared draft is keyed by ChannelDefault.
type Run struct {
	ID        string             `json:"id"`
	State     PipelineState      `json:"state"`
	Rounds    int                `json:"rounds"`
	Content   string             `json:"content"`
	Limits    ChannelLimits      `json:"limits,omitempty"`
	Verdict   *Verdict           `json:"verdict,omitempty"`
	Drafts    map[Channel]string `json:"drafts,omitempty"`
	Reason    string             `json:"reason,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}
