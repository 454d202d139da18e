package models

// WordCountResult reports one channel's word count against its limit.
type WordCountResult struct {
	Channel     Channel `json:"channel"`
	Count       int     `json:"count"`
	Limit       *int    `json:"limit"`
	WithinLimit bool    `json:"within_limit"`
	Excess      int     `json:"excess"`
	Status      string  `json:"status"`
}

// Overall is the aggregated compliance outcome.
type Overall string

const (
	OverallCompliant    Overall = "compliant"
	OverallNonCompliant Overall = "non_compliant"
)

// Verdict is derived from one round's issues and word counts.
type Verdict struct {
	Overall          Overall           `json:"overall"`
	Issues           []Issue           `json:"issues"`
	WordCountResults []WordCountResult `json:"word_count_results"`
}

// Compliant reports whether the verdict is Compliant.
func (v Verdict) Compliant() bool { return v.Overall == OverallCompliant }
