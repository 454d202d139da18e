package runs

import (
	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/pipeline"
	"github.com/joescharf/comply/internal/rules"
	"github.com/joescharf/comply/internal/verdict"
	"github.com/joescharf/comply/internal/wordcount"
)

// CheckResult is a catalog-only assessment: no reviewer, no audit log.
type CheckResult struct {
	Verdict    models.Verdict                         `json:"verdict"`
	Reductions map[models.Channel]wordcount.Reduction `json:"reductions,omitempty"`
}

// Check evaluates item against the full catalog and its word limits.
func Check(set *rules.Set, item models.ContentItem) (*CheckResult, error) {
	if err := pipeline.Validate(item); err != nil {
		return nil, err
	}
	issues := set.Catalog.Evaluate(item.Text)
	counts := wordcount.Validate(item.Text, item.ChannelLimits)

	res := &CheckResult{Verdict: verdict.Aggregate(issues, counts)}
	for _, wc := range counts {
		if wc.WithinLimit {
			continue
		}
		if res.Reductions == nil {
			res.Reductions = make(map[models.Channel]wordcount.Reduction)
		}
		res.Reductions[wc.Channel] = wordcount.SuggestReduction(item.Text, *wc.Limit)
	}
	return res, nil
}
