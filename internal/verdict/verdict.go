// Package verdict aggregates issues and word counts into a Verdict.
package verdict

import (
	"sort"

	"github.com/joescharf/comply/internal/models"
)

// Aggregate derives a Verdict. Issues are sorted by severity, most severe
// first, keeping discovery order within a severity. Overall is
// NonCompliant iff some issue is Critical or some channel is over its limit.
func Aggregate(issues []models.Issue, counts []models.WordCountResult) models.Verdict {
	sorted := make([]models.Issue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
	})

	wc := make([]models.WordCountResult, len(counts))
	copy(wc, counts)

	v := models.Verdict{
		Overall:          models.OverallCompliant,
		Issues:           sorted,
		WordCountResults: wc,
	}
	if HasCritical(sorted) || !WithinLimits(wc) {
		v.Overall = models.OverallNonCompliant
	}
	return v
}

// HasCritical reports whether any issue is Critical.
func HasCritical(issues []models.Issue) bool {
	for _, is := range issues {
		if is.Severity == models.SeverityCritical {
			return true
		}
	}
	return false
}

// WithinLimits reports whether every channel is within its limit.
func WithinLimits(counts []models.WordCountResult) bool {
	for _, r := range counts {
		if !r.WithinLimit {
			return false
		}
	}
	return true
}

// CountBySeverity tallies issues per severity.
func CountBySeverity(issues []models.Issue) map[models.Severity]int {
	out := make(map[models.Severity]int)
	for _, is := range issues {
		out[is.Severity]++
	}
	return out
}
