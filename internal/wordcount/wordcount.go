// Package wordcount measures content length against per-channel word limits.
package wordcount

import (
	"fmt"
	"strings"

	"github.com/joescharf/comply/internal/models"
)

// Count returns the number of maximal non-whitespace runs in text.
// Punctuation is not stripped.
func Count(text string) int {
	return len(strings.Fields(text))
}

// Validate reports one result per configured channel, ordered by channel
// name. Channels without a limit are always within limit.
func Validate(text string, limits models.ChannelLimits) []models.WordCountResult {
	count := Count(text)
	results := make([]models.WordCountResult, 0, len(limits))
	for _, ch := range limits.Channels() {
		results = append(results, result(ch, count, limits[ch]))
	}
	return results
}

// ValidateChannel reports a single channel's result.
func ValidateChannel(text string, ch models.Channel, limit *int) models.WordCountResult {
	return result(ch, Count(text), limit)
}

func result(ch models.Channel, count int, limit *int) models.WordCountResult {
	r := models.WordCountResult{Channel: ch, Count: count, WithinLimit: true, Status: "OK"}
	if limit == nil {
		return r
	}
	r.Limit = models.Limit(*limit)
	if count > *limit {
		r.WithinLimit = false
		r.Excess = count - *limit
		r.Status = fmt.Sprintf("Exceeds limit by %d words", r.Excess)
	}
	return r
}

// Reduction bands, chosen by the share of words that must go.
const (
	BandMinor    = "minor trim"
	BandModerate = "moderate trim, drop secondary detail"
	BandRewrite  = "rewrite around core message only"
)

// Reduction describes how far content is over a target word count.
type Reduction struct {
	NeedsReduction   bool    `json:"needs_reduction"`
	CurrentWords     int     `json:"current_words"`
	TargetWords      int     `json:"target_words"`
	ExcessWords      int     `json:"excess_words"`
	ExcessRatio      float64 `json:"excess_ratio"`
	BandedSuggestion string  `json:"banded_suggestion"`
}

// SuggestReduction picks a band by excess ratio (excess / current words):
// below 10% minor, 10% up to 25% moderate, 25% and above a rewrite.
func SuggestReduction(text string, target int) Reduction {
	current := Count(text)
	r := Reduction{CurrentWords: current, TargetWords: target}
	if current <= target {
		return r
	}
	r.NeedsReduction = true
	r.ExcessWords = current - target
	r.ExcessRatio = float64(r.ExcessWords) / float64(current)
	switch {
	case r.ExcessRatio < 0.10:
		r.BandedSuggestion = BandMinor
	case r.ExcessRatio < 0.25:
		r.BandedSuggestion = BandModerate
	default:
		r.BandedSuggestion = BandRewrite
	}
	return r
}
