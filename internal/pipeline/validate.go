package pipeline

import (
	"strings"
	"unicode/utf8"

	"github.com/joescharf/comply/internal/apperr"
	"github.com/joescharf/comply/internal/models"
)

// Validate rejects content the pipeline cannot review. It runs before any
// audit entry is written.
func Validate(item models.ContentItem) error {
	const op = "validate content"
	if !utf8.ValidString(item.Text) {
		return apperr.InvalidInput(op, "content is not valid UTF-8 text")
	}
	if strings.ContainsRune(item.Text, 0) {
		return apperr.InvalidInput(op, "content contains NUL bytes")
	}
	if strings.TrimSpace(item.Text) == "" {
		return apperr.InvalidInput(op, "content is empty")
	}
	for _, ch := range item.ChannelLimits.Channels() {
		if strings.TrimSpace(string(ch)) == "" {
			return apperr.InvalidInput(op, "channel name is empty")
		}
		if l := item.ChannelLimits[ch]; l != nil && *l <= 0 {
			return apperr.InvalidInput(op, "word limit for %s must be positive, got %d", ch, *l)
		}
	}
	return nil
}
