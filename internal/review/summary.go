package review

import (
	"context"
	"fmt"
	"strings"

	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/verdict"
)

// CitationToken renders a regulation citation as one whitespace-free token
// so audit citation extraction captures it whole ("FCA COBS 4.2.1R" becomes
// "FCA-COBS-4.2.1R").
func CitationToken(citation string) string {
	return strings.Join(strings.Fields(citation), "-")
}

// SummaryReviewer is a deterministic Reviewer that reports the issues it is
// given. It is used when no language model is configured. The reply never
// names the stage: audit entries carry the identity, and stage names may
// share the citation prefix.
type SummaryReviewer struct {
	// Stage limits rejection to issues raised by this stage; issues from
	// earlier stages are reported as context only. Empty counts every issue.
	Stage string
	// Marker is appended when the stage's own issues include a Critical one.
	// Empty means DefaultRejectionMarker.
	Marker string
}

// Review lists the context issues, ending the reply with the rejection
// marker when one of the stage's own issues is Critical.
func (r SummaryReviewer) Review(_ context.Context, content string, prior []models.Issue) (string, error) {
	var own, earlier []models.Issue
	for _, is := range prior {
		if r.Stage != "" && is.Stage != "" && is.Stage != r.Stage {
			earlier = append(earlier, is)
			continue
		}
		own = append(own, is)
	}

	var b strings.Builder
	if len(own) == 0 {
		b.WriteString("No rule matches found. APPROVED.")
	} else {
		fmt.Fprintf(&b, "%d finding(s).", len(own))
		writeIssues(&b, own)
	}
	if len(earlier) > 0 {
		fmt.Fprintf(&b, "\nEarlier stages raised %d finding(s):", len(earlier))
		writeIssues(&b, earlier)
	}

	if verdict.HasCritical(own) {
		marker := r.Marker
		if marker == "" {
			marker = DefaultRejectionMarker
		}
		b.WriteString("\n" + marker)
	}
	return b.String(), nil
}

func writeIssues(b *strings.Builder, issues []models.Issue) {
	for _, is := range issues {
		fmt.Fprintf(b, "\n- [%s] %s", is.Severity, is.RuleKey)
		if is.MatchedText != "" {
			fmt.Fprintf(b, " (found %q)", is.MatchedText)
		}
		if is.Citation != "" {
			fmt.Fprintf(b, " %s", CitationToken(is.Citation))
		}
	}
}
