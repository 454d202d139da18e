package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/joescharf/comply/internal/models"
)

// Verdict prints the overall outcome, the issues table and word counts.
func (u *UI) Verdict(v models.Verdict) error {
	fmt.Fprintf(u.Out, "Verdict: %s\n", OverallColor(v.Overall))

	if len(v.Issues) > 0 {
		fmt.Fprintln(u.Out)
		table := u.Table([]string{"Severity", "Rule", "Matched", "Citation", "Stage"})
		for _, is := range v.Issues {
			stage := is.Stage
			if is.Channel != "" {
				stage += "[" + string(is.Channel) + "]"
			}
			if err := table.Append([]string{SeverityColor(is.Severity), is.RuleKey, is.MatchedText, is.Citation, stage}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}

	if len(v.WordCountResults) > 0 {
		fmt.Fprintln(u.Out)
		table := u.Table([]string{"Channel", "Words", "Limit", "Status"})
		for _, wc := range v.WordCountResults {
			limit := "-"
			if wc.Limit != nil {
				limit = strconv.Itoa(*wc.Limit)
			}
			status := green(wc.Status)
			if !wc.WithinLimit {
				status = red(wc.Status)
			}
			if err := table.Append([]string{string(wc.Channel), strconv.Itoa(wc.Count), limit, status}); err != nil {
				return err
			}
		}
		if err := table.Render(); err != nil {
			return err
		}
	}
	return nil
}

// AuditEntries prints one row per entry, oldest first.
func (u *UI) AuditEntries(entries []models.AuditEntry) error {
	table := u.Table([]string{"Seq", "Time", "Reviewer", "Decision", "Citations", "Message"})
	for _, e := range entries {
		seq := strconv.FormatInt(e.SequenceNumber, 10)
		if e.Supersedes > 0 {
			seq += fmt.Sprintf(" (supersedes %d)", e.Supersedes)
		}
		if err := table.Append([]string{
			seq,
			e.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			e.ReviewerIdentity,
			DecisionColor(e.Decision),
			strings.Join(e.Citations, ", "),
			firstLine(e.RawMessage, 60),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

// firstLine returns the first line of s, truncated to max runes.
func firstLine(s string, max int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i] + " ..."
	}
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
