package models

import (
	"fmt"
	"strings"
)

// Severity ranks an issue. Critical > Moderate > Minor.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"
)

// Rank orders severities for aggregation; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// ParseSeverity accepts the lowercase or capitalized severity name.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityCritical, SeverityModerate, SeverityMinor:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q (use: critical, moderate, minor)", s)
	}
}

// RuleDefinition is a static compliance rule with its trigger patterns.
type RuleDefinition struct {
	Key                string   `json:"key" yaml:"key"`
	Description        string   `json:"description" yaml:"description"`
	TriggerPatterns    []string `json:"trigger_patterns" yaml:"triggers"`
	Severity           Severity `json:"severity" yaml:"severity"`
	RegulationCitation string   `json:"regulation_citation" yaml:"citation"`
	SuggestedFixes     []string `json:"suggested_fixes" yaml:"fixes"`
}

// Issue is a single rule match against a piece of content.
type Issue struct {
	RuleKey     string   `json:"rule_key"`
	MatchedText string   `json:"matched_text"`
	Severity    Severity `json:"severity"`
	Citation    string   `json:"citation"`
	Fixes       []string `json:"fixes"`
	Stage       string   `json:"stage,omitempty"`
	Channel     Channel  `json:"channel,omitempty"`
}

// Synthetic rule keys raised by the pipeline rather than the catalog.
const (
	RuleUpstreamFailure  = "upstream_failure"
	RuleReviewerRejected = "reviewer_rejected"
)
