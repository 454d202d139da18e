// Package rules holds the static compliance rule catalog and its
// substring-based issue detection.
package rules

import (
	"strings"

	"github.com/joescharf/comply/internal/models"
)

// Catalog is an immutable, ordered set of rule definitions. It is safe for
// concurrent use without locking; adding a rule means building a new Catalog.
type Catalog struct {
	rules []models.RuleDefinition
	index map[string]int
	lower [][]string // lowercased trigger patterns, parallel to rules
}

// NewCatalog copies defs into a new catalog. Use Parse or Load for
// validation of untrusted definitions.
func NewCatalog(defs []models.RuleDefinition) *Catalog {
	c := &Catalog{
		rules: make([]models.RuleDefinition, len(defs)),
		index: make(map[string]int, len(defs)),
		lower: make([][]string, len(defs)),
	}
	for i, d := range defs {
		d.TriggerPatterns = append([]string(nil), d.TriggerPatterns...)
		d.SuggestedFixes = append([]string(nil), d.SuggestedFixes...)
		c.rules[i] = d
		c.index[d.Key] = i
		pats := make([]string, len(d.TriggerPatterns))
		for j, p := range d.TriggerPatterns {
			pats[j] = strings.ToLower(p)
		}
		c.lower[i] = pats
	}
	return c
}

// Evaluate returns one Issue per rule whose trigger patterns occur in content,
// case-insensitively, in catalog order. Only the first matching pattern of a
// rule is reported. Patterns are plain substrings, not regular expressions.
func (c *Catalog) Evaluate(content string) []models.Issue {
	if content == "" {
		return nil
	}
	haystack := strings.ToLower(content)
	var issues []models.Issue
	for i, rule := range c.rules {
		for j, pat := range c.lower[i] {
			if pat == "" || !strings.Contains(haystack, pat) {
				continue
			}
			issues = append(issues, models.Issue{
				RuleKey:     rule.Key,
				MatchedText: rule.TriggerPatterns[j],
				Severity:    rule.Severity,
				Citation:    rule.RegulationCitation,
				Fixes:       append([]string(nil), rule.SuggestedFixes...),
			})
			break
		}
	}
	return issues
}

// Get returns a copy of the rule with the given key.
func (c *Catalog) Get(key string) (models.RuleDefinition, bool) {
	i, ok := c.index[key]
	if !ok {
		return models.RuleDefinition{}, false
	}
	return copyRule(c.rules[i]), true
}

// All returns copies of every rule in catalog order.
func (c *Catalog) All() []models.RuleDefinition {
	out := make([]models.RuleDefinition, len(c.rules))
	for i, r := range c.rules {
		out[i] = copyRule(r)
	}
	return out
}

// Len returns the number of rules.
func (c *Catalog) Len() int { return len(c.rules) }

// Subset returns a new catalog holding only the named rules, in catalog
// order. Unknown keys are ignored.
func (c *Catalog) Subset(keys ...string) *Catalog {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var defs []models.RuleDefinition
	for _, r := range c.rules {
		if want[r.Key] {
			defs = append(defs, r)
		}
	}
	return NewCatalog(defs)
}

func copyRule(r models.RuleDefinition) models.RuleDefinition {
	r.TriggerPatterns = append([]string(nil), r.TriggerPatterns...)
	r.SuggestedFixes = append([]string(nil), r.SuggestedFixes...)
	return r
}
