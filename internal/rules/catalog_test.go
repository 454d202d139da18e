package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/comply/internal/models"
)

func testCatalog() *Catalog {
	return NewCatalog([]models.RuleDefinition{
		{
			Key:                "guarantee",
			Description:        "Guaranteed outcomes",
			TriggerPatterns:    []string{"guaranteed", "certain returns"},
			Severity:           models.SeverityCritical,
			RegulationCitation: "FCA COBS 4.2.1R",
			SuggestedFixes:     []string{"Remove the guarantee"},
		},
		{
			Key:                "rates",
			Description:        "Rate claims",
			TriggerPatterns:    []string{"high returns"},
			Severity:           models.SeverityModerate,
			RegulationCitation: "FCA COBS 4.5.2R",
		},
	})
}

func TestEvaluate_GuaranteedScenario(t *testing.T) {
	c := testCatalog()
	issues := c.Evaluate("Get guaranteed high returns with our premium savings account!")

	require.Len(t, issues, 2)
	assert.Equal(t, "guarantee", issues[0].RuleKey)
	assert.Equal(t, "guaranteed", issues[0].MatchedText)
	assert.Equal(t, models.SeverityCritical, issues[0].Severity)
	assert.Equal(t, "FCA COBS 4.2.1R", issues[0].Citation)
	assert.Equal(t, []string{"Remove the guarantee"}, issues[0].Fixes)
	assert.Equal(t, "rates", issues[1].RuleKey)
}

func TestEvaluate_CaseInsensitive(t *testing.T) {
	issues := testCatalog().Evaluate("GUARANTEED!")
	require.Len(t, issues, 1)
	assert.Equal(t, "guaranteed", issues[0].MatchedText, "matched_text reports the pattern")
}

func TestEvaluate_OneIssuePerRule(t *testing.T) {
	issues := testCatalog().Evaluate("guaranteed and certain returns, guaranteed again")
	require.Len(t, issues, 1)
	assert.Equal(t, "guaranteed", issues[0].MatchedText, "first pattern in declaration order wins")
}

func TestEvaluate_NotRegex(t *testing.T) {
	c := NewCatalog([]models.RuleDefinition{
		{Key: "dot", TriggerPatterns: []string{"a.b"}, Severity: models.SeverityMinor},
	})
	assert.Empty(t, c.Evaluate("axb"))
	assert.Len(t, c.Evaluate("see a.b here"), 1)
}

func TestEvaluate_Empty(t *testing.T) {
	assert.Empty(t, testCatalog().Evaluate(""))
}

func TestEvaluate_Deterministic(t *testing.T) {
	c := Default().Catalog
	content := "Best rates! Invest now and watch your money grow - risk-free, bonus rate included."
	first := c.Evaluate(content)
	require.NotEmpty(t, first)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, c.Evaluate(content))
	}
}

func TestCatalog_Immutable(t *testing.T) {
	defs := []models.RuleDefinition{
		{Key: "k", TriggerPatterns: []string{"foo"}, Severity: models.SeverityMinor, SuggestedFixes: []string{"fix"}},
	}
	c := NewCatalog(defs)
	defs[0].TriggerPatterns[0] = "bar"

	assert.Len(t, c.Evaluate("foo"), 1)
	assert.Empty(t, c.Evaluate("bar"))

	got, ok := c.Get("k")
	require.True(t, ok)
	got.SuggestedFixes[0] = "mutated"
	again, _ := c.Get("k")
	assert.Equal(t, "fix", again.SuggestedFixes[0])

	issues := c.Evaluate("foo")
	issues[0].Fixes[0] = "mutated"
	assert.Equal(t, "fix", c.Evaluate("foo")[0].Fixes[0])
}

func TestCatalog_Subset(t *testing.T) {
	c := testCatalog()
	sub := c.Subset("rates", "missing")
	assert.Equal(t, 1, sub.Len())
	assert.Equal(t, 2, c.Len(), "parent catalog unchanged")

	_, ok := sub.Get("guarantee")
	assert.False(t, ok)
	issues := sub.Evaluate("guaranteed high returns")
	require.Len(t, issues, 1)
	assert.Equal(t, "rates", issues[0].RuleKey)
}

func TestCatalog_All(t *testing.T) {
	all := testCatalog().All()
	require.Len(t, all, 2)
	assert.Equal(t, "guarantee", all[0].Key)
	assert.Equal(t, "rates", all[1].Key)
}
