package verdict

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/rules"
	"github.com/joescharf/comply/internal/wordcount"
)

func TestAggregate_SortsBySeverityStable(t *testing.T) {
	issues := []models.Issue{
		{RuleKey: "minor-1", Severity: models.SeverityMinor},
		{RuleKey: "crit-1", Severity: models.SeverityCritical},
		{RuleKey: "mod-1", Severity: models.SeverityModerate},
		{RuleKey: "crit-2", Severity: models.SeverityCritical},
		{RuleKey: "minor-2", Severity: models.SeverityMinor},
	}
	v := Aggregate(issues, nil)

	var keys []string
	for _, is := range v.Issues {
		keys = append(keys, is.RuleKey)
	}
	assert.Equal(t, []string{"crit-1", "crit-2", "mod-1", "minor-1", "minor-2"}, keys)
	assert.Equal(t, "minor-1", issues[0].RuleKey, "input not reordered")
	assert.Equal(t, models.OverallNonCompliant, v.Overall)
}

func TestAggregate_GuaranteedScenario(t *testing.T) {
	catalog := rules.NewCatalog([]models.RuleDefinition{{
		Key:                "absolute_claims",
		TriggerPatterns:    []string{"guaranteed"},
		Severity:           models.SeverityCritical,
		RegulationCitation: "FCA COBS 4.2.1R",
	}})
	content := "Get guaranteed high returns with our premium savings account!"

	v := Aggregate(catalog.Evaluate(content), wordcount.Validate(content, nil))
	assert.Equal(t, models.OverallNonCompliant, v.Overall)
	require.Len(t, v.Issues, 1)
	assert.Equal(t, "absolute_claims", v.Issues[0].RuleKey)
	assert.Equal(t, "guaranteed", v.Issues[0].MatchedText)
}

func TestAggregate_KentRelianceCompliant(t *testing.T) {
	content := "Kent Reliance Easy Access Saver: FCA regulated, FSCS protected up to £85,000, 3.5% AER variable rate"
	limits := models.ChannelLimits{models.ChannelDesktop: nil, models.ChannelMobile: nil}

	v := Aggregate(rules.Default().Catalog.Evaluate(content), wordcount.Validate(content, limits))
	assert.Equal(t, models.OverallCompliant, v.Overall)
	assert.True(t, v.Compliant())
	assert.Empty(t, v.Issues)
}

func TestAggregate_WordCountAlone(t *testing.T) {
	v := Aggregate(nil, []models.WordCountResult{
		{Channel: models.ChannelDesktop, WithinLimit: true},
		{Channel: models.ChannelMobile, WithinLimit: false},
	})
	assert.Equal(t, models.OverallNonCompliant, v.Overall)
	assert.Empty(t, v.Issues)
}

func TestAggregate_NonCriticalStaysCompliant(t *testing.T) {
	v := Aggregate([]models.Issue{
		{RuleKey: "a", Severity: models.SeverityModerate},
		{RuleKey: "b", Severity: models.SeverityMinor},
	}, nil)
	assert.Equal(t, models.OverallCompliant, v.Overall)
}

// The overall outcome must match the iff rule for arbitrary inputs.
func TestAggregate_OverallInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sevs := []models.Severity{models.SeverityCritical, models.SeverityModerate, models.SeverityMinor}

	for i := 0; i < 500; i++ {
		var issues []models.Issue
		wantNC := false
		nIssues := rng.Intn(5)
		for j := 0; j < nIssues; j++ {
			s := sevs[rng.Intn(len(sevs))]
			wantNC = wantNC || s == models.SeverityCritical
			issues = append(issues, models.Issue{RuleKey: fmt.Sprintf("r%d", j), Severity: s})
		}
		var counts []models.WordCountResult
		nCounts := rng.Intn(3)
		for j := 0; j < nCounts; j++ {
			within := rng.Intn(2) == 0
			wantNC = wantNC || !within
			counts = append(counts, models.WordCountResult{WithinLimit: within})
		}

		v := Aggregate(issues, counts)
		if wantNC {
			assert.Equal(t, models.OverallNonCompliant, v.Overall)
		} else {
			assert.Equal(t, models.OverallCompliant, v.Overall)
		}
	}
}

func TestCountBySeverity(t *testing.T) {
	got := CountBySeverity([]models.Issue{
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityCritical},
		{Severity: models.SeverityMinor},
	})
	assert.Equal(t, 2, got[models.SeverityCritical])
	assert.Equal(t, 0, got[models.SeverityModerate])
	assert.Equal(t, 1, got[models.SeverityMinor])
}
