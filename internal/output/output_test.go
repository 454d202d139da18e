package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/comply/internal/models"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestDryRunMsg_Enabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = true
	u.DryRunMsg("would create %s", "file")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would create file")
}

func TestDryRunMsg_Disabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = false
	u.DryRunMsg("would create %s", "file")
	assert.Empty(t, errOut.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestSeverityColor(t *testing.T) {
	assert.Contains(t, SeverityColor(models.SeverityCritical), "critical")
	assert.Contains(t, SeverityColor(models.SeverityModerate), "moderate")
	assert.Contains(t, SeverityColor(models.SeverityMinor), "minor")
	assert.Equal(t, "unknown", SeverityColor(models.Severity("unknown")))
}

func TestDecisionColor(t *testing.T) {
	assert.Contains(t, DecisionColor(models.DecisionApproved), "APPROVED")
	assert.Contains(t, DecisionColor(models.DecisionRejected), "REJECTED")
	assert.Contains(t, DecisionColor(models.DecisionReviewed), "REVIEWED")
	assert.Equal(t, "OTHER", DecisionColor(models.Decision("OTHER")))
}

func TestStateColor(t *testing.T) {
	assert.Contains(t, StateColor(models.StateApproved), "approved")
	assert.Contains(t, StateColor(models.StateRejectedFinal), "rejected_final")
	assert.Contains(t, StateColor(models.StateRevising), "revising")
	assert.Equal(t, "drafted", StateColor(models.StateDrafted))
}

func TestOverallColor(t *testing.T) {
	assert.Contains(t, OverallColor(models.OverallCompliant), "compliant")
	assert.Contains(t, OverallColor(models.OverallNonCompliant), "non_compliant")
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Name", "Status"})
	require.NotNil(t, table)

	table.Append([]string{"FCA_Text_Validator", "approved"})
	table.Append([]string{"Risk_Disclosure_Checker", "rejected"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "FCA_Text_Validator"), "table output should contain stage names")
	assert.True(t, strings.Contains(result, "Risk_Disclosure_Checker"), "table output should contain stage names")
}

func TestVerdict(t *testing.T) {
	u, out, _ := newTestUI()
	err := u.Verdict(models.Verdict{
		Overall: models.OverallNonCompliant,
		Issues: []models.Issue{{
			RuleKey: "absolute_claims", MatchedText: "guaranteed", Severity: models.SeverityCritical,
			Citation: "FCA COBS 4.2.1R", Stage: "FCA_Text_Validator", Channel: models.ChannelMobile,
		}},
		WordCountResults: []models.WordCountResult{
			{Channel: models.ChannelMobile, Count: 420, Limit: models.Limit(30), Excess: 390, Status: "Exceeds limit by 390 words"},
			{Channel: models.ChannelDesktop, Count: 420, WithinLimit: true, Status: "OK"},
		},
	})
	require.NoError(t, err)

	result := out.String()
	assert.Contains(t, result, "non_compliant")
	assert.Contains(t, result, "absolute_claims")
	assert.Contains(t, result, "FCA_Text_Validator[mobile]")
	assert.Contains(t, result, "Exceeds limit by 390 words")
}

func TestAuditEntries(t *testing.T) {
	u, out, _ := newTestUI()
	err := u.AuditEntries([]models.AuditEntry{
		{SequenceNumber: 1, ReviewerIdentity: "FCA_Text_Validator", Decision: models.DecisionRejected,
			Citations: []string{"FCA-COBS-4.2.1R"}, RawMessage: "first line\nsecond line"},
		{SequenceNumber: 2, ReviewerIdentity: "compliance.officer", Decision: models.DecisionApproved, Supersedes: 1},
	})
	require.NoError(t, err)

	result := out.String()
	assert.Contains(t, result, "FCA-COBS-4.2.1R")
	assert.Contains(t, result, "first line ...")
	assert.NotContains(t, result, "second line")
	assert.Contains(t, result, "supersedes 1")
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "short", firstLine("short", 10))
	assert.Equal(t, "abcdefg...", firstLine("abcdefghijklmnop", 10))
}
