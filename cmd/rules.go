package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/comply/internal/output"
)

var rulesJSON bool

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the rule catalog and review stages",
	Long: `List the compliance rules and the review stages that evaluate them.

The catalog is the embedded FCA default unless rules.file names a YAML file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return rulesRun()
	},
}

func init() {
	rulesCmd.Flags().BoolVar(&rulesJSON, "json", false, "Print rules and stages as JSON")
	rootCmd.AddCommand(rulesCmd)
}

func rulesRun() error {
	set, err := loadRules()
	if err != nil {
		return err
	}

	if rulesJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"rules":  set.Catalog.All(),
			"stages": set.Stages,
		})
	}

	table := ui.Table([]string{"Key", "Severity", "Citation", "Triggers"})
	for _, r := range set.Catalog.All() {
		if err := table.Append([]string{
			r.Key,
			output.SeverityColor(r.Severity),
			r.RegulationCitation,
			strings.Join(r.TriggerPatterns, ", "),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintln(ui.Out)
	table = ui.Table([]string{"#", "Stage", "Rules", "Prior issues"})
	for i, st := range set.Stages {
		prior := "no"
		if st.UsesPriorIssues {
			prior = "yes"
		}
		if err := table.Append([]string{fmt.Sprint(i + 1), st.Name, strings.Join(st.Rules, ", "), prior}); err != nil {
			return err
		}
	}
	return table.Render()
}
