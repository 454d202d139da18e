package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/output"
	"github.com/joescharf/comply/internal/store"
)

var (
	runsState string
	runsLimit int
	runsJSON  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List review runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsListRun(cmd)
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its final verdict and drafts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runsShowRun(cmd, args[0])
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsState, "state", "", "Filter by state (approved, rejected_final, ...)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum runs to list (0 for all)")
	runsCmd.PersistentFlags().BoolVar(&runsJSON, "json", false, "Print as JSON")
	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runsListRun(cmd *cobra.Command) error {
	svc, _, err := newService(false)
	if err != nil {
		return err
	}

	list, err := svc.List(cmd.Context(), store.RunListFilter{
		State: models.PipelineState(runsState),
		Limit: runsLimit,
	})
	if err != nil {
		return err
	}

	if runsJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		ui.Info("No runs found")
		return nil
	}

	table := ui.Table([]string{"ID", "State", "Rounds", "Verdict", "Created", "Content"})
	for _, r := range list {
		verdict := "-"
		if r.Verdict != nil {
			verdict = output.OverallColor(r.Verdict.Overall)
		}
		if err := table.Append([]string{
			r.ID,
			output.StateColor(r.State),
			strconv.Itoa(r.Rounds),
			verdict,
			r.CreatedAt.Local().Format("2006-01-02 15:04"),
			truncate(r.Content, 40),
		}); err != nil {
			return err
		}
	}
	return table.Render()
}

func runsShowRun(cmd *cobra.Command, id string) error {
	svc, _, err := newService(false)
	if err != nil {
		return err
	}

	run, err := svc.Get(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}

	if runsJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	return printRun(run)
}

// truncate shortens s to max runes on one line.
func truncate(s string, max int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' {
			r = r[:i]
			break
		}
	}
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return string(r)
}
