package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/output"
)

var (
	reviewText      string
	reviewLimits    []string
	reviewMaxRounds int
	reviewJSON      bool
)

var reviewCmd = &cobra.Command{
	Use:   "review [file|-]",
	Short: "Run the full review pipeline on marketing copy",
	Long: `Run the configured review stages over the copy, revising it until it is
approved or review.max_rounds revisions have been spent.

Content comes from --text, a file argument, or stdin. Every stage decision is
written to the run's audit log; see 'comply audit show <run>'.

Examples:
  comply review promo.txt --limit mobile=30 --limit desktop=80 --max-rounds 2
  echo "Guaranteed 5% returns" | comply review --max-rounds 0`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return reviewRun(cmd, args)
	},
}

func init() {
	reviewCmd.Flags().StringVar(&reviewText, "text", "", "Copy to review")
	reviewCmd.Flags().StringArrayVar(&reviewLimits, "limit", nil, "Channel word limit as channel=N (repeatable)")
	reviewCmd.Flags().IntVar(&reviewMaxRounds, "max-rounds", 0, "Revisions allowed before final rejection (overrides review.max_rounds)")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "Print the run as JSON")
	rootCmd.AddCommand(reviewCmd)
}

// applyMaxRounds lets --max-rounds satisfy the review.max_rounds requirement.
func applyMaxRounds(cmd *cobra.Command, value int) {
	if cmd.Flags().Changed("max-rounds") {
		viper.Set("review.max_rounds", value)
	}
}

func reviewRun(cmd *cobra.Command, args []string) error {
	applyMaxRounds(cmd, reviewMaxRounds)

	text, err := readContent(reviewText, args, stdinIfPiped())
	if err != nil {
		return err
	}
	limits, err := channelLimits(reviewLimits)
	if err != nil {
		return err
	}

	svc, _, err := newService(true)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would review %d characters for %d channel(s)", len(text), len(limits))
		return nil
	}

	run, _, err := svc.Review(cmd.Context(), models.NewContentItem(text, limits))
	if err != nil {
		if run != nil {
			ui.Error("Run %s aborted", run.ID)
		}
		return err
	}

	if reviewJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	if err := printRun(run); err != nil {
		return err
	}
	if run.State != models.StateApproved {
		return fmt.Errorf("run %s ended %s", run.ID, run.State)
	}
	return nil
}

// printRun renders a run summary with its verdict and final drafts.
func printRun(run *models.Run) error {
	fmt.Fprintf(ui.Out, "Run:    %s\n", output.Cyan(run.ID))
	fmt.Fprintf(ui.Out, "State:  %s\n", output.StateColor(run.State))
	fmt.Fprintf(ui.Out, "Rounds: %d\n", run.Rounds)
	if run.Reason != "" {
		fmt.Fprintf(ui.Out, "Reason: %s\n", run.Reason)
	}
	if run.Verdict != nil {
		fmt.Fprintln(ui.Out)
		if err := ui.Verdict(*run.Verdict); err != nil {
			return err
		}
	}

	if len(run.Drafts) > 0 {
		fmt.Fprintln(ui.Out)
		for _, ch := range channelSet(run.Drafts).Channels() {
			fmt.Fprintf(ui.Out, "%s\n%s\n\n", output.Cyan("Draft ("+string(ch)+"):"), run.Drafts[ch])
		}
	}
	return nil
}

func channelSet(drafts map[models.Channel]string) models.ChannelLimits {
	set := make(models.ChannelLimits, len(drafts))
	for ch := range drafts {
		set[ch] = nil
	}
	return set
}
