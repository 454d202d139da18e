package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joescharf/comply/internal/models"
	"github.com/joescharf/comply/internal/runs"
)

var (
	checkText   string
	checkLimits []string
	checkJSON   bool
)

var checkCmd = &cobra.Command{
	Use:   "check [file|-]",
	Short: "Check copy against the rule catalog and word limits",
	Long: `Evaluate the copy against every catalog rule and the channel word limits.

No reviewer is called and nothing is stored. Over-limit channels get a
suggested reduction target.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return checkRun(args)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkText, "text", "", "Copy to check")
	checkCmd.Flags().StringArrayVar(&checkLimits, "limit", nil, "Channel word limit as channel=N (repeatable)")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Print the result as JSON")
	rootCmd.AddCommand(checkCmd)
}

func checkRun(args []string) error {
	text, err := readContent(checkText, args, stdinIfPiped())
	if err != nil {
		return err
	}
	limits, err := channelLimits(checkLimits)
	if err != nil {
		return err
	}
	set, err := loadRules()
	if err != nil {
		return err
	}

	res, err := runs.Check(set, models.NewContentItem(text, limits))
	if err != nil {
		return err
	}

	if checkJSON {
		enc := json.NewEncoder(ui.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if err := ui.Verdict(res.Verdict); err != nil {
		return err
	}
	if len(res.Reductions) > 0 {
		fmt.Fprintln(ui.Out)
		for _, ch := range channelsOf(res) {
			r := res.Reductions[ch]
			ui.Warning("%s: %d words over (%d of %d), %s", ch, r.ExcessWords, r.CurrentWords, r.TargetWords, r.BandedSuggestion)
		}
	}
	if !res.Verdict.Compliant() {
		return fmt.Errorf("content is %s", res.Verdict.Overall)
	}
	return nil
}

func channelsOf(res *runs.CheckResult) []models.Channel {
	set := make(models.ChannelLimits, len(res.Reductions))
	for ch := range res.Reductions {
		set[ch] = nil
	}
	return set.Channels()
}
