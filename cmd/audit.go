package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joescharf/comply/internal/apperr"
	"github.com/joescharf/comply/internal/audit"
	"github.com/joescharf/comply/internal/models"
)

var (
	auditFormat   string
	auditMessage  string
	auditDecision string
	auditIdentity string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect, export, verify and correct run audit logs",
}

var auditShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run's audit entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := newService(false)
		if err != nil {
			return err
		}
		entries, err := svc.Audit(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		if len(entries) == 0 {
			ui.Info("Run %s has no audit entries", args[0])
			return nil
		}
		return ui.AuditEntries(entries)
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a run's audit log (json, csv, markdown)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := newService(false)
		if err != nil {
			return err
		}
		entries, err := svc.Audit(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		return exportAudit(ui.Out, auditFormat, args[0], entries)
	},
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify <run-id>",
	Short: "Check sequence numbers and the hash chain of a run's audit log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, err := newService(false)
		if err != nil {
			return err
		}
		res, err := svc.Verify(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("run %s: %w", args[0], err)
		}
		if res.Valid {
			ui.Success("Audit log intact (%d entries)", res.Entries)
			return nil
		}
		for _, p := range res.Problems {
			ui.Error("%s", p)
		}
		return fmt.Errorf("audit log for run %s failed verification (%d problems)", args[0], len(res.Problems))
	},
}

var auditCorrectCmd = &cobra.Command{
	Use:   "correct <run-id> <sequence>",
	Short: "Append an entry that supersedes an earlier one",
	Long: `Append a correction to a run's audit log. Entries are never edited; the
correction references the sequence number it supersedes.

Example:
  comply audit correct 01J... 3 --decision approved --identity "J. Smith" \
    --message "Risk warning present on landing page, see FCA-COBS-4.2.4G"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return auditCorrectRun(cmd, args[0], args[1])
	},
}

func init() {
	auditExportCmd.Flags().StringVar(&auditFormat, "format", "json", "Output format: json, csv, markdown")

	auditCorrectCmd.Flags().StringVarP(&auditMessage, "message", "m", "", "Correction text (citations are extracted from it)")
	auditCorrectCmd.Flags().StringVar(&auditDecision, "decision", "reviewed", "Decision: approved, rejected, reviewed")
	auditCorrectCmd.Flags().StringVar(&auditIdentity, "identity", "", "Who is making the correction")
	_ = auditCorrectCmd.MarkFlagRequired("message")
	_ = auditCorrectCmd.MarkFlagRequired("identity")

	auditCmd.AddCommand(auditShowCmd)
	auditCmd.AddCommand(auditExportCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditCorrectCmd)
	rootCmd.AddCommand(auditCmd)
}

func auditCorrectRun(cmd *cobra.Command, runID, seqArg string) error {
	const op = "correct audit entry"
	seq, err := strconv.ParseInt(seqArg, 10, 64)
	if err != nil || seq < 1 {
		return apperr.InvalidInput(op, "sequence %q is not a positive number", seqArg)
	}
	decision, ok := models.ParseDecision(auditDecision)
	if !ok {
		return apperr.InvalidInput(op, "unknown decision %q (use approved, rejected, reviewed)", auditDecision)
	}

	svc, _, err := newService(false)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would append a %s correction superseding entry %d of run %s", decision, seq, runID)
		return nil
	}

	e, err := svc.Correct(cmd.Context(), runID, seq, auditIdentity, auditMessage, decision, viper.GetString("review.citation_prefix"))
	if err != nil {
		return err
	}
	ui.Success("Appended entry %d superseding entry %d", e.SequenceNumber, seq)
	if len(e.Citations) > 0 {
		ui.Info("Citations: %s", strings.Join(e.Citations, ", "))
	}
	return nil
}

// exportAudit writes entries in the requested format.
func exportAudit(w io.Writer, format, runID string, entries []models.AuditEntry) error {
	records := audit.Export(entries)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "csv":
		cw := csv.NewWriter(w)
		_ = cw.Write([]string{"Sequence", "Timestamp", "Reviewer", "Decision", "Citations", "Supersedes", "Message"})
		for _, r := range records {
			supersedes := ""
			if r.Supersedes > 0 {
				supersedes = strconv.FormatInt(r.Supersedes, 10)
			}
			_ = cw.Write([]string{
				strconv.FormatInt(r.SequenceNumber, 10),
				r.Timestamp,
				r.ReviewerIdentity,
				r.Decision,
				strings.Join(r.Citations, " "),
				supersedes,
				r.Message,
			})
		}
		cw.Flush()
		return cw.Error()
	case "markdown":
		fmt.Fprintf(w, "# Audit log: %s\n", runID)
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| # | Timestamp | Reviewer | Decision | Citations | Message |")
		fmt.Fprintln(w, "|---|-----------|----------|----------|-----------|---------|")
		for _, r := range records {
			seq := strconv.FormatInt(r.SequenceNumber, 10)
			if r.Supersedes > 0 {
				seq += fmt.Sprintf(" (supersedes %d)", r.Supersedes)
			}
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s | %s |\n",
				seq, r.Timestamp, r.ReviewerIdentity, r.Decision,
				strings.Join(r.Citations, ", "), markdownCell(r.Message))
		}
		return nil
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// markdownCell keeps a message on one table row.
func markdownCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", "<br>")
}
