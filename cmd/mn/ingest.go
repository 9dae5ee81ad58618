package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailnudge/internal/display"
	"github.com/daviddao/mailnudge/internal/notify"
	"github.com/daviddao/mailnudge/internal/types"
)

var ingestTest bool

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Process unread trigger emails once",
	Long: `Fetch unread messages carrying the trigger label, run each command
(ADD NUDGE, ADD MILESTONE, NOTE, TODAY?) and record it in the ingest ledger.
Messages already in the ledger are skipped.

With --test, a sample trigger message, a demo calendar and an in-memory
notifier are used instead of Gmail, Google Calendar, SMTP and Twilio.`,
	Example: `  mn ingest
  mn ingest --test
  mn ingest --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := buildPorts(ctx, ingestTest, true)
		if err != nil {
			return err
		}
		runner, err := newIngestRunner(p)
		if err != nil {
			return err
		}

		summary, err := runner.Run(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), summary)
		}
		if !quietFlag {
			printIngestSummary(cmd.OutOrStdout(), summary)
			if p.recorder != nil {
				printRecorded(cmd.OutOrStdout(), p.recorder)
			}
		}
		return nil
	},
}

func printIngestSummary(w io.Writer, s *types.IngestSummary) {
	if s.Seen == 0 {
		fmt.Fprintln(w, "No unread trigger messages.")
		return
	}
	display.Header(w, fmt.Sprintf("Ingest run %s", s.RunID[:8]))
	for i, m := range s.Messages {
		detail := fmt.Sprintf("%s  %s", display.StatusLabel(m.Status), m.Command)
		if m.Detail != "" {
			detail += "\n" + m.Detail
		}
		display.MessageTree(w, display.Connector(i, len(s.Messages)), m.MessageID, m.Subject, detail)
	}
	fmt.Fprintf(w, "\n%d processed, %d errored, %d skipped\n", s.Processed, s.Errored, s.Skipped)
}

// printRecorded shows what a --test run would have sent.
func printRecorded(w io.Writer, rec *notify.Recorder) {
	emails, sms := rec.Emails(), rec.SMS()
	if len(emails) == 0 && len(sms) == 0 {
		return
	}
	fmt.Fprintln(w)
	display.SubHeader(w, "Test mode: notifications not delivered")
	for _, e := range emails {
		fmt.Fprintf(w, "  email to %s: %s\n", e.To, e.Subject)
	}
	for _, s := range sms {
		fmt.Fprintf(w, "  sms to %s: %s\n", s.To, s.Body)
	}
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestTest, "test", false, "Use sample data and in-memory services")
	rootCmd.AddCommand(ingestCmd)
}
