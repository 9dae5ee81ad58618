package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailnudge/internal/display"
	"github.com/daviddao/mailnudge/internal/types"
)

var (
	logChannel string
	logStatus  string
	logLimit   int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Audit views of sent notifications and processed emails",
}

var logSentCmd = &cobra.Command{
	Use:   "sent",
	Short: "Show notification send attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := store.SentLog(cmd.Context(), logChannel, logLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			if entries == nil {
				entries = []*types.SendLogEntry{}
			}
			return printJSON(cmd.OutOrStdout(), entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing sent yet.")
			return nil
		}

		now := time.Now()
		w := cmd.OutOrStdout()
		for _, e := range entries {
			what := e.Subject
			if what == "" {
				what = e.Content
			}
			fmt.Fprintf(w, "%s %-5s %-28s %s  %s\n",
				display.StatusLabel(e.Status), e.Channel, display.Truncate(e.Recipient, 28),
				display.Truncate(what, 50), display.Dim.Render(display.TimeAgo(e.SentAt, now)))
			if e.ErrorMessage != "" {
				fmt.Fprintf(w, "    %s\n", display.ErrStyle.Render(e.ErrorMessage))
			}
		}
		return nil
	},
}

var logIngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Show the ingest ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		recs, err := store.IngestLog(cmd.Context(), logStatus, logLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			if recs == nil {
				recs = []*types.IngestRecord{}
			}
			return printJSON(cmd.OutOrStdout(), recs)
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No emails processed yet.")
			return nil
		}

		now := time.Now()
		w := cmd.OutOrStdout()
		for _, r := range recs {
			fmt.Fprintf(w, "%s %-13s %s  %s\n",
				display.StatusLabel(r.Status), r.CommandType, display.Truncate(r.Subject, 60),
				display.Dim.Render(display.TimeAgo(r.ProcessedAt, now)))
			fmt.Fprintf(w, "    %s\n", display.Dim.Render(r.MessageID+" · "+r.Sender))
			if r.ErrorMessage != "" {
				fmt.Fprintf(w, "    %s\n", display.ErrStyle.Render(r.ErrorMessage))
			}
		}
		return nil
	},
}

func init() {
	logSentCmd.Flags().StringVarP(&logChannel, "channel", "c", "", "Filter by channel (email, sms)")
	logIngestCmd.Flags().StringVarP(&logStatus, "status", "s", "", "Filter by status (processed, error)")
	logCmd.PersistentFlags().IntVarP(&logLimit, "limit", "n", 20, "Maximum rows to show")

	logCmd.AddCommand(logSentCmd, logIngestCmd)
	rootCmd.AddCommand(logCmd)
}
