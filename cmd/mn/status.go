package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailnudge/internal/db"
	"github.com/daviddao/mailnudge/internal/display"
	"github.com/daviddao/mailnudge/internal/types"
)

type statusOutput struct {
	Stats    *db.Stats         `json:"stats"`
	Due      []*types.Reminder `json:"due"`
	Warnings []string          `json:"warnings"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show reminder, notification and ingest counts",
	Long: `Show a quick snapshot of mailnudge state: reminders by status, what is
due now, send and ingest totals, and any channel configuration problems.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stats, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		due, err := store.PendingReminders(ctx, false)
		if err != nil {
			return err
		}
		warnings := cfg.Validate()

		if jsonOutput {
			if due == nil {
				due = []*types.Reminder{}
			}
			return printJSON(cmd.OutOrStdout(), statusOutput{Stats: stats, Due: due, Warnings: warnings})
		}

		w := cmd.OutOrStdout()
		now := time.Now()
		display.Header(w, "Mailnudge Status")
		fmt.Fprintln(w)

		fmt.Fprintln(w, "  Reminders")
		for _, st := range types.ValidStatuses {
			fmt.Fprintf(w, "    %-10s %4d\n", st, stats.Reminders[st])
		}
		fmt.Fprintf(w, "    %-10s %4d\n", "due today", stats.DueToday)
		fmt.Fprintln(w)

		fmt.Fprintln(w, "  Activity")
		fmt.Fprintf(w, "    %-10s %4d\n", "notes", stats.Notes)
		fmt.Fprintf(w, "    %-10s %4d  (%d failed)\n", "sent", stats.Sent, stats.SendFailures)
		fmt.Fprintf(w, "    %-10s %4d  (%d errors)\n", "ingested", stats.Processed, stats.IngestErrors)
		if stats.LastIngest != "" {
			if t, err := time.ParseInLocation(db.TimeLayout, stats.LastIngest, time.Local); err == nil {
				fmt.Fprintf(w, "    last ingest %s\n", display.Dim.Render(display.TimeAgo(t, now)))
			}
		}

		if len(due) > 0 {
			fmt.Fprintln(w)
			display.SubHeader(w, "  Due now")
			for _, r := range due {
				fmt.Fprintf(w, "    %s #%-4d %s  %s\n", display.PriorityDot(r.Priority), r.ID,
					display.Truncate(r.Content, 50), display.Dim.Render(display.Due(r.DueAt, now)))
			}
		}

		if len(warnings) > 0 {
			fmt.Fprintln(w)
			for _, warn := range warnings {
				display.WarnMsg(cmd.ErrOrStderr(), "%s", warn)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
