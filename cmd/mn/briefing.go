package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailnudge/internal/display"
)

var briefingTest bool

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Send the daily briefing by email and SMS",
	Long: `Gather today's schedule, milestones for the next two weeks, pending
reminders and recent notes, then send an HTML briefing by email and a short
summary by SMS. Due reminders included in a delivered briefing are marked sent.`,
	Example: `  mn briefing
  mn briefing --test --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, err := buildPorts(ctx, briefingTest, false)
		if err != nil {
			return err
		}
		svc, err := newBriefingService(p)
		if err != nil {
			return err
		}

		report, err := svc.Run(ctx)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), report)
		}
		if quietFlag {
			return nil
		}

		w := cmd.OutOrStdout()
		display.Header(w, "Daily Briefing")
		fmt.Fprintf(w, "  %d events today, %d milestones, %d reminders, %d notes\n",
			report.Events, report.Milestones, report.Reminders, report.Notes)
		fmt.Fprintf(w, "  SMS: %s\n", display.Dim.Render(report.SMS))
		if !report.EmailSent && !report.SMSSent {
			display.WarnMsg(cmd.ErrOrStderr(), "Briefing was not delivered on any channel")
			return nil
		}
		if report.EmailSent {
			display.SuccessMsg(w, "Email briefing sent")
		}
		if report.SMSSent {
			display.SuccessMsg(w, "SMS summary sent")
		}
		if report.MarkedSent > 0 {
			fmt.Fprintf(w, "  %d due reminder(s) marked sent\n", report.MarkedSent)
		}
		if p.recorder != nil {
			printRecorded(w, p.recorder)
		}
		return nil
	},
}

func init() {
	briefingCmd.Flags().BoolVar(&briefingTest, "test", false, "Use demo data and in-memory services")
	rootCmd.AddCommand(briefingCmd)
}
