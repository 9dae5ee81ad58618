package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailnudge/internal/display"
)

var quickstartCmd = &cobra.Command{
	Use:   "quickstart",
	Short: "Quick start guide for mn",
	Long:  "Display a quick start guide showing common mn workflows and the trigger email commands.",
	Run: func(cmd *cobra.Command, args []string) {
		b := display.Bold.Render
		a := display.Success.Render
		d := display.Dim.Render
		w := cmd.OutOrStdout()

		fmt.Fprintf(w, "\n%s\n\n", b("mn - Email-driven reminders and milestones"))
		fmt.Fprintln(w, "Email yourself commands; mailnudge turns them into reminders, notes and calendar milestones.")
		fmt.Fprintln(w)

		fmt.Fprintln(w, b("GETTING STARTED"))
		fmt.Fprintf(w, "  %s           Create .mailnudge/ (database and config.yaml)\n", a("mn init"))
		fmt.Fprintf(w, "  %s    Try everything with sample data\n", a("mn ingest --test"))
		fmt.Fprintf(w, "  %s   Preview the daily briefing\n\n", a("mn briefing --test"))

		fmt.Fprintln(w, b("TRIGGER EMAILS"))
		fmt.Fprintln(w, d("  Label messages TA-TRIGGERS (gmail.label) and put a command in the subject or body:"))
		fmt.Fprintf(w, "  %s  Reminder, due time read from the text\n", a("ADD NUDGE: Print rubrics tomorrow at 7:15am"))
		fmt.Fprintf(w, "  %s    Calendar milestone, refused on conflict\n", a("ADD MILESTONE: CDR slides due Feb 5 4pm"))
		fmt.Fprintf(w, "  %s               Append a note\n", a("NOTE: team 4 needs a motor"))
		fmt.Fprintf(w, "  %s                                   Reply with today's status\n\n", a("TODAY?"))

		fmt.Fprintln(w, b("RUNNING"))
		fmt.Fprintf(w, "  %s           Process unread trigger emails once\n", a("mn ingest"))
		fmt.Fprintf(w, "  %s            Ingest every 10 minutes, briefing at 6 AM\n", a("mn watch"))
		fmt.Fprintf(w, "  %s   Show what is waiting, without running it\n\n", a("mn gmail triggers"))

		fmt.Fprintln(w, b("BY HAND"))
		fmt.Fprintf(w, "  %s  Add a reminder\n", a(`mn nudge add "Order motors" --due "friday 9am"`))
		fmt.Fprintf(w, "  %s  Pending reminders, then mark one done\n", a("mn nudge list; mn nudge done 3"))
		fmt.Fprintf(w, "  %s   Notes\n", a(`mn note add "..."; mn note search lab`))
		fmt.Fprintf(w, "  %s  Audit what was sent and processed\n", a("mn log sent; mn log ingest"))
		fmt.Fprintf(w, "  %s          Counts and configuration warnings\n\n", a("mn status"))

		fmt.Fprintln(w, d("All commands accept --json, --quiet, --config and --db."))
	},
}

func init() {
	rootCmd.AddCommand(quickstartCmd)
}
