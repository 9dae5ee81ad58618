package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailnudge/internal/command"
	"github.com/daviddao/mailnudge/internal/display"
	"github.com/daviddao/mailnudge/internal/types"
)

var (
	nudgeDue      string
	nudgePriority string
	nudgeStatus   string
	nudgeDueOnly  bool
	nudgeLimit    int
)

var nudgeCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Manage reminders (nudges)",
}

var nudgeAddCmd = &cobra.Command{
	Use:   "add CONTENT...",
	Short: "Add a reminder",
	Long: `Add a reminder by hand. The due time comes from --due, or is read from
the content the same way trigger emails are ("tomorrow at 7:15am", "Feb 5 4pm").`,
	Example: `  mn nudge add Print CO2 car rubrics tomorrow at 7:15am
  mn nudge add "Order motors" --due "2026-02-01 09:00" --priority high`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content := strings.Join(args, " ")
		now := time.Now()

		r := &types.Reminder{Content: content, Priority: nudgePriority, Source: types.SourceManual}
		dueText := content
		if nudgeDue != "" {
			dueText = nudgeDue
		}
		if due, ok := command.ParseDue(dueText, now); ok {
			r.DueAt = &due
		} else if nudgeDue != "" {
			return fmt.Errorf("could not understand due time %q", nudgeDue)
		}

		id, err := store.AddReminder(cmd.Context(), r)
		if err != nil {
			return err
		}
		r.ID = id

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), r)
		}
		if !quietFlag {
			display.SuccessMsg(cmd.OutOrStdout(), "Added reminder #%d, %s", id, display.Due(r.DueAt, now))
		}
		return nil
	},
}

var nudgeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List reminders",
	Example: `  mn nudge list
  mn nudge list --due
  mn nudge list --status all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		var (
			reminders []*types.Reminder
			err       error
		)
		switch {
		case nudgeDueOnly:
			reminders, err = store.PendingReminders(ctx, false)
		case nudgeStatus == "all":
			reminders, err = store.ListReminders(ctx, "", nudgeLimit)
		default:
			reminders, err = store.ListReminders(ctx, nudgeStatus, nudgeLimit)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			if reminders == nil {
				reminders = []*types.Reminder{}
			}
			return printJSON(cmd.OutOrStdout(), reminders)
		}
		if len(reminders) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No reminders.")
			return nil
		}

		now := time.Now()
		w := cmd.OutOrStdout()
		for _, r := range reminders {
			fmt.Fprintf(w, "%s %s %s #%-4d %s\n",
				display.PriorityDot(r.Priority),
				display.PriorityLabel(r.Priority),
				display.StatusLabel(r.Status),
				r.ID,
				display.Truncate(r.Content, 60))
			fmt.Fprintf(w, "    %s\n", display.Dim.Render(display.Due(r.DueAt, now)+" · "+r.Source))
		}
		return nil
	},
}

func transitionCmd(use, short, verb string, apply func(cmd *cobra.Command, id int64) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID [ID...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
				if err != nil {
					display.ErrorMsg(cmd.ErrOrStderr(), "%s: not a reminder id", arg)
					failed++
					continue
				}
				if err := apply(cmd, id); err != nil {
					var te *types.TransitionError
					if errors.As(err, &te) {
						display.ErrorMsg(cmd.ErrOrStderr(), "#%d is %s and cannot be %s", id, te.From, verb)
					} else {
						display.ErrorMsg(cmd.ErrOrStderr(), "#%d: %v", id, err)
					}
					failed++
					continue
				}
				if !quietFlag {
					display.SuccessMsg(cmd.OutOrStdout(), "%s: #%d", strings.ToUpper(verb[:1])+verb[1:], id)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d reminder(s) not updated", failed, len(args))
			}
			return nil
		},
	}
}

var nudgeDoneCmd = transitionCmd("done", "Mark sent reminders completed", "completed",
	func(cmd *cobra.Command, id int64) error { return store.CompleteReminder(cmd.Context(), id) })

var nudgeCancelCmd = transitionCmd("cancel", "Cancel pending reminders", "cancelled",
	func(cmd *cobra.Command, id int64) error { return store.CancelReminder(cmd.Context(), id) })

var nudgeSentCmd = transitionCmd("sent", "Mark pending reminders sent", "sent",
	func(cmd *cobra.Command, id int64) error { return store.MarkSent(cmd.Context(), id) })

func init() {
	nudgeAddCmd.Flags().StringVar(&nudgeDue, "due", "", "Due time (e.g. \"tomorrow 3pm\", \"2026-02-05 16:00\")")
	nudgeAddCmd.Flags().StringVarP(&nudgePriority, "priority", "p", types.PriorityNormal, "Priority: low, normal, high, urgent")

	nudgeListCmd.Flags().StringVarP(&nudgeStatus, "status", "s", types.StatusPending, "Filter by status (pending, sent, completed, cancelled, all)")
	nudgeListCmd.Flags().BoolVar(&nudgeDueOnly, "due", false, "Only pending reminders that are due now or undated")
	nudgeListCmd.Flags().IntVarP(&nudgeLimit, "limit", "n", 50, "Maximum reminders to show")

	nudgeCmd.AddCommand(nudgeAddCmd, nudgeListCmd, nudgeDoneCmd, nudgeCancelCmd, nudgeSentCmd)
	rootCmd.AddCommand(nudgeCmd)
}
