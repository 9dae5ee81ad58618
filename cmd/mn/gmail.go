package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailnudge/internal/auth"
	"github.com/daviddao/mailnudge/internal/command"
	"github.com/daviddao/mailnudge/internal/display"
	"github.com/daviddao/mailnudge/internal/gmail"
	"github.com/daviddao/mailnudge/internal/source"
	"github.com/daviddao/mailnudge/internal/types"
)

var gmailTest bool

// gmailCmd is the parent command for Gmail operations.
var gmailCmd = &cobra.Command{
	Use:   "gmail",
	Short: "Gmail operations",
}

type triggerView struct {
	types.TriggerMessage
	Command   types.Command `json:"command"`
	Processed bool          `json:"processed"`
}

var gmailTriggersCmd = &cobra.Command{
	Use:   "triggers",
	Short: "List unread trigger emails and the command each carries",
	Long: `List unread messages with the trigger label and show how each would be
parsed. Nothing is executed and nothing is marked read.`,
	Example: `  mn gmail triggers
  mn gmail triggers --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var src source.TriggerSource
		if gmailTest {
			src = source.NewMemory(source.Sample(time.Now().Format(time.RFC1123Z)))
		} else {
			if cfg.Gmail.Credentials == "" {
				return errNoGmailCredentials
			}
			svc, err := auth.LoadGmailService(ctx, cfg.Gmail.Credentials, logger)
			if err != nil {
				return fmt.Errorf("gmail: %w", err)
			}
			src = gmail.NewSource(svc, cfg.Gmail.Label, logger)
		}

		msgs, err := src.ListUnread(ctx)
		if err != nil {
			return err
		}

		views := make([]triggerView, 0, len(msgs))
		for _, m := range msgs {
			v := triggerView{TriggerMessage: m, Command: command.ParseMessage(m)}
			if store != nil {
				if v.Processed, err = store.IsMessageProcessed(ctx, m.MessageID); err != nil {
					logger.Warn("ledger lookup failed", "message_id", m.MessageID, "err", err)
				}
			}
			views = append(views, v)
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), views)
		}
		if len(views) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No unread messages labelled %s.\n", cfg.Gmail.Label)
			return nil
		}

		w := cmd.OutOrStdout()
		display.Header(w, fmt.Sprintf("%d unread trigger message(s)", len(views)))
		for i, v := range views {
			detail := string(v.Command.Kind)
			if v.Command.Content != "" {
				detail += ": " + v.Command.Content
			}
			if v.Processed {
				detail += "\n" + display.Dim.Render("already processed, will be skipped")
			}
			display.MessageTree(w, display.Connector(i, len(views)), v.Sender, v.Subject, detail)
		}
		return nil
	},
}

func init() {
	gmailTriggersCmd.Flags().BoolVar(&gmailTest, "test", false, "Show the sample trigger message instead of Gmail")
	gmailCmd.AddCommand(gmailTriggersCmd)
	rootCmd.AddCommand(gmailCmd)
}
