package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/daviddao/mailnudge/internal/display"
	"github.com/daviddao/mailnudge/internal/types"
)

var (
	noteTags  string
	noteLimit int
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Record and search notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add CONTENT...",
	Short: "Add a note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n := &types.Note{Content: strings.Join(args, " "), Tags: noteTags, Source: types.SourceManual}
		id, err := store.AddNote(cmd.Context(), n)
		if err != nil {
			return err
		}
		n.ID = id
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), n)
		}
		if !quietFlag {
			display.SuccessMsg(cmd.OutOrStdout(), "Added note #%d", id)
		}
		return nil
	},
}

var noteListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show recent notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := store.RecentNotes(cmd.Context(), noteLimit)
		if err != nil {
			return err
		}
		return printNotes(cmd.OutOrStdout(), notes)
	},
}

var noteSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search notes by content or tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		notes, err := store.SearchNotes(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printNotes(cmd.OutOrStdout(), notes)
	},
}

func printNotes(w io.Writer, notes []*types.Note) error {
	if jsonOutput {
		if notes == nil {
			notes = []*types.Note{}
		}
		return printJSON(w, notes)
	}
	if len(notes) == 0 {
		fmt.Fprintln(w, "No notes.")
		return nil
	}
	now := time.Now()
	for _, n := range notes {
		meta := display.TimeAgo(n.CreatedAt, now) + " · " + n.Source
		if n.Tags != "" {
			meta += " · " + n.Tags
		}
		fmt.Fprintf(w, "#%-4d %s\n      %s\n", n.ID, display.Truncate(n.Content, 70), display.Dim.Render(meta))
	}
	return nil
}

func init() {
	noteAddCmd.Flags().StringVarP(&noteTags, "tags", "t", "", "Comma-separated tags")
	noteListCmd.Flags().IntVarP(&noteLimit, "limit", "n", 10, "Maximum notes to show")

	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteSearchCmd)
	rootCmd.AddCommand(noteCmd)
}
