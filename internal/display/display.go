// Package display provides terminal formatting for mailnudge output.
package display

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/daviddao/mailnudge/internal/types"
)

var (
	// Styles
	Muted    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	Dim      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3af"))
	Bold     = lipgloss.NewStyle().Bold(true)
	Success  = lipgloss.NewStyle().Foreground(lipgloss.Color("#16a34a"))
	Warning  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	ErrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))

	UrgentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626")).Bold(true)
	HighStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#dc2626"))
	NormalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d97706"))
	LowStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
)

// PriorityDot returns a colored dot for a priority level.
func PriorityDot(priority string) string {
	switch priority {
	case types.PriorityUrgent:
		return UrgentStyle.Render("●")
	case types.PriorityHigh:
		return HighStyle.Render("●")
	case types.PriorityNormal:
		return NormalStyle.Render("○")
	case types.PriorityLow:
		return LowStyle.Render("○")
	default:
		return Dim.Render("·")
	}
}

// PriorityLabel returns a styled, fixed-width priority label.
func PriorityLabel(priority string) string {
	label := fmt.Sprintf("%-6s", strings.ToUpper(priority))
	switch priority {
	case types.PriorityUrgent:
		return UrgentStyle.Render(label)
	case types.PriorityHigh:
		return HighStyle.Render(label)
	case types.PriorityNormal:
		return NormalStyle.Render(label)
	case types.PriorityLow:
		return LowStyle.Render(label)
	default:
		return label
	}
}

// StatusLabel styles reminder, send and ingest statuses alike.
func StatusLabel(status string) string {
	label := fmt.Sprintf("%-9s", status)
	switch status {
	case types.StatusPending:
		return Warning.Render(label)
	case types.StatusSent, types.StatusCompleted, types.IngestProcessed:
		return Success.Render(label)
	case types.SendStatusFailed, types.IngestError:
		return ErrStyle.Render(label)
	default:
		return Dim.Render(label)
	}
}

// TimeAgo formats t relative to now.
func TimeAgo(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < 0:
		return TimeUntil(t, now)
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// TimeUntil formats a future t relative to now.
func TimeUntil(t, now time.Time) string {
	d := t.Sub(now)
	switch {
	case d < 0:
		return TimeAgo(t, now)
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	default:
		return t.Format("Jan 2")
	}
}

// Due describes a reminder's due time, or "no due date".
func Due(due *time.Time, now time.Time) string {
	if due == nil {
		return "no due date"
	}
	return due.Format("Mon Jan 2 3:04 PM") + " (" + TimeUntil(*due, now) + ")"
}

// Truncate shortens a string to maxLen characters, adding an ellipsis if
// needed.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// SuccessMsg prints a green checkmark + message.
func SuccessMsg(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, Success.Render("✓")+" "+msg)
}

// WarnMsg prints an amber bang + message. Callers pass stderr.
func WarnMsg(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, Warning.Render("!")+" "+msg)
}

// ErrorMsg prints a red X + message. Callers pass stderr.
func ErrorMsg(w io.Writer, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(w, ErrStyle.Render("✗")+" "+msg)
}

// Header prints a section header.
func Header(w io.Writer, title string) {
	fmt.Fprintln(w, Bold.Render(title))
}

// SubHeader prints a dim subsection label.
func SubHeader(w io.Writer, title string) {
	fmt.Fprintln(w, Muted.Render(title))
}

// MessageTree prints a trigger message in a tree-style format.
// connector is one of "┌─", "├─", "└─"
func MessageTree(w io.Writer, connector, from, subject, detail string) {
	fmt.Fprintf(w, "  %s %s  ·  %s\n", Muted.Render(connector), Bold.Render(Truncate(subject, 70)), Dim.Render(from))
	if detail == "" {
		return
	}
	prefix := "  │  "
	if connector == "└─" {
		prefix = "     "
	}
	lines := strings.Split(strings.TrimSpace(detail), "\n")
	maxLines := 4
	for i, line := range lines {
		if i >= maxLines {
			fmt.Fprintf(w, "%s%s\n", Muted.Render(prefix), Dim.Render(fmt.Sprintf("... (%d more lines)", len(lines)-maxLines)))
			break
		}
		fmt.Fprintf(w, "%s%s\n", Muted.Render(prefix), Truncate(strings.TrimSpace(line), 80))
	}
}

// Connector picks the tree connector for item i of n.
func Connector(i, n int) string {
	switch {
	case n == 1 || i == n-1:
		return "└─"
	case i == 0:
		return "┌─"
	default:
		return "├─"
	}
}
