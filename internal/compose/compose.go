// Package compose turns schedule and reminder data into human-readable
// status replies and daily briefings.
package compose

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/daviddao/mailnudge/internal/types"
)

// Composer writes the text of outgoing messages.
type Composer interface {
	ComposeStatus(ctx context.Context, schedule []types.CalendarEvent, reminders []*types.Reminder) (string, error)
	ComposeBriefing(ctx context.Context, in BriefingInput) (Briefing, error)
}

// BriefingInput is everything a daily briefing covers.
type BriefingInput struct {
	Date       time.Time
	Schedule   []types.CalendarEvent
	Milestones []types.CalendarEvent
	Reminders  []*types.Reminder
	Notes      []*types.Note
}

// Briefing is a composed daily briefing.
type Briefing struct {
	Subject string
	HTML    string
	Text    string
	SMS     string
}

// FormatEvents renders events one per line as "- 15:04: Summary".
func FormatEvents(events []types.CalendarEvent) string {
	if len(events) == 0 {
		return "No events scheduled."
	}
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		lines = append(lines, fmt.Sprintf("- %s: %s", eventTime(ev), ev.Summary))
	}
	return strings.Join(lines, "\n")
}

// FormatReminders renders reminders one per line, flagging elevated ones.
func FormatReminders(reminders []*types.Reminder) string {
	if len(reminders) == 0 {
		return "No active reminders."
	}
	lines := make([]string, 0, len(reminders))
	for _, r := range reminders {
		prefix := ""
		if types.IsElevated(r.Priority) {
			prefix = "[URGENT] "
		}
		due := ""
		if r.DueAt != nil {
			due = " (Due: " + r.DueAt.Format("Mon Jan 2 3:04 PM") + ")"
		}
		lines = append(lines, "- "+prefix+r.Content+due)
	}
	return strings.Join(lines, "\n")
}

// FormatNotes renders notes one per line with their creation date.
func FormatNotes(notes []*types.Note) string {
	if len(notes) == 0 {
		return "No recent notes."
	}
	lines := make([]string, 0, len(notes))
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("- [%s] %s", n.CreatedAt.Format("2006-01-02"), n.Content))
	}
	return strings.Join(lines, "\n")
}

func eventTime(ev types.CalendarEvent) string {
	if ev.AllDay {
		return "all day"
	}
	return ev.Start.Format("15:04")
}
