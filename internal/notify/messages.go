package notify

import (
	"fmt"
	"strings"

	"github.com/daviddao/mailnudge/internal/types"
)

// Subjects used for outgoing mail.
const (
	SubjectConflict = "[TA] Calendar Conflict Detected"
	SubjectStatus   = "[TA] Today's Status"
	SubjectBriefing = "[TA] Daily Briefing"
)

const conflictTitleLen = 30

// ConflictEmail describes a milestone that was not created because of
// conflicting events.
func ConflictEmail(proposed string, conflicts []types.CalendarEvent) EmailMessage {
	var b strings.Builder
	b.WriteString("Calendar Conflict Detected\n\n")
	b.WriteString("The following event could NOT be added:\n")
	fmt.Fprintf(&b, "  %s\n\n", proposed)
	b.WriteString("It conflicts with:\n")
	for _, c := range conflicts {
		fmt.Fprintf(&b, "  - %s (%s)\n", c.Summary, c.Start.Format("2006-01-02 15:04"))
	}
	b.WriteString("\nPlease resolve the conflict manually.\n")
	return EmailMessage{Subject: SubjectConflict, Body: b.String()}
}

// ConflictSMS is the short form of ConflictEmail naming the first conflict.
func ConflictSMS(proposed, conflict string) string {
	return fmt.Sprintf("CONFLICT: '%s' conflicts with '%s'. Check email.",
		clip(proposed, conflictTitleLen), clip(conflict, conflictTitleLen))
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
