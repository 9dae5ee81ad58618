package compose

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/daviddao/mailnudge/internal/notify"
	"github.com/daviddao/mailnudge/internal/types"
)

const (
	smsClassTitleLen = 20
	smsUrgentLen     = 40
	smsMilestoneLen  = 30
)

// Template composes messages deterministically from the data alone.
type Template struct {
	now func() time.Time
}

// NewTemplate returns a Template. A nil now uses time.Now.
func NewTemplate(now func() time.Time) *Template {
	if now == nil {
		now = time.Now
	}
	return &Template{now: now}
}

// ComposeStatus implements Composer.
func (t *Template) ComposeStatus(ctx context.Context, schedule []types.CalendarEvent, reminders []*types.Reminder) (string, error) {
	now := t.now()

	var b strings.Builder
	fmt.Fprintf(&b, "Status as of %s\n\n", now.Format("Mon Jan 2, 3:04 PM"))

	if next := nextEvent(schedule, now); next != nil {
		fmt.Fprintf(&b, "Next up: %s at %s\n\n", next.Summary, next.Start.Format("3:04 PM"))
	} else if len(schedule) > 0 {
		b.WriteString("Nothing else on the schedule today.\n\n")
	}

	b.WriteString("Today's schedule:\n")
	b.WriteString(FormatEvents(schedule))
	b.WriteString("\n\nActive reminders:\n")
	b.WriteString(FormatReminders(reminders))
	b.WriteString("\n")

	if urgent := countElevated(reminders); urgent > 0 {
		fmt.Fprintf(&b, "\n%d urgent reminder(s) need attention.\n", urgent)
	}
	return b.String(), nil
}

// ComposeBriefing implements Composer.
func (t *Template) ComposeBriefing(ctx context.Context, in BriefingInput) (Briefing, error) {
	if in.Date.IsZero() {
		in.Date = t.now()
	}
	html, err := renderBriefingHTML(in, "")
	if err != nil {
		return Briefing{}, err
	}
	return Briefing{
		Subject: notify.SubjectBriefing + " " + in.Date.Format("Mon Jan 2"),
		HTML:    html,
		Text:    briefingText(in),
		SMS:     SMSSummary(in),
	}, nil
}

// SMSSummary condenses a briefing into a single text message of at most
// notify.SMSLimit characters.
func SMSSummary(in BriefingInput) string {
	var parts []string
	if len(in.Schedule) > 0 {
		parts = append(parts, fmt.Sprintf("Today: %d classes, starts %s",
			len(in.Schedule), clip(in.Schedule[0].Summary, smsClassTitleLen)))
	}
	for _, r := range in.Reminders {
		if types.IsElevated(r.Priority) {
			parts = append(parts, "URGENT: "+clip(r.Content, smsUrgentLen))
			break
		}
	}
	if len(in.Milestones) > 0 {
		parts = append(parts, "Due soon: "+clip(in.Milestones[0].Summary, smsMilestoneLen))
	}
	if len(parts) == 0 {
		if len(in.Reminders) > 0 {
			return notify.TruncateSMS(fmt.Sprintf("%d reminder(s) pending. Check email for details.", len(in.Reminders)))
		}
		return "Nothing scheduled today."
	}
	return notify.TruncateSMS(strings.Join(parts, " | "))
}

func briefingText(in BriefingInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily Briefing for %s\n\n", in.Date.Format("Monday, January 2, 2006"))
	b.WriteString("Today's Schedule:\n" + FormatEvents(in.Schedule) + "\n\n")
	b.WriteString("Upcoming Milestones:\n" + FormatEvents(in.Milestones) + "\n\n")
	b.WriteString("Active Reminders:\n" + FormatReminders(in.Reminders) + "\n\n")
	b.WriteString("Recent Notes:\n" + FormatNotes(in.Notes) + "\n")
	return b.String()
}

var briefingHTML = template.Must(template.New("briefing").Funcs(template.FuncMap{
	"clock":    func(t time.Time) string { return t.Format("15:04") },
	"day":      func(t time.Time) string { return t.Format("Mon Jan 2") },
	"elevated": types.IsElevated,
}).Parse(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; }
h1 { color: #2c3e50; border-bottom: 2px solid #3498db; padding-bottom: 10px; }
h2 { color: #34495e; margin-top: 20px; }
.event { background: #f8f9fa; padding: 10px; margin: 5px 0; border-left: 3px solid #3498db; }
.milestone { background: #fff3cd; padding: 10px; margin: 5px 0; border-left: 3px solid #ffc107; }
.nudge { background: #d4edda; padding: 10px; margin: 5px 0; border-left: 3px solid #28a745; }
.note { background: #e2e3e5; padding: 10px; margin: 5px 0; border-left: 3px solid #6c757d; }
.urgent { border-left-color: #dc3545; background: #f8d7da; }
.time { color: #666; font-size: 0.9em; }
</style>
</head>
<body>
<h1>Daily Briefing</h1>
<p><strong>{{.Date.Format "Monday, January 2, 2006"}}</strong></p>
{{- if .Summary}}
<h2>Summary</h2>
<p>{{.Summary}}</p>
{{- end}}
<h2>Today's Schedule</h2>
{{- range .Schedule}}
<div class="event"><strong>{{.Summary}}</strong><span class="time"> - {{if .AllDay}}all day{{else}}{{clock .Start}}{{end}}</span></div>
{{- else}}
<p>No scheduled events today.</p>
{{- end}}
<h2>Upcoming Milestones</h2>
{{- range .Milestones}}
<div class="milestone"><strong>{{.Summary}}</strong><span class="time"> - Due: {{day .Start}}</span></div>
{{- else}}
<p>No upcoming milestones.</p>
{{- end}}
<h2>Active Reminders</h2>
{{- range .Reminders}}
<div class="nudge{{if elevated .Priority}} urgent{{end}}">{{.Content}}{{if .DueAt}}<span class="time"> - {{.DueAt.Format "Mon Jan 2 3:04 PM"}}</span>{{end}}</div>
{{- else}}
<p>No active reminders.</p>
{{- end}}
{{- if .Notes}}
<h2>Recent Notes</h2>
{{- range .Notes}}
<div class="note">{{.Content}}</div>
{{- end}}
{{- end}}
</body>
</html>
`))

func renderBriefingHTML(in BriefingInput, summary string) (string, error) {
	data := struct {
		BriefingInput
		Summary string
	}{in, summary}

	var buf bytes.Buffer
	if err := briefingHTML.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render briefing: %w", err)
	}
	return buf.String(), nil
}

func nextEvent(events []types.CalendarEvent, now time.Time) *types.CalendarEvent {
	for i := range events {
		if !events[i].AllDay && events[i].Start.After(now) {
			return &events[i]
		}
	}
	return nil
}

func countElevated(reminders []*types.Reminder) int {
	n := 0
	for _, r := range reminders {
		if types.IsElevated(r.Priority) {
			n++
		}
	}
	return n
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
