package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"

	"github.com/daviddao/mailnudge/internal/types"
)

// Google is a Port backed by the Google Calendar API.
type Google struct {
	svc      *gcal.Service
	timezone string
	now      func() time.Time
}

// NewGoogle wraps an authenticated Calendar service. timezone is the IANA
// zone written on created events.
func NewGoogle(svc *gcal.Service, timezone string) *Google {
	return &Google{svc: svc, timezone: timezone, now: time.Now}
}

// ReadEventsInWindow implements Port.
func (g *Google) ReadEventsInWindow(ctx context.Context, calendarID string, start, end time.Time) ([]types.CalendarEvent, error) {
	var events []types.CalendarEvent
	err := g.svc.Events.List(calendarID).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				events = append(events, parseEvent(item))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list events on %s: %w", calendarID, err)
	}
	return events, nil
}

// CreateEvent implements Port. The window is always read first.
func (g *Google) CreateEvent(ctx context.Context, calendarID string, req EventRequest) (Result, error) {
	if req.End.IsZero() {
		req.End = req.Start.Add(time.Hour)
	}
	conflicts, err := g.ReadEventsInWindow(ctx, calendarID, req.Start, req.End)
	if err != nil {
		return Result{}, err
	}
	if len(conflicts) > 0 {
		return Result{Conflicts: conflicts}, nil
	}

	ev := &gcal.Event{
		Summary:     req.Summary,
		Description: req.Description,
		Start:       &gcal.EventDateTime{DateTime: req.Start.Format(time.RFC3339), TimeZone: g.timezone},
		End:         &gcal.EventDateTime{DateTime: req.End.Format(time.RFC3339), TimeZone: g.timezone},
	}
	created, err := g.svc.Events.Insert(calendarID, ev).Context(ctx).Do()
	if err != nil {
		return Result{}, fmt.Errorf("insert event on %s: %w", calendarID, err)
	}
	out := parseEvent(created)
	return Result{Created: &out}, nil
}

// ReadTodayEvents implements Port.
func (g *Google) ReadTodayEvents(ctx context.Context, calendarID string) ([]types.CalendarEvent, error) {
	start, end := dayBounds(g.now())
	return g.ReadEventsInWindow(ctx, calendarID, start, end)
}

// ReadUpcomingEvents implements Port.
func (g *Google) ReadUpcomingEvents(ctx context.Context, calendarID string, days int) ([]types.CalendarEvent, error) {
	now := g.now()
	return g.ReadEventsInWindow(ctx, calendarID, now, now.AddDate(0, 0, days))
}

func parseEvent(e *gcal.Event) types.CalendarEvent {
	out := types.CalendarEvent{
		ID:          e.Id,
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Link:        e.HtmlLink,
	}
	if out.Summary == "" {
		out.Summary = "Untitled"
	}
	out.Start, out.AllDay = parseEventTime(e.Start)
	out.End, _ = parseEventTime(e.End)
	return out
}

// parseEventTime returns the instant of a timed event or local midnight of
// an all-day event's date.
func parseEventTime(t *gcal.EventDateTime) (time.Time, bool) {
	if t == nil {
		return time.Time{}, false
	}
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return parsed.In(time.Local), false
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", t.Date, time.Local)
		if err != nil {
			return time.Time{}, true
		}
		return parsed, true
	}
	return time.Time{}, false
}
