// Package calendar reads and creates events on an external calendar.
package calendar

import (
	"context"
	"time"

	"github.com/daviddao/mailnudge/internal/types"
)

// Port is the calendar capability the scheduler and status queries need.
type Port interface {
	// ReadEventsInWindow returns events overlapping [start, end).
	ReadEventsInWindow(ctx context.Context, calendarID string, start, end time.Time) ([]types.CalendarEvent, error)
	// CreateEvent creates req unless it overlaps an existing event, in
	// which case the overlapping events are returned and nothing is written.
	CreateEvent(ctx context.Context, calendarID string, req EventRequest) (Result, error)
	// ReadTodayEvents returns events between local midnight and the next.
	ReadTodayEvents(ctx context.Context, calendarID string) ([]types.CalendarEvent, error)
	// ReadUpcomingEvents returns events from now until days from now.
	ReadUpcomingEvents(ctx context.Context, calendarID string, days int) ([]types.CalendarEvent, error)
}

// EventRequest describes an event to create.
type EventRequest struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
}

// Result is the outcome of CreateEvent: exactly one of Created and
// Conflicts is set.
type Result struct {
	Created   *types.CalendarEvent
	Conflicts []types.CalendarEvent
}

// Conflicted reports whether the request was refused.
func (r Result) Conflicted() bool {
	return r.Created == nil && len(r.Conflicts) > 0
}

func dayBounds(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 1)
}

func overlaps(ev types.CalendarEvent, start, end time.Time) bool {
	return ev.Start.Before(end) && ev.End.After(start)
}
