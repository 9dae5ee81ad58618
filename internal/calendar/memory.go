package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/daviddao/mailnudge/internal/types"
)

// CreateCall is one CreateEvent invocation seen by Memory.
type CreateCall struct {
	CalendarID string
	Request    EventRequest
	Created    bool
}

// Memory is an in-process Port. It applies the same overlap rule as
// Google and records every CreateEvent call.
type Memory struct {
	mu     sync.Mutex
	events map[string][]types.CalendarEvent
	calls  []CreateCall
	nextID int
	now    func() time.Time
	reads  int

	// ReadErr and CreateErr, when set, are returned by reads and creates.
	ReadErr   error
	CreateErr error
}

// NewMemory returns an empty calendar whose "today" is derived from now.
func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{events: map[string][]types.CalendarEvent{}, now: now}
}

// Seed adds events to a calendar without going through CreateEvent.
func (m *Memory) Seed(calendarID string, events ...types.CalendarEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[calendarID] = append(m.events[calendarID], events...)
}

// Events returns every event on a calendar ordered by start.
func (m *Memory) Events(calendarID string) []types.CalendarEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := append([]types.CalendarEvent(nil), m.events[calendarID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// Calls returns the CreateEvent calls in order.
func (m *Memory) Calls() []CreateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CreateCall(nil), m.calls...)
}

// Reads returns how many window reads have been served.
func (m *Memory) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// ReadEventsInWindow implements Port.
func (m *Memory) ReadEventsInWindow(ctx context.Context, calendarID string, start, end time.Time) ([]types.CalendarEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.window(calendarID, start, end)
}

func (m *Memory) window(calendarID string, start, end time.Time) ([]types.CalendarEvent, error) {
	m.reads++
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	var out []types.CalendarEvent
	for _, ev := range m.events[calendarID] {
		if overlaps(ev, start, end) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// CreateEvent implements Port.
func (m *Memory) CreateEvent(ctx context.Context, calendarID string, req EventRequest) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.End.IsZero() {
		req.End = req.Start.Add(time.Hour)
	}
	call := CreateCall{CalendarID: calendarID, Request: req}
	if m.CreateErr != nil {
		m.calls = append(m.calls, call)
		return Result{}, m.CreateErr
	}

	conflicts, err := m.window(calendarID, req.Start, req.End)
	if err != nil {
		m.calls = append(m.calls, call)
		return Result{}, err
	}
	if len(conflicts) > 0 {
		m.calls = append(m.calls, call)
		return Result{Conflicts: conflicts}, nil
	}

	m.nextID++
	ev := types.CalendarEvent{
		ID:          fmt.Sprintf("mem%d", m.nextID),
		Summary:     req.Summary,
		Description: req.Description,
		Start:       req.Start,
		End:         req.End,
	}
	m.events[calendarID] = append(m.events[calendarID], ev)
	call.Created = true
	m.calls = append(m.calls, call)
	return Result{Created: &ev}, nil
}

// ReadTodayEvents implements Port.
func (m *Memory) ReadTodayEvents(ctx context.Context, calendarID string) ([]types.CalendarEvent, error) {
	start, end := dayBounds(m.now())
	return m.ReadEventsInWindow(ctx, calendarID, start, end)
}

// ReadUpcomingEvents implements Port.
func (m *Memory) ReadUpcomingEvents(ctx context.Context, calendarID string, days int) ([]types.CalendarEvent, error) {
	now := m.now()
	return m.ReadEventsInWindow(ctx, calendarID, now, now.AddDate(0, 0, days))
}

// NewDemo returns a Memory calendar holding a teaching day on the schedule
// calendar and one upcoming milestone on the projects calendar.
func NewDemo(now func() time.Time, scheduleID, projectsID string) *Memory {
	m := NewMemory(now)
	today, _ := dayBounds(m.now())
	at := func(day time.Time, hour, minute int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
	}

	m.Seed(scheduleID,
		types.CalendarEvent{ID: "demo1", Summary: "Period 1 - Engineering Design", Start: at(today, 8, 0), End: at(today, 9, 30)},
		types.CalendarEvent{ID: "demo2", Summary: "Period 3 - Robotics", Start: at(today, 10, 30), End: at(today, 12, 0)},
	)
	due := today.AddDate(0, 0, 5)
	m.Seed(projectsID,
		types.CalendarEvent{ID: "demo3", Summary: "[MILESTONE] CDR Slides Due", Start: at(due, 16, 0), End: at(due, 17, 0)},
	)
	return m
}
