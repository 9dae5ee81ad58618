package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/mailnudge/internal/calendar"
	"github.com/daviddao/mailnudge/internal/types"
)

var due = time.Date(2026, time.February, 5, 16, 0, 0, 0, time.Local)

func newScheduler(t *testing.T, cal calendar.Port) *Scheduler {
	t.Helper()
	s, err := New(cal, "projects", nil)
	require.NoError(t, err)
	return s
}

func TestScheduleMilestone_Creates(t *testing.T) {
	cal := calendar.NewMemory(nil)
	s := newScheduler(t, cal)

	out, err := s.ScheduleMilestone(context.Background(), "Robot demo", due, "bring batteries")
	require.NoError(t, err)
	require.NotNil(t, out.Created)
	assert.Empty(t, out.Conflicts)
	assert.Equal(t, "[MILESTONE] Robot demo", out.Created.Summary)
	assert.True(t, due.Equal(out.Created.Start))
	assert.True(t, due.Add(time.Hour).Equal(out.Created.End))

	calls := cal.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "projects", calls[0].CalendarID)
	assert.Equal(t, "bring batteries", calls[0].Request.Description)
}

func TestScheduleMilestone_ConflictWritesNothing(t *testing.T) {
	cal := calendar.NewMemory(nil)
	cal.Seed("projects", types.CalendarEvent{ID: "staff", Summary: "Staff Meeting", Start: due, End: due.Add(time.Hour)})
	s := newScheduler(t, cal)

	out, err := s.ScheduleMilestone(context.Background(), "CDR slides due Feb 5 4pm", due, "")
	require.NoError(t, err)
	assert.Nil(t, out.Created)
	require.Len(t, out.Conflicts, 1)
	assert.Equal(t, "Staff Meeting", out.Conflicts[0].Summary)

	assert.Empty(t, cal.Calls())
	assert.Len(t, cal.Events("projects"), 1)
}

func TestScheduleMilestone_WindowEdges(t *testing.T) {
	cal := calendar.NewMemory(nil)
	cal.Seed("projects",
		types.CalendarEvent{ID: "ends-at-start", Start: due.Add(-time.Hour), End: due},
		types.CalendarEvent{ID: "starts-at-end", Start: due.Add(time.Hour), End: due.Add(2 * time.Hour)},
	)
	// Other calendars are not consulted.
	cal.Seed("schedule", types.CalendarEvent{ID: "class", Start: due, End: due.Add(time.Hour)})
	s := newScheduler(t, cal)

	out, err := s.ScheduleMilestone(context.Background(), "fits", due, "")
	require.NoError(t, err)
	assert.NotNil(t, out.Created)
}

func TestScheduleMilestone_ReadFailure(t *testing.T) {
	cal := calendar.NewMemory(nil)
	cal.ReadErr = errors.New("403 forbidden")
	s := newScheduler(t, cal)

	_, err := s.ScheduleMilestone(context.Background(), "x", due, "")
	assert.ErrorContains(t, err, "403 forbidden")
	assert.Empty(t, cal.Calls())
}

// racingPort reports an empty window but refuses the create, as if another
// client booked the slot in between.
type racingPort struct {
	calendar.Port
	conflict types.CalendarEvent
}

func (r racingPort) ReadEventsInWindow(context.Context, string, time.Time, time.Time) ([]types.CalendarEvent, error) {
	return nil, nil
}

func (r racingPort) CreateEvent(context.Context, string, calendar.EventRequest) (calendar.Result, error) {
	return calendar.Result{Conflicts: []types.CalendarEvent{r.conflict}}, nil
}

func TestScheduleMilestone_ConflictFromCreate(t *testing.T) {
	s := newScheduler(t, racingPort{conflict: types.CalendarEvent{Summary: "late booking"}})

	out, err := s.ScheduleMilestone(context.Background(), "x", due, "")
	require.NoError(t, err)
	assert.Nil(t, out.Created)
	require.Len(t, out.Conflicts, 1)
	assert.Equal(t, "late booking", out.Conflicts[0].Summary)
}

type silentPort struct{ racingPort }

func (silentPort) CreateEvent(context.Context, string, calendar.EventRequest) (calendar.Result, error) {
	return calendar.Result{}, nil
}

func TestScheduleMilestone_EmptyCreateResult(t *testing.T) {
	s := newScheduler(t, silentPort{})

	out, err := s.ScheduleMilestone(context.Background(), "x", due, "")
	assert.ErrorContains(t, err, "calendar returned no event")
	assert.Equal(t, Outcome{}, out)
}

func TestNew_RequiresCalendar(t *testing.T) {
	_, err := New(nil, "projects", nil)
	assert.Error(t, err)
}
