package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/mailnudge/internal/types"
)

var memNow = time.Date(2026, time.February, 2, 7, 0, 0, 0, time.Local)

func clock() time.Time { return memNow }

func TestMemory_WindowOverlap(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(clock)
	base := time.Date(2026, time.February, 5, 16, 0, 0, 0, time.Local)
	m.Seed("projects",
		types.CalendarEvent{ID: "before", Start: base.Add(-time.Hour), End: base},
		types.CalendarEvent{ID: "straddle", Start: base.Add(-30 * time.Minute), End: base.Add(30 * time.Minute)},
		types.CalendarEvent{ID: "inside", Start: base.Add(15 * time.Minute), End: base.Add(45 * time.Minute)},
		types.CalendarEvent{ID: "after", Start: base.Add(time.Hour), End: base.Add(2 * time.Hour)},
	)

	got, err := m.ReadEventsInWindow(ctx, "projects", base, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "straddle", got[0].ID)
	assert.Equal(t, "inside", got[1].ID)

	other, err := m.ReadEventsInWindow(ctx, "schedule", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemory_CreateEvent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(clock)
	start := time.Date(2026, time.February, 6, 10, 0, 0, 0, time.Local)

	res, err := m.CreateEvent(ctx, "projects", EventRequest{Summary: "[MILESTONE] demo", Start: start})
	require.NoError(t, err)
	require.NotNil(t, res.Created)
	assert.False(t, res.Conflicted())
	assert.True(t, start.Add(time.Hour).Equal(res.Created.End))

	res, err = m.CreateEvent(ctx, "projects", EventRequest{Summary: "clash", Start: start.Add(30 * time.Minute)})
	require.NoError(t, err)
	assert.True(t, res.Conflicted())
	assert.Nil(t, res.Created)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, "[MILESTONE] demo", res.Conflicts[0].Summary)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Created)
	assert.False(t, calls[1].Created)
	assert.Len(t, m.Events("projects"), 1)
}

func TestMemory_Errors(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(clock)
	m.ReadErr = errors.New("calendar down")

	_, err := m.ReadTodayEvents(ctx, "schedule")
	assert.Error(t, err)
	_, err = m.CreateEvent(ctx, "projects", EventRequest{Start: memNow})
	assert.Error(t, err)
	assert.Empty(t, m.Events("projects"))
}

func TestMemory_TodayAndUpcoming(t *testing.T) {
	ctx := context.Background()
	m := NewDemo(clock, "schedule", "projects")

	today, err := m.ReadTodayEvents(ctx, "schedule")
	require.NoError(t, err)
	require.Len(t, today, 2)
	assert.Equal(t, "Period 1 - Engineering Design", today[0].Summary)

	upcoming, err := m.ReadUpcomingEvents(ctx, "projects", 14)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "[MILESTONE] CDR Slides Due", upcoming[0].Summary)

	none, err := m.ReadUpcomingEvents(ctx, "projects", 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}
