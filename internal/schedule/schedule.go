// Package schedule places milestones on the projects calendar without
// double-booking.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/daviddao/mailnudge/internal/calendar"
	"github.com/daviddao/mailnudge/internal/types"
)

// MilestoneDuration is the length of the window a milestone occupies.
const MilestoneDuration = time.Hour

// MilestonePrefix is prepended to milestone event titles.
const MilestonePrefix = "[MILESTONE] "

// Outcome reports what ScheduleMilestone did: exactly one field is set.
type Outcome struct {
	Created   *types.CalendarEvent
	Conflicts []types.CalendarEvent
}

// Scheduler creates milestone events on one calendar.
type Scheduler struct {
	cal        calendar.Port
	calendarID string
	logger     *slog.Logger
}

// New returns a Scheduler writing to calendarID through cal.
func New(cal calendar.Port, calendarID string, logger *slog.Logger) (*Scheduler, error) {
	if cal == nil {
		return nil, errors.New("schedule: calendar is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{cal: cal, calendarID: calendarID, logger: logger}, nil
}

// ScheduleMilestone reads [dueAt, dueAt+1h) and creates the milestone only
// if that window is empty. Any overlapping event is returned as a conflict
// and nothing is written.
func (s *Scheduler) ScheduleMilestone(ctx context.Context, title string, dueAt time.Time, description string) (Outcome, error) {
	end := dueAt.Add(MilestoneDuration)

	existing, err := s.cal.ReadEventsInWindow(ctx, s.calendarID, dueAt, end)
	if err != nil {
		return Outcome{}, fmt.Errorf("check window: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Info("milestone conflicts", "title", title, "due", dueAt, "conflicts", len(existing))
		return Outcome{Conflicts: existing}, nil
	}

	res, err := s.cal.CreateEvent(ctx, s.calendarID, calendar.EventRequest{
		Summary:     MilestonePrefix + title,
		Description: description,
		Start:       dueAt,
		End:         end,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("create milestone: %w", err)
	}
	if res.Conflicted() {
		// The window filled between the read and the write.
		return Outcome{Conflicts: res.Conflicts}, nil
	}
	if res.Created == nil {
		return Outcome{}, errors.New("create milestone: calendar returned no event")
	}
	s.logger.Info("milestone created", "title", title, "due", dueAt, "event", res.Created.ID)
	return Outcome{Created: res.Created}, nil
}
