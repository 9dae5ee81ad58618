// Package briefing assembles and sends the daily briefing.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/mailnudge/internal/calendar"
	"github.com/daviddao/mailnudge/internal/compose"
	"github.com/daviddao/mailnudge/internal/notify"
	"github.com/daviddao/mailnudge/internal/types"
)

// Defaults for what a briefing covers.
const (
	MilestoneDays = 14
	NoteLimit     = 10
)

// Store is the persistence a briefing needs. *db.DB satisfies it.
type Store interface {
	PendingReminders(ctx context.Context, includeFuture bool) ([]*types.Reminder, error)
	RecentNotes(ctx context.Context, limit int) ([]*types.Note, error)
	MarkSent(ctx context.Context, id int64) error
}

// Options wires a Service. Calendar may be nil.
type Options struct {
	Store      Store
	Calendar   calendar.Port
	ScheduleID string
	ProjectsID string
	Dispatcher *notify.Dispatcher
	Composer   compose.Composer
	Logger     *slog.Logger
	Now        func() time.Time
}

// Report describes one briefing run.
type Report struct {
	RunID      string `json:"run_id"`
	Events     int    `json:"events"`
	Milestones int    `json:"milestones"`
	Reminders  int    `json:"reminders"`
	Notes      int    `json:"notes"`
	EmailSent  bool   `json:"email_sent"`
	SMSSent    bool   `json:"sms_sent"`
	MarkedSent int    `json:"marked_sent"`
	SMS        string `json:"sms"`
}

// Service builds the briefing from the calendars and the store.
type Service struct {
	opts Options
}

// New returns a Service. Store, Dispatcher and Composer are required.
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Dispatcher == nil || opts.Composer == nil {
		return nil, errors.New("briefing: store, dispatcher and composer are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{opts: opts}, nil
}

// Run gathers today's data, sends the briefing on every available channel
// and marks the due reminders it announced as sent.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	log := s.opts.Logger.With("run", runID)
	now := s.opts.Now()

	in := compose.BriefingInput{Date: now}
	if s.opts.Calendar != nil {
		var err error
		if in.Schedule, err = s.opts.Calendar.ReadTodayEvents(ctx, s.opts.ScheduleID); err != nil {
			log.Warn("could not read schedule", "err", err)
		}
		if in.Milestones, err = s.opts.Calendar.ReadUpcomingEvents(ctx, s.opts.ProjectsID, MilestoneDays); err != nil {
			log.Warn("could not read milestones", "err", err)
		}
	}

	reminders, err := s.opts.Store.PendingReminders(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("load reminders: %w", err)
	}
	in.Reminders = reminders

	if in.Notes, err = s.opts.Store.RecentNotes(ctx, NoteLimit); err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}

	b, err := s.opts.Composer.ComposeBriefing(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("compose briefing: %w", err)
	}

	report := &Report{
		RunID:      runID,
		Events:     len(in.Schedule),
		Milestones: len(in.Milestones),
		Reminders:  len(in.Reminders),
		Notes:      len(in.Notes),
		SMS:        b.SMS,
	}
	log.Info("briefing composed",
		"events", report.Events, "milestones", report.Milestones,
		"reminders", report.Reminders, "notes", report.Notes)

	d := s.opts.Dispatcher
	if d.HasEmail() {
		report.EmailSent = d.Email(ctx, notify.EmailMessage{Subject: b.Subject, Body: b.HTML, HTML: true}).Success
	}
	if d.HasSMS() {
		report.SMSSent = d.SMS(ctx, b.SMS, "").Success
	}
	if !report.EmailSent && !report.SMSSent {
		log.Warn("briefing not delivered on any channel")
		return report, nil
	}

	for _, r := range in.Reminders {
		if r.DueAt == nil || r.DueAt.After(now) {
			continue
		}
		if err := s.opts.Store.MarkSent(ctx, r.ID); err != nil {
			log.Warn("could not mark reminder sent", "id", r.ID, "err", err)
			continue
		}
		report.MarkedSent++
	}
	log.Info("briefing sent", "email", report.EmailSent, "sms", report.SMSSent, "marked_sent", report.MarkedSent)
	return report, nil
}
