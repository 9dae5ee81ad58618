// Package ingest runs trigger messages through the command pipeline:
// parse, deduplicate against the ledger, execute, notify and record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/mailnudge/internal/calendar"
	"github.com/daviddao/mailnudge/internal/command"
	"github.com/daviddao/mailnudge/internal/compose"
	"github.com/daviddao/mailnudge/internal/db"
	"github.com/daviddao/mailnudge/internal/notify"
	"github.com/daviddao/mailnudge/internal/schedule"
	"github.com/daviddao/mailnudge/internal/source"
	"github.com/daviddao/mailnudge/internal/types"
)

// Store is the persistence a run needs. *db.DB satisfies it.
type Store interface {
	IsMessageProcessed(ctx context.Context, messageID string) (bool, error)
	LogIngest(ctx context.Context, rec *types.IngestRecord) (int64, error)
	AddReminder(ctx context.Context, r *types.Reminder) (int64, error)
	AddNote(ctx context.Context, n *types.Note) (int64, error)
	PendingReminders(ctx context.Context, includeFuture bool) ([]*types.Reminder, error)
}

// Options wires a Runner. Scheduler and Calendar may be nil, in which case
// milestones are withheld and status replies omit the schedule.
type Options struct {
	Store      Store
	Source     source.TriggerSource
	Scheduler  *schedule.Scheduler
	Calendar   calendar.Port
	ScheduleID string // calendar read for TODAY? replies
	Dispatcher *notify.Dispatcher
	Composer   compose.Composer
	Logger     *slog.Logger
	Now        func() time.Time
}

// Runner processes one batch of unread trigger messages per Run.
type Runner struct {
	store      Store
	src        source.TriggerSource
	scheduler  *schedule.Scheduler
	cal        calendar.Port
	scheduleID string
	dispatch   *notify.Dispatcher
	composer   compose.Composer
	logger     *slog.Logger
	now        func() time.Time
}

// New returns a Runner. Store, Source, Dispatcher and Composer are required.
func New(opts Options) (*Runner, error) {
	switch {
	case opts.Store == nil:
		return nil, errors.New("ingest: store is required")
	case opts.Source == nil:
		return nil, errors.New("ingest: trigger source is required")
	case opts.Dispatcher == nil:
		return nil, errors.New("ingest: dispatcher is required")
	case opts.Composer == nil:
		return nil, errors.New("ingest: composer is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Runner{
		store:      opts.Store,
		src:        opts.Source,
		scheduler:  opts.Scheduler,
		cal:        opts.Calendar,
		scheduleID: opts.ScheduleID,
		dispatch:   opts.Dispatcher,
		composer:   opts.Composer,
		logger:     opts.Logger,
		now:        opts.Now,
	}, nil
}

// Run processes every currently unread message, one at a time and in
// source order. It fails only when the source cannot be listed; problems
// with a single message are recorded in the ledger and the batch goes on.
func (r *Runner) Run(ctx context.Context) (*types.IngestSummary, error) {
	runID := uuid.NewString()
	log := r.logger.With("run", runID)

	msgs, err := r.src.ListUnread(ctx)
	if err != nil {
		return nil, fmt.Errorf("list unread: %w", err)
	}
	log.Info("ingest started", "messages", len(msgs))

	summary := &types.IngestSummary{RunID: runID, Seen: len(msgs), Messages: []types.MessageOutcome{}}
	for _, msg := range msgs {
		out, ledgered := r.processMessage(ctx, log.With("message_id", msg.MessageID), msg)
		switch out.Status {
		case types.IngestProcessed:
			summary.Processed++
		case types.IngestError:
			summary.Errored++
		default:
			summary.Skipped++
		}
		summary.Messages = append(summary.Messages, out)

		// A message with no ledger row stays unread for the next run.
		if !ledgered {
			continue
		}
		if err := r.src.MarkRead(ctx, msg); err != nil {
			log.Warn("could not mark message read", "message_id", msg.MessageID, "err", err)
		}
	}

	log.Info("ingest finished",
		"processed", summary.Processed, "errored", summary.Errored, "skipped", summary.Skipped)
	return summary, nil
}

// statusSkipped marks an outcome that wrote nothing to the ledger.
const statusSkipped = "skipped"

// processMessage handles one message and reports whether the ledger now
// holds a row for it.
func (r *Runner) processMessage(ctx context.Context, log *slog.Logger, msg types.TriggerMessage) (types.MessageOutcome, bool) {
	cmd := command.ParseMessage(msg)
	out := types.MessageOutcome{MessageID: msg.MessageID, Subject: msg.Subject, Command: cmd.Kind}

	done, err := r.store.IsMessageProcessed(ctx, msg.MessageID)
	if err != nil {
		// Without the ledger there is no way to tell whether this message
		// already ran, so leave it for the next run.
		log.Error("ledger lookup failed", "err", err)
		out.Status, out.Detail = statusSkipped, err.Error()
		return out, false
	}
	if done {
		log.Debug("already processed")
		out.Status, out.Detail = statusSkipped, "already processed"
		return out, true
	}

	detail, execErr := r.execute(ctx, log.With("command", string(cmd.Kind)), msg, cmd)

	rec := &types.IngestRecord{
		MessageID:      msg.MessageID,
		Subject:        msg.Subject,
		Sender:         msg.Sender,
		CommandType:    string(cmd.Kind),
		CommandContent: cmd.Content,
		Status:         types.IngestProcessed,
	}
	out.Status, out.Detail = types.IngestProcessed, detail
	if execErr != nil {
		log.Error("command failed", "err", execErr)
		rec.Status, rec.ErrorMessage = types.IngestError, execErr.Error()
		out.Status, out.Detail = types.IngestError, execErr.Error()
	}

	if _, err := r.store.LogIngest(ctx, rec); err != nil {
		if errors.Is(err, db.ErrDuplicateMessage) {
			log.Warn("message recorded by another run")
			out.Status, out.Detail = statusSkipped, "already processed"
			return out, true
		}
		log.Error("could not write ledger row", "err", err)
		out.Status, out.Detail = types.IngestError, fmt.Sprintf("ledger: %v", err)
		return out, false
	}
	return out, true
}

// execute runs the command branch. A returned error, or a panic, marks the
// message as errored in the ledger.
func (r *Runner) execute(ctx context.Context, log *slog.Logger, msg types.TriggerMessage, cmd types.Command) (detail string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()

	switch cmd.Kind {
	case types.KindAddNudge:
		return r.addNudge(ctx, log, cmd)
	case types.KindAddMilestone:
		return r.addMilestone(ctx, log, cmd)
	case types.KindNote:
		return r.addNote(ctx, log, cmd)
	case types.KindToday:
		return r.replyToday(ctx, log, msg)
	default:
		return "no command found", nil
	}
}

func (r *Runner) addNudge(ctx context.Context, log *slog.Logger, cmd types.Command) (string, error) {
	rem := &types.Reminder{Content: cmd.Content, Source: types.SourceEmail}
	if due, ok := command.ParseDue(cmd.Content, r.now()); ok {
		rem.DueAt = &due
	}
	id, err := r.store.AddReminder(ctx, rem)
	if err != nil {
		return "", fmt.Errorf("add reminder: %w", err)
	}
	log.Info("reminder added", "id", id, "due", rem.DueAt)
	if rem.DueAt != nil {
		return fmt.Sprintf("reminder #%d due %s", id, rem.DueAt.Format("Mon Jan 2 3:04 PM")), nil
	}
	return fmt.Sprintf("reminder #%d", id), nil
}

func (r *Runner) addMilestone(ctx context.Context, log *slog.Logger, cmd types.Command) (string, error) {
	due, ok := command.ParseDue(cmd.Content, r.now())
	if !ok {
		log.Info("milestone withheld: no due date")
		return "no due date found, calendar not changed", nil
	}
	if r.scheduler == nil {
		log.Info("milestone withheld: calendar unavailable")
		return "calendar unavailable, calendar not changed", nil
	}

	outcome, err := r.scheduler.ScheduleMilestone(ctx, cmd.Content, due, "Created from trigger email")
	if err != nil {
		return "", err
	}
	if outcome.Created != nil {
		return "milestone created: " + outcome.Created.Summary, nil
	}

	proposed := fmt.Sprintf("%s%s (%s)", schedule.MilestonePrefix, cmd.Content, due.Format("2006-01-02 15:04"))
	r.notifyConflict(ctx, log, proposed, cmd.Content, outcome.Conflicts)
	return fmt.Sprintf("conflicts with %d event(s), milestone not created", len(outcome.Conflicts)), nil
}

// notifyConflict sends the conflict on every available channel. Failures
// are logged by the dispatcher and do not affect the message outcome.
func (r *Runner) notifyConflict(ctx context.Context, log *slog.Logger, proposed, title string, conflicts []types.CalendarEvent) {
	if r.dispatch.HasEmail() {
		if res := r.dispatch.Email(ctx, notify.ConflictEmail(proposed, conflicts)); res.Success {
			log.Info("conflict email sent")
		}
	}
	if r.dispatch.HasSMS() && len(conflicts) > 0 {
		if res := r.dispatch.SMS(ctx, notify.ConflictSMS(title, conflicts[0].Summary), ""); res.Success {
			log.Info("conflict sms sent", "sid", res.SID)
		}
	}
}

func (r *Runner) addNote(ctx context.Context, log *slog.Logger, cmd types.Command) (string, error) {
	id, err := r.store.AddNote(ctx, &types.Note{Content: cmd.Content, Source: types.SourceEmail})
	if err != nil {
		return "", fmt.Errorf("add note: %w", err)
	}
	log.Info("note added", "id", id)
	return fmt.Sprintf("note #%d", id), nil
}

func (r *Runner) replyToday(ctx context.Context, log *slog.Logger, msg types.TriggerMessage) (string, error) {
	reminders, err := r.store.PendingReminders(ctx, true)
	if err != nil {
		return "", fmt.Errorf("load reminders: %w", err)
	}

	var events []types.CalendarEvent
	if r.cal != nil {
		events, err = r.cal.ReadTodayEvents(ctx, r.scheduleID)
		if err != nil {
			return "", fmt.Errorf("read today's events: %w", err)
		}
	}

	body, err := r.composer.ComposeStatus(ctx, events, reminders)
	if err != nil {
		return "", fmt.Errorf("compose status: %w", err)
	}

	res := r.dispatch.Email(ctx, notify.EmailMessage{
		To:      replyAddress(msg.Sender),
		Subject: notify.SubjectStatus,
		Body:    body,
	})
	if !res.Success {
		log.Warn("status reply not sent", "err", res.Err)
		return fmt.Sprintf("status composed, reply not sent: %v", res.Err), nil
	}
	log.Info("status reply sent", "events", len(events), "reminders", len(reminders))
	return "status reply sent", nil
}

// replyAddress extracts the bare address from a From header, returning the
// header unchanged when it does not parse.
func replyAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return from
	}
	return addr.Address
}
