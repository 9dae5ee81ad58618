package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/mailnudge/internal/calendar"
	"github.com/daviddao/mailnudge/internal/compose"
	"github.com/daviddao/mailnudge/internal/db"
	"github.com/daviddao/mailnudge/internal/notify"
	"github.com/daviddao/mailnudge/internal/schedule"
	"github.com/daviddao/mailnudge/internal/source"
	"github.com/daviddao/mailnudge/internal/types"
)

const (
	scheduleCal = "schedule"
	projectsCal = "projects"
)

var testNow = time.Date(2026, time.January, 20, 14, 30, 0, 0, time.Local)

func clock() time.Time { return testNow }

type harness struct {
	store    *db.DB
	src      *source.Memory
	cal      *calendar.Memory
	recorder *notify.Recorder
	runner   *Runner
}

type harnessOpt func(*Options)

func newHarness(t *testing.T, msgs []types.TriggerMessage, opts ...harnessOpt) *harness {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "mail.db"))
	require.NoError(t, err)
	store.SetClock(clock)
	t.Cleanup(func() { store.Close() })

	h := &harness{
		store:    store,
		src:      source.NewMemory(msgs...),
		cal:      calendar.NewMemory(clock),
		recorder: &notify.Recorder{},
	}
	sched, err := schedule.New(h.cal, projectsCal, nil)
	require.NoError(t, err)

	o := Options{
		Store:      store,
		Source:     h.src,
		Scheduler:  sched,
		Calendar:   h.cal,
		ScheduleID: scheduleCal,
		Dispatcher: notify.NewDispatcher(notify.Options{
			Email:   h.recorder,
			SMS:     h.recorder,
			Log:     store,
			EmailTo: "me@example.com",
			SMSTo:   "+15550100",
		}),
		Composer: compose.NewTemplate(clock),
		Now:      clock,
	}
	for _, opt := range opts {
		opt(&o)
	}
	h.runner, err = New(o)
	require.NoError(t, err)
	return h
}

func trigger(id, subject string) types.TriggerMessage {
	return types.TriggerMessage{MessageID: id, Handle: "h-" + id, Subject: subject, Sender: "Teacher <teacher@school.edu>"}
}

func (h *harness) ledger(t *testing.T) []*types.IngestRecord {
	t.Helper()
	recs, err := h.store.IngestLog(context.Background(), "", 0)
	require.NoError(t, err)
	return recs
}

func (h *harness) reminders(t *testing.T) []*types.Reminder {
	t.Helper()
	rems, err := h.store.ListReminders(context.Background(), "", 0)
	require.NoError(t, err)
	return rems
}

func TestRun_AddNudge(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{trigger("m1", "ADD NUDGE: Print rubrics tomorrow at 7:15am")})

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.NotEmpty(t, sum.RunID)
	assert.Equal(t, 1, sum.Seen)
	assert.Equal(t, 1, sum.Processed)

	rems := h.reminders(t)
	require.Len(t, rems, 1)
	assert.Equal(t, "Print rubrics tomorrow at 7:15am", rems[0].Content)
	assert.Equal(t, types.SourceEmail, rems[0].Source)
	assert.Equal(t, types.StatusPending, rems[0].Status)
	require.NotNil(t, rems[0].DueAt)
	assert.True(t, time.Date(2026, time.January, 21, 7, 15, 0, 0, time.Local).Equal(*rems[0].DueAt))

	recs := h.ledger(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "m1", recs[0].MessageID)
	assert.Equal(t, string(types.KindAddNudge), recs[0].CommandType)
	assert.Equal(t, types.IngestProcessed, recs[0].Status)

	assert.Equal(t, []string{"h-m1"}, h.src.Marked())
}

func TestRun_ReplayIsSkipped(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{trigger("m1", "ADD NUDGE: Print rubrics tomorrow at 7:15am")})

	_, err := h.runner.Run(t.Context())
	require.NoError(t, err)

	h.src.Unread()
	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Seen)
	assert.Equal(t, 0, sum.Processed)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, "already processed", sum.Messages[0].Detail)

	assert.Len(t, h.reminders(t), 1)
	assert.Len(t, h.ledger(t), 1)
}

func TestRun_MilestoneConflict(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{trigger("m2", "ADD MILESTONE: CDR slides due Feb 5 4pm")})
	h.cal.Seed(projectsCal, types.CalendarEvent{
		ID:      "busy",
		Summary: "Parent conferences",
		Start:   time.Date(2026, time.February, 5, 16, 0, 0, 0, time.Local),
		End:     time.Date(2026, time.February, 5, 16, 30, 0, 0, time.Local),
	})

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)

	assert.Empty(t, h.cal.Calls(), "no create may follow a conflicting read")
	assert.Len(t, h.cal.Events(projectsCal), 1)

	emails := h.recorder.Emails()
	require.Len(t, emails, 1)
	assert.Equal(t, notify.SubjectConflict, emails[0].Subject)
	assert.Equal(t, "me@example.com", emails[0].To)
	assert.Contains(t, emails[0].Body, "Parent conferences (2026-02-05 16:00)")

	sms := h.recorder.SMS()
	require.Len(t, sms, 1)
	assert.Contains(t, sms[0].Body, "conflicts with 'Parent conferences'")
	assert.LessOrEqual(t, len([]rune(sms[0].Body)), notify.SMSLimit)

	recs := h.ledger(t)
	require.Len(t, recs, 1)
	assert.Equal(t, types.IngestProcessed, recs[0].Status)
	assert.Equal(t, string(types.KindAddMilestone), recs[0].CommandType)
}

func TestRun_MilestoneCreated(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{trigger("m3", "ADD MILESTONE: CDR slides due Feb 5 4pm")})

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)

	events := h.cal.Events(projectsCal)
	require.Len(t, events, 1)
	assert.Equal(t, "[MILESTONE] CDR slides due Feb 5 4pm", events[0].Summary)
	assert.True(t, time.Date(2026, time.February, 5, 16, 0, 0, 0, time.Local).Equal(events[0].Start))
	assert.Empty(t, h.recorder.Emails())
}

func TestRun_MilestoneWithheld(t *testing.T) {
	t.Run("no due date", func(t *testing.T) {
		h := newHarness(t, []types.TriggerMessage{trigger("m4", "ADD MILESTONE: order lab supplies")})
		sum, err := h.runner.Run(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Processed)
		assert.Contains(t, sum.Messages[0].Detail, "no due date")
		assert.Empty(t, h.cal.Calls())
		assert.Zero(t, h.cal.Reads())
	})

	t.Run("calendar unavailable", func(t *testing.T) {
		h := newHarness(t, []types.TriggerMessage{trigger("m5", "ADD MILESTONE: CDR slides due Feb 5 4pm")},
			func(o *Options) { o.Scheduler, o.Calendar = nil, nil })
		sum, err := h.runner.Run(t.Context())
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Processed)
		assert.Contains(t, sum.Messages[0].Detail, "calendar unavailable")
		assert.Equal(t, types.IngestProcessed, h.ledger(t)[0].Status)
	})
}

func TestRun_TodayWithNothingScheduled(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{trigger("m6", "TODAY?")})

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, "status reply sent", sum.Messages[0].Detail)

	emails := h.recorder.Emails()
	require.Len(t, emails, 1)
	assert.Equal(t, "teacher@school.edu", emails[0].To)
	assert.Equal(t, notify.SubjectStatus, emails[0].Subject)
	assert.Contains(t, emails[0].Body, "No events scheduled.")
	assert.Contains(t, emails[0].Body, "No active reminders.")

	sent, err := h.store.SentLog(t.Context(), types.ChannelEmail, 0)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, types.SendStatusSent, sent[0].Status)
}

func TestRun_TodaySeesEarlierMessagesInBatch(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{
		trigger("a", "ADD NUDGE: collect permission slips"),
		trigger("b", "TODAY?"),
	})
	h.cal.Seed(scheduleCal, types.CalendarEvent{
		Summary: "Period 5 - Robotics",
		Start:   time.Date(2026, time.January, 20, 15, 0, 0, 0, time.Local),
		End:     time.Date(2026, time.January, 20, 16, 0, 0, 0, time.Local),
	})

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)

	emails := h.recorder.Emails()
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Body, "- collect permission slips")
	assert.Contains(t, emails[0].Body, "Next up: Period 5 - Robotics at 3:00 PM")
}

func TestRun_TodayReplyFailureStaysProcessed(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{trigger("m7", "TODAY?")})
	h.recorder.EmailErr = errors.New("smtp down")

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, types.IngestProcessed, h.ledger(t)[0].Status)

	sent, err := h.store.SentLog(t.Context(), types.ChannelEmail, 0)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, types.SendStatusFailed, sent[0].Status)
	assert.Equal(t, "smtp down", sent[0].ErrorMessage)
}

func TestRun_TodayCalendarFailureIsError(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{trigger("m8", "TODAY?")})
	h.cal.ReadErr = errors.New("calendar offline")

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errored)

	recs := h.ledger(t)
	require.Len(t, recs, 1)
	assert.Equal(t, types.IngestError, recs[0].Status)
	assert.Contains(t, recs[0].ErrorMessage, "calendar offline")
	assert.Empty(t, h.recorder.Emails())
}

func TestRun_NoteAndUnknown(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{
		trigger("n1", "NOTE: team 4 needs a new motor"),
		trigger("u1", "Lunch on Friday?"),
	})

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Processed)

	notes, err := h.store.RecentNotes(t.Context(), 10)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "team 4 needs a new motor", notes[0].Content)
	assert.Equal(t, types.SourceEmail, notes[0].Source)

	recs := h.ledger(t)
	require.Len(t, recs, 2)
	assert.Equal(t, "u1", recs[0].MessageID)
	assert.Equal(t, string(types.KindUnknown), recs[0].CommandType)
	assert.Equal(t, types.IngestProcessed, recs[0].Status)
}

// failingNotes fails every AddNote call.
type failingNotes struct {
	*db.DB
}

func (failingNotes) AddNote(context.Context, *types.Note) (int64, error) {
	return 0, &db.StorageError{Op: "add note", Err: errors.New("disk full")}
}

func TestRun_ErrorDoesNotStopBatch(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{
		trigger("x1", "NOTE: this one fails"),
		trigger("x2", "ADD NUDGE: this one works"),
	})
	r, err := New(Options{
		Store:      failingNotes{h.store},
		Source:     h.src,
		Dispatcher: notify.NewDispatcher(notify.Options{}),
		Composer:   compose.NewTemplate(clock),
		Now:        clock,
	})
	require.NoError(t, err)

	sum, err := r.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errored)
	assert.Equal(t, 1, sum.Processed)
	assert.Equal(t, []string{"h-x1", "h-x2"}, h.src.Marked())

	failed, err := h.store.IngestLog(t.Context(), types.IngestError, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "x1", failed[0].MessageID)
	assert.Contains(t, failed[0].ErrorMessage, "disk full")
	assert.Len(t, h.reminders(t), 1)

	// Errored messages are ledger-complete and never retried.
	h.src.Unread()
	sum, err = r.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Skipped)
}

type panickingComposer struct{ compose.Composer }

func (panickingComposer) ComposeStatus(context.Context, []types.CalendarEvent, []*types.Reminder) (string, error) {
	panic("template exploded")
}

func TestRun_PanicIsRecordedAsError(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{trigger("p1", "TODAY?"), trigger("p2", "NOTE: after the panic")},
		func(o *Options) { o.Composer = panickingComposer{} })

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errored)
	assert.Equal(t, 1, sum.Processed)

	failed, err := h.store.IngestLog(t.Context(), types.IngestError, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "panic: template exploded", failed[0].ErrorMessage)
}

func TestRun_ListFailureFailsRun(t *testing.T) {
	h := newHarness(t, nil)
	h.src.ListErr = errors.New("gmail unreachable")

	_, err := h.runner.Run(t.Context())
	assert.ErrorContains(t, err, "gmail unreachable")
}

func TestRun_MarkReadFailureIsIgnored(t *testing.T) {
	h := newHarness(t, []types.TriggerMessage{trigger("r1", "NOTE: kept anyway")})
	h.src.MarkErr = errors.New("label missing")

	sum, err := h.runner.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Processed)
	assert.Len(t, h.ledger(t), 1)
}

type brokenLedger struct {
	*db.DB
	lookupErr error
	writeErr  error
}

func (b brokenLedger) IsMessageProcessed(ctx context.Context, messageID string) (bool, error) {
	if b.lookupErr != nil {
		return false, b.lookupErr
	}
	return b.DB.IsMessageProcessed(ctx, messageID)
}

func (b brokenLedger) LogIngest(ctx context.Context, rec *types.IngestRecord) (int64, error) {
	if b.writeErr != nil {
		return 0, b.writeErr
	}
	return b.DB.LogIngest(ctx, rec)
}

func TestRun_UnledgeredMessageStaysUnread(t *testing.T) {
	tests := []struct {
		name   string
		ledger func(*db.DB) brokenLedger
		status string
	}{
		{
			name:   "lookup fails",
			ledger: func(d *db.DB) brokenLedger { return brokenLedger{DB: d, lookupErr: errors.New("disk I/O error")} },
			status: statusSkipped,
		},
		{
			name: "write fails",
			ledger: func(d *db.DB) brokenLedger {
				return brokenLedger{DB: d, writeErr: &db.StorageError{Op: "log ingest", Err: errors.New("disk I/O error")}}
			},
			status: types.IngestError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, []types.TriggerMessage{trigger("u1", "NOTE: keep me")})
			r, err := New(Options{
				Store:      tt.ledger(h.store),
				Source:     h.src,
				Dispatcher: notify.NewDispatcher(notify.Options{}),
				Composer:   compose.NewTemplate(clock),
				Now:        clock,
			})
			require.NoError(t, err)

			sum, err := r.Run(t.Context())
			require.NoError(t, err)
			require.Len(t, sum.Messages, 1)
			assert.Equal(t, tt.status, sum.Messages[0].Status)
			assert.Contains(t, sum.Messages[0].Detail, "disk I/O error")
			assert.Empty(t, h.src.Marked())
			assert.Empty(t, h.ledger(t))

			unread, err := h.src.ListUnread(t.Context())
			require.NoError(t, err)
			require.Len(t, unread, 1)
			assert.Equal(t, "u1", unread[0].MessageID)

			// Once the ledger recovers the message is handled and marked read.
			sum, err = h.runner.Run(t.Context())
			require.NoError(t, err)
			assert.Equal(t, 1, sum.Processed)
			assert.Equal(t, []string{"h-u1"}, h.src.Marked())
		})
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorContains(t, err, "store is required")
}

func TestReplyAddress(t *testing.T) {
	assert.Equal(t, "teacher@school.edu", replyAddress("Teacher <teacher@school.edu>"))
	assert.Equal(t, "teacher@school.edu", replyAddress("teacher@school.edu"))
	assert.Equal(t, "not an address", replyAddress("not an address"))
}
