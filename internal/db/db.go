// Package db provides SQLite storage for mailnudge.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/daviddao/mailnudge/internal/types"
)

// TimeLayout is how timestamps are stored: local wall-clock time without
// an offset, so that lexical order is chronological order and a date
// prefix selects a whole day.
const TimeLayout = "2006-01-02T15:04:05"

const dateLayout = "2006-01-02"

// DB wraps a SQLite connection for mailnudge operations.
type DB struct {
	conn *sql.DB
	path string
	now  func() time.Time
}

// Open opens (or creates) a mailnudge database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath, now: time.Now}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// SetClock replaces the time source used for created_at, completed_at,
// sent_at and processed_at stamps and for "now" in due filters.
func (d *DB) SetClock(now func() time.Time) {
	d.now = now
}

// FormatTime renders t in the storage layout.
func FormatTime(t time.Time) string {
	return t.In(time.Local).Format(TimeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.ParseInLocation(TimeLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}

func (d *DB) stamp() string {
	return FormatTime(d.now())
}

// DiscoverDB finds the mailnudge database by walking up from cwd.
// Returns the path to .mailnudge/mail.db or empty string if not found.
func DiscoverDB() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".mailnudge", "mail.db")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// FindProjectRoot walks up from cwd looking for a .git directory.
func FindProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// withTx runs fn in a transaction. It commits once if fn returns nil and
// rolls back otherwise; a panic in fn rolls back and is re-raised.
func (d *DB) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return wrapErr(op, err)
	}
	if err = tx.Commit(); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return nil
}

func insert(ctx context.Context, tx *sql.Tx, b sq.InsertBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// --- Reminder operations ---

const reminderColumns = "id, content, due_at, priority, status, source, created_at, completed_at"

// AddReminder inserts a pending reminder and returns its id. Empty
// priority and source default to normal and manual. r is updated with the
// stored id, status and creation time.
func (d *DB) AddReminder(ctx context.Context, r *types.Reminder) (int64, error) {
	r.Content = strings.TrimSpace(r.Content)
	if r.Content == "" {
		return 0, fmt.Errorf("reminder content is required: %w", ErrInvalid)
	}
	if r.Priority == "" {
		r.Priority = types.PriorityNormal
	}
	if !types.IsValidPriority(r.Priority) {
		return 0, fmt.Errorf("priority %q: %w", r.Priority, ErrInvalid)
	}
	if r.Source == "" {
		r.Source = types.SourceManual
	}

	var due any
	if r.DueAt != nil {
		due = FormatTime(*r.DueAt)
	}
	created := d.stamp()

	var id int64
	err := d.withTx(ctx, "add reminder", func(tx *sql.Tx) error {
		var err error
		id, err = insert(ctx, tx, sq.Insert("nudges").
			Columns("content", "due_at", "priority", "status", "source", "created_at").
			Values(r.Content, due, r.Priority, types.StatusPending, r.Source, created))
		return err
	})
	if err != nil {
		return 0, err
	}

	r.ID = id
	r.Status = types.StatusPending
	r.CreatedAt = parseTime(created)
	r.CompletedAt = nil
	return id, nil
}

// GetReminder returns the reminder with the given id.
func (d *DB) GetReminder(ctx context.Context, id int64) (*types.Reminder, error) {
	row := d.conn.QueryRowContext(ctx, "SELECT "+reminderColumns+" FROM nudges WHERE id = ?", id)
	r, err := scanReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reminder %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("get reminder", err)
	}
	return r, nil
}

// PendingReminders returns pending reminders ordered by due time, with
// undated reminders first. Unless includeFuture is set, reminders due
// after now are left out.
func (d *DB) PendingReminders(ctx context.Context, includeFuture bool) ([]*types.Reminder, error) {
	b := sq.Select(reminderColumns).
		From("nudges").
		Where(sq.Eq{"status": types.StatusPending}).
		OrderBy("due_at ASC", "id ASC")
	if !includeFuture {
		b = b.Where(sq.Or{sq.Eq{"due_at": nil}, sq.LtOrEq{"due_at": d.stamp()}})
	}
	return d.queryReminders(ctx, "pending reminders", b)
}

// RemindersDueOn returns pending reminders whose stored due time starts
// with the given calendar date.
func (d *DB) RemindersDueOn(ctx context.Context, date time.Time) ([]*types.Reminder, error) {
	b := sq.Select(reminderColumns).
		From("nudges").
		Where(sq.Eq{"status": types.StatusPending}).
		Where(sq.Like{"due_at": date.In(time.Local).Format(dateLayout) + "%"}).
		OrderBy("due_at ASC", "id ASC")
	return d.queryReminders(ctx, "reminders due on", b)
}

// ListReminders returns reminders with the given status, or all reminders
// when status is empty. limit <= 0 means no limit.
func (d *DB) ListReminders(ctx context.Context, status string, limit int) ([]*types.Reminder, error) {
	b := sq.Select(reminderColumns).From("nudges").OrderBy("due_at ASC", "id ASC")
	if status != "" {
		if !types.IsValidStatus(status) {
			return nil, fmt.Errorf("status %q: %w", status, ErrInvalid)
		}
		b = b.Where(sq.Eq{"status": status})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return d.queryReminders(ctx, "list reminders", b)
}

// MarkSent moves a pending reminder to sent.
func (d *DB) MarkSent(ctx context.Context, id int64) error {
	return d.transition(ctx, "mark sent", id, types.StatusSent)
}

// CompleteReminder moves a sent reminder to completed and stamps
// completed_at.
func (d *DB) CompleteReminder(ctx context.Context, id int64) error {
	return d.transition(ctx, "complete reminder", id, types.StatusCompleted)
}

// CancelReminder moves a pending reminder to cancelled.
func (d *DB) CancelReminder(ctx context.Context, id int64) error {
	return d.transition(ctx, "cancel reminder", id, types.StatusCancelled)
}

func (d *DB) transition(ctx context.Context, op string, id int64, to string) error {
	return d.withTx(ctx, op, func(tx *sql.Tx) error {
		var from string
		err := tx.QueryRowContext(ctx, "SELECT status FROM nudges WHERE id = ?", id).Scan(&from)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reminder %d: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if !types.CanTransition(from, to) {
			return &types.TransitionError{ID: id, From: from, To: to}
		}

		b := sq.Update("nudges").
			Set("status", to).
			Where(sq.Eq{"id": id, "status": from})
		if to == types.StatusCompleted {
			b = b.Set("completed_at", d.stamp())
		}
		query, args, err := b.ToSql()
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return fmt.Errorf("reminder %d: status changed concurrently", id)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReminder(row rowScanner) (*types.Reminder, error) {
	r := &types.Reminder{}
	var due, completed sql.NullString
	var created string
	if err := row.Scan(&r.ID, &r.Content, &due, &r.Priority, &r.Status, &r.Source, &created, &completed); err != nil {
		return nil, err
	}
	r.DueAt = parseNullTime(due)
	r.CreatedAt = parseTime(created)
	r.CompletedAt = parseNullTime(completed)
	return r, nil
}

func (d *DB) queryReminders(ctx context.Context, op string, b sq.SelectBuilder) ([]*types.Reminder, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, wrapErr(op, err)
	}
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var result []*types.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		result = append(result, r)
	}
	return result, wrapErr(op, rows.Err())
}

// --- Note operations ---

// AddNote appends a note and returns its id.
func (d *DB) AddNote(ctx context.Context, n *types.Note) (int64, error) {
	n.Content = strings.TrimSpace(n.Content)
	if n.Content == "" {
		return 0, fmt.Errorf("note content is required: %w", ErrInvalid)
	}
	if n.Source == "" {
		n.Source = types.SourceManual
	}
	created := d.stamp()

	var id int64
	err := d.withTx(ctx, "add note", func(tx *sql.Tx) error {
		var err error
		id, err = insert(ctx, tx, sq.Insert("notes").
			Columns("content", "tags", "source", "created_at").
			Values(n.Content, nullStr(n.Tags), n.Source, created))
		return err
	})
	if err != nil {
		return 0, err
	}
	n.ID = id
	n.CreatedAt = parseTime(created)
	return id, nil
}

// RecentNotes returns the newest notes first.
func (d *DB) RecentNotes(ctx context.Context, limit int) ([]*types.Note, error) {
	b := sq.Select("id, content, tags, source, created_at").
		From("notes").
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return d.queryNotes(ctx, "recent notes", b)
}

// SearchNotes returns notes whose content or tags contain query.
func (d *DB) SearchNotes(ctx context.Context, query string) ([]*types.Note, error) {
	pattern := "%" + query + "%"
	b := sq.Select("id, content, tags, source, created_at").
		From("notes").
		Where(sq.Or{sq.Like{"content": pattern}, sq.Like{"tags": pattern}}).
		OrderBy("created_at DESC", "id DESC")
	return d.queryNotes(ctx, "search notes", b)
}

func (d *DB) queryNotes(ctx context.Context, op string, b sq.SelectBuilder) ([]*types.Note, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, wrapErr(op, err)
	}
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()

	var result []*types.Note
	for rows.Next() {
		n := &types.Note{}
		var tags sql.NullString
		var created string
		if err := rows.Scan(&n.ID, &n.Content, &tags, &n.Source, &created); err != nil {
			return nil, wrapErr(op, err)
		}
		n.Tags = tags.String
		n.CreatedAt = parseTime(created)
		result = append(result, n)
	}
	return result, wrapErr(op, rows.Err())
}

// --- Send log operations ---

// LogSend records one notification attempt and returns its id. An empty
// status is stored as sent.
func (d *DB) LogSend(ctx context.Context, e *types.SendLogEntry) (int64, error) {
	if e.Channel != types.ChannelEmail && e.Channel != types.ChannelSMS {
		return 0, fmt.Errorf("channel %q: %w", e.Channel, ErrInvalid)
	}
	if e.Status == "" {
		e.Status = types.SendStatusSent
	}
	sent := d.stamp()

	var id int64
	err := d.withTx(ctx, "log send", func(tx *sql.Tx) error {
		var err error
		id, err = insert(ctx, tx, sq.Insert("sent_log").
			Columns("channel", "recipient", "subject", "content", "status", "sent_at", "error_message").
			Values(e.Channel, e.Recipient, nullStr(e.Subject), e.Content, e.Status, sent, nullStr(e.ErrorMessage)))
		return err
	})
	if err != nil {
		return 0, err
	}
	e.ID = id
	e.SentAt = parseTime(sent)
	return id, nil
}

// SentLog returns the newest send attempts first, optionally limited to
// one channel.
func (d *DB) SentLog(ctx context.Context, channel string, limit int) ([]*types.SendLogEntry, error) {
	b := sq.Select("id, channel, recipient, subject, content, status, sent_at, error_message").
		From("sent_log").
		OrderBy("sent_at DESC", "id DESC")
	if channel != "" {
		b = b.Where(sq.Eq{"channel": channel})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, wrapErr("sent log", err)
	}
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("sent log", err)
	}
	defer rows.Close()

	var result []*types.SendLogEntry
	for rows.Next() {
		e := &types.SendLogEntry{}
		var subject, errMsg sql.NullString
		var sent string
		if err := rows.Scan(&e.ID, &e.Channel, &e.Recipient, &subject, &e.Content, &e.Status, &sent, &errMsg); err != nil {
			return nil, wrapErr("sent log", err)
		}
		e.Subject = subject.String
		e.ErrorMessage = errMsg.String
		e.SentAt = parseTime(sent)
		result = append(result, e)
	}
	return result, wrapErr("sent log", rows.Err())
}

// --- Ingest ledger operations ---

// LogIngest writes the ledger row for a message and returns its id. A
// message id that is already present yields ErrDuplicateMessage.
func (d *DB) LogIngest(ctx context.Context, rec *types.IngestRecord) (int64, error) {
	if rec.MessageID == "" {
		return 0, fmt.Errorf("message id is required: %w", ErrInvalid)
	}
	if rec.CommandType == "" {
		rec.CommandType = string(types.KindUnknown)
	}
	if rec.Status == "" {
		rec.Status = types.IngestProcessed
	}
	processed := d.stamp()

	var id int64
	err := d.withTx(ctx, "log ingest", func(tx *sql.Tx) error {
		var err error
		id, err = insert(ctx, tx, sq.Insert("email_ingest_log").
			Columns("message_id", "subject", "sender", "command_type", "command_content", "processed_at", "status", "error_message").
			Values(rec.MessageID, nullStr(rec.Subject), nullStr(rec.Sender), rec.CommandType,
				nullStr(rec.CommandContent), processed, rec.Status, nullStr(rec.ErrorMessage)))
		if isUniqueViolation(err) {
			return fmt.Errorf("message %s: %w", rec.MessageID, ErrDuplicateMessage)
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	rec.ID = id
	rec.ProcessedAt = parseTime(processed)
	return id, nil
}

// IsMessageProcessed reports whether the ledger already holds a row for
// messageID, whatever its status.
func (d *DB) IsMessageProcessed(ctx context.Context, messageID string) (bool, error) {
	var n int
	err := d.conn.QueryRowContext(ctx,
		"SELECT 1 FROM email_ingest_log WHERE message_id = ?", messageID).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, wrapErr("is message processed", err)
	}
	return true, nil
}

// IngestLog returns the newest ledger rows first, optionally filtered by
// status.
func (d *DB) IngestLog(ctx context.Context, status string, limit int) ([]*types.IngestRecord, error) {
	b := sq.Select("id, message_id, subject, sender, command_type, command_content, processed_at, status, error_message").
		From("email_ingest_log").
		OrderBy("processed_at DESC", "id DESC")
	if status != "" {
		b = b.Where(sq.Eq{"status": status})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, wrapErr("ingest log", err)
	}
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("ingest log", err)
	}
	defer rows.Close()

	var result []*types.IngestRecord
	for rows.Next() {
		rec := &types.IngestRecord{}
		var subject, sender, content, errMsg sql.NullString
		var processed string
		if err := rows.Scan(&rec.ID, &rec.MessageID, &subject, &sender, &rec.CommandType,
			&content, &processed, &rec.Status, &errMsg); err != nil {
			return nil, wrapErr("ingest log", err)
		}
		rec.Subject = subject.String
		rec.Sender = sender.String
		rec.CommandContent = content.String
		rec.ErrorMessage = errMsg.String
		rec.ProcessedAt = parseTime(processed)
		result = append(result, rec)
	}
	return result, wrapErr("ingest log", rows.Err())
}

// --- Stats ---

// Stats is a snapshot of row counts for the status view.
type Stats struct {
	Reminders    map[string]int `json:"reminders"`
	DueToday     int            `json:"due_today"`
	Notes        int            `json:"notes"`
	Sent         int            `json:"sent"`
	SendFailures int            `json:"send_failures"`
	Processed    int            `json:"processed"`
	IngestErrors int            `json:"ingest_errors"`
	LastIngest   string         `json:"last_ingest,omitempty"`
}

// Stats returns counts across all tables.
func (d *DB) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{Reminders: map[string]int{}}
	for _, st := range types.ValidStatuses {
		s.Reminders[st] = 0
	}

	rows, err := d.conn.QueryContext(ctx, "SELECT status, COUNT(*) FROM nudges GROUP BY status")
	if err != nil {
		return nil, wrapErr("stats", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, wrapErr("stats", err)
		}
		s.Reminders[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapErr("stats", err)
	}

	today := d.now().In(time.Local).Format(dateLayout) + "%"
	var last sql.NullString
	scalars := []struct {
		query string
		args  []any
		dest  any
	}{
		{"SELECT COUNT(*) FROM nudges WHERE status = 'pending' AND due_at LIKE ?", []any{today}, &s.DueToday},
		{"SELECT COUNT(*) FROM notes", nil, &s.Notes},
		{"SELECT COUNT(*) FROM sent_log WHERE status = 'sent'", nil, &s.Sent},
		{"SELECT COUNT(*) FROM sent_log WHERE status = 'failed'", nil, &s.SendFailures},
		{"SELECT COUNT(*) FROM email_ingest_log WHERE status = 'processed'", nil, &s.Processed},
		{"SELECT COUNT(*) FROM email_ingest_log WHERE status = 'error'", nil, &s.IngestErrors},
		{"SELECT MAX(processed_at) FROM email_ingest_log", nil, &last},
	}
	for _, q := range scalars {
		if err := d.conn.QueryRowContext(ctx, q.query, q.args...).Scan(q.dest); err != nil {
			return nil, wrapErr("stats", err)
		}
	}
	s.LastIngest = last.String
	return s, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
