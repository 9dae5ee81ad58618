// Package types defines core data structures for mailnudge.
package types

import (
	"fmt"
	"time"
)

// CommandKind identifies which command a trigger message carries.
// The string value is what the ingest ledger records as command_type.
type CommandKind string

// Command kinds.
const (
	KindAddNudge     CommandKind = "add_nudge"
	KindAddMilestone CommandKind = "add_milestone"
	KindNote         CommandKind = "note"
	KindToday        CommandKind = "today"
	KindUnknown      CommandKind = "unknown"
)

// Command is the parsed form of a trigger message. It is never persisted.
type Command struct {
	Kind     CommandKind `json:"type"`
	Content  string      `json:"content,omitempty"`
	RawMatch string      `json:"raw_match,omitempty"`
}

// Reminder is a durable actionable item ("nudge").
type Reminder struct {
	ID          int64      `json:"id"`
	Content     string     `json:"content"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	Source      string     `json:"source"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Note is an append-only observation.
type Note struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Tags      string    `json:"tags,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// SendLogEntry is one notification dispatch attempt.
type SendLogEntry struct {
	ID           int64     `json:"id"`
	Channel      string    `json:"channel"`
	Recipient    string    `json:"recipient"`
	Subject      string    `json:"subject,omitempty"`
	Content      string    `json:"content"`
	Status       string    `json:"status"`
	SentAt       time.Time `json:"sent_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// IngestRecord is one row of the ingest ledger. MessageID is unique.
type IngestRecord struct {
	ID             int64     `json:"id"`
	MessageID      string    `json:"message_id"`
	Subject        string    `json:"subject,omitempty"`
	Sender         string    `json:"sender,omitempty"`
	CommandType    string    `json:"command_type"`
	CommandContent string    `json:"command_content,omitempty"`
	ProcessedAt    time.Time `json:"processed_at"`
	Status         string    `json:"status"`
	ErrorMessage   string    `json:"error_message,omitempty"`
}

// CalendarEvent is a read-only view of an external calendar event.
type CalendarEvent struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Link        string    `json:"link,omitempty"`
}

// TriggerMessage is an unread inbound message from a trigger source.
//
// MessageID is the stable ledger key (the RFC 5322 Message-ID header when
// present). Handle is the source's own identifier, used to mark it read.
type TriggerMessage struct {
	MessageID string `json:"message_id"`
	Handle    string `json:"handle"`
	Subject   string `json:"subject"`
	Sender    string `json:"sender"`
	Body      string `json:"body,omitempty"`
	Date      string `json:"date,omitempty"`
}

// Text returns the subject and body joined, the input to the command parser.
func (m TriggerMessage) Text() string {
	return m.Subject + " " + m.Body
}

// Priority constants.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// ValidPriorities is the set of allowed priority values.
var ValidPriorities = []string{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}

// IsValidPriority checks if a priority string is valid.
func IsValidPriority(p string) bool {
	for _, v := range ValidPriorities {
		if v == p {
			return true
		}
	}
	return false
}

// IsElevated reports whether a priority should be flagged in summaries.
func IsElevated(p string) bool {
	return p == PriorityHigh || p == PriorityUrgent
}

// Reminder status constants.
const (
	StatusPending   = "pending"
	StatusSent      = "sent"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// ValidStatuses is the set of allowed reminder status values.
var ValidStatuses = []string{StatusPending, StatusSent, StatusCompleted, StatusCancelled}

// IsValidStatus checks if a status string is valid.
func IsValidStatus(s string) bool {
	for _, v := range ValidStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// transitions lists, for each status, the statuses it may move to.
var transitions = map[string][]string{
	StatusPending: {StatusSent, StatusCancelled},
	StatusSent:    {StatusCompleted},
}

// CanTransition reports whether a reminder may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TransitionError is returned when a reminder status change is not allowed.
type TransitionError struct {
	ID   int64
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("reminder %d: cannot move from %s to %s", e.ID, e.From, e.To)
}

// Source tags.
const (
	SourceEmail  = "email"
	SourceManual = "manual"
)

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Send log statuses.
const (
	SendStatusSent   = "sent"
	SendStatusFailed = "failed"
)

// Ingest ledger statuses.
const (
	IngestProcessed = "processed"
	IngestError     = "error"
)

// MessageOutcome describes what happened to one trigger message in a run.
type MessageOutcome struct {
	MessageID string      `json:"message_id"`
	Subject   string      `json:"subject"`
	Command   CommandKind `json:"command"`
	Status    string      `json:"status"` // processed, error, skipped
	Detail    string      `json:"detail,omitempty"`
}

// IngestSummary holds the result of one ingest run.
type IngestSummary struct {
	RunID     string           `json:"run_id"`
	Seen      int              `json:"seen"`
	Processed int              `json:"processed"`
	Errored   int              `json:"errored"`
	Skipped   int              `json:"skipped"`
	Messages  []MessageOutcome `json:"messages"`
}
