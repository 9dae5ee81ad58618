// Package source defines where trigger messages come from.
package source

import (
	"context"
	"sync"

	"github.com/daviddao/mailnudge/internal/types"
)

// TriggerSource lists unread trigger messages and marks them read once
// they have been handled.
type TriggerSource interface {
	ListUnread(ctx context.Context) ([]types.TriggerMessage, error)
	MarkRead(ctx context.Context, msg types.TriggerMessage) error
}

// Memory is an in-process TriggerSource backed by a fixed message list.
// Messages marked read are no longer listed.
type Memory struct {
	mu       sync.Mutex
	messages []types.TriggerMessage
	read     map[string]bool
	marked   []string

	// ListErr and MarkErr, when set, are returned by the matching call.
	ListErr error
	MarkErr error
}

// NewMemory returns a Memory source holding msgs in order.
func NewMemory(msgs ...types.TriggerMessage) *Memory {
	return &Memory{messages: msgs, read: map[string]bool{}}
}

// Add appends messages to the source.
func (m *Memory) Add(msgs ...types.TriggerMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
}

// ListUnread returns the messages not yet marked read.
func (m *Memory) ListUnread(ctx context.Context) ([]types.TriggerMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []types.TriggerMessage
	for _, msg := range m.messages {
		if !m.read[msg.Handle] {
			out = append(out, msg)
		}
	}
	return out, nil
}

// MarkRead records msg as read.
func (m *Memory) MarkRead(ctx context.Context, msg types.TriggerMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, msg.Handle)
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.read[msg.Handle] = true
	return nil
}

// Unread makes every message listable again, as if a user had marked them
// unread in their mail client.
func (m *Memory) Unread() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read = map[string]bool{}
}

// Marked returns the handles passed to MarkRead, in call order.
func (m *Memory) Marked() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.marked...)
}

// Sample returns the demo trigger message used by --test runs.
func Sample(now string) types.TriggerMessage {
	return types.TriggerMessage{
		MessageID: "<mock1@example.com>",
		Handle:    "mock1",
		Subject:   "[TA] ADD NUDGE: Print CO2 car rubrics tomorrow at 7:15am",
		Sender:    "teacher@school.edu",
		Date:      now,
	}
}
