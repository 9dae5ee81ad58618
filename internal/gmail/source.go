package gmail

import (
	"context"
	"fmt"
	"log/slog"

	gm "google.golang.org/api/gmail/v1"

	"github.com/daviddao/mailnudge/internal/types"
)

// DefaultLabel is the label trigger messages are filed under.
const DefaultLabel = "TA-TRIGGERS"

// Source lists unread messages under a label as trigger messages.
type Source struct {
	svc        *gm.Service
	label      string
	maxResults int64
	logger     *slog.Logger
}

// NewSource returns a Source reading unread mail under label.
func NewSource(svc *gm.Service, label string, logger *slog.Logger) *Source {
	if label == "" {
		label = DefaultLabel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{svc: svc, label: label, maxResults: 50, logger: logger}
}

// Query returns the Gmail search used to find trigger messages.
func (s *Source) Query() string {
	return "is:unread label:" + s.label
}

// ListUnread fetches every unread trigger message in full. A message that
// cannot be fetched is skipped with a warning and stays unread.
func (s *Source) ListUnread(ctx context.Context) ([]types.TriggerMessage, error) {
	var ids []string
	err := s.svc.Users.Messages.List(userID).
		Q(s.Query()).
		MaxResults(s.maxResults).
		Pages(ctx, func(resp *gm.ListMessagesResponse) error {
			for _, m := range resp.Messages {
				ids = append(ids, m.Id)
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Gmail lists newest first; handle commands in the order they were sent.
	msgs := make([]types.TriggerMessage, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		msg, err := s.fetch(ctx, ids[i])
		if err != nil {
			s.logger.Warn("skipping unreadable message", "id", ids[i], "err", err)
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (s *Source) fetch(ctx context.Context, id string) (types.TriggerMessage, error) {
	msg, err := s.svc.Users.Messages.Get(userID, id).Format("full").Context(ctx).Do()
	if err != nil {
		return types.TriggerMessage{}, fmt.Errorf("get message %s: %w", id, err)
	}

	var headers map[string]string
	if msg.Payload != nil {
		headers = headerMap(msg.Payload.Headers)
	}
	messageID := headers["message-id"]
	if messageID == "" {
		messageID = msg.Id
	}

	return types.TriggerMessage{
		MessageID: messageID,
		Handle:    msg.Id,
		Subject:   headers["subject"],
		Sender:    headers["from"],
		Body:      extractBody(msg.Payload),
		Date:      headers["date"],
	}, nil
}

// MarkRead removes the UNREAD label from msg.
func (s *Source) MarkRead(ctx context.Context, msg types.TriggerMessage) error {
	_, err := s.svc.Users.Messages.Modify(userID, msg.Handle, &gm.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("mark %s read: %w", msg.Handle, err)
	}
	return nil
}
