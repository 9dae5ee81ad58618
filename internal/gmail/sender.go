package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	gm "google.golang.org/api/gmail/v1"

	"github.com/daviddao/mailnudge/internal/notify"
)

// Sender delivers email through the authenticated Gmail account.
type Sender struct {
	svc  *gm.Service
	from string
	now  func() time.Time
}

// NewSender returns a Sender. from may be empty, in which case Gmail
// fills in the account address.
func NewSender(svc *gm.Service, from string) *Sender {
	return &Sender{svc: svc, from: from, now: time.Now}
}

// SendEmail implements notify.EmailSender.
func (s *Sender) SendEmail(ctx context.Context, msg notify.EmailMessage) error {
	if msg.To == "" {
		return notify.ErrNoRecipient
	}
	raw := notify.BuildMIME(s.from, msg, s.now())
	_, err := s.svc.Users.Messages.Send(userID, &gm.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("gmail send to %s: %w", msg.To, err)
	}
	return nil
}
