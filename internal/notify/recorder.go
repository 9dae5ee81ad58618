package notify

import (
	"context"
	"fmt"
	"sync"
)

// SentSMS is one message captured by a Recorder.
type SentSMS struct {
	To   string
	Body string
}

// Recorder is an in-memory EmailSender and SMSSender. Setting EmailErr or
// SMSErr makes the matching channel fail; failed sends are not recorded.
type Recorder struct {
	mu     sync.Mutex
	emails []EmailMessage
	sms    []SentSMS

	EmailErr error
	SMSErr   error
}

// SendEmail implements EmailSender.
func (r *Recorder) SendEmail(ctx context.Context, msg EmailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.EmailErr != nil {
		return r.EmailErr
	}
	r.emails = append(r.emails, msg)
	return nil
}

// SendSMS implements SMSSender.
func (r *Recorder) SendSMS(ctx context.Context, to, body string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.SMSErr != nil {
		return "", r.SMSErr
	}
	r.sms = append(r.sms, SentSMS{To: to, Body: body})
	return fmt.Sprintf("SMTEST%04d", len(r.sms)), nil
}

// Emails returns the delivered emails in send order.
func (r *Recorder) Emails() []EmailMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EmailMessage(nil), r.emails...)
}

// SMS returns the delivered text messages in send order.
func (r *Recorder) SMS() []SentSMS {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SentSMS(nil), r.sms...)
}
