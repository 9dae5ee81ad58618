// Package notify sends email and SMS notifications and records every
// attempt in the send log.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"time"
)

// SMSLimit is the longest SMS body that is sent unmodified.
const SMSLimit = 160

// EmailMessage is an outgoing email. An empty To means the default
// recipient.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	HTML    bool
}

// EmailSender delivers one email.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// SMSSender delivers one text message and returns the provider's message id.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (sid string, err error)
}

// TruncateSMS shortens body to SMSLimit characters, ending in "..." when
// anything was cut.
func TruncateSMS(body string) string {
	r := []rune(body)
	if len(r) <= SMSLimit {
		return body
	}
	return string(r[:SMSLimit-3]) + "..."
}

// BuildMIME renders msg as an RFC 5322 message from the given sender.
func BuildMIME(from string, msg EmailMessage, now time.Time) []byte {
	contentType := "text/plain"
	if msg.HTML {
		contentType = "text/html"
	}

	var b bytes.Buffer
	if from != "" {
		fmt.Fprintf(&b, "From: %s\r\n", from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"utf-8\"\r\n", contentType)
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.Body)
	return b.Bytes()
}
