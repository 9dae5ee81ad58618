package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/daviddao/mailnudge/internal/types"
)

var (
	// ErrNoRecipient is reported when neither the message nor the
	// dispatcher names a recipient.
	ErrNoRecipient = errors.New("no recipient specified")

	// ErrChannelUnavailable is reported for a channel with no sender.
	ErrChannelUnavailable = errors.New("channel not configured")
)

// SendLog records dispatch attempts. *db.DB satisfies it.
type SendLog interface {
	LogSend(ctx context.Context, e *types.SendLogEntry) (int64, error)
}

// Result is the outcome of one dispatch. SID is set for delivered SMS.
type Result struct {
	Success bool
	SID     string
	Err     error
}

// Dispatcher fronts the email and SMS senders. Either sender may be nil,
// in which case that channel is reported unavailable and nothing is sent.
type Dispatcher struct {
	email   EmailSender
	sms     SMSSender
	log     SendLog
	emailTo string
	smsTo   string
	logger  *slog.Logger
}

// Options configures a Dispatcher.
type Options struct {
	Email   EmailSender
	SMS     SMSSender
	Log     SendLog
	EmailTo string // default email recipient
	SMSTo   string // default SMS recipient
	Logger  *slog.Logger
}

// NewDispatcher returns a Dispatcher for the given senders.
func NewDispatcher(opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		email:   opts.Email,
		sms:     opts.SMS,
		log:     opts.Log,
		emailTo: opts.EmailTo,
		smsTo:   opts.SMSTo,
		logger:  logger,
	}
}

// HasEmail reports whether the email channel is configured.
func (d *Dispatcher) HasEmail() bool { return d.email != nil }

// HasSMS reports whether the SMS channel is configured.
func (d *Dispatcher) HasSMS() bool { return d.sms != nil }

// Email sends msg, falling back to the default recipient.
func (d *Dispatcher) Email(ctx context.Context, msg EmailMessage) Result {
	if d.email == nil {
		return Result{Err: ErrChannelUnavailable}
	}
	if msg.To == "" {
		msg.To = d.emailTo
	}
	if msg.To == "" {
		return Result{Err: ErrNoRecipient}
	}

	err := d.email.SendEmail(ctx, msg)
	d.record(ctx, &types.SendLogEntry{
		Channel:   types.ChannelEmail,
		Recipient: msg.To,
		Subject:   msg.Subject,
		Content:   msg.Body,
	}, err)
	if err != nil {
		d.logger.Warn("email send failed", "to", msg.To, "subject", msg.Subject, "err", err)
		return Result{Err: err}
	}
	return Result{Success: true}
}

// SMS sends body to to, or to the default recipient when to is empty.
// Bodies longer than SMSLimit are truncated.
func (d *Dispatcher) SMS(ctx context.Context, body, to string) Result {
	if d.sms == nil {
		return Result{Err: ErrChannelUnavailable}
	}
	if to == "" {
		to = d.smsTo
	}
	if to == "" {
		return Result{Err: ErrNoRecipient}
	}

	body = TruncateSMS(body)
	sid, err := d.sms.SendSMS(ctx, to, body)
	d.record(ctx, &types.SendLogEntry{
		Channel:   types.ChannelSMS,
		Recipient: to,
		Content:   body,
	}, err)
	if err != nil {
		d.logger.Warn("sms send failed", "to", to, "err", err)
		return Result{Err: err}
	}
	return Result{Success: true, SID: sid}
}

func (d *Dispatcher) record(ctx context.Context, e *types.SendLogEntry, sendErr error) {
	if d.log == nil {
		return
	}
	e.Status = types.SendStatusSent
	if sendErr != nil {
		e.Status = types.SendStatusFailed
		e.ErrorMessage = sendErr.Error()
	}
	if _, err := d.log.LogSend(ctx, e); err != nil {
		d.logger.Warn("could not record send attempt", "channel", e.Channel, "err", err)
	}
}
