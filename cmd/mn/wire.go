package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/daviddao/mailnudge/internal/auth"
	"github.com/daviddao/mailnudge/internal/briefing"
	"github.com/daviddao/mailnudge/internal/calendar"
	"github.com/daviddao/mailnudge/internal/compose"
	"github.com/daviddao/mailnudge/internal/config"
	"github.com/daviddao/mailnudge/internal/gmail"
	"github.com/daviddao/mailnudge/internal/ingest"
	"github.com/daviddao/mailnudge/internal/notify"
	"github.com/daviddao/mailnudge/internal/schedule"
	"github.com/daviddao/mailnudge/internal/source"
)

// Recipients used by --test runs when none are configured.
const (
	testEmailTo = "teacher@example.com"
	testSMSTo   = "+15555550100"
)

var errNoGmailCredentials = errors.New("gmail: no credentials configured (set gmail.credentials or GMAIL_CREDENTIALS)")

// ports holds the collaborators chosen for one command invocation. Any of
// source, cal, email and sms may be nil when unavailable.
type ports struct {
	source   source.TriggerSource
	cal      calendar.Port
	email    notify.EmailSender
	sms      notify.SMSSender
	composer compose.Composer
	emailTo  string
	smsTo    string

	// recorder is set in test mode and captures everything "sent".
	recorder *notify.Recorder
}

func (p *ports) dispatcher() *notify.Dispatcher {
	return notify.NewDispatcher(notify.Options{
		Email:   p.email,
		SMS:     p.sms,
		Log:     store,
		EmailTo: p.emailTo,
		SMSTo:   p.smsTo,
		Logger:  logger,
	})
}

// buildPorts wires in-memory collaborators for test mode, otherwise the
// configured services. Missing credentials degrade the matching channel.
func buildPorts(ctx context.Context, testMode, needSource bool) (*ports, error) {
	if testMode {
		return testPorts(), nil
	}

	for _, w := range cfg.Validate() {
		logger.Warn("config", "warning", w)
	}

	p := &ports{emailTo: cfg.Email.To, smsTo: cfg.SMS.To, composer: buildComposer()}

	if cfg.Gmail.Credentials != "" {
		if needSource {
			svc, err := auth.LoadGmailService(ctx, cfg.Gmail.Credentials, logger)
			if err != nil {
				return nil, fmt.Errorf("gmail: %w", err)
			}
			p.source = gmail.NewSource(svc, cfg.Gmail.Label, logger)
		}
		if svc, err := auth.LoadCalendarService(ctx, cfg.Gmail.Credentials, logger); err != nil {
			logger.Warn("calendar unavailable", "err", err)
		} else {
			p.cal = calendar.NewGoogle(svc, cfg.Timezone)
		}
	} else if needSource {
		return nil, errNoGmailCredentials
	}

	switch cfg.Email.Provider {
	case config.ProviderSMTP:
		if cfg.SMTPReady() {
			sender, err := notify.NewSMTPSender(cfg.Email.Host, cfg.Email.Port, cfg.Email.User, cfg.Email.Pass)
			if err != nil {
				return nil, err
			}
			p.email = sender
		}
	case config.ProviderGmail:
		if cfg.Gmail.Credentials != "" {
			svc, err := auth.LoadGmailService(ctx, cfg.Gmail.Credentials, logger)
			if err != nil {
				logger.Warn("gmail sender unavailable", "err", err)
			} else {
				p.email = gmail.NewSender(svc, cfg.Email.From)
			}
		}
	}

	if cfg.SMSReady() {
		sender, err := notify.NewTwilioSender(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From)
		if err != nil {
			return nil, err
		}
		p.sms = sender
	}
	return p, nil
}

func testPorts() *ports {
	rec := &notify.Recorder{}
	p := &ports{
		source:   source.NewMemory(source.Sample(time.Now().Format(time.RFC1123Z))),
		cal:      calendar.NewDemo(time.Now, cfg.Calendar.ScheduleID, cfg.Calendar.ProjectsID),
		email:    rec,
		sms:      rec,
		composer: compose.NewTemplate(nil),
		emailTo:  cfg.Email.To,
		smsTo:    cfg.SMS.To,
		recorder: rec,
	}
	if p.emailTo == "" {
		p.emailTo = testEmailTo
	}
	if p.smsTo == "" {
		p.smsTo = testSMSTo
	}
	return p
}

func buildComposer() compose.Composer {
	tpl := compose.NewTemplate(nil)
	if !cfg.LLM.Enabled {
		return tpl
	}
	llm := compose.NewLLM(compose.LLMOptions{Host: cfg.LLM.Host, Model: cfg.LLM.Model})
	return compose.WithFallback(llm, tpl, logger)
}

func newIngestRunner(p *ports) (*ingest.Runner, error) {
	var sched *schedule.Scheduler
	if p.cal != nil {
		var err error
		if sched, err = schedule.New(p.cal, cfg.Calendar.ProjectsID, logger); err != nil {
			return nil, err
		}
	}
	return ingest.New(ingest.Options{
		Store:      store,
		Source:     p.source,
		Scheduler:  sched,
		Calendar:   p.cal,
		ScheduleID: cfg.Calendar.ScheduleID,
		Dispatcher: p.dispatcher(),
		Composer:   p.composer,
		Logger:     logger,
	})
}

func newBriefingService(p *ports) (*briefing.Service, error) {
	return briefing.New(briefing.Options{
		Store:      store,
		Calendar:   p.cal,
		ScheduleID: cfg.Calendar.ScheduleID,
		ProjectsID: cfg.Calendar.ProjectsID,
		Dispatcher: p.dispatcher(),
		Composer:   p.composer,
		Logger:     logger,
	})
}
