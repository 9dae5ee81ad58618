package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/daviddao/mailnudge/internal/notify"
	"github.com/daviddao/mailnudge/internal/types"
)

// Defaults for a local Ollama server.
const (
	DefaultLLMHost  = "http://localhost:11434"
	DefaultLLMModel = "llama3:latest"
	smsFallback     = "Check email for daily briefing."
	llmTimeout      = 5 * time.Minute
)

var errEmptyCompletion = errors.New("llm returned no content")

const statusPrompt = `You are a concise assistant for a busy teacher.
Summarize the teacher's day in a short plain-text email: what is next,
what is urgent, and anything easy to forget. No markdown headings.`

const briefingPrompt = `You are a concise assistant for a busy teacher.
Write a morning briefing in plain text covering today's schedule, upcoming
milestones, and active reminders. Keep it under 200 words.
End with a line "## SMS" followed by a one-line summary of at most 160
characters.`

// LLMOptions configures an LLM composer.
type LLMOptions struct {
	Host        string
	Model       string
	APIKey      string
	Temperature float64
	MaxRetries  int
	Now         func() time.Time
}

// LLM composes messages with an OpenAI-compatible chat completions server,
// by default a local Ollama.
type LLM struct {
	client      openai.Client
	model       string
	temperature float64
	now         func() time.Time
}

// NewLLM returns an LLM composer for opts.
func NewLLM(opts LLMOptions) *LLM {
	host := strings.TrimRight(opts.Host, "/")
	if host == "" {
		host = DefaultLLMHost
	}
	if opts.Model == "" {
		opts.Model = DefaultLLMModel
	}
	if opts.APIKey == "" {
		// Ollama ignores the key but the client requires one.
		opts.APIKey = "ollama"
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	client := openai.NewClient(
		option.WithBaseURL(host+"/v1/"),
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(opts.MaxRetries),
		option.WithRequestTimeout(llmTimeout),
	)
	return &LLM{
		client:      client,
		model:       opts.Model,
		temperature: opts.Temperature,
		now:         opts.Now,
	}
}

// ComposeStatus implements Composer.
func (l *LLM) ComposeStatus(ctx context.Context, schedule []types.CalendarEvent, reminders []*types.Reminder) (string, error) {
	user := fmt.Sprintf("Current time: %s\n\nToday's schedule:\n%s\n\nActive reminders:\n%s",
		l.now().Format("Mon Jan 2, 3:04 PM"), FormatEvents(schedule), FormatReminders(reminders))
	return l.complete(ctx, statusPrompt, user)
}

// ComposeBriefing implements Composer.
func (l *LLM) ComposeBriefing(ctx context.Context, in BriefingInput) (Briefing, error) {
	if in.Date.IsZero() {
		in.Date = l.now()
	}
	user := fmt.Sprintf("Date: %s\n\n%s", in.Date.Format("Monday, January 2, 2006"), briefingText(in))

	out, err := l.complete(ctx, briefingPrompt, user)
	if err != nil {
		return Briefing{}, err
	}

	summary, sms := splitSMS(out)
	html, err := renderBriefingHTML(in, summary)
	if err != nil {
		return Briefing{}, err
	}
	return Briefing{
		Subject: notify.SubjectBriefing + " " + in.Date.Format("Mon Jan 2"),
		HTML:    html,
		Text:    summary,
		SMS:     sms,
	}, nil
}

func (l *LLM) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(l.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(l.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyCompletion
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errEmptyCompletion
	}
	return content, nil
}

// splitSMS separates the "## SMS" section from the rest of a completion.
func splitSMS(out string) (body, sms string) {
	idx := strings.Index(out, "## SMS")
	if idx < 0 {
		return out, smsFallback
	}
	body = strings.TrimSpace(out[:idx])
	sms = strings.TrimSpace(out[idx+len("## SMS"):])
	if line, _, ok := strings.Cut(sms, "\n"); ok {
		sms = strings.TrimSpace(line)
	}
	if sms == "" {
		sms = smsFallback
	}
	return body, notify.TruncateSMS(sms)
}
