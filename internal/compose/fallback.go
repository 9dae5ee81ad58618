package compose

import (
	"context"
	"log/slog"

	"github.com/daviddao/mailnudge/internal/types"
)

type fallback struct {
	primary  Composer
	fallback Composer
	logger   *slog.Logger
}

// WithFallback returns a Composer that uses primary and, when it fails,
// logs a warning and uses secondary instead.
func WithFallback(primary, secondary Composer, logger *slog.Logger) Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &fallback{primary: primary, fallback: secondary, logger: logger}
}

func (f *fallback) ComposeStatus(ctx context.Context, schedule []types.CalendarEvent, reminders []*types.Reminder) (string, error) {
	out, err := f.primary.ComposeStatus(ctx, schedule, reminders)
	if err == nil {
		return out, nil
	}
	f.logger.Warn("status composer failed, using fallback", "err", err)
	return f.fallback.ComposeStatus(ctx, schedule, reminders)
}

func (f *fallback) ComposeBriefing(ctx context.Context, in BriefingInput) (Briefing, error) {
	out, err := f.primary.ComposeBriefing(ctx, in)
	if err == nil {
		return out, nil
	}
	f.logger.Warn("briefing composer failed, using fallback", "err", err)
	return f.fallback.ComposeBriefing(ctx, in)
}
