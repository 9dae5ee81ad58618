package command

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDue(t *testing.T) {
	now := time.Date(2026, time.January, 20, 14, 30, 0, 0, time.Local)

	tests := []struct {
		name string
		text string
		want time.Time
	}{
		{"tomorrow with am time", "Print CO2 car rubrics tomorrow at 7:15am", time.Date(2026, time.January, 21, 7, 15, 0, 0, time.Local)},
		{"tomorrow with pm hour", "call back tomorrow 3pm", time.Date(2026, time.January, 21, 15, 0, 0, 0, time.Local)},
		{"tomorrow without time", "grade tomorrow", time.Date(2026, time.January, 21, 9, 0, 0, 0, time.Local)},
		{"month day with time", "CDR slides due Feb 5 4pm", time.Date(2026, time.February, 5, 16, 0, 0, 0, time.Local)},
		{"month day with year", "science fair March 12, 2027", time.Date(2027, time.March, 12, 9, 0, 0, 0, time.Local)},
		{"month name ordinal", "report due september 3rd at 10:30", time.Date(2026, time.September, 3, 10, 30, 0, 0, time.Local)},
		{"iso date", "submit grades 2026-06-15 16:45", time.Date(2026, time.June, 15, 16, 45, 0, 0, time.Local)},
		{"today", "staff meeting today at 4pm", time.Date(2026, time.January, 20, 16, 0, 0, 0, time.Local)},
		{"tonight", "email parents tonight", time.Date(2026, time.January, 20, 20, 0, 0, 0, time.Local)},
		{"noon", "lunch duty tomorrow 12pm", time.Date(2026, time.January, 21, 12, 0, 0, 0, time.Local)},
		{"midnight", "backup tomorrow 12am", time.Date(2026, time.January, 21, 0, 0, 0, 0, time.Local)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseDue(tt.text, now)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParseDue_NoDate(t *testing.T) {
	now := time.Date(2026, time.January, 20, 14, 30, 0, 0, time.Local)

	for _, text := range []string{"", "   ", "Print rubrics"} {
		_, ok := ParseDue(text, now)
		assert.False(t, ok, "input %q", text)
	}
}

func TestParseDue_InvalidCalendarDay(t *testing.T) {
	now := time.Date(2026, time.January, 20, 14, 30, 0, 0, time.Local)

	// Feb 30 does not exist, so "tonight" is used instead.
	got, ok := ParseDue("Feb 30 tonight", now)
	require.True(t, ok)
	assert.Equal(t, time.January, got.Month())
	assert.Equal(t, 20, got.Day())
	assert.Equal(t, 20, got.Hour())
}

func TestParseDue_InvalidClockIgnored(t *testing.T) {
	now := time.Date(2026, time.January, 20, 14, 30, 0, 0, time.Local)

	got, ok := ParseDue("tomorrow 25:99", now)
	require.True(t, ok)
	assert.Equal(t, 9, got.Hour())
	assert.Equal(t, 0, got.Minute())
}

func TestFindClock(t *testing.T) {
	tests := []struct {
		text   string
		hour   int
		minute int
		ok     bool
	}{
		{"at 7:15am", 7, 15, true},
		{"at 7:15 PM", 19, 15, true},
		{"9am", 9, 0, true},
		{"16:30", 16, 30, true},
		{"13pm", 0, 0, false},
		{"no time", 0, 0, false},
	}
	for _, tt := range tests {
		h, m, ok := findClock(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		if tt.ok {
			assert.Equal(t, tt.hour, h, tt.text)
			assert.Equal(t, tt.minute, m, tt.text)
		}
	}
}
