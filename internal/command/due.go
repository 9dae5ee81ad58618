package command

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Default times of day used when a date is found without a time.
const (
	defaultHour   = 9
	tonightHour   = 20
	maxClockHour  = 23
	maxMeridiemHr = 12
)

var (
	reTomorrow = regexp.MustCompile(`(?i)\btomorrow\b`)
	reToday    = regexp.MustCompile(`(?i)\btoday\b`)
	reTonight  = regexp.MustCompile(`(?i)\btonight\b`)
	reISODate  = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reMonthDay = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(\d{4})\b)?`)

	// Either "7pm" / "7:15 am" or a 24-hour "16:30".
	reClock = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b|\b(\d{1,2}):(\d{2})\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

var fallback = newFallbackParser()

func newFallbackParser() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}

// ParseDue extracts a due time from free text relative to now. The second
// return value is false when no date could be found; that is not an error.
func ParseDue(text string, now time.Time) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	if reTomorrow.MatchString(text) {
		day := now.AddDate(0, 0, 1)
		return atClock(day, text, defaultHour), true
	}

	if m := reISODate.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if d, ok := validDate(year, time.Month(month), day, now.Location()); ok {
			return atClock(d, text, defaultHour), true
		}
	}

	if m := reMonthDay.FindStringSubmatch(text); m != nil {
		month := months[strings.ToLower(m[1][:3])]
		day, _ := strconv.Atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		if d, ok := validDate(year, month, day, now.Location()); ok {
			return atClock(d, text, defaultHour), true
		}
	}

	if reTonight.MatchString(text) {
		return atClock(now, text, tonightHour), true
	}
	if reToday.MatchString(text) {
		return atClock(now, text, defaultHour), true
	}

	r, err := fallback.Parse(text, now)
	if err != nil || r == nil {
		return time.Time{}, false
	}
	return r.Time, true
}

// atClock returns day at the first time of day found in text, or at
// fallbackHour:00 when the text names no valid time.
func atClock(day time.Time, text string, fallbackHour int) time.Time {
	hour, minute, ok := findClock(text)
	if !ok {
		hour, minute = fallbackHour, 0
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}

func findClock(text string) (hour, minute int, ok bool) {
	for _, m := range reClock.FindAllStringSubmatch(text, -1) {
		if m[3] != "" {
			h, _ := strconv.Atoi(m[1])
			mins := 0
			if m[2] != "" {
				mins, _ = strconv.Atoi(m[2])
			}
			if h < 1 || h > maxMeridiemHr || mins > 59 {
				continue
			}
			switch strings.ToLower(m[3]) {
			case "pm":
				if h < maxMeridiemHr {
					h += maxMeridiemHr
				}
			case "am":
				if h == maxMeridiemHr {
					h = 0
				}
			}
			return h, mins, true
		}
		h, _ := strconv.Atoi(m[4])
		mins, _ := strconv.Atoi(m[5])
		if h > maxClockHour || mins > 59 {
			continue
		}
		return h, mins, true
	}
	return 0, 0, false
}

func validDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if d.Month() != month {
		return time.Time{}, false
	}
	return d, true
}
