// Package schedule translates natural-language recurrence phrases into
// standard five-field cron expressions. Parse is a pure function with no
// I/O; the scheduler that persists and fires tasks lives elsewhere.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"
)

// Default firing times for named parts of the day.
const (
	morningHour = 9
	eveningHour = 18
	nightHour   = 22
)

var weekdays = map[string]int{
	"sunday":    0,
	"monday":    1,
	"tuesday":   2,
	"wednesday": 3,
	"thursday":  4,
	"friday":    5,
	"saturday":  6,
}

var (
	reDayAt   = regexp.MustCompile(`^every day at (\d{1,2})(?::(\d{2}))?\s*(am|pm)?$`)
	reWeekday = regexp.MustCompile(`^every (sunday|monday|tuesday|wednesday|thursday|friday|saturday)(?: at (\d{1,2})(?::(\d{2}))?\s*(am|pm)?)?$`)
	reEveryN  = regexp.MustCompile(`^every (\d+) (minute|minutes|hour|hours)$`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// Parse converts a recurrence phrase to a cron expression. A well-formed
// cron expression passes through unchanged, which makes Parse idempotent
// on its own output. Returns ok=false when nothing matches; callers
// must treat that as "ask the user to rephrase", never as "run now" or
// "never run".
func Parse(input string) (string, bool) {
	text := strings.ToLower(strings.TrimSpace(input))
	text = reSpaces.ReplaceAllString(text, " ")
	if text == "" {
		return "", false
	}

	// Already a valid schedule expression: idempotent passthrough.
	if _, err := cron.ParseStandard(text); err == nil {
		return text, true
	}

	if m := reDayAt.FindStringSubmatch(text); m != nil {
		hour, minute, ok := clockTime(m[1], m[2], m[3])
		if !ok {
			return "", false
		}
		return fmt.Sprintf("%d %d * * *", minute, hour), true
	}

	switch text {
	case "every morning":
		return fmt.Sprintf("0 %d * * *", morningHour), true
	case "every evening":
		return fmt.Sprintf("0 %d * * *", eveningHour), true
	case "every night":
		return fmt.Sprintf("0 %d * * *", nightHour), true
	case "every weekday":
		return fmt.Sprintf("0 %d * * 1-5", morningHour), true
	case "every weekend":
		return fmt.Sprintf("0 %d * * 0,6", morningHour), true
	case "every hour":
		return "0 * * * *", true
	case "every minute":
		return "* * * * *", true
	}

	if m := reWeekday.FindStringSubmatch(text); m != nil {
		day := weekdays[m[1]]
		hour, minute := morningHour, 0
		if m[2] != "" {
			var ok bool
			hour, minute, ok = clockTime(m[2], m[3], m[4])
			if !ok {
				return "", false
			}
		}
		return fmt.Sprintf("%d %d * * %d", minute, hour, day), true
	}

	if m := reEveryN.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return "", false
		}
		if strings.HasPrefix(m[2], "minute") {
			if n >= 60 {
				return "", false
			}
			return fmt.Sprintf("*/%d * * * *", n), true
		}
		if n >= 24 {
			return "", false
		}
		return fmt.Sprintf("0 */%d * * *", n), true
	}

	return "", false
}

// clockTime normalizes a 12- or 24-hour clock reading to 24-hour hour
// and minute values. 12am maps to 0, 12pm stays 12, and pm adds twelve
// unless the hour is already 12 or later.
func clockTime(hourStr, minuteStr, meridiem string) (hour, minute int, ok bool) {
	hour, err := strconv.Atoi(hourStr)
	if err != nil {
		return 0, 0, false
	}
	if minuteStr != "" {
		minute, err = strconv.Atoi(minuteStr)
		if err != nil {
			return 0, 0, false
		}
	}

	switch meridiem {
	case "am":
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 12 {
			hour += 12
		}
	}

	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
