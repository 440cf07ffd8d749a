package poller

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields the next wake-up time after a cycle. cron.Schedule satisfies it.
type Schedule = cron.Schedule

var (
	reHHMM     = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// ParseRetryPeriod parses the poller.retry_period value.
//
// Supported forms:
//   - Go duration: "600s", "10m"
//   - HH:MM interval: "00:10" (10 minutes)
//   - cron or descriptor: "*/10 * * * *", "@hourly", "@every 10m"
//
// Optional prefixes "cron:" and "interval:" force the interpretation.
// Intervals are measured from the end of a cycle, like a plain sleep.
func ParseRetryPeriod(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("retry period required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]))
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return parseCron(s)
	default:
		return parseInterval(s)
	}
}

func parseCron(expr string) (Schedule, error) {
	if expr == "" {
		return nil, fmt.Errorf("cron expression required")
	}
	sch, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	if sch.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("cron %q never fires", expr)
	}
	return sch, nil
}

func parseInterval(v string) (Schedule, error) {
	d, err := parseIntervalDuration(v)
	if err != nil {
		return nil, err
	}
	return cron.Every(d), nil
}

func parseIntervalDuration(v string) (time.Duration, error) {
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return 0, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return 0, fmt.Errorf("interval must be > 0")
		}
		return d, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid retry period %q (use a duration like '600s', HH:MM, or a cron expression)", v)
	}
	// cron.Every rounds down to whole seconds.
	if d < time.Second {
		return 0, fmt.Errorf("interval must be >= 1s")
	}
	return d, nil
}

// delayUntilNext returns how long to sleep from now until sch fires.
func delayUntilNext(sch Schedule, now time.Time) time.Duration {
	next := sch.Next(now)
	if next.IsZero() {
		// Schedule will never fire again (e.g. impossible cron date).
		return DefaultRetryPeriod
	}
	return max(0, next.Sub(now))
}
