// Package schedule parses workflow schedule specs and decides whether a
// minute tick satisfies one.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Parse accepts a standard 5-field cron spec or a descriptor such as
// "@hourly". Interval specs ("@every 5m") are rejected because ticks only
// carry wall-clock minutes.
func Parse(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("schedule is empty")
	}
	if strings.HasPrefix(spec, "@every") {
		return nil, fmt.Errorf("interval schedules are not supported: %q", spec)
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return sched, nil
}

// Due reports whether sched fires at the minute containing t.
func Due(sched cron.Schedule, t time.Time) bool {
	minute := t.Truncate(time.Minute)
	return sched.Next(minute.Add(-time.Second)).Equal(minute)
}
