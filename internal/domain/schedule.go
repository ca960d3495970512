package domain

import (
	"fmt"
	"strings"
)

// ScheduleKind identifies which variant of a Schedule is active.
type ScheduleKind string

// Schedule kinds.
const (
	ScheduleKindNone     ScheduleKind = ""
	ScheduleKindCron     ScheduleKind = "cron"
	ScheduleKindInterval ScheduleKind = "interval"
)

// Schedule describes when a query re-executes: either a cron expression or
// a fixed repeat interval in seconds. Exactly one variant is meaningful at
// a time; the constructors zero the other.
type Schedule struct {
	Cron            string `json:"cron,omitempty"`
	IntervalSeconds int    `json:"interval_seconds,omitempty"`
}

// CronSchedule returns a cron-expression schedule.
func CronSchedule(expr string) Schedule {
	return Schedule{Cron: strings.TrimSpace(expr)}
}

// FixedIntervalSchedule returns a fixed-interval schedule.
func FixedIntervalSchedule(seconds int) Schedule {
	return Schedule{IntervalSeconds: seconds}
}

// Kind reports the active variant. A cron expression wins if both fields
// were populated by hand.
func (s Schedule) Kind() ScheduleKind {
	switch {
	case s.Cron != "":
		return ScheduleKindCron
	case s.IntervalSeconds != 0:
		return ScheduleKindInterval
	default:
		return ScheduleKindNone
	}
}

// Normalize drops the inactive variant.
func (s Schedule) Normalize() Schedule {
	switch s.Kind() {
	case ScheduleKindCron:
		return CronSchedule(s.Cron)
	case ScheduleKindInterval:
		return FixedIntervalSchedule(s.IntervalSeconds)
	default:
		return Schedule{}
	}
}

// IsZero reports whether neither variant is set.
func (s Schedule) IsZero() bool { return s.Kind() == ScheduleKindNone }

// Equal compares the active variants.
func (s Schedule) Equal(o Schedule) bool { return s.Normalize() == o.Normalize() }

func (s Schedule) String() string {
	switch s.Kind() {
	case ScheduleKindCron:
		return fmt.Sprintf("cron(%q)", s.Cron)
	case ScheduleKindInterval:
		return fmt.Sprintf("every(%ds)", s.IntervalSeconds)
	default:
		return "none"
	}
}
