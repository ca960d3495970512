// Package estimate predicts how many times a schedule fires per day.
//
// Cron expressions are evaluated against a fixed reference window,
// 2024-01-01T00:00:00Z up to (not including) 2024-01-02T00:00:00Z. That day
// is a Monday and the first day of a month and of a year, so weekday,
// first-of-month and yearly expressions all fire inside it. Results never
// depend on the wall clock.
package estimate

import (
	"math"
	"time"

	"github.com/robfig/cron/v3"

	"query-scheduler/internal/domain"
)

const secondsPerDay = 24 * 60 * 60

// MaxIntervalSeconds is the longest fixed interval a time.Duration can hold.
const MaxIntervalSeconds = math.MaxInt64 / int64(time.Second)

// WindowStart is the beginning of the reference window for cron expressions.
var WindowStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// WindowEnd is the exclusive end of the reference window.
var WindowEnd = WindowStart.Add(secondsPerDay * time.Second)

// Standard five-field expressions plus descriptors (@hourly, @every 5m, ...).
var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate checks that s can be evaluated.
func Validate(s domain.Schedule) error {
	_, err := Compile(s)
	return err
}

// EstimateDailyCalls returns the number of executions s produces in 24 hours.
func EstimateDailyCalls(s domain.Schedule) (int, error) {
	switch s.Kind() {
	case domain.ScheduleKindInterval:
		if err := checkInterval(s); err != nil {
			return 0, err
		}
		return secondsPerDay / s.IntervalSeconds, nil
	case domain.ScheduleKindCron:
		sched, err := Compile(s)
		if err != nil {
			return 0, err
		}
		return countTriggers(sched, WindowStart, WindowEnd), nil
	default:
		return 0, domain.ErrInvalidSchedule(s, "no schedule set")
	}
}

// EstimateVolumeDelta returns the change in daily executions when a query
// moves from oldSchedule to newSchedule.
func EstimateVolumeDelta(oldSchedule, newSchedule domain.Schedule) (int, error) {
	before, err := EstimateDailyCalls(oldSchedule)
	if err != nil {
		return 0, err
	}
	after, err := EstimateDailyCalls(newSchedule)
	if err != nil {
		return 0, err
	}
	return after - before, nil
}

// NextRun returns the first trigger time strictly after the given instant.
func NextRun(s domain.Schedule, after time.Time) (time.Time, error) {
	sched, err := Compile(s)
	if err != nil {
		return time.Time{}, err
	}
	next := sched.Next(after)
	if next.IsZero() {
		return time.Time{}, domain.ErrInvalidSchedule(s, "expression never fires")
	}
	return next, nil
}

// Spec converts s into an expression the robfig scheduler accepts.
func Spec(s domain.Schedule) (string, error) {
	if err := Validate(s); err != nil {
		return "", err
	}
	if s.Kind() == domain.ScheduleKindInterval {
		return "@every " + (time.Duration(s.IntervalSeconds) * time.Second).String(), nil
	}
	return s.Cron, nil
}

// Compile returns the robfig schedule for s.
func Compile(s domain.Schedule) (cron.Schedule, error) {
	switch s.Kind() {
	case domain.ScheduleKindInterval:
		if err := checkInterval(s); err != nil {
			return nil, err
		}
		return cron.Every(time.Duration(s.IntervalSeconds) * time.Second), nil
	case domain.ScheduleKindCron:
		sched, err := parser.Parse(s.Cron)
		if err != nil {
			return nil, domain.ErrInvalidSchedule(s, "%v", err)
		}
		return sched, nil
	default:
		return nil, domain.ErrInvalidSchedule(s, "no schedule set")
	}
}

func checkInterval(s domain.Schedule) error {
	switch {
	case s.IntervalSeconds <= 0:
		return domain.ErrInvalidSchedule(s, "interval must be positive")
	case int64(s.IntervalSeconds) > MaxIntervalSeconds:
		return domain.ErrInvalidSchedule(s, "interval exceeds %d seconds", MaxIntervalSeconds)
	}
	return nil
}

// countTriggers counts activations in [start, end). Next is exclusive of its
// argument, so the walk begins just before start.
func countTriggers(sched cron.Schedule, start, end time.Time) int {
	n := 0
	t := start.Add(-time.Nanosecond)
	for i := 0; i <= secondsPerDay; i++ {
		t = sched.Next(t)
		if t.IsZero() || !t.Before(end) {
			break
		}
		n++
	}
	return n
}
