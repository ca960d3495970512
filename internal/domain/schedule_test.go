package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchedule_Kind(t *testing.T) {
	tests := []struct {
		name string
		s    Schedule
		want ScheduleKind
	}{
		{name: "cron", s: CronSchedule("0 * * * *"), want: ScheduleKindCron},
		{name: "interval", s: FixedIntervalSchedule(60), want: ScheduleKindInterval},
		{name: "zero", s: Schedule{}, want: ScheduleKindNone},
		{name: "both set prefers cron", s: Schedule{Cron: "@daily", IntervalSeconds: 5}, want: ScheduleKindCron},
		{name: "negative interval is still interval", s: FixedIntervalSchedule(-5), want: ScheduleKindInterval},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.s.Kind())
		})
	}
}

func TestSchedule_NormalizeDiscardsInactiveVariant(t *testing.T) {
	s := Schedule{Cron: " @hourly ", IntervalSeconds: 30}
	assert.Equal(t, Schedule{Cron: "@hourly"}, s.Normalize())
	assert.True(t, s.Equal(CronSchedule("@hourly")))
	assert.False(t, s.Equal(FixedIntervalSchedule(30)))
}

func TestSchedule_String(t *testing.T) {
	assert.Equal(t, `cron("0 * * * *")`, CronSchedule("0 * * * *").String())
	assert.Equal(t, "every(1800s)", FixedIntervalSchedule(1800).String())
	assert.Equal(t, "none", Schedule{}.String())
}
