package pipeline

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule is a parsed cron expression in the standard 5-field form
// "minute hour day-of-month month day-of-week", or a descriptor such as
// "@daily". Times are matched in the location of the time passed to Next.
type Schedule struct {
	expr  string
	sched cron.Schedule
}

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (Schedule, error) {
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return Schedule{}, fmt.Errorf("pipeline: cron %q: %w", expr, err)
	}
	return Schedule{expr: expr, sched: sched}, nil
}

// String returns the original expression.
func (s Schedule) String() string {
	return s.expr
}

// Next returns the first activation strictly after t. An expression that
// can never fire is an error.
func (s Schedule) Next(t time.Time) (time.Time, error) {
	next := s.sched.Next(t)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("pipeline: cron %q: never fires", s.expr)
	}
	return next, nil
}
