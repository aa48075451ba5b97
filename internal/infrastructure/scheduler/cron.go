package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CronExpression is a parsed five-field cron expression:
// minute hour day-of-month month day-of-week.
// Each field accepts *, n, n-m, */s, n-m/s and comma lists of those.
//
// Examples:
//   - "*/15 * * * *"  every 15 minutes
//   - "30 3 * * *"    every day at 03:30
//   - "0 0 * * 0"     every Sunday at midnight
type CronExpression struct {
	raw      string
	minutes  fieldSet
	hours    fieldSet
	days     fieldSet
	months   fieldSet
	weekdays fieldSet
}

var _ Schedule = (*CronExpression)(nil)

type fieldSet map[int]struct{}

func (f fieldSet) has(v int) bool {
	_, ok := f[v]
	return ok
}

// ParseCronExpression parses a cron expression string.
func ParseCronExpression(expr string) (*CronExpression, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, fmt.Errorf("invalid cron expression %q: expected 5 fields, got %d", expr, len(fields))
	}

	ce := &CronExpression{raw: strings.Join(fields, " ")}
	specs := []struct {
		name     string
		min, max int
		dst      *fieldSet
	}{
		{"minute", 0, 59, &ce.minutes},
		{"hour", 0, 23, &ce.hours},
		{"day", 1, 31, &ce.days},
		{"month", 1, 12, &ce.months},
		{"weekday", 0, 6, &ce.weekdays},
	}

	for i, spec := range specs {
		set, err := parseField(fields[i], spec.min, spec.max)
		if err != nil {
			return nil, fmt.Errorf("invalid %s field: %w", spec.name, err)
		}
		*spec.dst = set
	}
	return ce, nil
}

// MustParseCronExpression is ParseCronExpression that panics on error.
func MustParseCronExpression(expr string) *CronExpression {
	ce, err := ParseCronExpression(expr)
	if err != nil {
		panic(err)
	}
	return ce
}

func parseField(field string, min, max int) (fieldSet, error) {
	set := make(fieldSet)
	for _, part := range strings.Split(field, ",") {
		if err := parsePart(part, min, max, set); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func parsePart(part string, min, max int, set fieldSet) error {
	step := 1
	if base, s, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid step %q", s)
		}
		step = n
		part = base
	}

	start, end := min, max
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		lo, hi, _ := strings.Cut(part, "-")
		var err error
		if start, err = strconv.Atoi(lo); err != nil {
			return fmt.Errorf("invalid range start %q", lo)
		}
		if end, err = strconv.Atoi(hi); err != nil {
			return fmt.Errorf("invalid range end %q", hi)
		}
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid value %q", part)
		}
		start = v
		if step == 1 {
			end = v
		}
	}

	if start < min || end > max || start > end {
		return fmt.Errorf("value out of range [%d-%d]: %s", min, max, part)
	}
	for v := start; v <= end; v += step {
		set[v] = struct{}{}
	}
	return nil
}

// String returns the normalized expression.
func (ce *CronExpression) String() string {
	return ce.raw
}

// Next returns the first matching minute strictly after t, or the zero time
// if none occurs within a year.
func (ce *CronExpression) Next(t time.Time) time.Time {
	next := t.Truncate(time.Minute).Add(time.Minute)

	const limit = 366 * 24 * 60
	for i := 0; i < limit; i++ {
		if ce.matches(next) {
			return next
		}
		next = next.Add(time.Minute)
	}
	return time.Time{}
}

func (ce *CronExpression) matches(t time.Time) bool {
	return ce.minutes.has(t.Minute()) &&
		ce.hours.has(t.Hour()) &&
		ce.days.has(t.Day()) &&
		ce.months.has(int(t.Month())) &&
		ce.weekdays.has(int(t.Weekday()))
}
