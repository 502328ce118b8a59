// Package daterange validates caller-supplied calendar date ranges and splits
// them into partition keys the events directory accepts in one request.
package daterange

import (
	"regexp"
	"time"
)

// DefaultMaxSpanDays is the widest range (inclusive of both ends) a caller may request.
const DefaultMaxSpanDays = 32

// DateLayout is the inbound date format.
const DateLayout = "2006-01-02"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// DateRange is an inclusive range of calendar dates. Both ends are midnight
// UTC so day arithmetic never crosses a DST transition.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days in the range, counting both ends.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Dates enumerates every calendar date in the range in ascending order.
func (r DateRange) Dates() []time.Time {
	dates := make([]time.Time, 0, r.Days())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// Contains reports whether the calendar date of t (in t's own location)
// falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(r.Start) && !day.After(r.End)
}

// Validator checks raw start/end parameters in a fixed order and reports the
// first failing check.
type Validator struct {
	MaxSpanDays int
	Messages    Messages
}

// NewValidator returns a validator with the default span and the given message catalogue.
func NewValidator(messages Messages) *Validator {
	return &Validator{
		MaxSpanDays: DefaultMaxSpanDays,
		Messages:    messages,
	}
}

// Parse validates raw start/end parameters and returns the range.
// Checks run in order: presence, format, calendar validity, ordering, span.
func (v *Validator) Parse(start, end string) (DateRange, error) {
	if start == "" || end == "" {
		return DateRange{}, v.fail(CodeMissing)
	}

	if !datePattern.MatchString(start) || !datePattern.MatchString(end) {
		return DateRange{}, v.fail(CodeFormat)
	}

	startDate, errStart := time.Parse(DateLayout, start)
	endDate, errEnd := time.Parse(DateLayout, end)
	if errStart != nil || errEnd != nil {
		return DateRange{}, v.fail(CodeInvalidDate)
	}

	if startDate.After(endDate) {
		return DateRange{}, v.fail(CodeOrder)
	}

	r := DateRange{Start: startDate, End: endDate}

	maxSpan := v.MaxSpanDays
	if maxSpan <= 0 {
		maxSpan = DefaultMaxSpanDays
	}
	if r.Days() > maxSpan {
		return DateRange{}, &ValidationError{Code: CodeSpan, Message: v.Messages.SpanFor(maxSpan)}
	}

	return r, nil
}

func (v *Validator) fail(code Code) *ValidationError {
	return &ValidationError{Code: code, Message: v.Messages.For(code)}
}
