package daterange

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how a range is split into upstream queries. The two modes are
// alternative strategies and are never combined.
type Mode string

const (
	// ModeExactDate batches exact dates into the "ymd" parameter.
	ModeExactDate Mode = "ymd"

	// ModeYearMonth issues one "ym" query per calendar month.
	ModeYearMonth Mode = "ym"
)

// DefaultDatesPerBatch is how many exact dates go into one ymd query.
const DefaultDatesPerBatch = 4

// MaxDatesPerBatch is the most exact dates the directory accepts in one ymd query.
const MaxDatesPerBatch = 4

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeExactDate, "":
		return ModeExactDate, nil
	case ModeYearMonth:
		return ModeYearMonth, nil
	default:
		return "", fmt.Errorf("unknown partition mode %q (want %q or %q)", s, ModeExactDate, ModeYearMonth)
	}
}

// PartitionKey is one upstream query: either a batch of exact dates
// ("20240603,20240604") or a single year-month ("202406").
type PartitionKey struct {
	Mode   Mode
	Tokens []string
}

// Param returns the upstream query parameter name for the key.
func (k PartitionKey) Param() string {
	return string(k.Mode)
}

// Value returns the comma-joined tokens sent upstream.
func (k PartitionKey) Value() string {
	return strings.Join(k.Tokens, ",")
}

// String renders the key for logs, e.g. "ymd=20240603,20240604".
func (k PartitionKey) String() string {
	return k.Param() + "=" + k.Value()
}

// Partitioner splits a range into partition keys.
type Partitioner struct {
	Mode          Mode
	DatesPerBatch int
}

// NewPartitioner returns a partitioner for the given mode with the default batch size.
func NewPartitioner(mode Mode) *Partitioner {
	return &Partitioner{
		Mode:          mode,
		DatesPerBatch: DefaultDatesPerBatch,
	}
}

// Partition returns the keys for r in calendar order.
func (p *Partitioner) Partition(r DateRange) []PartitionKey {
	if r.End.Before(r.Start) {
		return nil
	}

	switch p.Mode {
	case ModeYearMonth:
		return yearMonthKeys(r)
	default:
		size := p.DatesPerBatch
		if size <= 0 {
			size = DefaultDatesPerBatch
		}
		size = min(size, MaxDatesPerBatch)
		return exactDateKeys(r, size)
	}
}

func exactDateKeys(r DateRange, size int) []PartitionKey {
	dates := r.Dates()
	keys := make([]PartitionKey, 0, (len(dates)+size-1)/size)

	for i := 0; i < len(dates); i += size {
		end := min(i+size, len(dates))
		tokens := make([]string, 0, end-i)
		for _, d := range dates[i:end] {
			tokens = append(tokens, d.Format("20060102"))
		}
		keys = append(keys, PartitionKey{Mode: ModeExactDate, Tokens: tokens})
	}

	return keys
}

func yearMonthKeys(r DateRange) []PartitionKey {
	var keys []PartitionKey

	year, month := r.Start.Year(), r.Start.Month()
	lastYear, lastMonth := r.End.Year(), r.End.Month()

	for year < lastYear || (year == lastYear && month <= lastMonth) {
		keys = append(keys, PartitionKey{
			Mode:   ModeYearMonth,
			Tokens: []string{fmt.Sprintf("%04d%02d", year, int(month))},
		})

		month++
		if month > time.December {
			month = time.January
			year++
		}
	}

	return keys
}

// DecodeDates expands keys back into the calendar dates they cover, clipped
// to r. Used to check that partitioning neither drops nor repeats a date.
func DecodeDates(keys []PartitionKey, r DateRange) ([]time.Time, error) {
	var dates []time.Time

	for _, key := range keys {
		for _, token := range key.Tokens {
			switch key.Mode {
			case ModeExactDate:
				d, err := time.Parse("20060102", token)
				if err != nil {
					return nil, fmt.Errorf("decode date token %q: %w", token, err)
				}
				dates = append(dates, d)
			case ModeYearMonth:
				first, err := time.Parse("200601", token)
				if err != nil {
					return nil, fmt.Errorf("decode month token %q: %w", token, err)
				}
				for d := first; d.Month() == first.Month(); d = d.AddDate(0, 0, 1) {
					if r.Contains(d) {
						dates = append(dates, d)
					}
				}
			default:
				return nil, fmt.Errorf("unknown partition mode %q", key.Mode)
			}
		}
	}

	return dates, nil
}
