package pipeline

import (
	"github.com/Sternrassler/lunch-meetups/pkg/client"
	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
	"github.com/Sternrassler/lunch-meetups/pkg/fanout"
)

// Merged is the unified event collection built from all partition results.
type Merged struct {
	Events     []event.Event
	Partitions int
	Failed     int

	// GatewayTimeout is set when at least one partition failed with a 504.
	GatewayTimeout bool

	// LastStatus is the HTTP status of the last failed partition, 0 if none
	// carried one.
	LastStatus int
}

// AllFailed reports the total-failure condition: every partition failed, or
// there were no partitions at all.
func (m Merged) AllFailed() bool {
	return m.Failed == m.Partitions
}

// Merge concatenates the events of every successful partition in partition
// order, keeping each partition's own order. Failed partitions are counted and
// skipped. Duplicates across partitions are kept.
func Merge(results []fanout.Result) Merged {
	merged := Merged{
		Events:     []event.Event{},
		Partitions: len(results),
	}

	for _, r := range results {
		if r.Err != nil {
			merged.Failed++
			if client.IsGatewayTimeout(r.Err) {
				merged.GatewayTimeout = true
			}
			if status := client.StatusOf(r.Err); status != 0 {
				merged.LastStatus = status
			}
			continue
		}
		if r.Envelope != nil {
			merged.Events = append(merged.Events, r.Envelope.Events...)
		}
	}

	return merged
}

// ClampToRange drops events whose start date lies outside r. Year-month
// partitions return whole months, so their results need this before the lunch
// filter. Events with an unparseable start are left for the filter to reject.
func ClampToRange(events []event.Event, r daterange.DateRange) []event.Event {
	out := make([]event.Event, 0, len(events))
	for _, e := range events {
		start, err := e.Start()
		if err == nil && !r.Contains(start) {
			continue
		}
		out = append(out, e)
	}
	return out
}
