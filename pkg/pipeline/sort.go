package pipeline

import (
	"slices"
	"time"

	"github.com/Sternrassler/lunch-meetups/pkg/event"
)

type sortEntry struct {
	event event.Event
	start time.Time
	ok    bool
}

// SortByStart returns a copy of events ordered by start time ascending.
// The sort is stable: events with equal start times keep their relative
// order. Events whose start cannot be parsed go last, also in input order.
func SortByStart(events []event.Event) []event.Event {
	entries := make([]sortEntry, len(events))
	for i, e := range events {
		start, err := e.Start()
		entries[i] = sortEntry{event: e, start: start, ok: err == nil}
	}

	slices.SortStableFunc(entries, func(a, b sortEntry) int {
		switch {
		case a.ok && b.ok:
			return a.start.Compare(b.start)
		case a.ok:
			return -1
		case b.ok:
			return 1
		default:
			return 0
		}
	})

	out := make([]event.Event, len(entries))
	for i, entry := range entries {
		out[i] = entry.event
	}
	return out
}
