package pipeline

import (
	"github.com/Sternrassler/lunch-meetups/pkg/event"
)

// LunchWindow is the midday span events must fall in. An event is admitted
// when it starts during StartHour and ends no later than EndHour:00:00.
type LunchWindow struct {
	StartHour int
	EndHour   int
}

// DefaultLunchWindow is 12:00 to 13:00.
var DefaultLunchWindow = LunchWindow{StartHour: 12, EndHour: 13}

// Admit reports whether e lies inside the window. Hours are read from the
// wall clock encoded in the timestamp strings; no timezone conversion is done.
// Events with unparseable timestamps are rejected.
func (w LunchWindow) Admit(e *event.Event) bool {
	start, err := e.Start()
	if err != nil {
		return false
	}
	end, err := e.End()
	if err != nil {
		return false
	}

	if start.Hour() != w.StartHour {
		return false
	}

	switch {
	case end.Hour() >= w.StartHour && end.Hour() < w.EndHour:
		return true
	case end.Hour() == w.EndHour:
		return end.Minute() == 0 && end.Second() == 0 && end.Nanosecond() == 0
	default:
		return false
	}
}

// Filter returns the events admitted by the window, in their original order.
// The input slice is not modified.
func (w LunchWindow) Filter(events []event.Event) []event.Event {
	out := make([]event.Event, 0, len(events))
	for i := range events {
		if w.Admit(&events[i]) {
			out = append(out, events[i])
		}
	}
	return out
}
