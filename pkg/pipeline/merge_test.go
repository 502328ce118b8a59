package pipeline

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/Sternrassler/lunch-meetups/pkg/client"
	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
	"github.com/Sternrassler/lunch-meetups/pkg/fanout"
)

func ok(index int, events ...event.Event) fanout.Result {
	return fanout.Result{Index: index, Envelope: &event.ResultEnvelope{Events: events}}
}

func failed(index int, err error) fanout.Result {
	return fanout.Result{Index: index, Err: err}
}

func TestMerge(t *testing.T) {
	serverErr := &client.QueryError{StatusCode: 500, ErrorClass: client.ErrorClassServer}
	gatewayErr := &client.QueryError{StatusCode: 504, ErrorClass: client.ErrorClassTimeout}

	tests := []struct {
		name       string
		results    []fanout.Result
		wantIDs    []int64
		wantFailed int
		allFailed  bool
		timeout    bool
		wantStatus int
	}{
		{
			name: "concatenates in partition order",
			results: []fanout.Result{
				ok(0, event.Event{ID: 1}, event.Event{ID: 2}),
				ok(1, event.Event{ID: 3}),
			},
			wantIDs: []int64{1, 2, 3},
		},
		{
			name: "skips failed partition",
			results: []fanout.Result{
				ok(0, event.Event{ID: 1}),
				failed(1, serverErr),
				ok(2, event.Event{ID: 3}),
			},
			wantIDs:    []int64{1, 3},
			wantFailed: 1,
			wantStatus: 500,
		},
		{
			name: "keeps duplicates",
			results: []fanout.Result{
				ok(0, event.Event{ID: 9}),
				ok(1, event.Event{ID: 9}),
			},
			wantIDs: []int64{9, 9},
		},
		{
			name: "all failed",
			results: []fanout.Result{
				failed(0, serverErr),
				failed(1, errors.New("dial tcp: refused")),
			},
			wantIDs:    []int64{},
			wantFailed: 2,
			allFailed:  true,
			wantStatus: 500,
		},
		{
			name:      "no partitions counts as total failure",
			results:   nil,
			wantIDs:   []int64{},
			allFailed: true,
		},
		{
			name: "gateway timeout noted",
			results: []fanout.Result{
				failed(0, gatewayErr),
				ok(1),
			},
			wantIDs:    []int64{},
			wantFailed: 1,
			timeout:    true,
			wantStatus: 504,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merged := Merge(tt.results)

			if got := ids(merged.Events); !slices.Equal(got, tt.wantIDs) {
				t.Errorf("ids = %v, want %v", got, tt.wantIDs)
			}
			if merged.Failed != tt.wantFailed {
				t.Errorf("Failed = %d, want %d", merged.Failed, tt.wantFailed)
			}
			if merged.AllFailed() != tt.allFailed {
				t.Errorf("AllFailed() = %v, want %v", merged.AllFailed(), tt.allFailed)
			}
			if merged.GatewayTimeout != tt.timeout {
				t.Errorf("GatewayTimeout = %v, want %v", merged.GatewayTimeout, tt.timeout)
			}
			if merged.LastStatus != tt.wantStatus {
				t.Errorf("LastStatus = %d, want %d", merged.LastStatus, tt.wantStatus)
			}
			if env := event.NewEnvelope(merged.Events); !env.Consistent() {
				t.Error("merged envelope counters inconsistent")
			}
		})
	}
}

func TestClampToRange(t *testing.T) {
	r := daterange.DateRange{
		Start: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC),
	}
	events := []event.Event{
		timed(1, "2024-06-02T12:00:00+09:00", ""),
		timed(2, "2024-06-03T12:00:00+09:00", ""),
		timed(3, "2024-06-04T12:30:00+09:00", ""),
		timed(4, "2024-06-05T12:00:00+09:00", ""),
		timed(5, "unknown", ""),
	}

	if got := ids(ClampToRange(events, r)); !slices.Equal(got, []int64{2, 3, 5}) {
		t.Errorf("ClampToRange() ids = %v, want [2 3 5]", got)
	}
}
