package fanout

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
)

// fakeQuerier answers from a per-partition table.
type fakeQuerier struct {
	mu       sync.Mutex
	delays   map[string]time.Duration
	failures map[string]error
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    []string
}

func (f *fakeQuerier) Query(ctx context.Context, key daterange.PartitionKey) (*event.ResultEnvelope, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, key.Value())
	delay := f.delays[key.Value()]
	failure := f.failures[key.Value()]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, failure
	}
	return event.NewEnvelope([]event.Event{{Title: key.Value()}}), nil
}

func keys(values ...string) []daterange.PartitionKey {
	out := make([]daterange.PartitionKey, 0, len(values))
	for _, v := range values {
		out = append(out, daterange.PartitionKey{Mode: daterange.ModeExactDate, Tokens: []string{v}})
	}
	return out
}

func TestRun_PreservesPartitionOrder(t *testing.T) {
	q := &fakeQuerier{
		delays: map[string]time.Duration{
			"20240601": 30 * time.Millisecond,
			"20240602": 10 * time.Millisecond,
			"20240603": 0,
		},
	}
	exec := NewExecutor(q, Config{MaxConcurrency: 3, Timeout: time.Second})

	results := exec.Run(context.Background(), keys("20240601", "20240602", "20240603"))

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for i, want := range []string{"20240601", "20240602", "20240603"} {
		if results[i].Index != i || results[i].Key.Value() != want {
			t.Errorf("slot %d = %s, want %s", i, results[i].Key, want)
		}
		if !results[i].OK() || results[i].Envelope.Events[0].Title != want {
			t.Errorf("slot %d envelope = %+v err = %v", i, results[i].Envelope, results[i].Err)
		}
	}
}

func TestRun_IsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	q := &fakeQuerier{failures: map[string]error{"b": boom}}
	exec := NewExecutor(q, DefaultConfig())

	results := exec.Run(context.Background(), keys("a", "b", "c"))

	if !results[0].OK() || !results[2].OK() {
		t.Error("sibling partitions should succeed")
	}
	if !errors.Is(results[1].Err, boom) || results[1].Envelope != nil {
		t.Errorf("failed slot = %+v", results[1])
	}
}

func TestRun_PartitionTimeoutDoesNotCancelSiblings(t *testing.T) {
	q := &fakeQuerier{delays: map[string]time.Duration{"slow": time.Second}}
	exec := NewExecutor(q, Config{MaxConcurrency: 2, Timeout: 50 * time.Millisecond})

	results := exec.Run(context.Background(), keys("slow", "fast1", "fast2"))

	if !errors.Is(results[0].Err, context.DeadlineExceeded) {
		t.Errorf("slow partition err = %v, want deadline exceeded", results[0].Err)
	}
	if !results[1].OK() || !results[2].OK() {
		t.Errorf("fast partitions failed: %v, %v", results[1].Err, results[2].Err)
	}
}

func TestRun_RespectsConcurrencyLimit(t *testing.T) {
	q := &fakeQuerier{delays: map[string]time.Duration{}}
	values := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	for _, v := range values {
		q.delays[v] = 20 * time.Millisecond
	}
	exec := NewExecutor(q, Config{MaxConcurrency: 2, Timeout: time.Second})

	exec.Run(context.Background(), keys(values...))

	if peak := q.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
	if len(q.calls) != len(values) {
		t.Errorf("calls = %d, want %d", len(q.calls), len(values))
	}
}

func TestRun_CancelledContext(t *testing.T) {
	q := &fakeQuerier{}
	exec := NewExecutor(q, DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := exec.Run(ctx, keys("a", "b"))
	for i, r := range results {
		if !errors.Is(r.Err, context.Canceled) {
			t.Errorf("slot %d err = %v, want context.Canceled", i, r.Err)
		}
	}
	if len(q.calls) != 0 {
		t.Errorf("querier called %d times after cancellation", len(q.calls))
	}
}

func TestRun_Empty(t *testing.T) {
	exec := NewExecutor(&fakeQuerier{}, DefaultConfig())
	if results := exec.Run(context.Background(), nil); len(results) != 0 {
		t.Errorf("got %d results for no keys", len(results))
	}
}

func TestNewExecutor_Defaults(t *testing.T) {
	exec := NewExecutor(&fakeQuerier{}, Config{})
	if exec.config.MaxConcurrency != 4 || exec.config.Timeout != 15*time.Second {
		t.Errorf("config = %+v", exec.config)
	}
}
