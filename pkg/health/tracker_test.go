package health

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// setupTestRedis connects to a local Redis and skips the test when none is running.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestTracker_NilIsNoop(t *testing.T) {
	var tracker *Tracker
	ctx := context.Background()

	if tracker.Enabled() {
		t.Error("nil tracker should not be enabled")
	}
	if err := tracker.Ping(ctx); err != nil {
		t.Errorf("Ping() = %v, want nil", err)
	}
	if err := tracker.RecordRun(ctx, Outcome{Partitions: 1, FailedPartitions: 1}); err != nil {
		t.Errorf("RecordRun() = %v, want nil", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.IsDegraded() || state.LastRun != nil {
		t.Errorf("disabled tracker state = %+v, want zero", state)
	}
}

func TestNewRedisClient(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantAddr string
		wantErr  bool
	}{
		{name: "redis url", url: "redis://cache.internal:6380/2", wantAddr: "cache.internal:6380"},
		{name: "host and port", url: "localhost:6379", wantAddr: "localhost:6379"},
		{name: "garbage", url: "not a redis url", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewRedisClient(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewRedisClient() error = %v", err)
			}
			defer client.Close()
			if client.Options().Addr != tt.wantAddr {
				t.Errorf("Addr = %q, want %q", client.Options().Addr, tt.wantAddr)
			}
		})
	}
}

func TestTracker_RecordRun(t *testing.T) {
	tracker := NewTracker(setupTestRedis(t), zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < DegradedThreshold; i++ {
		err := tracker.RecordRun(ctx, Outcome{Partitions: 2, FailedPartitions: 2, StatusCode: 503})
		if err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.ConsecutiveFailures != DegradedThreshold || !state.Degraded {
		t.Errorf("state = %+v, want degraded after %d failures", state, DegradedThreshold)
	}
	if state.LastFailure.IsZero() || !state.LastSuccess.IsZero() {
		t.Errorf("timestamps = success %v failure %v", state.LastSuccess, state.LastFailure)
	}
	if state.LastRun == nil || state.LastRun.StatusCode != 503 {
		t.Errorf("LastRun = %+v", state.LastRun)
	}

	// A partially successful run resets the streak.
	if err := tracker.RecordRun(ctx, Outcome{Partitions: 2, FailedPartitions: 1}); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	state, err = tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.ConsecutiveFailures != 0 || state.Degraded {
		t.Errorf("state after success = %+v", state)
	}
	if time.Since(state.LastSuccess) > time.Minute {
		t.Errorf("LastSuccess = %v", state.LastSuccess)
	}
}

func TestTracker_RecordRunIgnoresEmptyRuns(t *testing.T) {
	tracker := NewTracker(setupTestRedis(t), zerolog.Nop())
	ctx := context.Background()

	if err := tracker.RecordRun(ctx, Outcome{}); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}

	state, err := tracker.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.LastRun != nil {
		t.Errorf("LastRun = %+v, want nil", state.LastRun)
	}
}
