//go:build integration

package health

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client, err := NewRedisClient(endpoint)
	if err != nil {
		t.Fatalf("NewRedisClient(%q) error = %v", endpoint, err)
	}
	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_SharedState(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	ctx := context.Background()

	// Two trackers on the same Redis model two server instances.
	first := NewTracker(redisClient, logger)
	second := NewTracker(redisClient, logger)

	state, err := second.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Degraded || state.ConsecutiveFailures != 0 {
		t.Errorf("empty Redis should report healthy, got %+v", state)
	}

	for i := 0; i < DegradedThreshold; i++ {
		tracker := first
		if i%2 == 1 {
			tracker = second
		}
		if err := tracker.RecordRun(ctx, Outcome{Partitions: 1, FailedPartitions: 1, StatusCode: 504}); err != nil {
			t.Fatalf("RecordRun() error = %v", err)
		}
	}

	state, err = first.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.IsDegraded() {
		t.Errorf("state = %+v, want degraded", state)
	}

	if err := second.RecordRun(ctx, Outcome{Partitions: 1}); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	state, err = first.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.IsDegraded() || state.LastSuccess.IsZero() {
		t.Errorf("state after recovery = %+v", state)
	}
}

func TestTracker_Integration_Ping(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	tracker := NewTracker(redisClient, zerolog.Nop())
	if err := tracker.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
