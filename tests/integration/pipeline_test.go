//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Sternrassler/lunch-meetups/internal/server"
	"github.com/Sternrassler/lunch-meetups/internal/testutil"
	"github.com/Sternrassler/lunch-meetups/pkg/client"
	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
	"github.com/Sternrassler/lunch-meetups/pkg/health"
	"github.com/Sternrassler/lunch-meetups/pkg/pipeline"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}
	rdb, err := health.NewRedisClient(endpoint)
	if err != nil {
		t.Fatalf("NewRedisClient() error = %v", err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

// stack is the full service wired against a mock directory and real Redis.
type stack struct {
	directory *testutil.MockDirectory
	tracker   *health.Tracker
	http      *httptest.Server
}

func newStack(t *testing.T) *stack {
	t.Helper()

	mock := testutil.NewMockDirectory()
	t.Cleanup(mock.Close)

	cfg := client.DefaultConfig("lunch-meetups-integration/1.0")
	cfg.BaseURL = mock.URL()
	cfg.MaxRetries = 0
	directory, err := client.New(cfg)
	if err != nil {
		t.Fatalf("client.New() error = %v", err)
	}

	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("LoadLocation() error = %v", err)
	}

	tracker := health.NewTracker(setupRedis(t), zerolog.Nop())
	service := pipeline.NewService(directory, pipeline.DefaultConfig(), pipeline.NewGenerator(loc), tracker)
	srv := server.New(service, daterange.NewValidator(daterange.JapaneseMessages), tracker)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &stack{directory: mock, tracker: tracker, http: ts}
}

func (s *stack) getJSON(t *testing.T, path string, v any) int {
	t.Helper()
	resp, err := http.Get(s.http.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return resp.StatusCode
}

func TestFullRequestFlow(t *testing.T) {
	s := newStack(t)
	s.directory.SetResponse("20240603,20240604", testutil.NewEnvelopeResponse(
		testutil.LunchEvent(2, "2024-06-04", "12:00:00", "13:00:00"),
		testutil.LunchEvent(1, "2024-06-03", "12:15:00", "12:45:00"),
		testutil.LunchEvent(3, "2024-06-03", "18:00:00", "20:00:00"),
	))

	var env event.ResultEnvelope
	code := s.getJSON(t, "/api/events?start=2024-06-03&end=2024-06-04", &env)

	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if env.ResultsReturned != 2 || env.Events[0].ID != 1 || env.Events[1].ID != 2 {
		t.Errorf("envelope = %+v", env)
	}

	var status struct {
		Enabled bool `json:"enabled"`
		health.State
	}
	s.getJSON(t, "/status", &status)
	if !status.Enabled || status.ConsecutiveFailures != 0 || status.LastSuccess.IsZero() {
		t.Errorf("status = %+v", status)
	}
}

func TestOutageDegradesHealth(t *testing.T) {
	s := newStack(t)
	s.directory.SetDefaultResponse(testutil.NewServerErrorResponse())

	for i := 0; i < health.DegradedThreshold; i++ {
		var env event.ResultEnvelope
		if code := s.getJSON(t, "/api/events?start=2024-06-03&end=2024-06-03", &env); code != http.StatusOK {
			t.Fatalf("run %d: status = %d", i, code)
		}
		if env.ResultsReturned != 1 || env.Events[0].OwnerID != pipeline.FallbackOwnerID {
			t.Fatalf("run %d: expected placeholder event, got %+v", i, env)
		}
	}

	state, err := s.tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if !state.IsDegraded() {
		t.Errorf("state = %+v, want degraded", state)
	}

	s.directory.SetDefaultResponse(testutil.NewEnvelopeResponse())
	var env event.ResultEnvelope
	s.getJSON(t, "/api/events?start=2024-06-03&end=2024-06-03", &env)

	state, err = s.tracker.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.IsDegraded() || state.ConsecutiveFailures != 0 {
		t.Errorf("state after recovery = %+v", state)
	}
}

func TestReadyWithRedis(t *testing.T) {
	s := newStack(t)

	resp, err := http.Get(s.http.URL + "/ready")
	if err != nil {
		t.Fatalf("GET /ready: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
