package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for upstream health tracking.
var (
	upstreamConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lunch_upstream_consecutive_failed_runs",
		Help: "Number of consecutive pipeline runs in which every partition failed",
	})

	upstreamDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lunch_upstream_degraded",
		Help: "1 when the events directory is considered degraded, 0 otherwise",
	})

	healthRecordErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lunch_health_record_errors_total",
		Help: "Total number of failed writes of upstream health state",
	})
)

// Tracker stores upstream health state in Redis. A nil *Tracker is valid and
// does nothing, which is how the tracker is disabled.
type Tracker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewTracker creates a new upstream health tracker.
func NewTracker(redisClient *redis.Client, logger zerolog.Logger) *Tracker {
	return &Tracker{
		redis:  redisClient,
		logger: logger,
	}
}

// NewRedisClient parses a redis:// URL. A bare "host:port" is accepted too.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		if _, _, splitErr := net.SplitHostPort(redisURL); splitErr != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = &redis.Options{Addr: redisURL}
	}
	return redis.NewClient(opts), nil
}

// Enabled reports whether the tracker is backed by Redis.
func (t *Tracker) Enabled() bool {
	return t != nil && t.redis != nil
}

// Ping checks Redis connectivity. A disabled tracker always succeeds.
func (t *Tracker) Ping(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	return t.redis.Ping(ctx).Err()
}

// RecordRun stores the outcome of one pipeline run. Runs that issued no
// partition queries are ignored.
func (t *Tracker) RecordRun(ctx context.Context, outcome Outcome) error {
	if !t.Enabled() || outcome.Partitions == 0 {
		return nil
	}
	if outcome.At.IsZero() {
		outcome.At = time.Now()
	}

	runJSON, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("marshal run outcome: %w", err)
	}
	atJSON, err := json.Marshal(outcome.At)
	if err != nil {
		return fmt.Errorf("marshal run time: %w", err)
	}

	pipe := t.redis.TxPipeline()
	var failures *redis.IntCmd
	if outcome.Failed() {
		failures = pipe.Incr(ctx, RedisKeyConsecutiveFailures)
		pipe.Set(ctx, RedisKeyLastFailure, atJSON, 0)
	} else {
		pipe.Set(ctx, RedisKeyConsecutiveFailures, 0, 0)
		pipe.Set(ctx, RedisKeyLastSuccess, atJSON, 0)
	}
	pipe.Set(ctx, RedisKeyLastRun, runJSON, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		healthRecordErrorsTotal.Inc()
		return fmt.Errorf("store upstream health in redis: %w", err)
	}

	consecutive := 0
	if failures != nil {
		consecutive = int(failures.Val())
	}
	state := &State{ConsecutiveFailures: consecutive}
	state.UpdateHealth()

	upstreamConsecutiveFailures.Set(float64(consecutive))
	if state.Degraded {
		upstreamDegraded.Set(1)
		t.logger.Error().
			Int("consecutive_failures", consecutive).
			Int("status_code", outcome.StatusCode).
			Msg("Events directory DEGRADED - serving fallback data")
	} else {
		upstreamDegraded.Set(0)
		t.logger.Debug().
			Int("partitions", outcome.Partitions).
			Int("failed_partitions", outcome.FailedPartitions).
			Int("consecutive_failures", consecutive).
			Msg("Upstream health updated")
	}

	return nil
}

// GetState retrieves the current upstream health state from Redis.
// Returns a zero (healthy) state if nothing has been recorded yet or the
// tracker is disabled.
func (t *Tracker) GetState(ctx context.Context) (*State, error) {
	state := &State{}
	if !t.Enabled() {
		return state, nil
	}

	consecutive, err := t.redis.Get(ctx, RedisKeyConsecutiveFailures).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get consecutive failures: %w", err)
	}
	state.ConsecutiveFailures = consecutive

	if err := t.getJSON(ctx, RedisKeyLastSuccess, &state.LastSuccess); err != nil {
		return nil, err
	}
	if err := t.getJSON(ctx, RedisKeyLastFailure, &state.LastFailure); err != nil {
		return nil, err
	}

	var lastRun Outcome
	found, err := t.getJSONFound(ctx, RedisKeyLastRun, &lastRun)
	if err != nil {
		return nil, err
	}
	if found {
		state.LastRun = &lastRun
	}

	state.UpdateHealth()
	return state, nil
}

func (t *Tracker) getJSON(ctx context.Context, key string, dst any) error {
	_, err := t.getJSONFound(ctx, key, dst)
	return err
}

func (t *Tracker) getJSONFound(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := t.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return true, nil
}
