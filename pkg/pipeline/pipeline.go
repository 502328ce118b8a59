// Package pipeline turns a validated date range into the lunch meetups
// response: partition, fan out, merge, filter, sort, and fall back to
// synthetic data when the directory yields nothing usable.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/Sternrassler/lunch-meetups/pkg/client"
	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
	"github.com/Sternrassler/lunch-meetups/pkg/fanout"
	"github.com/Sternrassler/lunch-meetups/pkg/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrUpstreamTimeout is returned when the directory answered with a gateway
// timeout and nothing usable was left. Callers surface it as a retry hint.
var ErrUpstreamTimeout = errors.New("events directory gateway timeout")

// Fallback reasons.
const (
	ReasonAllFailed = "all_failed"
	ReasonEmpty     = "empty"
)

var (
	pipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunch_pipeline_runs_total",
			Help: "Pipeline runs by outcome (upstream, fallback, timeout, cancelled)",
		},
		[]string{"outcome"},
	)

	pipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lunch_pipeline_duration_seconds",
			Help:    "Duration of a full pipeline run",
			Buckets: prometheus.DefBuckets,
		},
	)

	fallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lunch_fallback_total",
			Help: "Fallback activations by reason",
		},
		[]string{"reason"},
	)

	partitionFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lunch_partition_failures_total",
			Help: "Partition queries that failed and were left out of the merge",
		},
	)

	eventsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lunch_events_returned",
			Help:    "Number of events returned per run",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)
)

// Recorder receives the upstream outcome of every run. *health.Tracker
// implements it.
type Recorder interface {
	RecordRun(ctx context.Context, outcome health.Outcome) error
}

// Config holds pipeline configuration.
type Config struct {
	Mode          daterange.Mode
	DatesPerBatch int
	Fanout        fanout.Config
	Window        LunchWindow
}

// DefaultConfig returns the canonical policy: exact-date batches of four,
// the default fan-out, and the 12:00 to 13:00 window.
func DefaultConfig() Config {
	return Config{
		Mode:          daterange.ModeExactDate,
		DatesPerBatch: daterange.DefaultDatesPerBatch,
		Fanout:        fanout.DefaultConfig(),
		Window:        DefaultLunchWindow,
	}
}

// Service runs the pipeline. It holds no per-request state and is safe for
// concurrent use.
type Service struct {
	partitioner *daterange.Partitioner
	executor    *fanout.Executor
	window      LunchWindow
	fallback    *Generator
	recorder    Recorder
	logger      zerolog.Logger
}

// NewService creates a pipeline over querier. fallback may be nil, in which
// case a UTC generator is used. recorder may be nil.
func NewService(querier fanout.Querier, cfg Config, fallback *Generator, recorder Recorder) *Service {
	if cfg.Mode == "" {
		cfg.Mode = daterange.ModeExactDate
	}
	if cfg.DatesPerBatch <= 0 {
		cfg.DatesPerBatch = daterange.DefaultDatesPerBatch
	}
	if cfg.Window == (LunchWindow{}) {
		cfg.Window = DefaultLunchWindow
	}
	if fallback == nil {
		fallback = NewGenerator(time.UTC)
	}

	return &Service{
		partitioner: &daterange.Partitioner{Mode: cfg.Mode, DatesPerBatch: cfg.DatesPerBatch},
		executor:    fanout.NewExecutor(querier, cfg.Fanout),
		window:      cfg.Window,
		fallback:    fallback,
		recorder:    recorder,
		logger:      log.With().Str("component", "pipeline").Logger(),
	}
}

// Run produces the response envelope for r.
//
// It returns ErrUpstreamTimeout when a partition hit a gateway timeout and the
// run would otherwise fall back, and the context error when ctx is cancelled.
// Partial results are discarded on cancellation.
func (s *Service) Run(ctx context.Context, r daterange.DateRange) (*event.ResultEnvelope, error) {
	started := time.Now()
	defer func() {
		pipelineDuration.Observe(time.Since(started).Seconds())
	}()

	logger := s.loggerFor(ctx).With().
		Str("start", r.Start.Format(daterange.DateLayout)).
		Str("end", r.End.Format(daterange.DateLayout)).
		Logger()

	keys := s.partitioner.Partition(r)
	results := s.executor.Run(ctx, keys)

	if err := ctx.Err(); err != nil {
		pipelineRunsTotal.WithLabelValues("cancelled").Inc()
		logger.Debug().Err(err).Msg("Pipeline cancelled, discarding partial results")
		return nil, err
	}

	for _, res := range results {
		if res.OK() {
			continue
		}
		partitionFailuresTotal.Inc()
		logger.Warn().
			Err(res.Err).
			Str("partition", res.Key.String()).
			Str("error_class", string(client.ClassOf(res.Err))).
			Int("status", client.StatusOf(res.Err)).
			Msg("Partition query failed, skipping")
	}

	merged := Merge(results)
	s.record(ctx, logger, merged)

	events := merged.Events
	if s.partitioner.Mode == daterange.ModeYearMonth {
		events = ClampToRange(events, r)
	}
	events = SortByStart(s.window.Filter(events))

	if len(events) > 0 {
		pipelineRunsTotal.WithLabelValues("upstream").Inc()
		eventsReturned.Observe(float64(len(events)))
		logger.Info().
			Int("partitions", merged.Partitions).
			Int("failed", merged.Failed).
			Int("events", len(events)).
			Msg("Lunch events collected")
		return event.NewEnvelope(events), nil
	}

	if merged.GatewayTimeout {
		pipelineRunsTotal.WithLabelValues("timeout").Inc()
		logger.Warn().
			Int("partitions", merged.Partitions).
			Int("failed", merged.Failed).
			Msg("Events directory gateway timeout")
		return nil, ErrUpstreamTimeout
	}

	reason := ReasonEmpty
	if merged.AllFailed() {
		reason = ReasonAllFailed
	}
	fallbackTotal.WithLabelValues(reason).Inc()
	pipelineRunsTotal.WithLabelValues("fallback").Inc()

	synthetic := SortByStart(s.window.Filter(s.fallback.Generate(r)))
	eventsReturned.Observe(float64(len(synthetic)))

	logger.Warn().
		Str("reason", reason).
		Int("partitions", merged.Partitions).
		Int("failed", merged.Failed).
		Int("events", len(synthetic)).
		Msg("Serving fallback data")

	return event.NewEnvelope(synthetic), nil
}

// loggerFor prefers the request-scoped logger stored in ctx.
func (s *Service) loggerFor(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return s.logger
}

func (s *Service) record(ctx context.Context, logger zerolog.Logger, merged Merged) {
	if s.recorder == nil {
		return
	}
	outcome := health.Outcome{
		Partitions:       merged.Partitions,
		FailedPartitions: merged.Failed,
		StatusCode:       merged.LastStatus,
		At:               time.Now(),
	}
	if err := s.recorder.RecordRun(ctx, outcome); err != nil {
		logger.Warn().Err(err).Msg("Failed to record upstream health")
	}
}
