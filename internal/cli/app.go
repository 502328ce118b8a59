package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/lunch-meetups/internal/config"
	"github.com/Sternrassler/lunch-meetups/pkg/client"
	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/fanout"
	"github.com/Sternrassler/lunch-meetups/pkg/health"
	"github.com/Sternrassler/lunch-meetups/pkg/logging"
	"github.com/Sternrassler/lunch-meetups/pkg/metrics"
	"github.com/Sternrassler/lunch-meetups/pkg/pipeline"
)

// app is the wired set of components shared by serve and fetch.
type app struct {
	cfg       *config.Config
	validator *daterange.Validator
	service   *pipeline.Service
	tracker   *health.Tracker
	redis     *redis.Client
	logger    zerolog.Logger
}

// newApp builds every component from cfg. The health tracker is only
// created when a Redis URL is configured; an unreachable Redis is logged and
// does not stop startup.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
		Output: os.Stderr,
	})
	logger := logging.NewLogger("lunch-meetups")
	metrics.SetBuildInfo(Version)

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}

	clientCfg := client.DefaultConfig(cfg.UserAgent)
	clientCfg.BaseURL = cfg.APIURL
	clientCfg.APIKey = cfg.APIKey
	clientCfg.RequestTimeout = cfg.RequestTimeout
	clientCfg.MaxRetries = cfg.MaxRetries
	directory, err := client.New(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create directory client: %w", err)
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
	}

	if cfg.RedisURL != "" {
		a.redis, err = health.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := a.redis.Ping(ctx).Err(); err != nil {
			logger.Warn().Err(err).Msg("Redis unreachable, upstream health will not be recorded until it recovers")
		}
		a.tracker = health.NewTracker(a.redis, logging.NewLogger("health"))
	}

	validator := daterange.NewValidator(daterange.MessagesFor(cfg.Language))
	validator.MaxSpanDays = cfg.MaxSpanDays
	a.validator = validator

	pcfg := pipeline.Config{
		Mode:          cfg.Mode(),
		DatesPerBatch: cfg.DatesPerBatch,
		Fanout: fanout.Config{
			MaxConcurrency: cfg.MaxConcurrency,
			Timeout:        cfg.PartitionTimeout,
		},
		Window: pipeline.DefaultLunchWindow,
	}
	var recorder pipeline.Recorder
	if a.tracker != nil {
		recorder = a.tracker
	}
	a.service = pipeline.NewService(directory, pcfg, pipeline.NewGenerator(loc), recorder)

	logger.Debug().
		Str("api_url", cfg.APIURL).
		Bool("api_key", cfg.APIKey != "").
		Str("partition_mode", cfg.PartitionMode).
		Int("dates_per_batch", cfg.DatesPerBatch).
		Bool("health_tracker", a.tracker != nil).
		Msg("Components ready")

	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
}
