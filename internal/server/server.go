// Package server exposes the lunch meetups pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
	"github.com/Sternrassler/lunch-meetups/pkg/health"
	"github.com/Sternrassler/lunch-meetups/pkg/metrics"
)

// Runner runs the pipeline for one validated range. *pipeline.Service
// implements it.
type Runner interface {
	Run(ctx context.Context, r daterange.DateRange) (*event.ResultEnvelope, error)
}

// Server holds the HTTP handlers.
type Server struct {
	runner    Runner
	validator *daterange.Validator
	tracker   *health.Tracker
	logger    zerolog.Logger
}

// New creates a server. tracker may be nil.
func New(runner Runner, validator *daterange.Validator, tracker *health.Tracker) *Server {
	return &Server{
		runner:    runner,
		validator: validator,
		tracker:   tracker,
		logger:    log.With().Str("component", "http").Logger(),
	}
}

// Handler returns the routed handler wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/events", s.handleEvents)

	var handler http.Handler = mux
	handler = WithRecovery(s.validator.Messages.Unexpected, handler)
	handler = WithLogging(handler)
	handler = WithRequestID(s.logger, handler)
	return handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting lunch meetups server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
