package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
	"github.com/Sternrassler/lunch-meetups/pkg/health"
	"github.com/Sternrassler/lunch-meetups/pkg/pipeline"
)

// handleEvents serves GET /api/events?start=YYYY-MM-DD&end=YYYY-MM-DD.
//
// The body is always either a ResultEnvelope or an ErrorResult. Validation
// failures are 400s; a gateway timeout upstream is a 200 carrying an
// ErrorResult; anything unexpected is a 400 with a generic message.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	messages := s.validator.Messages

	query := r.URL.Query()
	rng, err := s.validator.Parse(query.Get("start"), query.Get("end"))
	if err != nil {
		var verr *daterange.ValidationError
		if errors.As(err, &verr) {
			logger.Debug().Str("code", string(verr.Code)).Msg("Rejected date range")
			JSONResponse(w, http.StatusBadRequest, event.ErrorResult{Error: verr.Message})
			return
		}
		logger.Error().Err(err).Msg("Date range validation failed")
		JSONResponse(w, http.StatusBadRequest, event.ErrorResult{Error: messages.Unexpected})
		return
	}

	env, err := s.runner.Run(r.Context(), rng)
	switch {
	case err == nil:
		JSONResponse(w, http.StatusOK, env)
	case errors.Is(err, pipeline.ErrUpstreamTimeout):
		JSONResponse(w, http.StatusOK, event.ErrorResult{Error: messages.UpstreamTimeout})
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// Caller went away; nobody is left to read a response.
		logger.Debug().Msg("Request cancelled by caller")
	default:
		logger.Error().Err(err).Msg("Pipeline failed")
		JSONResponse(w, http.StatusBadRequest, event.ErrorResult{Error: messages.Unexpected})
	}
}

// handleReady reports 503 when the configured Redis is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.tracker.Ping(ctx); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
		http.Error(w, "Redis unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type statusResponse struct {
	Enabled bool `json:"enabled"`
	*health.State
}

// handleStatus returns the upstream health view.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.tracker.Enabled() {
		JSONResponse(w, http.StatusOK, statusResponse{Enabled: false})
		return
	}

	state, err := s.tracker.GetState(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Failed to read upstream health")
		http.Error(w, "health state unavailable", http.StatusServiceUnavailable)
		return
	}
	JSONResponse(w, http.StatusOK, statusResponse{Enabled: true, State: state})
}
