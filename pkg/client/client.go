// Package client provides the events directory HTTP client used to run one
// partition query, with retry and error classification.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for directory client operations.
var (
	upstreamRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lunch_upstream_requests_total",
		Help: "Total events directory requests by partition mode and status",
	}, []string{"mode", "status"})

	upstreamRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lunch_upstream_request_duration_seconds",
		Help:    "Events directory partition query duration in seconds, retries included",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"mode"})

	upstreamErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lunch_upstream_errors_total",
		Help: "Total events directory errors by class",
	}, []string{"class"})
)

// DefaultBaseURL is the events directory search endpoint.
const DefaultBaseURL = "https://connpass.com/api/v2/events/"

// APIKeyHeader carries the optional directory credential.
const APIKeyHeader = "X-API-Key"

// ErrorClass represents a classification of partition query failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx responses and requests that could not be built.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx responses other than 504.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassTimeout represents a 504 gateway timeout from the directory.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassNetwork represents transport errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a 2xx response whose body is not a result envelope.
	ErrorClassDecode ErrorClass = "decode"
)

// Client queries the events directory.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the directory search endpoint.
	BaseURL string

	// APIKey is sent in the X-API-Key header when non-empty.
	// Anonymous queries are allowed.
	APIKey string

	// UserAgent header sent with every request.
	UserAgent string

	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration

	// Query parameters fixed for every request.
	Count      int
	Order      int
	Prefecture string

	// Retry
	MaxRetries     int           // Additional attempts after the first, server/network errors only
	InitialBackoff time.Duration // Overrides the per-class initial backoff when > 0
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		UserAgent:      userAgent,
		RequestTimeout: 30 * time.Second,
		Count:          100,
		Order:          2,
		Prefecture:     "online",
		MaxRetries:     2,
	}
}

// New creates a new directory client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.Count <= 0 {
		cfg.Count = 100
	}

	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		baseURL: baseURL,
		config:  cfg,
		logger:  log.With().Str("component", "connpass-client").Logger(),
	}, nil
}

// Query runs one partition query and returns the decoded envelope.
// Failures are returned as *QueryError (possibly wrapped by retry errors) and
// affect only this partition.
func (c *Client) Query(ctx context.Context, key daterange.PartitionKey) (*event.ResultEnvelope, error) {
	mode := string(key.Mode)

	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.WithLabelValues(mode).Observe(time.Since(startTime).Seconds())
	}()

	c.logger.Debug().
		Str("partition", key.String()).
		Msg("Executing directory query")

	var envelope *event.ResultEnvelope
	err := retryWithBackoff(ctx, c.retryConfig, func() error {
		env, err := c.attempt(ctx, key)
		if err != nil {
			return err
		}
		envelope = env
		return nil
	})
	if err != nil {
		return nil, err
	}

	return envelope, nil
}

// attempt performs a single HTTP round trip.
func (c *Client) attempt(ctx context.Context, key daterange.PartitionKey) (*event.ResultEnvelope, error) {
	partition := key.String()
	mode := string(key.Mode)

	req, err := c.newRequest(ctx, key)
	if err != nil {
		return nil, &QueryError{
			Partition:  partition,
			ErrorClass: ErrorClassClient,
			Message:    "create request",
			Err:        err,
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()
		upstreamRequestsTotal.WithLabelValues(mode, "network_error").Inc()
		c.logger.Debug().Err(err).Str("partition", partition).Msg("Directory request failed")
		return nil, &QueryError{
			Partition:  partition,
			ErrorClass: errClass,
			Message:    "request failed",
			Err:        err,
		}
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(mode, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errClass := c.classifyError(resp, nil)
		upstreamErrorsTotal.WithLabelValues(string(errClass)).Inc()

		// Drain a bounded amount so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

		c.logger.Debug().
			Str("partition", partition).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Directory request error")

		return nil, &QueryError{
			Partition:  partition,
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	envelope, err := decodeEnvelope(resp.Body)
	if err != nil {
		upstreamErrorsTotal.WithLabelValues(string(ErrorClassDecode)).Inc()
		return nil, &QueryError{
			Partition:  partition,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "decode result envelope",
			Err:        err,
		}
	}

	if envelope.ResultsAvailable > len(envelope.Events) {
		c.logger.Warn().
			Str("partition", partition).
			Int("events", len(envelope.Events)).
			Int("results_available", envelope.ResultsAvailable).
			Msg("Directory result truncated, events beyond count are dropped")
	} else {
		c.logger.Debug().
			Str("partition", partition).
			Int("events", len(envelope.Events)).
			Int("results_available", envelope.ResultsAvailable).
			Msg("Directory query succeeded")
	}

	return envelope, nil
}

// wireEnvelope tells a missing or null events list apart from an empty one.
type wireEnvelope struct {
	ResultsStart     int            `json:"results_start"`
	ResultsReturned  int            `json:"results_returned"`
	ResultsAvailable int            `json:"results_available"`
	Events           *[]event.Event `json:"events"`
}

// decodeEnvelope reads exactly one result envelope with an events list.
func decodeEnvelope(r io.Reader) (*event.ResultEnvelope, error) {
	dec := json.NewDecoder(r)

	var wire wireEnvelope
	if err := dec.Decode(&wire); err != nil {
		return nil, err
	}
	if wire.Events == nil {
		return nil, ErrMissingEvents
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}

	return &event.ResultEnvelope{
		ResultsStart:     wire.ResultsStart,
		ResultsReturned:  wire.ResultsReturned,
		ResultsAvailable: wire.ResultsAvailable,
		Events:           *wire.Events,
	}, nil
}

// newRequest builds the GET request for a partition key.
func (c *Client) newRequest(ctx context.Context, key daterange.PartitionKey) (*http.Request, error) {
	if len(key.Tokens) == 0 {
		return nil, fmt.Errorf("partition key has no tokens")
	}

	params := url.Values{}
	params.Set(key.Param(), key.Value())
	params.Set("count", strconv.Itoa(c.config.Count))

	switch key.Mode {
	case daterange.ModeExactDate:
		if c.config.Prefecture != "" {
			params.Set("prefecture", c.config.Prefecture)
		}
		if c.config.Order > 0 {
			params.Set("order", strconv.Itoa(c.config.Order))
		}
	case daterange.ModeYearMonth:
	default:
		return nil, fmt.Errorf("unknown partition mode %q", key.Mode)
	}

	u := *c.baseURL
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set(APIKeyHeader, c.config.APIKey)
	}

	return req, nil
}

// classifyError categorizes a failed attempt for metrics and retry decisions.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusGatewayTimeout:
		return ErrorClassTimeout
	case resp.StatusCode >= 500:
		return ErrorClassServer
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return ErrorClassClient
	default:
		return ""
	}
}

// retryConfig returns the retry policy for an error class, adjusted by the client config.
func (c *Client) retryConfig(errorClass ErrorClass) RetryConfig {
	cfg := RetryConfigForErrorClass(errorClass)
	cfg.MaxAttempts = c.config.MaxRetries + 1
	if c.config.InitialBackoff > 0 {
		cfg.InitialBackoff = c.config.InitialBackoff
		if cfg.MaxBackoff < cfg.InitialBackoff {
			cfg.MaxBackoff = cfg.InitialBackoff
		}
	}
	return cfg
}

// SetHTTPClient replaces the HTTP client, e.g. to install a custom transport.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
