// Package testutil provides testing utilities for the lunch meetup aggregator.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/lunch-meetups/pkg/event"
)

// MockResponse defines the behavior for one mock directory response.
type MockResponse struct {
	StatusCode int
	Body       string
	Delay      time.Duration
}

// MockDirectory is a configurable mock events directory for testing.
// Responses are keyed by the value of the "ymd" or "ym" query parameter.
type MockDirectory struct {
	server    *httptest.Server
	mu        sync.RWMutex
	responses map[string]MockResponse
	fallback  *MockResponse

	requestCount int
	queries      []string
	lastHeader   http.Header
}

// NewMockDirectory creates a new mock directory server.
func NewMockDirectory() *MockDirectory {
	mock := &MockDirectory{
		responses: make(map[string]MockResponse),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(mock.serve))

	return mock
}

func (m *MockDirectory) serve(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	key := query.Get("ymd")
	if key == "" {
		key = query.Get("ym")
	}

	m.mu.Lock()
	m.requestCount++
	m.queries = append(m.queries, r.URL.RawQuery)
	m.lastHeader = r.Header.Clone()
	resp, exists := m.responses[key]
	if !exists && m.fallback != nil {
		resp, exists = *m.fallback, true
	}
	m.mu.Unlock()

	if !exists {
		resp = NewEnvelopeResponse()
	}

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-r.Context().Done():
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

// URL returns the mock directory endpoint.
func (m *MockDirectory) URL() string {
	return m.server.URL + "/api/v2/events/"
}

// Close shuts down the mock server.
func (m *MockDirectory) Close() {
	m.server.Close()
}

// SetResponse configures the response for a partition value such as
// "20240603,20240604" or "202406".
func (m *MockDirectory) SetResponse(partitionValue string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[partitionValue] = resp
}

// SetDefaultResponse configures the response for partitions without an explicit one.
func (m *MockDirectory) SetDefaultResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = &resp
}

// RequestCount returns the number of requests received.
func (m *MockDirectory) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// Queries returns the raw query strings received, in arrival order.
func (m *MockDirectory) Queries() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.queries...)
}

// LastHeader returns the headers of the most recent request.
func (m *MockDirectory) LastHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastHeader
}

// NewEnvelopeResponse creates a 200 OK response carrying the given events.
// The upstream counters are deliberately left stale (results_available is
// inflated) so tests can check they are recomputed downstream.
func NewEnvelopeResponse(events ...event.Event) MockResponse {
	if events == nil {
		events = []event.Event{}
	}
	body, err := json.Marshal(event.ResultEnvelope{
		ResultsStart:     1,
		ResultsReturned:  len(events),
		ResultsAvailable: len(events) + 100,
		Events:           events,
	})
	if err != nil {
		panic(err)
	}
	return MockResponse{StatusCode: http.StatusOK, Body: string(body)}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
	}
}

// NewGatewayTimeoutResponse creates a 504 Gateway Timeout response.
func NewGatewayTimeoutResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusGatewayTimeout,
		Body:       `{"error": "Gateway Timeout"}`,
	}
}

// NewForbiddenResponse creates a 403 response, as sent for a bad credential.
func NewForbiddenResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusForbidden,
		Body:       `{"error": "Forbidden"}`,
	}
}

// NewMalformedResponse creates a 200 response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{StatusCode: http.StatusOK, Body: `<html>maintenance</html>`}
}

// LunchEvent builds an event on date (YYYY-MM-DD) between the given clock
// times ("12:30:00") with a +09:00 offset.
func LunchEvent(id int64, date, start, end string) event.Event {
	return event.Event{
		ID:               id,
		Title:            "event " + strings.TrimSpace(date+" "+start),
		Description:      "<p>Bring your <b>lunch</b></p>",
		URL:              "https://connpass.example/event/" + date,
		StartedAt:        date + "T" + start + "+09:00",
		EndedAt:          date + "T" + end + "+09:00",
		Limit:            30,
		Place:            "online",
		OwnerID:          1,
		OwnerNickname:    "owner",
		OwnerDisplayName: "Owner",
		Accepted:         5,
		Waiting:          0,
		UpdatedAt:        date + "T09:00:00+09:00",
	}
}
