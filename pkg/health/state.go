// Package health records how the events directory has behaved across pipeline
// runs. State lives in Redis so every server instance reports the same view.
//
// The tracker is observational only. It never gates or delays upstream queries
// and never stores event data.
package health

import (
	"time"
)

// Redis keys for upstream health state.
const (
	RedisKeyConsecutiveFailures = "lunch:upstream:consecutive_failures"
	RedisKeyLastSuccess         = "lunch:upstream:last_success"
	RedisKeyLastFailure         = "lunch:upstream:last_failure"
	RedisKeyLastRun             = "lunch:upstream:last_run"
)

// DegradedThreshold is the number of consecutive failed runs after which the
// upstream is reported as degraded.
const DegradedThreshold = 3

// Outcome summarizes the upstream side of one pipeline run.
type Outcome struct {
	// Partitions is the number of partition queries issued.
	Partitions int `json:"partitions"`

	// FailedPartitions is how many of them failed.
	FailedPartitions int `json:"failed_partitions"`

	// StatusCode is the last non-2xx upstream status seen, 0 if none.
	StatusCode int `json:"status_code,omitempty"`

	// At is when the run finished.
	At time.Time `json:"at"`
}

// Failed reports whether every partition of the run failed.
func (o Outcome) Failed() bool {
	return o.Partitions > 0 && o.FailedPartitions >= o.Partitions
}

// State is the upstream health view shared across instances.
type State struct {
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastSuccess         time.Time `json:"last_success,omitzero"`
	LastFailure         time.Time `json:"last_failure,omitzero"`
	LastRun             *Outcome  `json:"last_run,omitempty"`

	// Degraded is true when ConsecutiveFailures >= DegradedThreshold.
	Degraded bool `json:"degraded"`
}

// IsDegraded reports whether the upstream has failed too many runs in a row.
func (s *State) IsDegraded() bool {
	return s.ConsecutiveFailures >= DegradedThreshold
}

// SinceLastSuccess returns the time elapsed since the last successful run.
// Returns 0 if no run has ever succeeded.
func (s *State) SinceLastSuccess() time.Duration {
	if s.LastSuccess.IsZero() {
		return 0
	}
	return time.Since(s.LastSuccess)
}

// UpdateHealth updates the Degraded field from ConsecutiveFailures.
func (s *State) UpdateHealth() {
	s.Degraded = s.IsDegraded()
}
