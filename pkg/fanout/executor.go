package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/Sternrassler/lunch-meetups/pkg/daterange"
	"github.com/Sternrassler/lunch-meetups/pkg/event"
	"github.com/rs/zerolog/log"
)

// Config holds executor configuration
type Config struct {
	// MaxConcurrency is the maximum number of parallel partition queries
	MaxConcurrency int
	// Timeout per partition query, retries included
	Timeout time.Duration
}

// DefaultConfig returns a conservative configuration for the directory
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Querier runs a single partition query
type Querier interface {
	Query(ctx context.Context, key daterange.PartitionKey) (*event.ResultEnvelope, error)
}

// Result is the outcome of one partition query. Exactly one of Envelope and
// Err is set.
type Result struct {
	Index    int
	Key      daterange.PartitionKey
	Envelope *event.ResultEnvelope
	Err      error
	Duration time.Duration
}

// OK reports whether the partition succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Executor fans partition queries out over a worker pool
type Executor struct {
	querier Querier
	config  Config
}

// NewExecutor creates a new executor
func NewExecutor(querier Querier, config Config) *Executor {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &Executor{
		querier: querier,
		config:  config,
	}
}

// Run queries every key and returns one result per key, in key order.
func (e *Executor) Run(ctx context.Context, keys []daterange.PartitionKey) []Result {
	start := time.Now()
	results := make([]Result, len(keys))
	if len(keys) == 0 {
		return results
	}

	for i, key := range keys {
		results[i] = Result{Index: i, Key: key}
	}

	workers := min(e.config.MaxConcurrency, len(keys))

	// Buffered to len(keys): the producer never blocks.
	queue := make(chan int, len(keys))
	for i := range keys {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go e.worker(ctx, queue, results, &wg, w)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	log.Debug().
		Int("partitions", len(keys)).
		Int("failed", failed).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("Partition fan-out complete")

	return results
}

// worker processes partitions from the queue. Each worker writes only the
// slots of the indexes it receives, so no locking is needed.
func (e *Executor) worker(ctx context.Context, queue <-chan int, results []Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for idx := range queue {
		// Cancelled runs drain the queue, marking untouched partitions.
		if err := ctx.Err(); err != nil {
			results[idx].Err = err
			continue
		}

		key := results[idx].Key
		started := time.Now()

		partitionCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		envelope, err := e.querier.Query(partitionCtx, key)
		cancel()

		results[idx].Duration = time.Since(started)
		if err != nil {
			log.Debug().
				Err(err).
				Int("worker_id", workerID).
				Str("partition", key.String()).
				Msg("Partition query failed")
			results[idx].Err = err
			continue
		}
		if envelope == nil {
			envelope = event.NewEnvelope(nil)
		}
		results[idx].Envelope = envelope
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("partitions_processed", processed).
			Msg("Worker completed")
	}
}
