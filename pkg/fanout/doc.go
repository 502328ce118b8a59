// Package fanout runs one events directory query per partition key in parallel.
//
// The directory only accepts bounded query windows, so a caller's date range is
// split into partition keys (see package daterange) and each key is queried
// independently. This package implements a bounded worker pool over those keys.
//
// Example usage:
//
//	exec := fanout.NewExecutor(directoryClient, fanout.DefaultConfig())
//	results := exec.Run(ctx, keys)
//	for _, r := range results {
//		if r.Err != nil {
//			// this partition failed; siblings are unaffected
//		}
//	}
//
// The executor:
//   - Starts at most MaxConcurrency workers
//   - Gives every partition its own timeout derived from the run context
//   - Writes each outcome into the slot matching the key's position, so callers
//     see results in partition order regardless of completion order
//   - Never lets one partition's failure or timeout cancel a sibling
//   - Stops dispatching when the run context is cancelled; partitions that never
//     ran carry the context error
package fanout
