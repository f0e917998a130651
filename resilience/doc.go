// Package resilience bounds the work toolshelf does against the network.
//
// Two patterns are provided:
//
//   - Timeout: caps how long one operation (a catalog fetch, one precache
//     download) may run.
//
//   - Bulkhead: caps how many operations run at once.
//
// An Executor composes both. Its HTTP middleware form sheds excess proxy
// traffic with 503 instead of queueing it.
//
// Failed operations are never retried; the caller decides what a failure
// means.
//
// # Usage
//
//	exec := resilience.NewExecutor(
//	    resilience.WithBulkhead(resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 4})),
//	    resilience.WithTimeout(10*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return fetch(ctx)
//	})
package resilience
