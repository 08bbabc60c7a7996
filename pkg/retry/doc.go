// Package retry re-runs operations that fail with a retryable classified error.
//
// Only errors whose type is retryable (a locked database, for instance) are
// retried. Source failures are deliberately not: they surface as stage
// warnings instead.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return store.insert(ctx, post)
//	}, &retry.Config{MaxAttempts: 3, Backoff: retry.DefaultExponentialBackoff()})
package retry
