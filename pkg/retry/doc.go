// Package retry provides the retry executor driving the attempt loop for
// unreliable operations, with exponential backoff, failure
// classification and lifecycle reporting.
//
// Key features:
//
// 1. Policy-driven attempt loop:
//   - Bounded attempts with exponential backoff between them
//   - Bounded jitter to stagger concurrent retries
//   - Pluggable retry conditions from the classify package
//   - onRetry/onSuccess/onFailure hooks per operation
//
// 2. Cancellation support:
//   - Context cancellation aborts a pending backoff wait immediately
//   - In-flight operations are registered with a tracker for external,
//     best-effort cancellation
//
// 3. Observability:
//   - Lifecycle events through an injected events.Sink
//   - Attempt counts, durations and outcomes recorded in the tracker
//     history
//
// Basic usage example:
//
//	executor := retry.NewExecutor()
//
//	result, err := retry.Execute(executor, ctx, retry.DefaultPolicy(),
//		func(ctx context.Context) (string, error) {
//			return fetchRemote(ctx)
//		})
//
// Custom policy:
//
//	policy := retry.Policy{
//		MaxAttempts: 5,
//		BaseDelay:   200 * time.Millisecond,
//		MaxDelay:    10 * time.Second,
//		Multiplier:  1.5,
//		Jitter:      true,
//		Retryable:   classify.HTTPAware(classify.Default),
//	}
//
//	result, err := retry.ExecuteWithName(executor, ctx, "billing", policy, op)
//
// Asynchronous execution:
//
//	resultChan := retry.ExecuteAsync(executor, ctx, policy, op)
//	result := <-resultChan
//
// Failure semantics:
//
// The only error surfaced to the caller is the one from the final
// unsuccessful attempt, wrapped in *Error together with the attempts
// used. Intermediate errors reach the OnRetry hook and the event sink
// but are never returned.
//
// Thread safety:
//
// An Executor holds no per-operation state; any number of operations may
// run through the same executor concurrently.
package retry
