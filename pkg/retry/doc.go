// Package retry provides bounded retry with exponential backoff for remote fetches.
//
// Two kinds of retryable failure are told apart:
//   - hard failures (network, timeout, 4xx, 429, 5xx) wait Backoff.NextDelay(failures),
//     which is 1s, 2s, 4s, 8s with the defaults
//   - "still processing" responses (HTTP 202) wait a fixed ProcessingPause and
//     do not advance the backoff exponent
//
// Both count toward MaxAttempts. Non-retryable errors (a rejected token) stop
// immediately. Once attempts run out Do returns an *ExhaustedError
// without waiting again.
//
//	attempts, err := retry.Do(ctx, func(ctx context.Context) error {
//		return fetchOnce(ctx)
//	}, &retry.Config{
//		MaxAttempts:     5,
//		Backoff:         retry.DefaultExponentialBackoff(),
//		ProcessingPause: 3 * time.Second,
//		Logger:          log,
//	})
package retry
