// Package ratelimit provides an optional request ceiling for the fetchers.
//
// The fixed delay between work units is handled by the sweep driver; a
// TokenBucket built with PerMinute caps the total request rate on top of
// that, retries included.
package ratelimit
