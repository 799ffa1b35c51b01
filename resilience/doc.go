// Package resilience guards calls to services the agent does not control,
// chiefly the Moodle web service, and throttles abusive clients.
//
//   - Retry: repeats a failed call with exponential backoff
//   - CircuitBreaker: fails fast while a dependency keeps failing
//   - RateLimiter: token bucket pacing, one bucket or one per key
//
// The Moodle client composes them as retry(breaker(limiter(call))).
package resilience
