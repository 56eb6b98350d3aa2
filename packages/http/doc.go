// Package http provides the HTTP client used by mirrorperf scenarios.
//
// It wraps the standard library's http package with:
//   - Configurable timeouts and context cancellation
//   - Redirect handling
//   - Pooled connections sized for load generation
//   - Response buffering with timing
package http
