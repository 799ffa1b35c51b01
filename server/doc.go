// Package server runs the agent's HTTP API: a gin engine behind an h2c
// handler, a net/http middleware chain applied to every request, and the
// /health and /version endpoints.
//
// # Middleware
//
// Server-level (server/middleware, net/http signature):
//
//   - Recovery: panic recovery rendered as INTERNAL_ERROR
//   - RequestID: X-Request-Id generation and propagation into the logger
//   - CORS: cross-origin headers and preflight
//   - BodySizeLimit: request body cap
//   - RequestLogger: one line per request
//
// Route-level (gin):
//
//   - Bearer: access token validation
//   - Throttle: per-client token bucket for credential endpoints
//   - Metrics: http.server.* instruments
package server
