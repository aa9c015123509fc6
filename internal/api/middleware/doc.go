// Package middleware provides the HTTP middleware for the terminal host.
//
// Middleware stack includes:
//   - RequestID: Correlation id per request (X-Request-ID)
//   - AccessLog: One structured zap line per request
//   - CORS: Cross-origin resource sharing for the embedded web view
//   - RateLimit: Per-IP token bucket rate limiting
//
// Rate Limiting:
//   - Per-IP tracking; limiters idle longer than IdleTimeout are dropped
//   - Token bucket algorithm
//   - Configurable RPS and burst capacity
//   - Global rate limiting option
//
// Example Usage:
//
//	router.Use(middleware.RequestID())
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
