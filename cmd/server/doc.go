// Package main is the entry point for the termhost backend.
//
// termhost runs shells on pseudo-terminals for an embedded terminal view
// and streams their output as term-data:<id> events.
//
// Architecture:
//
//	Web view (xterm) ⇄ /stream WebSocket ⇄ Session manager ⇄ PTY ⇄ shell
//	                 ⇄ REST /sessions   ⇗
//
// The server provides:
//   - WebSocket invoke and event channel
//   - REST API for session management
//   - Prometheus metrics on /metrics
//   - Rate limiting and CORS
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Optional shell profile file, reloaded on change
//
// Usage:
//
//	./server -port 8000 -shell /bin/zsh
//
//	# Development mode (colored logs, debug level)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown, every session is killed
package main
