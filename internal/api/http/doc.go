// Package http exposes the terminal session manager as a REST API.
//
// Routes:
//
//	GET    /                       service banner
//	GET    /health                 session and stream counters
//	GET    /services               invokable command catalogue
//	POST   /services/execute       run a command by name
//	GET    /sessions               list sessions
//	POST   /sessions               spawn {id, cols, rows}
//	GET    /sessions/:id           session info
//	DELETE /sessions/:id           kill
//	POST   /sessions/:id/input     write {data}
//	POST   /sessions/:id/resize    resize {cols, rows}
//	GET    /sessions/:id/scrollback raw output, gzip when accepted
//
// Errors are returned as {"error": message} with 400 for invalid
// arguments, 404 for unknown sessions, 503 when spawning is throttled or
// the manager is shutting down and 500 otherwise.
package http
