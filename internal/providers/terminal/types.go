package terminal

import (
	"context"
	"time"
)

// Event name prefixes; the session id is appended.
const (
	DataEventPrefix = "term-data:"
	ExitEventPrefix = "term-exit:"
)

// Size is a terminal size in character cells
type Size struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// State is a session lifecycle state
type State string

const (
	StateRunning State = "running"
	StateExited  State = "exited"
	StateFailed  State = "failed"
	StateKilled  State = "killed"
)

// SessionInfo is the public representation of a session
type SessionInfo struct {
	ID        string     `json:"id"`
	Cols      uint16     `json:"cols"`
	Rows      uint16     `json:"rows"`
	Pid       int        `json:"pid"`
	State     State      `json:"state"`
	StartedAt time.Time  `json:"started_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
	ExitCode  *int       `json:"exit_code,omitempty"`
	BytesRead int64      `json:"bytes_read"`
}

// Event is a named notification for the front-end
type Event struct {
	Name    string
	Payload interface{}
}

// DataPayload carries one chunk of decoded output
type DataPayload struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

// ExitPayload is sent once when a session's shell exits on its own
type ExitPayload struct {
	ID       string `json:"id"`
	ExitCode int    `json:"exit_code"`
}

// DataEvent builds the term-data:<id> event
func DataEvent(id, data string) Event {
	return Event{
		Name:    DataEventPrefix + id,
		Payload: DataPayload{ID: id, Data: data},
	}
}

// ExitEvent builds the term-exit:<id> event
func ExitEvent(id string, code int) Event {
	return Event{
		Name:    ExitEventPrefix + id,
		Payload: ExitPayload{ID: id, ExitCode: code},
	}
}

// Sink receives every event the manager emits. Publish is called from a
// single dispatcher goroutine, in emission order.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, ev Event) error

// Publish calls f
func (f SinkFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Discard drops all events
var Discard Sink = SinkFunc(func(context.Context, Event) error { return nil })
