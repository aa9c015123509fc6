package ws

import "github.com/GriffinCanCode/termhost/backend/internal/providers/terminal"

// Message types on the stream
const (
	TypeInvoke      = "invoke"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"

	TypeResult = "result"
	TypeEvent  = "event"
	TypePong   = "pong"
	TypeSystem = "system"
	TypeError  = "error"
)

// Wildcard subscribes a connection to every event.
const Wildcard = "*"

// Inbound is a client to server message
type Inbound struct {
	Type      string                 `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	Cmd       string                 `json:"cmd,omitempty"`
	Args      map[string]interface{} `json:"args,omitempty"`
	Event     string                 `json:"event,omitempty"`
}

// ResultFrame answers an invoke
type ResultFrame struct {
	Type      string                 `json:"type"`
	RequestID string                 `json:"request_id"`
	OK        bool                   `json:"ok"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Code      terminal.Code          `json:"code,omitempty"`
}

// EventFrame carries a published event
type EventFrame struct {
	Type    string      `json:"type"`
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// SystemFrame is sent on connect and for protocol errors
type SystemFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	ConnID  string `json:"conn_id,omitempty"`
}
