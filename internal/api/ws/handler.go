package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/termhost/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/termhost/backend/internal/shared/utils"
	"github.com/GriffinCanCode/termhost/backend/internal/types"
	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// invokeTimeout bounds a single command; kill may wait two grace periods
	invokeTimeout = 30 * time.Second

	// invokeQueue is how many invokes a connection may have pending
	invokeQueue = 32
)

// executor runs a named command, as terminal.Provider does
type executor interface {
	Execute(ctx context.Context, cmd string, params map[string]interface{}) (*types.Result, error)
}

// Handler manages WebSocket connections
type Handler struct {
	hub      *Hub
	provider executor
	tracer   *tracing.Tracer
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. tracer may be nil.
func NewHandler(hub *Hub, provider *terminal.Provider, tracer *tracing.Tracer) *Handler {
	return &Handler{
		hub:      hub,
		provider: provider,
		tracer:   tracer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true // The embedded web view has no stable origin
			},
		},
	}
}

// HandleConnection upgrades the request and serves the stream until the
// client goes away
func (h *Handler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client, err := h.hub.register(conn)
	if err != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	defer h.hub.unregister(client)

	logger := h.hub.logger.With(zap.String("conn_id", client.id.String()))
	logger.Debug("WebSocket connected", zap.String("remote", c.ClientIP()))

	go client.writePump()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Invokes run in order on their own goroutine so a slow kill does not
	// stall pongs, pings and subscriptions
	invokes := make(chan Inbound, invokeQueue)
	defer close(invokes)
	go func() {
		for msg := range invokes {
			h.handleInvoke(ctx, client, msg)
		}
	}()

	h.send(client, SystemFrame{
		Type:    TypeSystem,
		Message: "connected",
		ConnID:  client.id.String(),
	})

	conn.SetReadLimit(utils.MaxJSONSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("WebSocket read error", zap.Error(err))
			}
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg Inbound
		if err := sonic.Unmarshal(raw, &msg); err != nil {
			h.sendError(client, "malformed message")
			continue
		}
		h.hub.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case TypeInvoke:
			select {
			case invokes <- msg:
			default:
				h.send(client, ResultFrame{
					Type:      TypeResult,
					RequestID: msg.RequestID,
					Error:     "too many pending invokes",
					Code:      terminal.CodeUnavailable,
				})
			}
		case TypeSubscribe:
			if msg.Event == "" {
				h.sendError(client, "event is required")
				continue
			}
			client.subscribe(msg.Event)
		case TypeUnsubscribe:
			client.unsubscribe(msg.Event)
		case TypePing:
			h.send(client, SystemFrame{Type: TypePong})
		default:
			h.sendError(client, "unknown message type")
		}
	}

	logger.Debug("WebSocket disconnected")
}

func (h *Handler) handleInvoke(ctx context.Context, c *client, msg Inbound) {
	reqID := msg.RequestID
	if reqID == "" {
		reqID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, invokeTimeout)
	defer cancel()

	var span *tracing.Span
	if h.tracer != nil {
		span, ctx = h.tracer.StartSpan(ctx, msg.Cmd)
		span.SetTag("request_id", reqID)
		span.SetTag("conn_id", c.id.String())
	}

	frame := ResultFrame{
		Type:      TypeResult,
		RequestID: reqID,
	}

	args := msg.Args
	if args == nil {
		args = map[string]interface{}{}
	}

	result, err := h.provider.Execute(ctx, msg.Cmd, args)
	if err != nil {
		frame.Error = err.Error()
		frame.Code = terminal.ErrorCode(err)
		h.hub.logger.Debug("Invoke failed",
			zap.String("cmd", msg.Cmd),
			zap.String("request_id", reqID),
			zap.Error(err))
	} else {
		frame.OK = true
		frame.Data = result.Data
	}

	if span != nil {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		h.tracer.Submit(span)
	}

	h.send(c, frame)
}

func (h *Handler) send(c *client, frame interface{}) {
	data, err := sonic.Marshal(frame)
	if err != nil {
		h.hub.logger.Error("Failed to encode frame", zap.Error(err))
		return
	}
	if !c.enqueue(data) {
		c.close()
		return
	}
	if t, ok := frameType(frame); ok {
		h.hub.metrics.RecordWSMessage("out", t)
	}
}

func (h *Handler) sendError(c *client, message string) {
	h.send(c, SystemFrame{Type: TypeError, Message: message})
}

func frameType(frame interface{}) (string, bool) {
	switch f := frame.(type) {
	case ResultFrame:
		return f.Type, true
	case SystemFrame:
		return f.Type, true
	case EventFrame:
		return f.Type, true
	}
	return "", false
}
