package http

import (
	"fmt"
	"net/http"

	"github.com/GriffinCanCode/termhost/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/termhost/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/termhost/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
)

// Version is reported by the root endpoint
const Version = "0.3.0"

// Handlers contains all HTTP handlers
type Handlers struct {
	manager  *terminal.Manager
	provider *terminal.Provider
	metrics  *monitoring.Metrics
}

// NewHandlers creates a new handler set. metrics may be nil.
func NewHandlers(provider *terminal.Provider, metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		manager:  provider.Manager(),
		provider: provider,
		metrics:  metrics,
	}
}

// Register mounts every route on router. spawnGuards run in front of
// POST /sessions only.
func (h *Handlers) Register(router gin.IRouter, spawnGuards ...gin.HandlerFunc) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)

	router.GET("/services", h.ListServices)
	router.POST("/services/execute", h.ExecuteService)

	sessions := router.Group("/sessions")
	sessions.GET("", h.ListSessions)
	sessions.POST("", append(spawnGuards, h.SpawnSession)...)
	sessions.GET("/:id", h.GetSession)
	sessions.DELETE("/:id", h.KillSession)
	sessions.POST("/:id/input", h.WriteSession)
	sessions.POST("/:id/resize", h.ResizeSession)
	sessions.GET("/:id/scrollback", h.Scrollback)
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "termhost",
		"version": Version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	snapshot := h.metrics.Snapshot()
	body := gin.H{
		"status":         "healthy",
		"sessions":       len(h.manager.List()),
		"ws_connections": snapshot.WSConnections,
		"spawns_total":   snapshot.SpawnsTotal,
		"spawn_failures": snapshot.SpawnFailures,
		"bytes_read":     snapshot.BytesRead,
		"uptime_seconds": snapshot.UptimeSeconds,
	}
	if breaker := h.manager.SpawnBreaker(); breaker != nil {
		counts := breaker.Counts()
		body["breaker"] = gin.H{
			"name":                 breaker.Name(),
			"state":                breaker.State().String(),
			"consecutive_failures": counts.ConsecutiveFailures,
			"total_failures":       counts.TotalFailures,
		}
	}
	c.JSON(http.StatusOK, body)
}

// ListServices describes the invokable commands
func (h *Handlers) ListServices(c *gin.Context) {
	def := h.provider.Definition()
	c.JSON(http.StatusOK, gin.H{
		"services": []interface{}{def},
		"stats":    gin.H{"total": 1, "tools": len(def.Tools)},
	})
}

// ExecuteService runs a command by name, mirroring the WebSocket invoke
func (h *Handlers) ExecuteService(c *gin.Context) {
	var req struct {
		ToolID string                 `json:"tool_id"`
		Params map[string]interface{} `json:"params"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateCommand(req.ToolID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Params == nil {
		req.Params = map[string]interface{}{}
	}

	result, err := h.provider.Execute(c.Request.Context(), req.ToolID, req.Params)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// statusFor maps session manager errors onto HTTP statuses
func statusFor(err error) int {
	switch terminal.ErrorCode(err) {
	case terminal.CodeInvalidArgument:
		return http.StatusBadRequest
	case terminal.CodeNotFound:
		return http.StatusNotFound
	case terminal.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, fmt.Errorf("%w: %w", terminal.ErrInvalidArgument, err))
}
