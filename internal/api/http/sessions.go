package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/GriffinCanCode/termhost/backend/internal/providers/terminal"
	"github.com/GriffinCanCode/termhost/backend/internal/shared/utils"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
)

type spawnRequest struct {
	ID   string `json:"id"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

type resizeRequest struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

type inputRequest struct {
	Data *string `json:"data"`
}

func sessionParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if err := utils.ValidateID(id, "id", true); err != nil {
		badRequest(c, err)
		return "", false
	}
	return id, true
}

// ListSessions lists registered sessions
func (h *Handlers) ListSessions(c *gin.Context) {
	sessions := h.manager.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// SpawnSession starts a shell, replacing any session with the same id
func (h *Handlers) SpawnSession(c *gin.Context) {
	var req spawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := utils.ValidateID(req.ID, "id", true); err != nil {
		badRequest(c, err)
		return
	}

	info, err := h.manager.Spawn(c.Request.Context(), req.ID, req.Cols, req.Rows)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}

// GetSession returns one session
func (h *Handlers) GetSession(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}

	info, found := h.manager.Get(id)
	if !found {
		respondError(c, fmt.Errorf("%w: %s", terminal.ErrSessionNotFound, id))
		return
	}
	c.JSON(http.StatusOK, info)
}

// KillSession terminates a session; unknown ids succeed
func (h *Handlers) KillSession(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}

	if err := h.manager.Kill(id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

// WriteSession sends input to a session
func (h *Handlers) WriteSession(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}

	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Data == nil {
		badRequest(c, fmt.Errorf("data is required"))
		return
	}
	if err := utils.ValidateSize([]byte(*req.Data), utils.MaxInputSize); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.manager.Write(id, *req.Data); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

// ResizeSession changes a session's window size
func (h *Handlers) ResizeSession(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}

	var req resizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	if err := h.manager.Resize(id, req.Cols, req.Rows); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

// Scrollback downloads the retained raw output, gzipped when accepted
func (h *Handlers) Scrollback(c *gin.Context) {
	id, ok := sessionParam(c)
	if !ok {
		return
	}

	output, err := h.manager.Scrollback(id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/octet-stream")
	c.Header("Vary", "Accept-Encoding")
	if !acceptsGzip(c.GetHeader("Accept-Encoding")) {
		c.Header("Content-Length", strconv.Itoa(len(output)))
		c.Status(http.StatusOK)
		_, _ = c.Writer.Write(output)
		return
	}

	c.Header("Content-Encoding", "gzip")
	c.Status(http.StatusOK)
	zw := gzip.NewWriter(c.Writer)
	if _, err := zw.Write(output); err != nil {
		_ = c.Error(err)
		return
	}
	if err := zw.Close(); err != nil {
		_ = c.Error(err)
	}
}

func acceptsGzip(header string) bool {
	for _, part := range strings.Split(header, ",") {
		coding, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.TrimSpace(coding) != "gzip" {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}
