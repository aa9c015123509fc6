package terminal

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/GriffinCanCode/termhost/backend/internal/shared/utils"
	"github.com/GriffinCanCode/termhost/backend/internal/types"
)

// Provider exposes the session manager as named commands for the invoke
// channel.
type Provider struct {
	manager *Manager
}

// NewProvider creates a terminal provider backed by manager
func NewProvider(manager *Manager) *Provider {
	return &Provider{
		manager: manager,
	}
}

// Manager returns the underlying session manager
func (p *Provider) Manager() *Manager {
	return p.manager
}

// Definition returns service metadata
func (p *Provider) Definition() types.Service {
	return types.Service{
		ID:          "terminal",
		Name:        "Terminal Service",
		Description: "Pseudo-terminal sessions streaming shell output as events",
		Capabilities: []string{
			"pty",
			"shell",
			"resize",
			"scrollback",
		},
		Tools: p.getTools(),
	}
}

// Execute routes to appropriate operation
func (p *Provider) Execute(ctx context.Context, cmd string, params map[string]interface{}) (*types.Result, error) {
	switch cmd {
	case "pty_spawn":
		return p.spawn(ctx, params)
	case "pty_write":
		return p.write(params)
	case "pty_resize":
		return p.resize(params)
	case "pty_kill":
		return p.kill(params)
	case "pty_list":
		return p.list()
	case "pty_get":
		return p.get(params)
	case "pty_scrollback":
		return p.scrollback(params)
	default:
		return nil, fmt.Errorf("%w: unknown command: %s", ErrInvalidArgument, cmd)
	}
}

func idParam(name string) types.Parameter {
	return types.Parameter{
		Name:        name,
		Type:        "string",
		Description: "Session ID chosen by the caller",
		Required:    true,
	}
}

func sizeParams() []types.Parameter {
	return []types.Parameter{
		{Name: "cols", Type: "number", Description: "Width in columns", Required: true},
		{Name: "rows", Type: "number", Description: "Height in rows", Required: true},
	}
}

func (p *Provider) getTools() []types.Tool {
	return []types.Tool{
		{
			ID:          "pty_spawn",
			Name:        "Spawn Terminal",
			Description: "Start a shell on a new PTY; replaces any session with the same id",
			Parameters:  append([]types.Parameter{idParam("id")}, sizeParams()...),
			Returns:     "session_info",
		},
		{
			ID:          "pty_write",
			Name:        "Write to Terminal",
			Description: "Send input to a terminal session",
			Parameters: []types.Parameter{
				idParam("id"),
				{Name: "data", Type: "string", Description: "Input to send", Required: true},
			},
			Returns: "success",
		},
		{
			ID:          "pty_resize",
			Name:        "Resize Terminal",
			Description: "Change terminal dimensions",
			Parameters:  append([]types.Parameter{idParam("id")}, sizeParams()...),
			Returns:     "success",
		},
		{
			ID:          "pty_kill",
			Name:        "Kill Terminal",
			Description: "Terminate a session; unknown ids are ignored",
			Parameters:  []types.Parameter{idParam("id")},
			Returns:     "success",
		},
		{
			ID:          "pty_list",
			Name:        "List Terminals",
			Description: "List registered sessions",
			Parameters:  []types.Parameter{},
			Returns:     "sessions_list",
		},
		{
			ID:          "pty_get",
			Name:        "Get Terminal",
			Description: "Get information about a session",
			Parameters:  []types.Parameter{idParam("id")},
			Returns:     "session_info",
		},
		{
			ID:          "pty_scrollback",
			Name:        "Terminal Scrollback",
			Description: "Recent output of a session, for repainting",
			Parameters:  []types.Parameter{idParam("id")},
			Returns:     "output_data",
		},
	}
}

func sessionID(params map[string]interface{}) (string, error) {
	id, _ := params["id"].(string)
	if err := utils.ValidateID(id, "id", true); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return id, nil
}

func sizeArgs(params map[string]interface{}) (uint16, uint16, error) {
	cols, err := utils.ValidateDimension(params["cols"], "cols")
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	rows, err := utils.ValidateDimension(params["rows"], "rows")
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return cols, rows, nil
}

func infoData(info SessionInfo) map[string]interface{} {
	data := map[string]interface{}{
		"id":         info.ID,
		"cols":       info.Cols,
		"rows":       info.Rows,
		"pid":        info.Pid,
		"state":      info.State,
		"started_at": info.StartedAt,
		"bytes_read": info.BytesRead,
	}
	if info.ExitCode != nil {
		data["exit_code"] = *info.ExitCode
	}
	return data
}

func ok() *types.Result {
	return &types.Result{
		Success: true,
		Data:    map[string]interface{}{"success": true},
	}
}

func (p *Provider) spawn(ctx context.Context, params map[string]interface{}) (*types.Result, error) {
	id, err := sessionID(params)
	if err != nil {
		return nil, err
	}
	cols, rows, err := sizeArgs(params)
	if err != nil {
		return nil, err
	}

	info, err := p.manager.Spawn(ctx, id, cols, rows)
	if err != nil {
		return nil, err
	}

	return &types.Result{
		Success: true,
		Data:    infoData(info),
	}, nil
}

func (p *Provider) write(params map[string]interface{}) (*types.Result, error) {
	id, err := sessionID(params)
	if err != nil {
		return nil, err
	}

	data, isString := params["data"].(string)
	if !isString {
		return nil, fmt.Errorf("%w: data is required", ErrInvalidArgument)
	}
	if len(data) > utils.MaxInputSize {
		return nil, fmt.Errorf("%w: data exceeds %d bytes", ErrInvalidArgument, utils.MaxInputSize)
	}

	if err := p.manager.Write(id, data); err != nil {
		return nil, err
	}
	return ok(), nil
}

func (p *Provider) resize(params map[string]interface{}) (*types.Result, error) {
	id, err := sessionID(params)
	if err != nil {
		return nil, err
	}
	cols, rows, err := sizeArgs(params)
	if err != nil {
		return nil, err
	}

	if err := p.manager.Resize(id, cols, rows); err != nil {
		return nil, err
	}
	return ok(), nil
}

func (p *Provider) kill(params map[string]interface{}) (*types.Result, error) {
	id, err := sessionID(params)
	if err != nil {
		return nil, err
	}

	if err := p.manager.Kill(id); err != nil {
		return nil, err
	}
	return ok(), nil
}

func (p *Provider) list() (*types.Result, error) {
	sessions := p.manager.List()

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"sessions": sessions,
			"count":    len(sessions),
		},
	}, nil
}

func (p *Provider) get(params map[string]interface{}) (*types.Result, error) {
	id, err := sessionID(params)
	if err != nil {
		return nil, err
	}

	info, found := p.manager.Get(id)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return &types.Result{
		Success: true,
		Data:    infoData(info),
	}, nil
}

func (p *Provider) scrollback(params map[string]interface{}) (*types.Result, error) {
	id, err := sessionID(params)
	if err != nil {
		return nil, err
	}

	output, err := p.manager.Scrollback(id)
	if err != nil {
		return nil, err
	}

	// The ring may start mid-sequence; text is the lossy rendering
	dec := newChunkDecoder()
	text := dec.Decode(output) + dec.Flush()

	return &types.Result{
		Success: true,
		Data: map[string]interface{}{
			"output":        text,
			"output_base64": base64.StdEncoding.EncodeToString(output),
			"length":        len(output),
		},
	}, nil
}
