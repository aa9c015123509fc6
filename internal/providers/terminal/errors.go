package terminal

import "errors"

// Errors returned by the session manager. Failures from the OS are wrapped
// around these, so callers match with errors.Is.
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrPtyAllocation   = errors.New("pty allocation failed")
	ErrProcessSpawn    = errors.New("process spawn failed")
	ErrWrite           = errors.New("pty write failed")
	ErrResize          = errors.New("pty resize failed")
	ErrSessionNotFound = errors.New("session not found")
	ErrManagerClosed   = errors.New("terminal manager closed")
	ErrSpawnThrottled  = errors.New("spawn throttled")
	ErrKillTimeout     = errors.New("session did not stop after kill")
)

// Code is a stable, transport-neutral classification of an error.
type Code string

const (
	CodeOK              Code = "ok"
	CodeInvalidArgument Code = "invalid_argument"
	CodeNotFound        Code = "not_found"
	CodeUnavailable     Code = "unavailable"
	CodeInternal        Code = "internal"
)

// ErrorCode classifies err for clients.
func ErrorCode(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	case errors.Is(err, ErrSessionNotFound):
		return CodeNotFound
	case errors.Is(err, ErrSpawnThrottled), errors.Is(err, ErrManagerClosed):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
