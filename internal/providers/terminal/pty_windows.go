//go:build windows

package terminal

import (
	"errors"
	"fmt"
)

var errUnsupported = errors.New("pseudo-terminals are not supported on windows")

// PTYFactory is unavailable on windows; Start always fails
type PTYFactory struct{}

// NewPTYFactory creates a factory that reports PTYs as unsupported
func NewPTYFactory() *PTYFactory {
	return &PTYFactory{}
}

// Start always returns ErrPtyAllocation
func (f *PTYFactory) Start(c Command, size Size) (Terminal, error) {
	return nil, fmt.Errorf("%w: %w", ErrPtyAllocation, errUnsupported)
}
