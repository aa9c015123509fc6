package terminal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{nil, CodeOK},
		{fmt.Errorf("%w: cols must be positive", ErrInvalidArgument), CodeInvalidArgument},
		{fmt.Errorf("%w: abc", ErrSessionNotFound), CodeNotFound},
		{fmt.Errorf("%w: %w", ErrSpawnThrottled, errors.New("circuit open")), CodeUnavailable},
		{ErrManagerClosed, CodeUnavailable},
		{fmt.Errorf("%w: %w", ErrPtyAllocation, errors.New("no ptys")), CodeInternal},
		{ErrKillTimeout, CodeInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ErrorCode(tt.err), "%v", tt.err)
	}
}
