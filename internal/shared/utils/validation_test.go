package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		required bool
		wantErr  bool
	}{
		{"simple", "term-1", true, false},
		{"underscore", "tab_2", true, false},
		{"empty optional", "", false, false},
		{"empty required", "", true, true},
		{"colon", "term:1", true, true},
		{"slash", "a/b", true, true},
		{"space", "a b", true, true},
		{"null byte", "a\x00b", true, true},
		{"too long", strings.Repeat("a", MaxIDLength+1), true, true},
		{"max length", strings.Repeat("a", MaxIDLength), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id, "id", tt.required)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCommand(t *testing.T) {
	assert.NoError(t, ValidateCommand("pty_spawn"))
	assert.Error(t, ValidateCommand(""))
	assert.Error(t, ValidateCommand("PTY_SPAWN"))
	assert.Error(t, ValidateCommand("pty.spawn"))
	assert.Error(t, ValidateCommand("9lives"))
}

func TestValidateDimension(t *testing.T) {
	n, err := ValidateDimension(float64(132), "cols")
	require.NoError(t, err)
	assert.Equal(t, uint16(132), n)

	n, err = ValidateDimension(24, "rows")
	require.NoError(t, err)
	assert.Equal(t, uint16(24), n)

	for _, bad := range []interface{}{nil, "80", float64(0), float64(-1), float64(65536), 80.5, true} {
		_, err := ValidateDimension(bad, "cols")
		assert.Error(t, err, "%v", bad)
	}
}

func TestValidateSize(t *testing.T) {
	assert.NoError(t, ValidateSize(make([]byte, 10), 10))
	assert.Error(t, ValidateSize(make([]byte, 11), 10))
}
