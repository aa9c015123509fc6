package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Payload size limits (in bytes)
const (
	MaxJSONSize  = 1 * 1024 * 1024 // 1MB - maximum JSON payload size
	MaxInputSize = 256 * 1024      // 256KB - single terminal write
)

// String length limits
const (
	MaxIDLength = 128
)

// Regular expressions for validation
var (
	// SafeIDPattern allows alphanumeric, hyphens, underscores
	SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	// CommandPattern allows lowercase command names such as pty_spawn
	CommandPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
)

// ValidateSize checks that a payload is within max bytes
func ValidateSize(data []byte, max int) error {
	if size := len(data); size > max {
		return fmt.Errorf("payload size %d bytes exceeds maximum %d bytes", size, max)
	}
	return nil
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil // Optional field, empty is OK
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	// Check for null bytes (security issue)
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateID validates an ID field. Session ids end up in event names and
// URL paths, so only alphanumerics, hyphens and underscores are accepted.
func ValidateID(id, fieldName string, required bool) error {
	if err := ValidateString(id, fieldName, 1, MaxIDLength, required); err != nil {
		return err
	}

	if id != "" && !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (only alphanumeric, hyphens, and underscores allowed)", fieldName)
	}

	return nil
}

// ValidateCommand validates an invoke command name
func ValidateCommand(cmd string) error {
	if err := ValidateString(cmd, "cmd", 1, MaxIDLength, true); err != nil {
		return err
	}
	if !CommandPattern.MatchString(cmd) {
		return fmt.Errorf("cmd %q is not a valid command name", cmd)
	}
	return nil
}

// ValidateDimension converts a decoded JSON number to a terminal dimension
// in the range 1..65535.
func ValidateDimension(v interface{}, fieldName string) (uint16, error) {
	var n float64
	switch x := v.(type) {
	case float64:
		n = x
	case float32:
		n = float64(x)
	case int:
		n = float64(x)
	case int64:
		n = float64(x)
	case uint16:
		n = float64(x)
	case nil:
		return 0, fmt.Errorf("%s is required", fieldName)
	default:
		return 0, fmt.Errorf("%s must be a number", fieldName)
	}

	if n != float64(int64(n)) {
		return 0, fmt.Errorf("%s must be an integer", fieldName)
	}
	if n < 1 || n > 65535 {
		return 0, fmt.Errorf("%s must be between 1 and 65535", fieldName)
	}
	return uint16(n), nil
}
