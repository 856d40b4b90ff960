package domain

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// DefaultMaxEventTypeSize bounds event names received from outside the process.
	DefaultMaxEventTypeSize = 256
	// EnvMaxEventTypeSize is the environment variable to override the default
	EnvMaxEventTypeSize = "ROBOT_MAX_EVENT_SIZE"
)

var (
	ErrEventTooLarge = errors.New("event type exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("event type contains invalid UTF-8 sequences")
	ErrEmptyEvent    = errors.New("event type is empty")
)

// SanitizeEventType cleans an event name typed by a user or received over the wire.
// It enforces a size limit, validates UTF-8, strips control characters and
// surrounding whitespace. Reserved names ("done", "error") are accepted.
func SanitizeEventType(name string) (string, error) {
	limit := maxEventTypeSize()
	if len(name) > limit {
		// Reject rather than truncate, so a truncated name never matches a transition.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrEventTooLarge, len(name), limit)
	}
	if !utf8.ValidString(name) {
		return "", ErrInvalidUTF8
	}

	clean := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return "", ErrEmptyEvent
	}
	return clean, nil
}

func maxEventTypeSize() int {
	if val := os.Getenv(EnvMaxEventTypeSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxEventTypeSize
}
