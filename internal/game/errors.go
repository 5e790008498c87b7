package game

import (
	"errors"
	"fmt"
)

var (
	// ErrRejected marks an intent that failed validation. State is unchanged
	// apart from the rejection log entry.
	ErrRejected = errors.New("intent rejected")
	// ErrDeckExhausted is returned when a draw finds deck and discard empty
	// and the catalog cannot rebuild the deck.
	ErrDeckExhausted = errors.New("deck exhausted")
	// ErrGameNotFound is returned for unknown game ids.
	ErrGameNotFound = errors.New("game not found")
	// ErrGameOver is returned for intents submitted after the game ended.
	ErrGameOver = errors.New("game is over")
	// ErrStaleSnapshot is returned when a snapshot is older than the one held
	// or fails its checksum.
	ErrStaleSnapshot = errors.New("stale snapshot")
	// ErrInvalidIntent is returned for malformed intents.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrNotPermitted is returned when a seat submits a host-only action.
	ErrNotPermitted = errors.New("action not permitted for this seat")
	// ErrAuthorityStopped is returned to submits still pending when the
	// authority loop exits.
	ErrAuthorityStopped = errors.New("authority stopped")
)

func rejection(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrRejected, fmt.Sprintf(format, args...))
}

// Reason strips the ErrRejected prefix from a rejection for display.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	prefix := ErrRejected.Error() + ": "
	if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
		return msg[len(prefix):]
	}
	return msg
}
