package pipeline

import (
	"errors"
	"fmt"
)

// TerminalError marks a failure that can never succeed on retry. The state
// machine fails the job immediately without touching the retry budget.
// Retrying an oversized upload wastes paid transcription quota with no
// chance of success.
type TerminalError struct {
	Msg string
}

func (e *TerminalError) Error() string {
	return e.Msg
}

// Terminalf builds a TerminalError with a user-facing message.
func Terminalf(format string, args ...any) error {
	return &TerminalError{Msg: fmt.Sprintf(format, args...)}
}

// IsTerminal reports whether err is a non-retryable terminal failure.
func IsTerminal(err error) bool {
	var term *TerminalError
	return errors.As(err, &term)
}
