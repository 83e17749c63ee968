package chatstream

import (
	"fmt"
	"strings"
)

// Validate checks that the request names a session and carries a message.
func (r StreamRequest) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("sessionId is required: %w", ErrValidation)
	}
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message is required: %w", ErrValidation)
	}
	return nil
}

// ValidateTitle checks a session title.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title is required: %w", ErrValidation)
	}
	return nil
}
