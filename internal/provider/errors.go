package provider

import (
	"fmt"
	"strings"
)

// ChannelError describes a failed provider call. StatusCode is set when the
// transport reported an HTTP status.
type ChannelError struct {
	StatusCode int
	Message    string
	Cause      error
}

func (e *ChannelError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 3)
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if len(parts) == 0 {
		return "channel error"
	}

	return strings.Join(parts, ": ")
}

func (e *ChannelError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
