package pipeline

import (
	"errors"
	"fmt"
)

// ErrUnknownRole is returned when a request names a role with no policy.
var ErrUnknownRole = errors.New("unknown role")

// BlockedError is returned when a security gate rejects a request. It
// carries only the stable reason code and gate metadata, never the
// message content.
type BlockedError struct {
	Reason    string
	RiskScore float64
	Flags     []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("request blocked: %s (risk %.2f)", e.Reason, e.RiskScore)
}

// GenerationError wraps an upstream model failure.
type GenerationError struct {
	Model string
	Err   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed on %s: %v", e.Model, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
