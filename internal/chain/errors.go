package chain

import (
	"errors"
	"fmt"
)

var (
	ErrDigestMismatch = errors.New("chain: digest mismatch")
	ErrLinkMismatch   = errors.New("chain: link mismatch")
	ErrIndexMismatch  = errors.New("chain: index mismatch")
	ErrBadGenesis     = errors.New("chain: invalid genesis record")
	ErrEmpty          = errors.New("chain: no records")
	ErrUnknownDigest  = errors.New("chain: unknown digest")
)

// IntegrityError identifies the first record that failed verification.
type IntegrityError struct {
	Index int
	Err   error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// Reason returns a short description of the failed check.
func (e *IntegrityError) Reason() string {
	switch {
	case errors.Is(e.Err, ErrDigestMismatch):
		return "digest mismatch"
	case errors.Is(e.Err, ErrLinkMismatch):
		return "link mismatch"
	case errors.Is(e.Err, ErrIndexMismatch):
		return "index mismatch"
	case errors.Is(e.Err, ErrBadGenesis):
		return "invalid genesis"
	default:
		return e.Err.Error()
	}
}
