package storage

import "errors"

var (
	ErrNotFound    = errors.New("storage: not found")
	ErrInvalidCID  = errors.New("storage: invalid cid")
	ErrCIDMismatch = errors.New("storage: cid mismatch")
	ErrImmutable   = errors.New("storage: immutable object mismatch")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsIntegrity reports whether err signals stored bytes that no longer match
// their address.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrCIDMismatch) || errors.Is(err, ErrImmutable)
}
