package did

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a stable category for programmatic error handling.
//
// Callers should branch on Kind rather than matching error strings.
// Use errors.As to extract *Error, or IsKind.
type Kind string

const (
	KindUnsupportedScheme Kind = "UnsupportedScheme"
	KindInvalidOptions    Kind = "InvalidOptions"
	KindKeyGeneration     Kind = "KeyGeneration"
	KindEncoding          Kind = "Encoding"
	KindKeyStorage        Kind = "KeyStorage"
	KindNotFound          Kind = "NotFound"
)

// Error is the package's structured error type.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind Kind, msg string, cause error) error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// ErrNotFound matches every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("did: verification method not found")

// NotFoundError reports a failed dereference. It carries the searched key
// id and the relationship set that scoped the search (empty for wildcard).
type NotFoundError struct {
	KeyID         KeyID
	Relationships []Relationship
}

func (e *NotFoundError) Error() string {
	if len(e.Relationships) == 0 {
		return fmt.Sprintf("did: verification method %q not found", e.KeyID)
	}
	names := make([]string, len(e.Relationships))
	for i, r := range e.Relationships {
		names[i] = string(r)
	}
	return fmt.Sprintf("did: verification method %q not found under [%s]", e.KeyID, strings.Join(names, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// IsKind reports whether err is (or wraps) a did error of the given Kind.
// A *NotFoundError has KindNotFound.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) && e.Kind == kind {
		return true
	}
	var nf *NotFoundError
	return kind == KindNotFound && errors.As(err, &nf)
}
