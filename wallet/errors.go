package wallet

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable, machine-readable failure code reported by store
// backends. The manager branches on codes, never on message text.
type ErrorCode string

const (
	CodeAlreadyExists    ErrorCode = "ALREADY_EXISTS"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeCorrupt          ErrorCode = "CORRUPT"
	CodeWrongKey         ErrorCode = "WRONG_KEY"
	CodeInvalidConfig    ErrorCode = "INVALID_CONFIG"
	CodeClosed           ErrorCode = "CLOSED"
	CodeInternal         ErrorCode = "INTERNAL"
)

// CodedError is a backend failure with a code and a human message.
type CodedError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

func (e *CodedError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewError(code ErrorCode, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

func WrapError(code ErrorCode, message string, cause error) *CodedError {
	return &CodedError{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first CodedError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ce *CodedError
	if !errors.As(err, &ce) {
		return ""
	}
	return ce.Code
}

// IsAlreadyExists reports whether err is the benign "store already exists" outcome.
func IsAlreadyExists(err error) bool { return CodeOf(err) == CodeAlreadyExists }

// Kind categorizes lifecycle failures raised by the Manager.
type Kind string

const (
	KindProvision      Kind = "Provision"
	KindInitialization Kind = "Initialization"
)

var (
	ErrBusy           = errors.New("wallet: provisioning already in progress")
	ErrFailed         = errors.New("wallet: store manager is in the failed state")
	ErrNotProvisioned = errors.New("wallet: store is not provisioned")
	ErrClosed         = errors.New("wallet: runtime is shut down")
)

// Error is a lifecycle failure. Cause holds the backend's *CodedError or one
// of the sentinel errors above.
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
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

func provisionError(msg string, cause error) error {
	return &Error{Kind: KindProvision, Message: msg, Cause: cause}
}

func initializationError(msg string, cause error) error {
	return &Error{Kind: KindInitialization, Message: msg, Cause: cause}
}
