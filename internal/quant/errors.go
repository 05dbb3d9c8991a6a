package quant

import (
	"errors"
	"fmt"
)

// ErrorKind tags a validation failure so callers can map it to a response.
type ErrorKind string

const (
	KindInsufficientData ErrorKind = "insufficient_data"
	KindInvalidParameter ErrorKind = "invalid_parameter"
	KindUnknownMethod    ErrorKind = "unknown_method"
)

// --- Sentinel errors ---

// ErrInsufficientData is matched by errors.Is for every insufficient data failure.
var ErrInsufficientData = errors.New("insufficient data")

// ErrInvalidParameter is matched by errors.Is for every out-of-domain input.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrUnknownMethod is matched by errors.Is for unrecognized method tags.
var ErrUnknownMethod = errors.New("unknown method")

// Error is a local validation failure. It never indicates a process-level fault.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is lets errors.Is match an *Error against the sentinel for its kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInsufficientData:
		return e.Kind == KindInsufficientData
	case ErrInvalidParameter:
		return e.Kind == KindInvalidParameter
	case ErrUnknownMethod:
		return e.Kind == KindUnknownMethod
	}
	return false
}

// InsufficientDataError reports fewer observations than a computation needs.
func InsufficientDataError(format string, args ...any) error {
	return &Error{Kind: KindInsufficientData, Message: fmt.Sprintf(format, args...)}
}

// InvalidParameterError reports an out-of-domain numeric input.
func InvalidParameterError(format string, args ...any) error {
	return &Error{Kind: KindInvalidParameter, Message: fmt.Sprintf(format, args...)}
}

// UnknownMethodError reports an unrecognized computation method tag.
func UnknownMethodError(method string) error {
	return &Error{Kind: KindUnknownMethod, Message: fmt.Sprintf("unknown method %q", method)}
}

// KindOf returns the kind of a quant error anywhere in err's chain, or "".
func KindOf(err error) ErrorKind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}
