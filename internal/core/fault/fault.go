package fault

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a response without
// inspecting message text.
type Kind string

const (
	KindSpawn          Kind = "spawn"
	KindToolExecution  Kind = "tool_execution"
	KindParse          Kind = "parse"
	KindFileResolution Kind = "file_resolution"
	KindAccessDenied   Kind = "access_denied"
	KindTimeout        Kind = "timeout"
	KindCanceled       Kind = "canceled"
	KindNotFound       Kind = "not_found"
	KindInvalidInput   Kind = "invalid_input"
	KindInternal       Kind = "internal"
)

// Error is the structured {kind, message} pair returned across component
// boundaries. Op names the operation that failed ("fetch metadata", "download").
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches op to err, keeping the kind and message of an inner *Error.
// Errors that carry no kind are classified as internal.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return &Error{Op: op, Kind: fe.Kind, Message: fe.Message, Err: err}
	}
	return &Error{Op: op, Kind: KindInternal, Message: err.Error(), Err: err}
}

// KindOf reports the kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// Is reports whether err is a fault of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the message without the op prefix.
func MessageOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		if fe.Message != "" {
			return fe.Message
		}
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
