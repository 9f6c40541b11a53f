package errdef

import (
	"errors"
	"fmt"
	"strings"
)

type Code string

const (
	CodeUnknown     Code = "unknown"
	CodeUsage       Code = "usage"
	CodeLoad        Code = "load"
	CodeAssertion   Code = "assertion"
	CodeAction      Code = "action"
	CodeTransform   Code = "transform"
	CodeClient      Code = "client"
	CodeIO          Code = "io"
	CodeTimeout     Code = "timeout"
	CodeCancelled   Code = "cancelled"
	CodeScript      Code = "script"
	CodeUnsupported Code = "unsupported"
)

// Error carries a classification code alongside the usual message chain.
// The outermost code wins when errors are wrapped more than once.
type Error struct {
	Code Code
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Code)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := ""
	if format != "" {
		msg = fmt.Sprintf(format, args...)
	}
	return &Error{Code: code, Msg: msg, Err: err}
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

func Message(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}
