package dag

import (
	"errors"
	"fmt"
)

// MsgNoTasks is the message of the error Build returns for an empty list.
const MsgNoTasks = "No tasks provided"

var (
	ErrInvalidInput   = errors.New("invalid input")
	ErrDuplicateTitle = errors.New("duplicate task title")
)

// GraphError wraps a build failure with the offending detail.
type GraphError struct {
	Kind error
	Msg  string
}

func (e *GraphError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidInput, Msg: fmt.Sprintf(format, args...)}
}
