package schedule

import (
	"errors"

	"github.com/caesarsage/mini-pm/internal/dag"
)

// Kind classifies an Outcome.
type Kind string

const (
	KindSuccess           Kind = "success"
	KindInvalidInput      Kind = "invalid_input"
	KindDuplicateTitle    Kind = "duplicate_title"
	KindUnknownDependency Kind = "unknown_dependency"
	KindCycleDetected     Kind = "cycle_detected"
)

const (
	MsgNoTasks        = dag.MsgNoTasks
	MsgCycleDetected  = "Circular dependency detected"
	MsgDuplicateTitle = "Duplicate task title"
	MsgUnknownDep     = "Unknown dependency"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrDuplicateTitle    = errors.New("duplicate task title")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrCycleDetected     = errors.New("cycle detected")
)

// Error is the error form of a failed Outcome.
type Error struct {
	Kind    Kind
	Message string
	Cycle   []string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindInvalidInput:
		return ErrInvalidInput
	case KindDuplicateTitle:
		return ErrDuplicateTitle
	case KindUnknownDependency:
		return ErrUnknownDependency
	case KindCycleDetected:
		return ErrCycleDetected
	}
	return nil
}
