// Package qerr defines the failure taxonomy shared by every stage of the
// question-answering pipeline. Each stage returns an *Error carrying a Kind so
// the orchestrator can switch on the failure instead of inspecting messages.
package qerr

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	// ModelUnavailable means the inference engine failed to initialize. It is
	// permanent until the process restarts.
	ModelUnavailable Kind = "model_unavailable"
	// InferenceFailure means an engine invocation failed or timed out.
	InferenceFailure Kind = "inference_failure"
	// RejectedQuery means the safety gate vetoed the generated statement.
	RejectedQuery Kind = "rejected_query"
	// StoreUnavailable means the relational store is missing or unreachable.
	StoreUnavailable Kind = "store_unavailable"
	// ExecutionError means the store rejected the statement.
	ExecutionError Kind = "execution_error"
)

// Error wraps an underlying error with a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, msg string) *Error             { return &Error{Kind: kind, Message: msg} }
func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Message: msg, Err: err} }

// KindOf reports the kind of the first *Error in err's chain, or "" if there
// is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
