package pipeline

import (
	"errors"
	"fmt"
)

// Kind labels a pipeline failure by the stage and class it belongs to.
type Kind string

const (
	KindExtractionFailed   Kind = "ExtractionFailed"
	KindScriptingFailed    Kind = "ScriptingFailed"
	KindRateLimited        Kind = "RateLimited"
	KindServiceUnavailable Kind = "ServiceUnavailable"
	KindSynthesisFailed    Kind = "SynthesisFailed"
	KindAssemblyFailed     Kind = "AssemblyFailed"
	KindUnknown            Kind = "Unknown"
)

// Error carries the failure kind that ends up on the job record, plus the
// underlying cause for logs.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Cause: err}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf classifies an arbitrary error, falling back to KindUnknown.
func KindOf(err error) Kind {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindUnknown
}

// UserMessage is the human-readable detail stored on a failed job.
func UserMessage(err error) string {
	var perr *Error
	if errors.As(err, &perr) {
		if perr.Cause != nil {
			return fmt.Sprintf("%s: %v", perr.Message, perr.Cause)
		}
		return perr.Message
	}
	return err.Error()
}
