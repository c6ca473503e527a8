// Package taskerr defines the error taxonomy shared by the task engine,
// the result aggregator and the HTTP surface.
package taskerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers deciding how to react
type Kind string

const (
	// KindInvalidInput indicates a caller-supplied value was missing or malformed
	KindInvalidInput Kind = "INVALID_INPUT"
	// KindNotFound indicates the referenced task does not exist
	KindNotFound Kind = "NOT_FOUND"
	// KindProviderFailure indicates the search provider call failed
	KindProviderFailure Kind = "PROVIDER_FAILURE"
	// KindStoreFailure indicates the durable store could not be read or written
	KindStoreFailure Kind = "STORE_FAILURE"
)

// Detail codes refining a Kind
const (
	CodeMissingField      = "MISSING_FIELD"
	CodeMissingCredential = "MISSING_CREDENTIAL"
	CodeInvalidThreshold  = "INVALID_THRESHOLD"
	CodeNoKeywords        = "NO_KEYWORDS"
	CodeTaskNotFound      = "TASK_NOT_FOUND"
	CodeQuotaExceeded     = "QUOTA_EXCEEDED"
	CodeInvalidCredential = "INVALID_CREDENTIAL"
)

// Error carries the kind, a detail code, the task involved and the
// underlying cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	TaskID  string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.TaskID != "" {
		msg = fmt.Sprintf("%s (task %s)", msg, e.TaskID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code, message, taskID string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, TaskID: taskID, Err: err}
}

func InvalidInput(code, message string) *Error {
	return newError(KindInvalidInput, code, message, "", nil)
}

func MissingCredential(taskID string) *Error {
	return newError(KindInvalidInput, CodeMissingCredential, "credential is required to advance a task", taskID, nil)
}

func NotFound(taskID string) *Error {
	return newError(KindNotFound, CodeTaskNotFound, "task not found", taskID, nil)
}

func ProviderFailure(code, message string, err error) *Error {
	return newError(KindProviderFailure, code, message, "", err)
}

func StoreFailure(taskID, message string, err error) *Error {
	return newError(KindStoreFailure, "", message, taskID, err)
}

// Is reports whether err is, or wraps, an *Error of the given kind
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// HasCode reports whether err is, or wraps, an *Error with the given detail code
func HasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// KindOf returns the kind of err, or "" when err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
