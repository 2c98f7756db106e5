package domain

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultFailureReason is used when a transport fails without a message.
const DefaultFailureReason = "Unknown error"

var ErrNotFound = errors.New("not found")

// TransportError is a fatal store/infer failure. Error() returns the same
// text recorded as the failed Result's FailureReason.
type TransportError struct {
	Step   string
	Reason string
	Err    error
}

func NewTransportError(step string, err error) *TransportError {
	reason := ""
	if err != nil {
		reason = strings.TrimSpace(err.Error())
	}
	if reason == "" {
		reason = DefaultFailureReason
	}
	return &TransportError{Step: step, Reason: reason, Err: err}
}

func (e *TransportError) Error() string { return e.Reason }
func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceWarning wraps a failed persist/notify side effect. It is only
// ever logged and counted, never returned to the submitter.
type PersistenceWarning struct {
	Kind     string
	ResultID string
	Err      error
}

func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("%s %s: %v", w.Kind, w.ResultID, w.Err)
}

func (w *PersistenceWarning) Unwrap() error { return w.Err }

// SerializationError reports an unreadable history blob.
type SerializationError struct {
	Key string
	Err error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("decode history %s: %v", e.Key, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }
