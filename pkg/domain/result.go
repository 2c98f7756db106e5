package domain

import (
	"encoding"
	"fmt"
	"strings"
	"time"
)

type State string

const (
	StateUploading  State = "UPLOADING"
	StateProcessing State = "PROCESSING"
	StateCompleted  State = "COMPLETED"
	StateFailed     State = "FAILED"
)

var (
	_ encoding.BinaryMarshaler = State("")
	_ encoding.TextMarshaler   = State("")
)

func (s State) MarshalBinary() ([]byte, error) { return []byte(string(s)), nil }
func (s State) MarshalText() ([]byte, error)   { return []byte(string(s)), nil }

// IsTerminal reports whether no further transitions can leave s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

// CanTransition reports whether moving from s to next keeps the lifecycle
// monotonic: UPLOADING -> PROCESSING -> COMPLETED|FAILED, or UPLOADING -> FAILED.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateUploading:
		return next == StateProcessing || next == StateFailed
	case StateProcessing:
		return next == StateCompleted || next == StateFailed
	default:
		return false
	}
}

type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Result tracks one image submission from upload to a terminal state.
// JSON names follow the browser client payload that history records and
// webhooks carry.
type Result struct {
	ID            string       `json:"id"`
	Locator       string       `json:"imageUrl"`
	SourceName    string       `json:"fileName"`
	Predictions   []Prediction `json:"predictions"`
	State         State        `json:"status"`
	CreatedAt     time.Time    `json:"timestamp"`
	DurationMs    *int64       `json:"processingTime,omitempty"`
	FailureReason string       `json:"error,omitempty"`
}

// Clone returns a deep copy safe to hand to observers.
func (r Result) Clone() Result {
	out := r
	out.Predictions = make([]Prediction, len(r.Predictions))
	copy(out.Predictions, r.Predictions)
	if r.DurationMs != nil {
		d := *r.DurationMs
		out.DurationMs = &d
	}
	return out
}

// TopPrediction returns the first prediction, which by convention of the
// inference transport carries the highest confidence.
func (r Result) TopPrediction() (Prediction, bool) {
	if len(r.Predictions) == 0 {
		return Prediction{}, false
	}
	return r.Predictions[0], true
}

// Validate checks the lifecycle invariants of a result.
func (r Result) Validate() error {
	var errs []string
	if strings.TrimSpace(r.ID) == "" {
		errs = append(errs, "id is required")
	}
	switch r.State {
	case StateUploading, StateProcessing, StateCompleted, StateFailed:
	default:
		errs = append(errs, fmt.Sprintf("unknown state %q", r.State))
	}
	if (r.DurationMs != nil) != (r.State == StateCompleted) {
		errs = append(errs, "durationMs must be present iff state=COMPLETED")
	}
	if (r.FailureReason != "") != (r.State == StateFailed) {
		errs = append(errs, "failureReason must be present iff state=FAILED")
	}
	if (len(r.Predictions) > 0) != (r.State == StateCompleted) {
		errs = append(errs, "predictions must be non-empty iff state=COMPLETED")
	}
	if r.DurationMs != nil && *r.DurationMs < 0 {
		errs = append(errs, "durationMs must be >= 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid result %s: %s", r.ID, strings.Join(errs, "; "))
	}
	return nil
}

// Observer receives every state transition of one Result.
type Observer func(Result)

type Image struct {
	Name        string
	ContentType string
	Data        []byte
}
