package session

import "github.com/example/age-gate/internal/assurance"

// Mode is the top level state of a session.
type Mode string

const (
	// Capturing means no image has been taken yet.
	Capturing Mode = "capturing"
	// Reviewing means an image is present and its prediction is pending or settled.
	Reviewing Mode = "reviewing"
)

// OutcomeKind tells where a prediction stands while reviewing.
type OutcomeKind string

const (
	// Pending means the prediction call has not returned yet.
	Pending OutcomeKind = "pending"
	// Success means the service returned an age and a decision was made.
	Success OutcomeKind = "success"
	// Failure means the call failed and Text holds the error detail.
	Failure OutcomeKind = "failure"
)

// Outcome is the settled or pending result of the prediction for the current image.
type Outcome struct {
	Kind    OutcomeKind
	Text    string
	Age     *float64
	Granted bool
	CheckID string
}

// Snapshot is a consistent copy of a session's state.
type Snapshot struct {
	ID      string
	Owner   string
	Mode    Mode
	Level   assurance.Level
	Secure  bool
	Image   string
	Outcome Outcome
}
