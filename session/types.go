// Package session coordinates one auto-tracking run: region selection,
// configuration, driving the tracker, and committing accepted results into
// the track model as a single undoable batch.
package session

import (
	"context"
	"image"

	"github.com/veillette/gotrack/autotrack"
)

// State enumerates the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateSelecting
	StateConfiguring
	StateRunning
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StateConfiguring:
		return "configuring"
	case StateRunning:
		return "running"
	case StateCommitting:
		return "committing"
	default:
		return "unknown"
	}
}

// StateListener is called on each state transition.
type StateListener func(prev, next State)

// ProgressFunc receives advisory per-frame progress during a run.
type ProgressFunc func(frame, total int)

// FormDefaults prefills the tracking configuration form. Message carries an
// inline validation note when the form is reshown.
type FormDefaults struct {
	Start        int
	End          int
	Algorithm    autotrack.Algorithm
	SearchMargin int
	Message      string
}

// FormValues is the raw user input from the form. Numeric fields stay
// strings so the controller owns parse validation.
type FormValues struct {
	Start        string
	End          string
	SearchMargin string
	Algorithm    autotrack.Algorithm
}

// Prompter externalizes blocking user dialogs. Implementations block until
// the user responds.
type Prompter interface {
	Alert(msg string)
	Confirm(msg string) bool
	TrackingForm(def FormDefaults) (FormValues, bool)
}

// EngineLoader resolves once the native vision library is usable.
type EngineLoader interface {
	Ensure(ctx context.Context) error
}

// Media is the detached frame source owned by one run. It is preloaded via
// Warm and must be closed on every session outcome.
type Media interface {
	autotrack.FrameSource
	Warm(ctx context.Context) error
	Close() error
}

// Contract is the controller surface consumed by presenters.
type Contract interface {
	State() State
	Begin() bool
	CancelSelection()
	CompleteSelection(sel image.Rectangle)
	Cancel()
	AddListener(StateListener)
}

var _ Contract = (*Controller)(nil)
