package presenter

import "time"

// DialogPump drains queued blocking prompts on the UI thread.
type DialogPump interface{ Pump() }

// Loop aggregates feature presenters and drives periodic updates.
//
// It calls Tick/ProcessFrame on the sub-presenters and invokes a
// scheduler callback. The zero value is usable (methods are nil-safe).
type Loop struct {
	State    *StatePresenter
	Run      *RunPresenter
	Preview  *PreviewPresenter
	Dialogs  DialogPump
	Schedule func()
}

func NewLoop(state *StatePresenter, run *RunPresenter, preview *PreviewPresenter, dialogs DialogPump, schedule func()) *Loop {
	return &Loop{State: state, Run: run, Preview: preview, Dialogs: dialogs, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	now := time.Now()
	// Dialogs first: a blocked session goroutine is waiting on them.
	if l.Dialogs != nil {
		l.Dialogs.Pump()
	}
	if l.State != nil {
		l.State.Tick(now)
	}
	if l.Run != nil {
		l.Run.Tick(now)
	}
	if l.Preview != nil {
		l.Preview.ProcessFrame()
	}
	if l.Schedule != nil {
		l.Schedule()
	}
}
