package presenter

import (
	"time"

	"github.com/veillette/gotrack/ui/model"
)

// RunView displays auto-track run progress and elapsed duration.
type RunView interface {
	SetRun(frame, total int, elapsed time.Duration)
}

// RunPresenter advances the run model clock and pushes its values to the view.
type RunPresenter struct {
	run  *model.RunModel
	view RunView
}

// NewRunPresenter returns a new RunPresenter.
func NewRunPresenter(run *model.RunModel, view RunView) *RunPresenter {
	return &RunPresenter{run: run, view: view}
}

// Tick updates the presenter: advance the run model and push values to the view.
func (p *RunPresenter) Tick(now time.Time) {
	if p == nil || p.run == nil || p.view == nil {
		return
	}
	p.run.OnTick(now)
	frame, total, elapsed, _ := p.run.Values()
	p.view.SetRun(frame, total, elapsed)
}
