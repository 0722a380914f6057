package presenter

import (
	"sync"
	"time"

	"github.com/veillette/gotrack/session"
)

// StatusView sets the status line in the view.
type StatusView interface{ SetStatus(string) }

// StatePresenter queues session state transitions and reflects the most
// recent one on the next Tick. The listener fires on the session goroutine,
// so the queue is mutex guarded; widget updates only happen from Tick on
// the UI thread.
type StatePresenter struct {
	view StatusView

	mu      sync.Mutex
	pending []session.State
	latest  session.State
	shown   bool
}

func NewStatePresenter(view StatusView) *StatePresenter {
	return &StatePresenter{view: view}
}

// OnState queues a transitioned state. Matches session.StateListener.
func (p *StatePresenter) OnState(prev, next session.State) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.pending = append(p.pending, next)
	p.mu.Unlock()
}

// Tick flushes queued states and updates the view with the most recent one.
func (p *StatePresenter) Tick(now time.Time) {
	if p == nil || p.view == nil {
		return
	}
	p.mu.Lock()
	if len(p.pending) == 0 {
		p.mu.Unlock()
		return
	}
	last := p.pending[len(p.pending)-1]
	p.pending = p.pending[:0]
	changed := !p.shown || last != p.latest
	p.latest = last
	p.shown = true
	p.mu.Unlock()
	if changed {
		p.view.SetStatus("Status: " + last.String())
	}
}
