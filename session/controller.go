package session

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/veillette/gotrack/autotrack"
	"github.com/veillette/gotrack/config"
	"github.com/veillette/gotrack/track"
)

// Session tuning.
const (
	defaultMinSelectionPx  = 5
	defaultConfidenceFloor = 0.5
	defaultLoadTimeout     = 10 * time.Second
)

// Deps are the external collaborators of a session. Track is a provider
// because the active track can change between sessions; Detach is nil until
// a video is loaded.
type Deps struct {
	Timeline *track.Timeline
	Track    func() *track.Track
	Table    *track.DataTable
	Undo     *track.UndoManager
	Prompts  Prompter
	Engine   EngineLoader
	Detach   func() (Media, error)
}

// Controller runs the auto-tracking session state machine. One session at a
// time; all tracking work happens on a session goroutine while UI threads
// only call the small public surface.
type Controller struct {
	logger *slog.Logger
	cfg    *config.Config
	deps   Deps

	mu         sync.Mutex
	state      State
	cancel     context.CancelFunc
	listeners  []StateListener
	progress   ProgressFunc
	lastMargin int
}

// NewController wires a controller. cfg may be nil, defaults apply.
func NewController(logger *slog.Logger, cfg *config.Config, deps Deps) *Controller {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Controller{logger: logger, cfg: cfg, deps: deps, state: StateIdle, lastMargin: cfg.SearchMargin}
}

// LastMargin returns the most recently accepted search margin, seeded from
// config. The app persists it back to config on exit.
func (c *Controller) LastMargin() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastMargin
}

func (c *Controller) setLastMargin(n int) {
	c.mu.Lock()
	c.lastMargin = n
	c.mu.Unlock()
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// AddListener registers a transition listener.
func (c *Controller) AddListener(l StateListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// SetProgressFunc registers the advisory progress sink.
func (c *Controller) SetProgressFunc(fn ProgressFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = fn
}

func (c *Controller) transition(next State) {
	c.mu.Lock()
	prev := c.state
	if prev == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	listeners := append([]StateListener(nil), c.listeners...)
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Debug("session state transition", "from", prev.String(), "to", next.String())
	}
	for _, l := range listeners {
		l(prev, next)
	}
}

// Begin starts a session: precondition checks, then Selecting. Returns false
// when a precondition fails; the user has already been told why.
func (c *Controller) Begin() bool {
	if c.State() != StateIdle {
		return false
	}
	if c.deps.Track == nil || c.deps.Track() == nil {
		c.deps.Prompts.Alert("Create a track before auto-tracking.")
		return false
	}
	if c.deps.Detach == nil || c.deps.Timeline == nil {
		c.deps.Prompts.Alert("Load a video before auto-tracking.")
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.loadTimeout())
	defer cancel()
	if err := c.deps.Engine.Ensure(ctx); err != nil {
		c.deps.Prompts.Alert(fmt.Sprintf("Tracking engine failed to load: %v", err))
		return false
	}
	c.transition(StateSelecting)
	return true
}

// CancelSelection abandons an in-progress selection.
func (c *Controller) CancelSelection() {
	if c.State() == StateSelecting {
		c.transition(StateIdle)
	}
}

// CompleteSelection accepts the dragged region in video pixel coordinates
// and drives the rest of the session on its own goroutine.
func (c *Controller) CompleteSelection(sel image.Rectangle) {
	if c.State() != StateSelecting {
		return
	}
	min := c.cfg.MinSelectionPx
	if min < 1 {
		min = defaultMinSelectionPx
	}
	if sel.Dx() < min || sel.Dy() < min {
		c.deps.Prompts.Alert(fmt.Sprintf("Selection too small: drag at least %dx%d pixels.", min, min))
		c.transition(StateIdle)
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if c.logger != nil {
					c.logger.Error("session panic", "error", r, "stack", string(debug.Stack()))
				}
				c.transition(StateIdle)
			}
		}()
		c.runSession(sel)
	}()
}

// Cancel requests a cooperative stop of the running tracker. Results already
// accumulated are still committed.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// configure loops the form until the input validates or the user gives up.
func (c *Controller) configure() (start, end, margin int, algorithm autotrack.Algorithm, ok bool) {
	tl := c.deps.Timeline
	def := FormDefaults{
		Start:        tl.CurrentFrame(),
		End:          tl.FrameCount(),
		Algorithm:    autotrack.AlgorithmTemplate,
		SearchMargin: c.LastMargin(),
	}
	for {
		vals, submitted := c.deps.Prompts.TrackingForm(def)
		if !submitted {
			return 0, 0, 0, "", false
		}
		var err error
		if start, err = parseFrameField(vals.Start); err != nil {
			def.Message = fmt.Sprintf("Start frame: %v", err)
			continue
		}
		if end, err = parseFrameField(vals.End); err != nil {
			def.Message = fmt.Sprintf("End frame: %v", err)
			continue
		}
		if margin, err = parseFrameField(vals.SearchMargin); err != nil {
			def.Message = fmt.Sprintf("Search margin: %v", err)
			continue
		}
		def.Start, def.End, def.SearchMargin, def.Algorithm = start, end, margin, vals.Algorithm
		if end <= start {
			def.Message = "End frame must be after the start frame."
			continue
		}
		if start < 0 || end > tl.FrameCount() {
			def.Message = fmt.Sprintf("Frames must lie between 0 and %d.", tl.FrameCount())
			continue
		}
		if vals.Algorithm == autotrack.AlgorithmTemplate && margin < 1 {
			def.Message = "Search margin must be at least 1 pixel."
			continue
		}
		if n := c.existingPoints(start, end); n > 0 {
			if !c.deps.Prompts.Confirm(fmt.Sprintf("%d of the selected frames already have points. Replace them?", n)) {
				def.Message = ""
				continue
			}
		}
		return start, end, margin, vals.Algorithm, true
	}
}

// existingPoints counts points in the result range (start, end].
func (c *Controller) existingPoints(start, end int) int {
	tr := c.deps.Track()
	n := 0
	for f := start + 1; f <= end; f++ {
		if tr.PointAt(f) != nil {
			n++
		}
	}
	return n
}

func (c *Controller) runSession(sel image.Rectangle) {
	c.transition(StateConfiguring)
	start, end, margin, algorithm, ok := c.configure()
	if !ok {
		c.transition(StateIdle)
		return
	}
	// Remember the accepted margin as the next form default.
	c.setLastMargin(margin)

	c.transition(StateRunning)
	tl := c.deps.Timeline
	playhead := tl.CurrentTime()

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
	}()

	media, err := c.deps.Detach()
	if err != nil {
		c.deps.Prompts.Alert(fmt.Sprintf("Tracking failed: %v", err))
		c.transition(StateIdle)
		return
	}
	defer media.Close()
	defer tl.Seek(playhead)

	warmCtx, warmCancel := context.WithTimeout(ctx, c.loadTimeout())
	err = media.Warm(warmCtx)
	warmCancel()
	if err != nil {
		c.deps.Prompts.Alert(fmt.Sprintf("Video failed to load for tracking: %v", err))
		c.transition(StateIdle)
		return
	}

	roi := sel.Intersect(media.Bounds())
	stream, err := autotrack.Track(ctx, autotrack.Config{
		Source:       media,
		ROI:          roi,
		StartFrame:   start,
		EndFrame:     end,
		Algorithm:    algorithm,
		SearchMargin: margin,
	})
	if err != nil {
		c.deps.Prompts.Alert(fmt.Sprintf("Tracking failed: %v", err))
		c.transition(StateIdle)
		return
	}

	threshold := c.cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = defaultConfidenceFloor
	}
	var accepted []autotrack.Result
	lowConfidence := false
	for stream.Next() {
		switch ev := stream.Event().(type) {
		case autotrack.Progress:
			c.reportProgress(ev.Frame, ev.Total)
		case autotrack.Result:
			if ev.Confidence < threshold {
				lowConfidence = true
			} else {
				accepted = append(accepted, ev)
			}
		}
		if lowConfidence {
			break
		}
	}
	stream.Stop()
	cancelled := ctx.Err() != nil

	if err := stream.Err(); err != nil {
		// Hard failure out of the tracker: surface it, keep nothing, but
		// still run the deferred cleanup.
		if c.logger != nil {
			c.logger.Error("tracking run failed", "error", err)
		}
		c.deps.Prompts.Alert(fmt.Sprintf("Tracking failed: %v", err))
		c.transition(StateIdle)
		return
	}

	c.transition(StateCommitting)
	committed := c.commit(accepted)
	c.transition(StateIdle)

	switch {
	case cancelled:
		c.deps.Prompts.Alert(fmt.Sprintf("Auto-track cancelled: %d frames kept.", committed))
	case lowConfidence:
		c.deps.Prompts.Alert(fmt.Sprintf("Tracking lost before the end of the range: %d frames kept.", committed))
	default:
		c.deps.Prompts.Alert(fmt.Sprintf("Auto-track complete: %d frames tracked.", committed))
	}
	if c.logger != nil {
		c.logger.Info("session finished", "committed", committed, "cancelled", cancelled, "low_confidence", lowConfidence)
	}
}

func (c *Controller) reportProgress(frame, total int) {
	c.mu.Lock()
	fn := c.progress
	c.mu.Unlock()
	if fn != nil {
		fn(frame, total)
	}
}

func (c *Controller) loadTimeout() time.Duration {
	if c.cfg.LoadTimeoutSeconds > 0 {
		return time.Duration(c.cfg.LoadTimeoutSeconds) * time.Second
	}
	return defaultLoadTimeout
}

func parseFrameField(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("required")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return n, nil
}
