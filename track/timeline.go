// Package track holds the in-memory analysis model: the frame timeline,
// tracks of per-frame points, the undo stack and the data table.
package track

import (
	"math"
	"sync"
)

// Frame is one timeline slot. Points holds every point placed on this frame;
// it is mutated under the placing track's lock, and the app keeps one active
// track per timeline.
type Frame struct {
	Number int
	Points []*Point
}

// Timeline maps frame numbers to times and frames. Frame numbers run from 0
// to FrameCount()-1; a tracking range may name FrameCount as its exclusive
// upper bound, results there simply have no timeline frame.
//
// The frame slots are fixed at construction; the playhead and active set are
// guarded because the session goroutine moves them while the display tick
// reads them.
type Timeline struct {
	fps    float64
	frames []*Frame

	mu       sync.Mutex
	active   []*Frame
	current  int
	time     float64
	onUpdate func()
}

// NewTimeline builds a timeline of frameCount frames at the given rate.
func NewTimeline(fps float64, frameCount int) *Timeline {
	if fps <= 0 {
		fps = 30
	}
	if frameCount < 0 {
		frameCount = 0
	}
	tl := &Timeline{fps: fps, frames: make([]*Frame, frameCount)}
	for i := range tl.frames {
		tl.frames[i] = &Frame{Number: i}
	}
	return tl
}

func (tl *Timeline) FPS() float64    { return tl.fps }
func (tl *Timeline) FrameCount() int { return len(tl.frames) }

// Frame returns the frame object for number n, or nil when out of range.
func (tl *Timeline) Frame(n int) *Frame {
	if n < 0 || n >= len(tl.frames) {
		return nil
	}
	return tl.frames[n]
}

// FrameStart returns the start time of frame n in seconds.
func (tl *Timeline) FrameStart(n int) float64 {
	return float64(n) / tl.fps
}

// CurrentFrame returns the playhead's frame number.
func (tl *Timeline) CurrentFrame() int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.current
}

// CurrentTime returns the playhead position in seconds.
func (tl *Timeline) CurrentTime() float64 {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.time
}

// Seek moves the playhead to t seconds, clamped to the timeline.
func (tl *Timeline) Seek(t float64) {
	if t < 0 {
		t = 0
	}
	n := int(math.Floor(t*tl.fps + 1e-9))
	if n >= len(tl.frames) && len(tl.frames) > 0 {
		n = len(tl.frames) - 1
	}
	tl.mu.Lock()
	tl.time = t
	tl.current = n
	tl.mu.Unlock()
}

// Activate marks a frame as holding data. Idempotent.
func (tl *Timeline) Activate(f *Frame) {
	if f == nil {
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	for _, a := range tl.active {
		if a == f {
			return
		}
	}
	tl.active = append(tl.active, f)
}

// ActiveFrames returns a copy of the frames carrying data, in activation
// order.
func (tl *Timeline) ActiveFrames() []*Frame {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]*Frame, len(tl.active))
	copy(out, tl.active)
	return out
}

// SetOnUpdate registers the hook invoked by Update.
func (tl *Timeline) SetOnUpdate(fn func()) {
	tl.mu.Lock()
	tl.onUpdate = fn
	tl.mu.Unlock()
}

// Update notifies the display layer that timeline contents changed. The hook
// runs outside the timeline lock.
func (tl *Timeline) Update() {
	tl.mu.Lock()
	fn := tl.onUpdate
	tl.mu.Unlock()
	if fn != nil {
		fn()
	}
}
