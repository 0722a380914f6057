package track

import (
	"sync"

	"github.com/google/uuid"
)

// Calibration maps pixel coordinates to physical units, per axis: a point
// exports as (px - Origin) * Scale. The zero origin with unit scales leaves
// coordinates in raw pixels.
type Calibration struct {
	ScaleX, ScaleY   float64 // units per pixel
	OriginX, OriginY float64 // pixel position of the unit origin
}

// Track is one tracked object: at most one point per frame. The session
// goroutine commits points while the display tick reads them, so the point
// set and removal flags are guarded by the track lock.
type Track struct {
	ID   uuid.UUID
	Name string

	mu     sync.RWMutex
	cal    Calibration
	points map[int]*Point
}

// NewTrack returns an empty track with a fresh identifier and pixel
// calibration.
func NewTrack(name string) *Track {
	return &Track{
		ID:     uuid.New(),
		Name:   name,
		cal:    Calibration{ScaleX: 1, ScaleY: 1},
		points: make(map[int]*Point),
	}
}

// Calibration returns the pixel-to-unit mapping used by Export.
func (t *Track) Calibration() Calibration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cal
}

// SetCalibration replaces the pixel-to-unit mapping. Zero scales are
// corrected to 1 so exports stay invertible.
func (t *Track) SetCalibration(c Calibration) {
	if c.ScaleX == 0 {
		c.ScaleX = 1
	}
	if c.ScaleY == 0 {
		c.ScaleY = 1
	}
	t.mu.Lock()
	t.cal = c
	t.mu.Unlock()
}

// PointAt returns the point at the given frame number, or nil.
func (t *Track) PointAt(frame int) *Point {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.points[frame]
}

// PointCount returns the number of points currently on the track.
func (t *Track) PointCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.points)
}

// Point is one tracked position on one frame of one track. X, Y and the
// timestamp are fixed at placement; only attachment state changes afterward.
type Point struct {
	track   *Track
	frame   *Frame
	X, Y    float64
	t       float64
	removed bool
}

// NewPoint places a point at (x, y) on the frame, replacing any existing
// point the track already has there.
func NewPoint(tr *Track, fr *Frame, t, x, y float64) *Point {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if old := tr.points[fr.Number]; old != nil {
		old.detach()
	}
	p := &Point{track: tr, frame: fr, X: x, Y: y, t: t}
	tr.points[fr.Number] = p
	fr.Points = append(fr.Points, p)
	return p
}

// FrameNumber returns the frame this point belongs to.
func (p *Point) FrameNumber() int { return p.frame.Number }

// T returns the point's time in seconds.
func (p *Point) T() float64 { return p.t }

// Removed reports whether the point is currently detached.
func (p *Point) Removed() bool {
	p.track.mu.RLock()
	defer p.track.mu.RUnlock()
	return p.removed
}

// Remove detaches the point from its track and frame. The point keeps its
// data so UnRemove can restore it exactly.
func (p *Point) Remove() {
	p.track.mu.Lock()
	p.detach()
	p.track.mu.Unlock()
}

// detach is Remove under an already-held track lock.
func (p *Point) detach() {
	if p.removed {
		return
	}
	p.removed = true
	if p.track.points[p.frame.Number] == p {
		delete(p.track.points, p.frame.Number)
	}
	for i, fp := range p.frame.Points {
		if fp == p {
			p.frame.Points = append(p.frame.Points[:i], p.frame.Points[i+1:]...)
			break
		}
	}
}

// UnRemove reattaches a removed point, displacing whatever currently
// occupies its frame on the track.
func (p *Point) UnRemove() {
	p.track.mu.Lock()
	defer p.track.mu.Unlock()
	if !p.removed {
		return
	}
	if other := p.track.points[p.frame.Number]; other != nil && other != p {
		other.detach()
	}
	p.removed = false
	p.track.points[p.frame.Number] = p
	p.frame.Points = append(p.frame.Points, p)
}

// PointExport is the persistence payload of a point: time plus coordinates
// in calibrated units.
type PointExport struct {
	T      float64 `json:"t"`
	Scaled struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	} `json:"scaled"`
}

// Export returns the point's persistence payload.
func (p *Point) Export() PointExport {
	cal := p.track.Calibration()
	var e PointExport
	e.T = p.t
	e.Scaled.X = (p.X - cal.OriginX) * cal.ScaleX
	e.Scaled.Y = (p.Y - cal.OriginY) * cal.ScaleY
	return e
}

// FromExport reconstructs a point on the track and frame from its payload.
func FromExport(tr *Track, fr *Frame, e PointExport) *Point {
	cal := tr.Calibration()
	if cal.ScaleX == 0 {
		cal.ScaleX = 1
	}
	if cal.ScaleY == 0 {
		cal.ScaleY = 1
	}
	x := e.Scaled.X/cal.ScaleX + cal.OriginX
	y := e.Scaled.Y/cal.ScaleY + cal.OriginY
	return NewPoint(tr, fr, e.T, x, y)
}
