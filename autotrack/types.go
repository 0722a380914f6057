// Package autotrack relocates a user-selected point or patch across a frame
// range and yields one result per frame as a lazy, cancellable stream.
package autotrack

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Algorithm selects the tracking strategy for a run.
type Algorithm string

const (
	// AlgorithmTemplate relocates the selected patch each frame by
	// normalized cross-correlation inside a local search window.
	AlgorithmTemplate Algorithm = "template"
	// AlgorithmOpticalFlow follows a single point with pyramidal
	// Lucas-Kanade motion estimation between consecutive frames.
	AlgorithmOpticalFlow Algorithm = "optical-flow"
)

// FrameSource supplies single-channel frames to the trackers. GrayFrame
// returns a Mat owned by the caller; implementations seek to the exact frame
// before extraction.
type FrameSource interface {
	GrayFrame(ctx context.Context, frame int) (gocv.Mat, error)
	Bounds() image.Rectangle
}

// closeFrame releases a Mat obtained from the frame source. A variable so
// tests can account for outstanding frame buffers on every exit path.
var closeFrame = func(m *gocv.Mat) { m.Close() }

// Config describes one tracking run. It is immutable for the duration of the
// run and owned by a single Track invocation.
type Config struct {
	Source     FrameSource
	ROI        image.Rectangle
	StartFrame int
	EndFrame   int
	Algorithm  Algorithm
	// SearchMargin pads the search window around the previous match on all
	// sides. Template matching only.
	SearchMargin int
}

// Validate reports structural problems with the configuration. Range checks
// against the video's frame count belong to the caller, which knows it.
func (c Config) Validate() error {
	if c.Source == nil {
		return errors.New("autotrack: nil frame source")
	}
	if c.ROI.Dx() < 1 || c.ROI.Dy() < 1 {
		return fmt.Errorf("autotrack: region %v is empty", c.ROI)
	}
	if c.StartFrame < 0 {
		return fmt.Errorf("autotrack: start frame %d is negative", c.StartFrame)
	}
	if c.EndFrame <= c.StartFrame {
		return fmt.Errorf("autotrack: end frame %d must exceed start frame %d", c.EndFrame, c.StartFrame)
	}
	if c.Algorithm == AlgorithmTemplate && c.SearchMargin <= 0 {
		return fmt.Errorf("autotrack: search margin %d must be positive", c.SearchMargin)
	}
	return nil
}

// Result is one tracked position. Confidence semantics depend on the
// algorithm: a correlation score for template matching (may drift slightly
// outside the nominal range, deliberately unclamped), a 0/1 status flag for
// optical flow. A zero-confidence result is terminal: tracking was lost and
// the stream ends after it.
type Result struct {
	Frame      int
	X, Y       float64
	Confidence float64
}

// Progress is advisory and emitted once per frame before its result is
// computed. Frame is the 1-based offset into the tracked range.
type Progress struct {
	Frame int
	Total int
}

// clipRect clamps r to bounds.
func clipRect(r, bounds image.Rectangle) image.Rectangle {
	return r.Intersect(bounds)
}

// searchWindow builds the template search window: a template-sized box at
// the previous match center padded by margin on all sides, clamped to the
// frame. The clamped window may end up smaller than the template; callers
// treat that as tracking lost.
func searchWindow(cx, cy float64, tmplW, tmplH, margin int, bounds image.Rectangle) image.Rectangle {
	x := int(cx) - tmplW/2 - margin
	y := int(cy) - tmplH/2 - margin
	w := tmplW + 2*margin
	h := tmplH + 2*margin
	return clipRect(image.Rect(x, y, x+w, y+h), bounds)
}

// center returns the geometric center of r.
func center(r image.Rectangle) (float64, float64) {
	return float64(r.Min.X) + float64(r.Dx())/2, float64(r.Min.Y) + float64(r.Dy())/2
}
