package autotrack

import (
	"context"

	"gocv.io/x/gocv"
)

// templateTracker relocates the selected patch frame by frame with
// normalized cross-correlation, searching only a margin-padded window around
// the previous match. Windowed search keeps the per-frame cost independent
// of frame resolution and avoids false matches from repeated patterns
// elsewhere in the scene.
type templateTracker struct {
	cfg Config
}

func (t *templateTracker) run(ctx context.Context, emit func(any) bool) error {
	src := t.cfg.Source
	bounds := src.Bounds()

	first, err := src.GrayFrame(ctx, t.cfg.StartFrame)
	if err != nil {
		return err
	}
	crop := clipRect(t.cfg.ROI, bounds)
	region := first.Region(crop)
	tmpl := region.Clone()
	region.Close()
	closeFrame(&first)
	defer tmpl.Close()

	// The match center seeds from the configured region, not the clipped
	// crop: a selection hanging off the frame edge then hits the
	// tracking-lost guard on the first step instead of silently recentering.
	cx, cy := center(t.cfg.ROI)
	total := t.cfg.EndFrame - t.cfg.StartFrame

	for frame := t.cfg.StartFrame + 1; frame <= t.cfg.EndFrame; frame++ {
		if ctx.Err() != nil {
			return nil
		}
		if !emit(Progress{Frame: frame - t.cfg.StartFrame, Total: total}) {
			return nil
		}

		gray, err := src.GrayFrame(ctx, frame)
		if err != nil {
			return err
		}

		win := searchWindow(cx, cy, tmpl.Cols(), tmpl.Rows(), t.cfg.SearchMargin, bounds)
		if win.Dx() < tmpl.Cols() || win.Dy() < tmpl.Rows() {
			// Tracking lost: the clamped window cannot contain the
			// template. Terminal zero-confidence result, not an error.
			closeFrame(&gray)
			emit(Result{Frame: frame, X: cx, Y: cy, Confidence: 0})
			return nil
		}

		view := gray.Region(win)
		window := view.Clone()
		view.Close()

		scores := gocv.NewMat()
		mask := gocv.NewMat()
		gocv.MatchTemplate(window, tmpl, &scores, gocv.TmCcoeffNormed, mask)
		_, maxVal, _, maxLoc := gocv.MinMaxLoc(scores)
		mask.Close()
		scores.Close()
		window.Close()
		closeFrame(&gray)

		cx = float64(win.Min.X+maxLoc.X) + float64(tmpl.Cols())/2
		cy = float64(win.Min.Y+maxLoc.Y) + float64(tmpl.Rows())/2

		// Correlation scores can drift slightly outside the nominal range on
		// near-uniform templates; passed through unclamped.
		if !emit(Result{Frame: frame, X: cx, Y: cy, Confidence: float64(maxVal)}) {
			return nil
		}
	}
	return nil
}
