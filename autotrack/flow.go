package autotrack

import (
	"context"

	"gocv.io/x/gocv"
)

// flowTracker follows a single point with pyramidal Lucas-Kanade optical
// flow between consecutive frames. Coarser than patch matching but robust to
// patch deformation; the pyramid (library default, 3 levels above the base
// image, 21x21 window) recovers displacements a single-resolution window
// would miss.
type flowTracker struct {
	cfg Config
}

func (t *flowTracker) run(ctx context.Context, emit func(any) bool) error {
	src := t.cfg.Source

	prev, err := src.GrayFrame(ctx, t.cfg.StartFrame)
	if err != nil {
		return err
	}
	px, py := center(t.cfg.ROI)
	prevPts := gocv.NewMatWithSize(1, 1, gocv.MatTypeCV32FC2)
	prevPts.SetFloatAt(0, 0, float32(px))
	prevPts.SetFloatAt(0, 1, float32(py))

	// prev/prevPts ownership moves frame to frame; release covers whichever
	// pair is current on any exit path.
	release := func() {
		closeFrame(&prev)
		prevPts.Close()
	}

	total := t.cfg.EndFrame - t.cfg.StartFrame
	for frame := t.cfg.StartFrame + 1; frame <= t.cfg.EndFrame; frame++ {
		if ctx.Err() != nil {
			release()
			return nil
		}
		if !emit(Progress{Frame: frame - t.cfg.StartFrame, Total: total}) {
			release()
			return nil
		}

		next, err := src.GrayFrame(ctx, frame)
		if err != nil {
			release()
			return err
		}

		nextPts := gocv.NewMat()
		status := gocv.NewMat()
		flowErr := gocv.NewMat()
		gocv.CalcOpticalFlowPyrLK(prev, next, prevPts, nextPts, &status, &flowErr)

		tracked := status.Rows() > 0 && status.GetUCharAt(0, 0) == 1
		x := float64(nextPts.GetFloatAt(0, 0))
		y := float64(nextPts.GetFloatAt(0, 1))
		flowErr.Close()
		status.Close()

		// The previous pair is superseded either way.
		closeFrame(&prev)
		prevPts.Close()

		if !tracked {
			// Tracking lost: terminal zero-confidence result at the last
			// computed position.
			closeFrame(&next)
			nextPts.Close()
			emit(Result{Frame: frame, X: x, Y: y, Confidence: 0})
			return nil
		}

		prev = next
		prevPts = nextPts
		if !emit(Result{Frame: frame, X: x, Y: y, Confidence: 1}) {
			release()
			return nil
		}
	}
	release()
	return nil
}
