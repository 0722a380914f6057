package presenter

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/veillette/gotrack/track"
	"github.com/veillette/gotrack/ui/images"
)

// FrameImager decodes one video frame into a displayable image.
type FrameImager interface {
	Image(ctx context.Context, frame int) (image.Image, error)
}

// PreviewView receives the rendered frame and the zoomed marker crop.
type PreviewView interface {
	UpdateFrame(img image.Image)
	UpdateMarker(img image.Image)
	Reset()
}

const (
	markerZoomPx   = 80
	markerArmPx    = 6
	decodeDeadline = 2 * time.Second
)

var markerColor = color.RGBA{R: 220, G: 38, B: 38, A: 255}

// PreviewPresenter renders the playhead frame with point markers. It only
// decodes when the timeline or track changed since the last tick, so idle
// ticks stay cheap.
type PreviewPresenter struct {
	logger  *slog.Logger
	tl      *track.Timeline
	trackFn func() *track.Track
	view    PreviewView

	frames FrameImager // nil until a video is open
	dirty  atomic.Bool
}

func NewPreviewPresenter(logger *slog.Logger, tl *track.Timeline, trackFn func() *track.Track, view PreviewView) *PreviewPresenter {
	return &PreviewPresenter{logger: logger, tl: tl, trackFn: trackFn, view: view}
}

// SetSource swaps the frame decoder, typically after opening a video.
// A nil source blanks the preview.
func (p *PreviewPresenter) SetSource(f FrameImager) {
	if p == nil {
		return
	}
	p.frames = f
	if f == nil {
		p.view.Reset()
		return
	}
	p.MarkDirty()
}

// SetTimeline rebinds the playhead source after a video swap.
func (p *PreviewPresenter) SetTimeline(tl *track.Timeline) {
	if p == nil {
		return
	}
	p.tl = tl
	p.MarkDirty()
}

// MarkDirty requests a redraw on the next tick. Hook this to the timeline's
// update callback.
func (p *PreviewPresenter) MarkDirty() {
	if p == nil {
		return
	}
	p.dirty.Store(true)
}

// ProcessFrame redraws the preview when marked dirty. Runs on the UI thread;
// the decode blocks it briefly, bounded by decodeDeadline.
func (p *PreviewPresenter) ProcessFrame() {
	if p == nil || p.view == nil || p.frames == nil {
		return
	}
	if !p.dirty.Swap(false) {
		return
	}
	frame := 0
	if p.tl != nil {
		frame = p.tl.CurrentFrame()
	}
	ctx, cancel := context.WithTimeout(context.Background(), decodeDeadline)
	defer cancel()
	img, err := p.frames.Image(ctx, frame)
	if err != nil {
		if p.logger != nil {
			p.logger.Error("preview decode failed", "frame", frame, "error", err)
		}
		return
	}
	rgba := toRGBA(img)
	if pt := p.pointAt(frame); pt != nil {
		x, y := int(pt.X+0.5), int(pt.Y+0.5)
		images.DrawCross(rgba, x, y, markerArmPx, markerColor)
		if zoom, _, err := images.CropAround(rgba, image.Pt(x, y), markerZoomPx); err == nil {
			p.view.UpdateMarker(zoom)
		}
	}
	p.view.UpdateFrame(rgba)
}

func (p *PreviewPresenter) pointAt(frame int) *track.Point {
	if p.trackFn == nil {
		return nil
	}
	tr := p.trackFn()
	if tr == nil {
		return nil
	}
	pt := tr.PointAt(frame)
	if pt == nil || pt.Removed() {
		return nil
	}
	return pt
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
