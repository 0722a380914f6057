package view

import (
	"image"

	"github.com/veillette/gotrack/ui/images"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// VideoPreview abstracts the frame pane and the zoomed marker pane.
// It owns two LabelWidgets and provides methods to update or reset them.
type VideoPreview interface {
	UpdateFrame(img image.Image)
	UpdateMarker(img image.Image)
	Reset()
	// DisplayScale reports displayed pixels per native video pixel for the
	// last rendered frame, 0 before any frame was shown.
	DisplayScale() float64
}

type videoPreview struct {
	frameLabel  *LabelWidget
	markerLabel *LabelWidget
	targetW     int
	targetH     int
	scale       float64
	// last Tk photo instances, disposed before replacement so off-screen
	// pixel data does not accumulate
	prevFramePhoto  *Img
	prevMarkerPhoto *Img
}

// NewVideoPreview creates the preview labels and grids them at the given row.
// Layout: the frame pane spans columns 0-3; the marker zoom sits at column 4.
func NewVideoPreview(row, targetW, targetH int) VideoPreview {
	if targetW < 50 {
		targetW = 50
	}
	if targetH < 50 {
		targetH = 50
	}
	placeholder := image.NewRGBA(image.Rect(0, 0, 200, 120))
	pngBytes := images.EncodePNG(placeholder)
	framePhoto := NewPhoto(Data(pngBytes))
	markerPhoto := NewPhoto(Data(pngBytes))
	frame := Label(Image(framePhoto), Borderwidth(1), Relief("sunken"))
	marker := Label(Image(markerPhoto), Borderwidth(1), Relief("sunken"))
	Grid(frame, Row(row), Column(0), Columnspan(4), Sticky("we"), Padx("0.4m"), Pady("0.4m"))
	Grid(marker, Row(row), Column(4), Columnspan(1), Sticky("n"), Padx("0.4m"), Pady("0.4m"))
	return &videoPreview{frameLabel: frame, markerLabel: marker, targetW: targetW, targetH: targetH, prevFramePhoto: framePhoto, prevMarkerPhoto: markerPhoto}
}

func (v *videoPreview) UpdateFrame(img image.Image) {
	if v.frameLabel == nil || img == nil {
		return
	}
	native := img.Bounds().Dx()
	scaled := images.ScaleToFit(img, v.targetW, v.targetH)
	if native > 0 {
		v.scale = float64(scaled.Bounds().Dx()) / float64(native)
	}
	pngBytes := images.EncodePNG(scaled)
	if v.prevFramePhoto != nil {
		v.prevFramePhoto.Delete()
	}
	newPhoto := NewPhoto(Data(pngBytes))
	v.prevFramePhoto = newPhoto
	v.frameLabel.Configure(Image(newPhoto))
}

func (v *videoPreview) UpdateMarker(img image.Image) {
	if v.markerLabel == nil || img == nil {
		return
	}
	pngBytes := images.EncodePNG(img)
	if v.prevMarkerPhoto != nil {
		v.prevMarkerPhoto.Delete()
	}
	newPhoto := NewPhoto(Data(pngBytes))
	v.prevMarkerPhoto = newPhoto
	v.markerLabel.Configure(Image(newPhoto))
}

func (v *videoPreview) Reset() {
	placeholder := image.NewRGBA(image.Rect(0, 0, 200, 120))
	pngBytes := images.EncodePNG(placeholder)
	v.scale = 0
	if v.frameLabel != nil {
		if v.prevFramePhoto != nil {
			v.prevFramePhoto.Delete()
		}
		v.prevFramePhoto = NewPhoto(Data(pngBytes))
		v.frameLabel.Configure(Image(v.prevFramePhoto))
	}
	if v.markerLabel != nil {
		if v.prevMarkerPhoto != nil {
			v.prevMarkerPhoto.Delete()
		}
		v.prevMarkerPhoto = NewPhoto(Data(pngBytes))
		v.markerLabel.Configure(Image(v.prevMarkerPhoto))
	}
}

func (v *videoPreview) DisplayScale() float64 {
	if v == nil {
		return 0
	}
	return v.scale
}
