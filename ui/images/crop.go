package images

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
)

// CropAround produces a square crop of side 'size' centered at center. Near
// the frame edge the window slides inward so the crop keeps its full size
// whenever the frame allows it. The returned rectangle is in frame
// coordinates; the image is a fresh copy.
func CropAround(frame *image.RGBA, center image.Point, size int) (*image.RGBA, image.Rectangle, error) {
	if frame == nil {
		return nil, image.Rectangle{}, errors.New("nil frame")
	}
	if size < 1 {
		size = 1
	}
	b := frame.Bounds()
	r := image.Rect(0, 0, size, size).Add(center.Sub(image.Pt(size/2, size/2)))
	if r.Min.X < b.Min.X {
		r = r.Add(image.Pt(b.Min.X-r.Min.X, 0))
	}
	if r.Min.Y < b.Min.Y {
		r = r.Add(image.Pt(0, b.Min.Y-r.Min.Y))
	}
	if r.Max.X > b.Max.X {
		r = r.Sub(image.Pt(r.Max.X-b.Max.X, 0))
	}
	if r.Max.Y > b.Max.Y {
		r = r.Sub(image.Pt(0, r.Max.Y-b.Max.Y))
	}
	r = r.Intersect(b)
	if r.Empty() {
		r = image.Rect(b.Min.X, b.Min.Y, b.Min.X+1, b.Min.Y+1)
	}
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), frame.SubImage(r), r.Min, draw.Src)
	return out, r, nil
}

// DrawCross paints a crosshair marker of the given arm length at (x, y),
// clipped to the image bounds.
func DrawCross(dst *image.RGBA, x, y, arm int, c color.RGBA) {
	if dst == nil || arm < 1 {
		return
	}
	b := dst.Bounds()
	for dx := -arm; dx <= arm; dx++ {
		if p := image.Pt(x+dx, y); p.In(b) {
			dst.SetRGBA(p.X, p.Y, c)
		}
	}
	for dy := -arm; dy <= arm; dy++ {
		if p := image.Pt(x, y+dy); p.In(b) {
			dst.SetRGBA(p.X, p.Y, c)
		}
	}
}
