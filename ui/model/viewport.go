package model

import (
	"image"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Viewport maps screen-space rectangles from the region overlay into native
// video coordinates. Origin is the screen position of the preview's top-left
// pixel; Scale is displayed pixels per native video pixel.
type Viewport struct {
	Origin image.Point
	Scale  float64
}

// ToVideo converts a screen rectangle into video coordinates. Returns a zero
// rectangle when the viewport is unusable.
func (v Viewport) ToVideo(screen image.Rectangle) image.Rectangle {
	if v.Scale <= 0 {
		return image.Rectangle{}
	}
	rel := screen.Sub(v.Origin)
	x0 := int(math.Floor(float64(rel.Min.X) / v.Scale))
	y0 := int(math.Floor(float64(rel.Min.Y) / v.Scale))
	x1 := int(math.Ceil(float64(rel.Max.X) / v.Scale))
	y1 := int(math.Ceil(float64(rel.Max.Y) / v.Scale))
	return image.Rect(x0, y0, x1, y1)
}

// FromVideo converts a video rectangle back into screen coordinates, the
// inverse of ToVideo up to rounding.
func (v Viewport) FromVideo(video image.Rectangle) image.Rectangle {
	if v.Scale <= 0 {
		return image.Rectangle{}
	}
	x0 := int(math.Round(float64(video.Min.X) * v.Scale))
	y0 := int(math.Round(float64(video.Min.Y) * v.Scale))
	x1 := int(math.Round(float64(video.Max.X) * v.Scale))
	y1 := int(math.Round(float64(video.Max.Y) * v.Scale))
	return image.Rect(x0, y0, x1, y1).Add(v.Origin)
}

// ToVideoPoint converts the center of a screen rectangle into a video
// coordinate pair.
func (v Viewport) ToVideoPoint(screen image.Rectangle) (x, y float64, ok bool) {
	if v.Scale <= 0 {
		return 0, 0, false
	}
	cx := float64(screen.Min.X+screen.Max.X)/2 - float64(v.Origin.X)
	cy := float64(screen.Min.Y+screen.Max.Y)/2 - float64(v.Origin.Y)
	return cx / v.Scale, cy / v.Scale, true
}

// geomRe matches window geometry strings in the format "WIDTHxHEIGHT+X+Y"
var geomRe = regexp.MustCompile(`^(\d+)x(\d+)\+(-?\d+)\+(-?\d+)$`)

// ParseGeometry parses a Tk geometry string and returns the corresponding rectangle.
func ParseGeometry(g string) (image.Rectangle, bool) {
	g = strings.TrimSpace(g)
	m := geomRe.FindStringSubmatch(g)
	if len(m) != 5 {
		return image.Rectangle{}, false
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	x, _ := strconv.Atoi(m[3])
	y, _ := strconv.Atoi(m[4])
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(x, y, x+w, y+h), true
}
