// Package media wraps video decoding behind a seekable frame source.
// All pixel data lives in native Mats; every function documents which side
// owns the buffer, and owners must Close explicitly.
package media

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// seekTolerance is the slack within which a seek request is considered
// already satisfied and skipped. Avoids redundant decoder repositioning when
// trackers walk consecutive frames.
const seekTolerance = 0.001 // seconds

// VideoSource is a seekable decoded video file. Not safe for concurrent use;
// a tracking session must hold its own detached instance.
type VideoSource struct {
	path   string
	cap    *gocv.VideoCapture
	width  int
	height int
	frames int
	fps    float64
}

// OpenVideo opens the file and reads its stream properties.
func OpenVideo(path string) (*VideoSource, error) {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video %s: %w", path, err)
	}
	s := &VideoSource{
		path:   path,
		cap:    cap,
		width:  int(cap.Get(gocv.VideoCaptureFrameWidth)),
		height: int(cap.Get(gocv.VideoCaptureFrameHeight)),
		frames: int(cap.Get(gocv.VideoCaptureFrameCount)),
		fps:    cap.Get(gocv.VideoCaptureFPS),
	}
	if s.width <= 0 || s.height <= 0 {
		_ = cap.Close()
		return nil, fmt.Errorf("open video %s: no decodable stream", path)
	}
	if s.fps <= 0 {
		// Some containers omit the rate; fall back rather than divide by zero.
		s.fps = 30
	}
	return s, nil
}

func (s *VideoSource) Path() string    { return s.path }
func (s *VideoSource) FrameCount() int { return s.frames }
func (s *VideoSource) FPS() float64    { return s.fps }

// Bounds returns the native pixel rectangle of the video.
func (s *VideoSource) Bounds() image.Rectangle {
	return image.Rect(0, 0, s.width, s.height)
}

// FrameTime returns the start time of the given frame in seconds.
func (s *VideoSource) FrameTime(frame int) float64 {
	return float64(frame) / s.fps
}

// Position returns the decoder's current position in seconds.
func (s *VideoSource) Position() float64 {
	return s.cap.Get(gocv.VideoCapturePosMsec) / 1000.0
}

// Seek repositions the decoder to t seconds. A request within seekTolerance
// of the current position is a no-op.
func (s *VideoSource) Seek(t float64) error {
	if math.Abs(s.Position()-t) <= seekTolerance {
		return nil
	}
	s.cap.Set(gocv.VideoCapturePosMsec, t*1000.0)
	return nil
}

// ReadFrame decodes the frame at the current position. The returned Mat is
// owned by the caller and must be closed.
func (s *VideoSource) ReadFrame() (gocv.Mat, error) {
	frame := gocv.NewMat()
	if ok := s.cap.Read(&frame); !ok || frame.Empty() {
		frame.Close()
		return gocv.Mat{}, errors.New("media: frame not decodable at current position")
	}
	return frame, nil
}

// Detach opens an independent decoder on the same file, so a batch tracking
// run never disturbs the decoder backing the interactive display.
func (s *VideoSource) Detach() (*VideoSource, error) {
	return OpenVideo(s.path)
}

// Close releases the decoder.
func (s *VideoSource) Close() error {
	if s.cap == nil {
		return nil
	}
	err := s.cap.Close()
	s.cap = nil
	return err
}

// Gray converts a color frame to single-channel intensity. The input is
// still owned by the caller and must be closed after conversion.
func Gray(m gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
	return gray
}
