package media

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"gocv.io/x/gocv"
)

// ErrSeekTimeout reports a seek/decode that did not complete within the
// sampler's budget. Guards against stalled or corrupt media.
var ErrSeekTimeout = errors.New("media: seek timed out")

// videoSource is the decoder surface the sampler drives. *VideoSource is the
// production implementation.
type videoSource interface {
	Seek(t float64) error
	ReadFrame() (gocv.Mat, error)
	FrameTime(frame int) float64
	Bounds() image.Rectangle
	FrameCount() int
	Close() error
}

// Sampler extracts frames for algorithmic consumption. It serializes access
// to one video source and applies a timeout to every seek/decode round-trip.
// Like the source it wraps, a sampler belongs to one goroutine.
type Sampler struct {
	src     videoSource
	timeout time.Duration

	// inflight holds the outcome channel of a decode that timed out. The
	// worker behind it still reads from the native capture, so every later
	// operation joins it before touching the source again.
	inflight chan seekOutcome
}

// NewSampler wraps src. A non-positive timeout falls back to 5 seconds.
func NewSampler(src *VideoSource, timeout time.Duration) *Sampler {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sampler{src: src, timeout: timeout}
}

// Bounds returns the native pixel rectangle of the underlying video.
func (s *Sampler) Bounds() image.Rectangle { return s.src.Bounds() }

// FrameCount returns the number of frames in the underlying video.
func (s *Sampler) FrameCount() int { return s.src.FrameCount() }

type seekOutcome struct {
	mat gocv.Mat
	err error
}

// join waits for an abandoned decode to land and releases its Mat. Returns
// a timeout error when the decode is still stuck, leaving it inflight.
func (s *Sampler) join(ctx context.Context) error {
	if s.inflight == nil {
		return nil
	}
	select {
	case out := <-s.inflight:
		s.inflight = nil
		if out.err == nil {
			out.mat.Close()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.timeout):
		return fmt.Errorf("%w waiting for an abandoned decode", ErrSeekTimeout)
	}
}

// seekAndRead positions the decoder at the frame and decodes it, bounded by
// the sampler timeout and ctx. An abandoned decode is recorded so the next
// operation (or Close) reaps its Mat once it eventually lands.
func (s *Sampler) seekAndRead(ctx context.Context, frame int) (gocv.Mat, error) {
	if err := s.join(ctx); err != nil {
		return gocv.Mat{}, err
	}
	ch := make(chan seekOutcome, 1)
	go func() {
		if err := s.src.Seek(s.src.FrameTime(frame)); err != nil {
			ch <- seekOutcome{err: err}
			return
		}
		mat, err := s.src.ReadFrame()
		ch <- seekOutcome{mat: mat, err: err}
	}()
	select {
	case out := <-ch:
		return out.mat, out.err
	case <-ctx.Done():
		s.inflight = ch
		return gocv.Mat{}, ctx.Err()
	case <-time.After(s.timeout):
		s.inflight = ch
		return gocv.Mat{}, fmt.Errorf("%w after %s (frame %d)", ErrSeekTimeout, s.timeout, frame)
	}
}

// SeekFrame positions the decoder at the frame and verifies it decodes. The
// decoded pixels are discarded; use GrayFrame to keep them.
func (s *Sampler) SeekFrame(ctx context.Context, frame int) error {
	mat, err := s.seekAndRead(ctx, frame)
	if err != nil {
		return err
	}
	mat.Close()
	return nil
}

// GrayFrame seeks to the frame and returns it as a single-channel intensity
// Mat owned by the caller. The intermediate color buffer is released here on
// every path.
func (s *Sampler) GrayFrame(ctx context.Context, frame int) (gocv.Mat, error) {
	color, err := s.seekAndRead(ctx, frame)
	if err != nil {
		return gocv.Mat{}, err
	}
	gray := Gray(color)
	color.Close()
	if gray.Empty() {
		gray.Close()
		return gocv.Mat{}, fmt.Errorf("media: gray conversion failed (frame %d)", frame)
	}
	return gray, nil
}

// Image seeks to the frame and returns it as a Go image for display. All
// native buffers are released before returning.
func (s *Sampler) Image(ctx context.Context, frame int) (image.Image, error) {
	color, err := s.seekAndRead(ctx, frame)
	if err != nil {
		return nil, err
	}
	defer color.Close()
	img, err := color.ToImage()
	if err != nil {
		return nil, fmt.Errorf("media: convert frame %d: %w", frame, err)
	}
	return img, nil
}

// Warm decodes the first frame to force the container open and the decoder
// primed, bounded by ctx. Used to preload a detached source before a run.
func (s *Sampler) Warm(ctx context.Context) error {
	return s.SeekFrame(ctx, 0)
}

// Close waits out any abandoned decode, then releases the source. Closing
// the native capture while the decode worker still reads from it would free
// memory in use, so this blocks without a timeout.
func (s *Sampler) Close() error {
	if s.inflight != nil {
		if out := <-s.inflight; out.err == nil {
			out.mat.Close()
		}
		s.inflight = nil
	}
	return s.src.Close()
}
