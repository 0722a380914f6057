package autotrack

import (
	"context"
	"fmt"
	"image"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

// fakeSource serves prebuilt grayscale frames and records which frames were
// requested. Returned Mats are clones; the fake keeps ownership of the
// originals until Close and counts how many clones it handed out so tests
// can balance them against releases.
type fakeSource struct {
	bounds image.Rectangle
	frames map[int]gocv.Mat
	fail   map[int]error
	reqs   []int
	handed int
}

func newFakeSource(w, h int) *fakeSource {
	return &fakeSource{
		bounds: image.Rect(0, 0, w, h),
		frames: make(map[int]gocv.Mat),
		fail:   make(map[int]error),
	}
}

func (f *fakeSource) GrayFrame(_ context.Context, frame int) (gocv.Mat, error) {
	f.reqs = append(f.reqs, frame)
	if err := f.fail[frame]; err != nil {
		return gocv.Mat{}, err
	}
	m, ok := f.frames[frame]
	if !ok {
		return gocv.Mat{}, fmt.Errorf("fake source: no frame %d", frame)
	}
	f.handed++
	return m.Clone(), nil
}

func (f *fakeSource) Bounds() image.Rectangle { return f.bounds }

func (f *fakeSource) Close() {
	for _, m := range f.frames {
		m.Close()
	}
}

var _ FrameSource = (*fakeSource)(nil)

// countFrameReleases rewires the tracker's frame release for the duration of
// the test and reports how many source frames came back. Balancing it
// against fakeSource.handed catches a leaked frame on any exit path.
func countFrameReleases(t *testing.T) *int {
	t.Helper()
	orig := closeFrame
	n := new(int)
	closeFrame = func(m *gocv.Mat) {
		*n++
		orig(m)
	}
	t.Cleanup(func() { closeFrame = orig })
	return n
}

// addFrame stores a black frame with a textured patch at r (clipped to the
// frame). The texture keeps correlation and flow well conditioned.
func (f *fakeSource) addFrame(frame int, r image.Rectangle) {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), f.bounds.Dy(), f.bounds.Dx(), gocv.MatTypeCV8U)
	p := r.Intersect(f.bounds)
	for y := p.Min.Y; y < p.Max.Y; y++ {
		for x := p.Min.X; x < p.Max.X; x++ {
			// Patch-relative phase so the texture translates rigidly with r.
			m.SetUCharAt(y, x, uint8(120+(((x-r.Min.X)+3*(y-r.Min.Y))%8)*15))
		}
	}
	f.frames[frame] = m
}

// collect drains the stream into separate progress and result slices.
func collect(t *testing.T, s *Stream) ([]Progress, []Result) {
	t.Helper()
	var progress []Progress
	var results []Result
	for s.Next() {
		switch ev := s.Event().(type) {
		case Progress:
			progress = append(progress, ev)
		case Result:
			results = append(results, ev)
		default:
			t.Fatalf("unexpected event type %T", ev)
		}
	}
	return progress, results
}

func TestTemplateStationaryPatch(t *testing.T) {
	src := newFakeSource(320, 240)
	defer src.Close()
	patch := image.Rect(110, 60, 130, 80)
	for f := 10; f <= 15; f++ {
		src.addFrame(f, patch)
	}

	cfg := Config{
		Source:       src,
		ROI:          image.Rect(100, 50, 140, 90),
		StartFrame:   10,
		EndFrame:     15,
		Algorithm:    AlgorithmTemplate,
		SearchMargin: 20,
	}
	s, err := Track(context.Background(), cfg)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	progress, results := collect(t, s)
	if s.Err() != nil {
		t.Fatalf("stream error: %v", s.Err())
	}

	if len(progress) != 5 {
		t.Fatalf("expected 5 progress records, got %d", len(progress))
	}
	for i, p := range progress {
		if p.Frame != i+1 || p.Total != 5 {
			t.Fatalf("progress %d = %+v", i, p)
		}
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		if r.Frame != 11+i {
			t.Fatalf("result %d has frame %d, want %d", i, r.Frame, 11+i)
		}
		if r.Confidence < 0.9 {
			t.Fatalf("frame %d confidence %v, want near 1 for a stationary patch", r.Frame, r.Confidence)
		}
		if math.Abs(r.X-120) > 1 || math.Abs(r.Y-70) > 1 {
			t.Fatalf("frame %d match at (%v,%v), want near (120,70)", r.Frame, r.X, r.Y)
		}
	}
}

func TestTemplateFollowsMovingPatch(t *testing.T) {
	src := newFakeSource(320, 240)
	defer src.Close()
	for f := 10; f <= 15; f++ {
		dx := 3 * (f - 10)
		src.addFrame(f, image.Rect(110+dx, 60, 130+dx, 80))
	}

	cfg := Config{
		Source:       src,
		ROI:          image.Rect(100, 50, 140, 90),
		StartFrame:   10,
		EndFrame:     15,
		Algorithm:    AlgorithmTemplate,
		SearchMargin: 20,
	}
	s, err := Track(context.Background(), cfg)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	_, results := collect(t, s)
	if s.Err() != nil {
		t.Fatalf("stream error: %v", s.Err())
	}
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}
	for i, r := range results {
		wantX := 120.0 + 3*float64(i+1)
		if math.Abs(r.X-wantX) > 2 || math.Abs(r.Y-70) > 2 {
			t.Fatalf("frame %d match at (%v,%v), want near (%v,70)", r.Frame, r.X, r.Y, wantX)
		}
	}
}

func TestTemplateWindowCannotFitTemplate(t *testing.T) {
	// Selection hangs off the right edge: the crop clips but the configured
	// center stays outside the reachable window, so the very first tracked
	// frame terminates with a zero-confidence result.
	src := newFakeSource(100, 100)
	defer src.Close()
	released := countFrameReleases(t)
	for f := 10; f <= 15; f++ {
		src.addFrame(f, image.Rect(85, 40, 100, 60))
	}

	cfg := Config{
		Source:       src,
		ROI:          image.Rect(90, 40, 140, 60),
		StartFrame:   10,
		EndFrame:     15,
		Algorithm:    AlgorithmTemplate,
		SearchMargin: 2,
	}
	s, err := Track(context.Background(), cfg)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	progress, results := collect(t, s)
	if s.Err() != nil {
		t.Fatalf("tracking lost must not be an error: %v", s.Err())
	}
	if len(progress) != 1 {
		t.Fatalf("expected 1 progress record, got %d", len(progress))
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one terminal result, got %d", len(results))
	}
	if results[0].Frame != 11 || results[0].Confidence != 0 {
		t.Fatalf("terminal result = %+v, want frame 11 confidence 0", results[0])
	}
	if src.handed != *released {
		t.Fatalf("%d frames handed out, %d released", src.handed, *released)
	}
}

func TestTemplateCancellationStopsProduction(t *testing.T) {
	src := newFakeSource(320, 240)
	defer src.Close()
	released := countFrameReleases(t)
	patch := image.Rect(110, 60, 130, 80)
	for f := 0; f <= 10; f++ {
		src.addFrame(f, patch)
	}

	cfg := Config{
		Source:       src,
		ROI:          image.Rect(100, 50, 140, 90),
		StartFrame:   0,
		EndFrame:     100,
		Algorithm:    AlgorithmTemplate,
		SearchMargin: 20,
	}
	s, err := Track(context.Background(), cfg)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	results := 0
	for s.Next() {
		if _, ok := s.Event().(Result); ok {
			results++
			if results == 3 {
				break
			}
		}
	}
	s.Stop()
	if s.Err() != nil {
		t.Fatalf("cancellation must not surface an error: %v", s.Err())
	}
	if results != 3 {
		t.Fatalf("expected 3 results before stop, got %d", results)
	}
	// The producer never touches frames beyond the one in flight.
	for _, f := range src.reqs {
		if f > 4 {
			t.Fatalf("frame %d requested after cancellation point", f)
		}
	}
	if src.handed != *released {
		t.Fatalf("%d frames handed out, %d released", src.handed, *released)
	}
}

func TestTemplateSeekFailurePropagates(t *testing.T) {
	src := newFakeSource(320, 240)
	defer src.Close()
	released := countFrameReleases(t)
	patch := image.Rect(110, 60, 130, 80)
	for f := 10; f <= 12; f++ {
		src.addFrame(f, patch)
	}
	src.fail[13] = fmt.Errorf("decoder stalled")

	cfg := Config{
		Source:       src,
		ROI:          image.Rect(100, 50, 140, 90),
		StartFrame:   10,
		EndFrame:     15,
		Algorithm:    AlgorithmTemplate,
		SearchMargin: 20,
	}
	s, err := Track(context.Background(), cfg)
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	_, results := collect(t, s)
	if s.Err() == nil {
		t.Fatal("expected seek failure to end the stream with an error")
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results before the failure, got %d", len(results))
	}
	if src.handed != *released {
		t.Fatalf("%d frames handed out, %d released", src.handed, *released)
	}
}

func TestConfigValidate(t *testing.T) {
	src := newFakeSource(100, 100)
	defer src.Close()
	base := Config{Source: src, ROI: image.Rect(10, 10, 30, 30), StartFrame: 0, EndFrame: 5, Algorithm: AlgorithmTemplate, SearchMargin: 10}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"nil source", func(c *Config) { c.Source = nil }},
		{"empty roi", func(c *Config) { c.ROI = image.Rect(5, 5, 5, 9) }},
		{"negative start", func(c *Config) { c.StartFrame = -1 }},
		{"inverted range", func(c *Config) { c.EndFrame = c.StartFrame }},
		{"zero margin", func(c *Config) { c.SearchMargin = 0 }},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
	if _, err := Track(context.Background(), Config{Source: src, ROI: base.ROI, EndFrame: 5, Algorithm: "affine"}); err == nil {
		t.Fatal("unknown algorithm accepted")
	}
}
