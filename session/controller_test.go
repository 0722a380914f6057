package session

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/veillette/gotrack/autotrack"
	"github.com/veillette/gotrack/config"
	"github.com/veillette/gotrack/track"
)

var discardLogger = slog.New(slog.NewTextHandler(&discardWriter{}, nil))

type discardWriter struct{}

func (d *discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// scriptedPrompter answers dialogs from prepared scripts and records what
// the controller asked.
type scriptedPrompter struct {
	mu        sync.Mutex
	alerts    []string
	confirms  []bool
	forms     []func(FormDefaults) (FormValues, bool)
	formCalls []FormDefaults
}

func (p *scriptedPrompter) Alert(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, msg)
}

func (p *scriptedPrompter) Confirm(string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.confirms) == 0 {
		return true
	}
	ans := p.confirms[0]
	p.confirms = p.confirms[1:]
	return ans
}

func (p *scriptedPrompter) TrackingForm(def FormDefaults) (FormValues, bool) {
	p.mu.Lock()
	p.formCalls = append(p.formCalls, def)
	if len(p.forms) == 0 {
		p.mu.Unlock()
		return FormValues{}, false
	}
	fn := p.forms[0]
	p.forms = p.forms[1:]
	p.mu.Unlock()
	return fn(def)
}

func (p *scriptedPrompter) lastAlert() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.alerts) == 0 {
		return ""
	}
	return p.alerts[len(p.alerts)-1]
}

func (p *scriptedPrompter) alertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

// fakeMedia serves synthetic grayscale frames with an optional per-frame
// delay so tests can cancel mid-run.
type fakeMedia struct {
	mu     sync.Mutex
	bounds image.Rectangle
	frames map[int]gocv.Mat
	delay  time.Duration
	closed bool
}

func newFakeMedia(w, h int) *fakeMedia {
	return &fakeMedia{bounds: image.Rect(0, 0, w, h), frames: make(map[int]gocv.Mat)}
}

// addFrame stores a black frame with a textured patch at r.
func (f *fakeMedia) addFrame(frame int, r image.Rectangle) {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), f.bounds.Dy(), f.bounds.Dx(), gocv.MatTypeCV8U)
	p := r.Intersect(f.bounds)
	for y := p.Min.Y; y < p.Max.Y; y++ {
		for x := p.Min.X; x < p.Max.X; x++ {
			m.SetUCharAt(y, x, uint8(120+(((x-r.Min.X)+3*(y-r.Min.Y))%8)*15))
		}
	}
	f.frames[frame] = m
}

func (f *fakeMedia) GrayFrame(ctx context.Context, frame int) (gocv.Mat, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return gocv.Mat{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.frames[frame]
	if !ok {
		return gocv.Mat{}, fmt.Errorf("fake media: no frame %d", frame)
	}
	return m.Clone(), nil
}

func (f *fakeMedia) Bounds() image.Rectangle    { return f.bounds }
func (f *fakeMedia) Warm(context.Context) error { return nil }

func (f *fakeMedia) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for _, m := range f.frames {
		m.Close()
	}
	f.frames = map[int]gocv.Mat{}
	return nil
}

func (f *fakeMedia) wasClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type readyEngine struct{}

func (readyEngine) Ensure(context.Context) error { return nil }

type sessionEnv struct {
	controller *Controller
	timeline   *track.Timeline
	track      *track.Track
	table      *track.DataTable
	undo       *track.UndoManager
	prompts    *scriptedPrompter
	media      *fakeMedia
}

func newSessionEnv(t *testing.T) *sessionEnv {
	t.Helper()
	media := newFakeMedia(320, 240)
	patch := image.Rect(110, 60, 130, 80)
	for f := 0; f <= 19; f++ {
		media.addFrame(f, patch)
	}
	t.Cleanup(func() { _ = media.Close() })

	env := &sessionEnv{
		timeline: track.NewTimeline(30, 20),
		track:    track.NewTrack("object"),
		table:    track.NewDataTable(),
		undo:     track.NewUndoManager(),
		prompts:  &scriptedPrompter{},
		media:    media,
	}
	env.controller = NewController(discardLogger, config.DefaultConfig(), Deps{
		Timeline: env.timeline,
		Track:    func() *track.Track { return env.track },
		Table:    env.table,
		Undo:     env.undo,
		Prompts:  env.prompts,
		Engine:   readyEngine{},
		Detach:   func() (Media, error) { return media, nil },
	})
	return env
}

// submitForm returns a form script that fills in fixed values.
func submitForm(start, end, margin int, alg autotrack.Algorithm) func(FormDefaults) (FormValues, bool) {
	return func(FormDefaults) (FormValues, bool) {
		return FormValues{
			Start:        strconv.Itoa(start),
			End:          strconv.Itoa(end),
			SearchMargin: strconv.Itoa(margin),
			Algorithm:    alg,
		}, true
	}
}

// waitFor polls cond until it holds or the timeout passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout: %s", msg)
}

func runToCompletion(t *testing.T, env *sessionEnv, sel image.Rectangle) {
	t.Helper()
	if !env.controller.Begin() {
		t.Fatalf("begin failed: %s", env.prompts.lastAlert())
	}
	before := env.prompts.alertCount()
	env.controller.CompleteSelection(sel)
	waitFor(t, 5*time.Second, func() bool {
		return env.prompts.alertCount() > before && env.controller.State() == StateIdle
	}, "session did not finish")
}

func TestSessionCommitsBatchWithSingleUndo(t *testing.T) {
	env := newSessionEnv(t)
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		submitForm(10, 15, 20, autotrack.AlgorithmTemplate),
	}
	runToCompletion(t, env, image.Rect(100, 50, 140, 90))

	if got := env.track.PointCount(); got != 5 {
		t.Fatalf("expected 5 committed points, got %d", got)
	}
	if env.table.Len() != 5 {
		t.Fatalf("expected 5 table rows, got %d", env.table.Len())
	}
	if !strings.Contains(env.prompts.lastAlert(), "5 frames tracked") {
		t.Fatalf("unexpected summary: %q", env.prompts.lastAlert())
	}

	// The whole batch is one undo step.
	if !env.undo.Undo() {
		t.Fatal("no undo action registered")
	}
	if env.undo.CanUndo() {
		t.Fatal("batch produced more than one undo action")
	}
	if env.track.PointCount() != 0 || env.table.Len() != 0 {
		t.Fatalf("undo left %d points, %d rows", env.track.PointCount(), env.table.Len())
	}
	if !env.undo.Redo() {
		t.Fatal("redo unavailable")
	}
	if env.track.PointCount() != 5 || env.table.Len() != 5 {
		t.Fatalf("redo restored %d points, %d rows", env.track.PointCount(), env.table.Len())
	}
}

func TestSessionUndoRestoresOverwrittenPoints(t *testing.T) {
	env := newSessionEnv(t)
	fr := env.timeline.Frame(12)
	old := track.NewPoint(env.track, fr, env.timeline.FrameStart(12), 7, 8)
	env.prompts.confirms = []bool{true}
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		submitForm(10, 15, 20, autotrack.AlgorithmTemplate),
	}
	runToCompletion(t, env, image.Rect(100, 50, 140, 90))

	if env.track.PointAt(12) == old {
		t.Fatal("existing point was not overwritten")
	}
	env.undo.Undo()
	if env.track.PointAt(12) != old {
		t.Fatal("undo did not restore the overwritten point")
	}
	if old.X != 7 || old.Y != 8 {
		t.Fatalf("restored point data changed: (%v,%v)", old.X, old.Y)
	}
	env.undo.Redo()
	if p := env.track.PointAt(12); p == old || p == nil {
		t.Fatal("redo did not re-apply the tracked point")
	}
}

func TestSessionDecliningOverwriteReturnsToForm(t *testing.T) {
	env := newSessionEnv(t)
	track.NewPoint(env.track, env.timeline.Frame(12), env.timeline.FrameStart(12), 7, 8)
	env.prompts.confirms = []bool{false, true}
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		submitForm(10, 15, 20, autotrack.AlgorithmTemplate),
		submitForm(10, 15, 20, autotrack.AlgorithmTemplate),
	}
	runToCompletion(t, env, image.Rect(100, 50, 140, 90))
	if len(env.prompts.formCalls) != 2 {
		t.Fatalf("declining overwrite should reshow the form, saw %d calls", len(env.prompts.formCalls))
	}
	if env.track.PointCount() != 5 {
		t.Fatalf("expected run to proceed after second confirm, got %d points", env.track.PointCount())
	}
}

func TestSessionInvalidInputReturnsToForm(t *testing.T) {
	env := newSessionEnv(t)
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		func(FormDefaults) (FormValues, bool) {
			return FormValues{Start: "15", End: "10", SearchMargin: "20", Algorithm: autotrack.AlgorithmTemplate}, true
		},
		func(def FormDefaults) (FormValues, bool) {
			if def.Message == "" {
				return FormValues{}, false
			}
			return submitForm(10, 15, 20, autotrack.AlgorithmTemplate)(def)
		},
	}
	runToCompletion(t, env, image.Rect(100, 50, 140, 90))
	if len(env.prompts.formCalls) != 2 {
		t.Fatalf("invalid input should reshow the form, saw %d calls", len(env.prompts.formCalls))
	}
	if env.track.PointCount() != 5 {
		t.Fatalf("expected successful retry, got %d points", env.track.PointCount())
	}
}

func TestSessionPreconditions(t *testing.T) {
	env := newSessionEnv(t)
	env.controller.deps.Track = func() *track.Track { return nil }
	if env.controller.Begin() {
		t.Fatal("begin must fail without a track")
	}
	if !strings.Contains(env.prompts.lastAlert(), "track") {
		t.Fatalf("unexpected alert: %q", env.prompts.lastAlert())
	}
	if env.controller.State() != StateIdle {
		t.Fatalf("state %v after failed precondition", env.controller.State())
	}
}

func TestSessionRejectsTinySelection(t *testing.T) {
	env := newSessionEnv(t)
	if !env.controller.Begin() {
		t.Fatal("begin failed")
	}
	env.controller.CompleteSelection(image.Rect(10, 10, 13, 13))
	waitFor(t, time.Second, func() bool { return env.controller.State() == StateIdle }, "no return to idle")
	if !strings.Contains(env.prompts.lastAlert(), "too small") {
		t.Fatalf("unexpected alert: %q", env.prompts.lastAlert())
	}
	if env.track.PointCount() != 0 {
		t.Fatal("tiny selection must not produce points")
	}
}

func TestSessionCancelKeepsPartialResults(t *testing.T) {
	env := newSessionEnv(t)
	env.media.delay = 40 * time.Millisecond
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		submitForm(0, 19, 20, autotrack.AlgorithmTemplate),
	}
	seen := make(chan int, 32)
	env.controller.SetProgressFunc(func(frame, total int) { seen <- frame })

	if !env.controller.Begin() {
		t.Fatal("begin failed")
	}
	before := env.prompts.alertCount()
	env.controller.CompleteSelection(image.Rect(100, 50, 140, 90))

	// Cancel once a couple of frames are through.
	for f := range seen {
		if f >= 3 {
			env.controller.Cancel()
			break
		}
	}
	waitFor(t, 5*time.Second, func() bool {
		return env.prompts.alertCount() > before && env.controller.State() == StateIdle
	}, "session did not finish after cancel")

	if !strings.Contains(env.prompts.lastAlert(), "cancelled") {
		t.Fatalf("expected cancellation notice, got %q", env.prompts.lastAlert())
	}
	got := env.track.PointCount()
	if got < 1 || got >= 19 {
		t.Fatalf("expected partial results, got %d points", got)
	}
	if env.table.Len() != got {
		t.Fatalf("table rows %d do not match points %d", env.table.Len(), got)
	}
}

func TestSessionLowConfidenceStopsEarly(t *testing.T) {
	env := newSessionEnv(t)
	// Optical flow seeded on featureless background loses immediately.
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		submitForm(10, 15, 20, autotrack.AlgorithmOpticalFlow),
	}
	runToCompletion(t, env, image.Rect(200, 150, 240, 190))
	if env.track.PointCount() != 0 {
		t.Fatalf("lost-immediately run should keep 0 points, got %d", env.track.PointCount())
	}
	if !strings.Contains(env.prompts.lastAlert(), "Tracking lost") {
		t.Fatalf("unexpected summary: %q", env.prompts.lastAlert())
	}
}

func TestSessionRestoresPlayheadAndClosesMedia(t *testing.T) {
	env := newSessionEnv(t)
	env.timeline.Seek(0.2)
	playhead := env.timeline.CurrentTime()
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		submitForm(10, 15, 20, autotrack.AlgorithmTemplate),
	}
	runToCompletion(t, env, image.Rect(100, 50, 140, 90))
	waitFor(t, time.Second, func() bool { return env.media.wasClosed() }, "detached media not closed")
	if env.timeline.CurrentTime() != playhead {
		t.Fatalf("playhead moved: %v != %v", env.timeline.CurrentTime(), playhead)
	}
}

func TestManualPointReplacementKeepsSingleRow(t *testing.T) {
	env := newSessionEnv(t)
	env.timeline.Seek(env.timeline.FrameStart(4))

	first := env.controller.PlaceManualPoint(50, 60)
	if first == nil || env.table.Len() != 1 {
		t.Fatalf("first placement: point %v, %d rows", first, env.table.Len())
	}
	if env.controller.PlaceManualPoint(70, 80) == nil {
		t.Fatal("second placement failed")
	}
	if env.table.Len() != 1 {
		t.Fatalf("replacing a point left %d rows at one time", env.table.Len())
	}
	if rows := env.table.Rows(); rows[0].X != 70 || rows[0].Y != 80 {
		t.Fatalf("row not updated by replacement: %+v", rows[0])
	}

	env.undo.Undo()
	if env.table.Len() != 1 {
		t.Fatalf("undoing a replacement left %d rows", env.table.Len())
	}
	if rows := env.table.Rows(); rows[0].X != 50 || rows[0].Y != 60 {
		t.Fatalf("undo did not restore the original row: %+v", rows[0])
	}
	if env.track.PointAt(4) != first {
		t.Fatal("undo did not restore the original point")
	}

	env.undo.Redo()
	if env.table.Len() != 1 {
		t.Fatalf("redoing a replacement left %d rows", env.table.Len())
	}
	if rows := env.table.Rows(); rows[0].X != 70 || rows[0].Y != 80 {
		t.Fatalf("redo did not re-apply the replacement row: %+v", rows[0])
	}

	env.undo.Undo()
	env.undo.Undo()
	if env.table.Len() != 0 || env.track.PointCount() != 0 {
		t.Fatalf("full unwind left %d rows, %d points", env.table.Len(), env.track.PointCount())
	}
}

func TestSessionOverwriteReplacesTableRow(t *testing.T) {
	env := newSessionEnv(t)
	env.timeline.Seek(env.timeline.FrameStart(12))
	if env.controller.PlaceManualPoint(7, 8) == nil {
		t.Fatal("manual placement failed")
	}
	env.prompts.confirms = []bool{true}
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		submitForm(10, 15, 20, autotrack.AlgorithmTemplate),
	}
	runToCompletion(t, env, image.Rect(100, 50, 140, 90))

	// Frames 11..15, with the overwritten frame 12 contributing one row,
	// not two at the same time.
	if env.table.Len() != 5 {
		t.Fatalf("expected 5 rows after overwrite, got %d", env.table.Len())
	}
	env.undo.Undo()
	if env.table.Len() != 1 {
		t.Fatalf("batch undo left %d rows", env.table.Len())
	}
	if rows := env.table.Rows(); rows[0].X != 7 || rows[0].Y != 8 {
		t.Fatalf("batch undo did not restore the manual row: %+v", rows[0])
	}
	env.undo.Redo()
	if env.table.Len() != 5 {
		t.Fatalf("batch redo left %d rows", env.table.Len())
	}
}

func TestAcceptedMarginBecomesNextDefault(t *testing.T) {
	env := newSessionEnv(t)
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		submitForm(10, 15, 33, autotrack.AlgorithmTemplate),
	}
	runToCompletion(t, env, image.Rect(100, 50, 140, 90))
	if got := env.controller.LastMargin(); got != 33 {
		t.Fatalf("accepted margin not remembered: %d", got)
	}

	env.prompts.confirms = []bool{true}
	env.prompts.forms = []func(FormDefaults) (FormValues, bool){
		submitForm(10, 15, 33, autotrack.AlgorithmTemplate),
	}
	runToCompletion(t, env, image.Rect(100, 50, 140, 90))
	env.prompts.mu.Lock()
	defer env.prompts.mu.Unlock()
	if len(env.prompts.formCalls) < 2 || env.prompts.formCalls[1].SearchMargin != 33 {
		t.Fatalf("second form not seeded with the accepted margin: %+v", env.prompts.formCalls)
	}
}
