package app

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"

	"github.com/veillette/gotrack/config"
	"github.com/veillette/gotrack/debug"
	"github.com/veillette/gotrack/engine"
	"github.com/veillette/gotrack/media"
	"github.com/veillette/gotrack/session"
	"github.com/veillette/gotrack/track"
	"github.com/veillette/gotrack/ui/model"
	"github.com/veillette/gotrack/ui/presenter"
	"github.com/veillette/gotrack/ui/view"
)

const tick = 100 * time.Millisecond

type app struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	timeline *track.Timeline
	trk      *track.Track
	table    *track.DataTable
	undo     *track.UndoManager

	source  *media.VideoSource
	sampler *media.Sampler

	engine     *engine.Loader
	controller *session.Controller

	root           *view.RootView
	prompts        *view.Prompts
	runM           *model.RunModel
	loop           *presenter.Loop
	preview        *presenter.PreviewPresenter
	statePresenter *presenter.StatePresenter

	afterID   string
	debugStop context.CancelFunc
}

// NewApp prepares the root window.
func NewApp(title string, width, height int, cfg *config.Config, cfgPath string, logger *slog.Logger) *app {
	a := &app{cfg: cfg, cfgPath: cfgPath, logger: logger}
	App.WmTitle(title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", width, height))
	return a
}

// Start builds the UI, restores the last video and enters the Tk main loop.
func (a *app) Start(videoPath string) {
	a.trk = track.NewTrack("track A")
	a.table = track.NewDataTable()
	a.undo = track.NewUndoManager()
	a.engine = engine.NewLoader(a.logger)
	a.runM = model.NewRunModel()
	a.prompts = view.NewPrompts()

	a.root = view.NewRootView(a.cfg, a.logger)
	a.root.Build(view.Callbacks{
		OnAutoTrack: func() bool { return a.controller != nil && a.controller.Begin() },
		OnSelection: func(r image.Rectangle) {
			if a.controller != nil {
				a.controller.CompleteSelection(r)
			}
		},
		OnSelectionCancel: func() {
			if a.controller != nil {
				a.controller.CancelSelection()
			}
		},
		OnCancel: func() {
			if a.controller != nil {
				a.controller.Cancel()
			}
		},
		OnPrevFrame: func() { a.step(-1) },
		OnNextFrame: func() { a.step(1) },
		OnPlacePoint: func(x, y float64) {
			if a.controller != nil {
				a.controller.PlaceManualPoint(x, y)
			}
		},
		OnUndo:   func() { a.undo.Undo() },
		OnRedo:   func() { a.undo.Redo() },
		OnExport: a.exportCSV,
		OnExit:   a.exitHandler,
	})

	statePres := presenter.NewStatePresenter(a.root)
	runPres := presenter.NewRunPresenter(a.runM, a.root)
	a.preview = presenter.NewPreviewPresenter(a.logger, nil, func() *track.Track { return a.trk }, a.root)
	a.loop = presenter.NewLoop(statePres, runPres, a.preview, a.prompts, a.scheduleUpdate)
	a.statePresenter = statePres

	if a.cfg.Debug {
		ctx, stop := context.WithCancel(context.Background())
		a.debugStop = stop
		debug.StartMemLogger(ctx, 2*time.Second, a.logger)
		debug.StartGoroutineLogger(ctx, time.Second, a.logger)
	}

	if videoPath == "" {
		videoPath = a.cfg.LastVideo
	}
	if videoPath != "" {
		if err := a.openVideo(videoPath); err != nil {
			a.logger.Error("video open failed", "path", videoPath, "error", err)
		}
	}

	a.scheduleUpdate()
	App.Wait()
}

func (a *app) openVideo(path string) error {
	if a.sampler != nil {
		_ = a.sampler.Close()
		a.sampler = nil
		a.source = nil
	}
	src, err := media.OpenVideo(path)
	if err != nil {
		return err
	}
	a.source = src
	a.sampler = media.NewSampler(src, time.Duration(a.cfg.SeekTimeoutSeconds)*time.Second)
	a.timeline = track.NewTimeline(src.FPS(), src.FrameCount())
	a.timeline.SetOnUpdate(a.preview.MarkDirty)
	a.cfg.LastVideo = path

	// The controller binds the timeline at construction, so a new video gets
	// a new controller. Opening is only reachable while idle.
	a.controller = session.NewController(a.logger, a.cfg, session.Deps{
		Timeline: a.timeline,
		Track:    func() *track.Track { return a.trk },
		Table:    a.table,
		Undo:     a.undo,
		Prompts:  a.prompts,
		Engine:   a.engine,
		Detach:   a.detach,
	})
	a.controller.AddListener(a.statePresenter.OnState)
	a.controller.AddListener(a.onSessionState)
	a.controller.SetProgressFunc(a.runM.OnProgress)

	a.preview.SetTimeline(a.timeline)
	a.preview.SetSource(a.sampler)
	a.logger.Info("video opened", "path", path,
		"frames", src.FrameCount(), "fps", src.FPS())
	return nil
}

func (a *app) onSessionState(prev, next session.State) {
	now := time.Now()
	if next == session.StateRunning {
		a.runM.Start(now)
	}
	if prev == session.StateRunning {
		a.runM.Finish(now)
	}
	if prev == session.StateCommitting && next == session.StateIdle {
		a.preview.MarkDirty()
	}
}

func (a *app) detach() (session.Media, error) {
	if a.source == nil {
		return nil, fmt.Errorf("no video loaded")
	}
	src, err := a.source.Detach()
	if err != nil {
		return nil, err
	}
	return media.NewSampler(src, time.Duration(a.cfg.SeekTimeoutSeconds)*time.Second), nil
}

func (a *app) step(delta int) {
	if a.timeline == nil {
		return
	}
	next := a.timeline.CurrentFrame() + delta
	if next < 0 || next >= a.timeline.FrameCount() {
		return
	}
	a.timeline.Seek(a.timeline.FrameStart(next))
	a.timeline.Update()
}

// exportCSV writes the data table next to the open video.
func (a *app) exportCSV() {
	if a.source == nil || a.table.Len() == 0 {
		return
	}
	path := strings.TrimSuffix(a.source.Path(), filepath.Ext(a.source.Path())) + ".csv"
	f, err := os.Create(path)
	if err != nil {
		a.logger.Error("csv export failed", "path", path, "error", err)
		return
	}
	defer f.Close()
	if err := a.table.WriteCSV(f); err != nil {
		a.logger.Error("csv export failed", "path", path, "error", err)
		return
	}
	a.logger.Info("csv exported", "path", path, "rows", a.table.Len())
}

func (a *app) exitHandler() {
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
	}
	if a.debugStop != nil {
		a.debugStop()
	}
	if a.controller != nil {
		a.controller.Cancel()
		a.cfg.SearchMargin = a.controller.LastMargin()
	}
	if err := a.cfg.Save(a.cfgPath); err != nil {
		a.logger.Error("config save failed", "path", a.cfgPath, "error", err)
	}
	if a.sampler != nil {
		_ = a.sampler.Close()
	}
	Destroy(App)
}

func (a *app) scheduleUpdate() {
	// Schedule the next update using TclAfter to stay on Tk's event loop thread.
	a.afterID = TclAfter(tick, func() { a.loop.Tick() })
}
