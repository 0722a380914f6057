package view

import (
	"image"
	"log/slog"
	"time"

	"github.com/veillette/gotrack/assets"
	"github.com/veillette/gotrack/config"
	"github.com/veillette/gotrack/ui/model"
	"github.com/veillette/gotrack/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// UI abstracts the subset of view operations needed by presenters, enabling
// decoupling from the concrete RootView implementation.
type UI interface {
	SetStatus(text string)
	SetRun(frame, total int, elapsed time.Duration)
	UpdateFrame(img image.Image)
	UpdateMarker(img image.Image)
	Reset()
}

// Callbacks are invoked on user actions. Nil entries are ignored.
type Callbacks struct {
	// OnAutoTrack starts a session; a true return opens the region overlay.
	OnAutoTrack       func() bool
	OnSelection       func(r image.Rectangle)
	OnSelectionCancel func()
	OnCancel          func()
	OnPrevFrame       func()
	OnNextFrame       func()
	OnPlacePoint      func(x, y float64)
	OnUndo            func()
	OnRedo            func()
	OnExport          func()
	OnExit            func()
}

// RootView composes the top-level application layout and wires UI callbacks.
// It owns high-level subviews but exposes minimal exported fields for presenters.
type RootView struct {
	cfg    *config.Config
	logger *slog.Logger

	// Subviews
	Stats   RunStats
	Preview VideoPreview
	Overlay RegionOverlay

	// selection remembers the last confirmed region (video coordinates) so
	// the overlay reopens where the user left it
	selection *model.SelectionModel

	// Widgets
	StatusLabel *LabelWidget
}

func NewRootView(cfg *config.Config, logger *slog.Logger) *RootView {
	return &RootView{cfg: cfg, logger: logger, selection: model.NewSelectionModel()}
}

// Build constructs the layout and hooks up the callbacks.
func (rv *RootView) Build(cb Callbacks) {
	if rv == nil {
		return
	}
	theme.InitStyles()
	pal := theme.CurrentPalette()

	// Row 0: app icon, status label, run stats
	if len(assets.AppIconPNG) > 0 {
		icon := Label(Image(NewPhoto(Data(assets.AppIconPNG))))
		Grid(icon, Row(0), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.3m"))
	}
	rv.StatusLabel = Label(Txt("Status: idle"), Borderwidth(1), Relief("ridge"),
		Background(pal.Accent), Foreground("white"))
	Grid(rv.StatusLabel, Row(0), Column(1), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	rv.Stats = NewRunStats(nil, 0, 3)

	// Row 1: action buttons
	btnFrame := Frame()
	Grid(btnFrame, Row(1), Column(0), Columnspan(5), Sticky("we"), Padx("0.3m"), Pady("0.3m"))
	col := 0
	addBtn := func(label string, fn func()) {
		b := Button(Txt(label), Command(func() {
			if fn != nil {
				fn()
			}
		}))
		Grid(b, In(btnFrame), Row(0), Column(col), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
		col++
	}
	addBtn("<< Frame", cb.OnPrevFrame)
	addBtn("Frame >>", cb.OnNextFrame)
	addBtn("Auto-Track", func() { rv.startSelection(cb) })
	addBtn("Cancel", cb.OnCancel)
	addBtn("Place Point", func() { rv.startPointPlacement(cb) })
	addBtn("Undo", cb.OnUndo)
	addBtn("Redo", cb.OnRedo)
	addBtn("Export CSV", cb.OnExport)
	addBtn("Dark Mode", func() { theme.ToggleDark() })
	addBtn("Exit", cb.OnExit)

	// Row 2: video preview and marker zoom
	w, h := 640, 360
	if rv.cfg != nil && rv.cfg.PreviewW > 0 && rv.cfg.PreviewH > 0 {
		w, h = rv.cfg.PreviewW, rv.cfg.PreviewH
	}
	rv.Preview = NewVideoPreview(2, w, h)
	rv.Overlay = NewRegionOverlay(rv.logger)
}

// startSelection opens the drag overlay after the session enters Selecting.
func (rv *RootView) startSelection(cb Callbacks) {
	if cb.OnAutoTrack == nil || !cb.OnAutoTrack() {
		return
	}
	anchor := rv.overlayAnchor()
	if last := rv.selection.Rect(); !last.Empty() {
		if prev := rv.viewport().FromVideo(last); !prev.Empty() {
			anchor = prev
		}
	}
	rv.Overlay.Open(anchor, func(screen image.Rectangle) {
		video := rv.viewport().ToVideo(screen)
		rv.selection.SetRect(video)
		if cb.OnSelection != nil {
			cb.OnSelection(video)
		}
	}, cb.OnSelectionCancel)
}

// startPointPlacement reuses the overlay as a crosshair: the confirmed
// window's center becomes a manual point at the current frame.
func (rv *RootView) startPointPlacement(cb Callbacks) {
	if cb.OnPlacePoint == nil || rv.Overlay.IsOpen() {
		return
	}
	anchor := rv.overlayAnchor()
	cx, cy := (anchor.Min.X+anchor.Max.X)/2, (anchor.Min.Y+anchor.Max.Y)/2
	small := image.Rect(cx-40, cy-40, cx+40, cy+40)
	rv.Overlay.Open(small, func(screen image.Rectangle) {
		if x, y, ok := rv.viewport().ToVideoPoint(screen); ok {
			cb.OnPlacePoint(x, y)
		}
	}, nil)
}

// previewInset approximates the preview's offset inside the app window
// (icon row, button row, grid padding). Should be replaced with proper Tk
// winfo queries.
var previewInset = image.Pt(8, 96)

func (rv *RootView) overlayAnchor() image.Rectangle {
	origin := rv.viewport().Origin
	return image.Rect(origin.X, origin.Y, origin.X+320, origin.Y+240)
}

func (rv *RootView) viewport() model.Viewport {
	vp := model.Viewport{Origin: previewInset}
	if app, ok := model.ParseGeometry(WmGeometry(App)); ok {
		vp.Origin = app.Min.Add(previewInset)
	}
	if rv.Preview != nil {
		vp.Scale = rv.Preview.DisplayScale()
	}
	return vp
}

// SetStatus updates the status label text.
func (rv *RootView) SetStatus(text string) {
	if rv != nil && rv.StatusLabel != nil {
		rv.StatusLabel.Configure(Txt(text))
	}
}

// SetRun proxies run progress to the stats labels.
func (rv *RootView) SetRun(frame, total int, elapsed time.Duration) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetRun(frame, total, elapsed)
	}
}

// UpdateFrame proxies to the underlying preview view.
func (rv *RootView) UpdateFrame(img image.Image) {
	if rv != nil && rv.Preview != nil {
		rv.Preview.UpdateFrame(img)
	}
}

// UpdateMarker proxies to the underlying preview view.
func (rv *RootView) UpdateMarker(img image.Image) {
	if rv != nil && rv.Preview != nil {
		rv.Preview.UpdateMarker(img)
	}
}

// Reset blanks both preview panes.
func (rv *RootView) Reset() {
	if rv != nil && rv.Preview != nil {
		rv.Preview.Reset()
	}
}
