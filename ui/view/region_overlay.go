package view

import (
	"fmt"
	"image"
	"log/slog"

	"github.com/veillette/gotrack/ui/model"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders
	. "modernc.org/tk9.0"
)

// RegionOverlay manages a transparent, resizable toplevel the user drags
// over the preview to mark a rectangle. Confirm reports the final window
// geometry in screen coordinates; mapping into video coordinates is the
// caller's job.
type RegionOverlay interface {
	Open(initial image.Rectangle, onConfirm func(screen image.Rectangle), onCancel func())
	Close()
	IsOpen() bool
}

type regionOverlay struct {
	logger    *slog.Logger
	win       *ToplevelWidget
	onConfirm func(image.Rectangle)
	onCancel  func()
}

const overlayKeyColor = "#008080"

// NewRegionOverlay creates a new overlay manager.
func NewRegionOverlay(logger *slog.Logger) RegionOverlay {
	return &regionOverlay{logger: logger}
}

func (v *regionOverlay) Open(initial image.Rectangle, onConfirm func(image.Rectangle), onCancel func()) {
	if v.win != nil {
		WmGeometry(v.win.Window)
		return
	}
	v.onConfirm = onConfirm
	v.onCancel = onCancel
	win := App.Toplevel(Borderwidth(2), Background(overlayKeyColor))
	win.WmTitle("Select Region")
	v.win = win
	if initial.Empty() {
		initial = image.Rect(200, 200, 520, 440)
	}
	WmGeometry(win.Window, fmt.Sprintf("%dx%d+%d+%d", initial.Dx(), initial.Dy(), initial.Min.X, initial.Min.Y))
	WmAttributes(win.Window, "-topmost", 1)
	WmAttributes(win.Window, "-transparentcolor", overlayKeyColor)
	GridRowConfigure(win.Window, 0, Weight(1))
	GridColumnConfigure(win.Window, 0, Weight(0))
	GridColumnConfigure(win.Window, 1, Weight(1))
	GridColumnConfigure(win.Window, 2, Weight(0))
	left := win.Frame(Width(4), Background("#FFFFFF"))
	Grid(left, Row(0), Column(0), Sticky("ns"))
	center := win.Frame(Background(overlayKeyColor))
	Grid(center, Row(0), Column(1), Sticky("nsew"))
	right := win.Frame(Width(4), Background("#FFFFFF"))
	Grid(right, Row(0), Column(2), Sticky("ns"))
	controls := win.Frame()
	Grid(controls, Row(1), Column(0), Columnspan(3), Sticky("we"))
	confirm := win.Button(Txt("Confirm [Enter]"), Command(v.confirm))
	Grid(confirm, In(controls), Row(0), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	cancel := win.Button(Txt("Cancel [Esc]"), Command(v.cancel))
	Grid(cancel, In(controls), Row(0), Column(1), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	Bind(win, "<Return>", Command(v.confirm))
	Bind(win, "<Escape>", Command(v.cancel))
}

func (v *regionOverlay) confirm() {
	if v.win == nil {
		return
	}
	geom := WmGeometry(v.win.Window)
	rect, ok := model.ParseGeometry(geom)
	done := v.onConfirm
	v.destroy()
	if !ok {
		if v.logger != nil {
			v.logger.Error("overlay geometry parse failed", "geometry", geom)
		}
		return
	}
	if done != nil {
		done(rect)
	}
}

func (v *regionOverlay) cancel() {
	done := v.onCancel
	v.destroy()
	if done != nil {
		done()
	}
}

func (v *regionOverlay) Close() { v.destroy() }

func (v *regionOverlay) IsOpen() bool { return v != nil && v.win != nil }

func (v *regionOverlay) destroy() {
	if v.win != nil {
		Destroy(v.win)
		v.win = nil
	}
	v.onConfirm = nil
	v.onCancel = nil
}
