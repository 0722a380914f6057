package session

import (
	"fmt"

	"github.com/veillette/gotrack/autotrack"
	"github.com/veillette/gotrack/track"
)

type commitRecord struct {
	point       *track.Point
	replaced    *track.Point
	replacedRow bool
	rowT        float64
	x, y        float64
}

// commit writes the accepted results into the track, frame lists and data
// table, wrapped in exactly one compound undo action. Results without a
// corresponding timeline frame are skipped. Returns the number committed.
func (c *Controller) commit(results []autotrack.Result) int {
	tr := c.deps.Track()
	tl := c.deps.Timeline
	table := c.deps.Table

	var recs []commitRecord
	for _, r := range results {
		fr := tl.Frame(r.Frame)
		if fr == nil {
			continue
		}
		replaced := tr.PointAt(r.Frame)
		replacedRow := false
		if replaced != nil {
			// The replaced point takes its table row with it, otherwise
			// the table grows a second row at the same time.
			replaced.Remove()
			replacedRow = table.RemoveRow(replaced.T(), true)
		}
		t := tl.FrameStart(r.Frame)
		p := track.NewPoint(tr, fr, t, r.X, r.Y)
		tl.Activate(fr)
		table.AddRow(track.Row{T: t, X: r.X, Y: r.Y}, true)
		recs = append(recs, commitRecord{point: p, replaced: replaced, replacedRow: replacedRow, rowT: t, x: r.X, y: r.Y})
	}
	if len(recs) == 0 {
		return 0
	}

	// One undo step for the whole batch: the user performed one operation.
	c.deps.Undo.Push(track.Action{
		Label: fmt.Sprintf("auto track %d frames", len(recs)),
		Undo: func() {
			for i := len(recs) - 1; i >= 0; i-- {
				rec := recs[i]
				rec.point.Remove()
				table.RemoveRow(rec.rowT, true)
				if rec.replaced != nil {
					rec.replaced.UnRemove()
					if rec.replacedRow {
						table.AddRow(track.Row{T: rec.replaced.T(), X: rec.replaced.X, Y: rec.replaced.Y}, true)
					}
				}
			}
			tl.Update()
		},
		Redo: func() {
			for _, rec := range recs {
				if rec.replaced != nil {
					rec.replaced.Remove()
					if rec.replacedRow {
						table.RemoveRow(rec.replaced.T(), true)
					}
				}
				rec.point.UnRemove()
				table.AddRow(track.Row{T: rec.rowT, X: rec.x, Y: rec.y}, true)
			}
			tl.Update()
		},
	})
	tl.Update()
	return len(recs)
}

// PlaceManualPoint puts a single point on the active track at the current
// frame, as its own undo step. Used by the click-to-mark workflow.
func (c *Controller) PlaceManualPoint(x, y float64) *track.Point {
	if c.deps.Track == nil || c.deps.Timeline == nil {
		return nil
	}
	tr := c.deps.Track()
	tl := c.deps.Timeline
	if tr == nil {
		return nil
	}
	fr := tl.Frame(tl.CurrentFrame())
	if fr == nil {
		return nil
	}
	table := c.deps.Table
	replaced := tr.PointAt(fr.Number)
	replacedRow := false
	if replaced != nil {
		replaced.Remove()
		replacedRow = table.RemoveRow(replaced.T(), true)
	}
	t := tl.FrameStart(fr.Number)
	p := track.NewPoint(tr, fr, t, x, y)
	tl.Activate(fr)
	table.AddRow(track.Row{T: t, X: x, Y: y}, false)
	c.deps.Undo.Push(track.Action{
		Label: "add point",
		Undo: func() {
			p.Remove()
			table.RemoveRow(t, false)
			if replaced != nil {
				replaced.UnRemove()
				if replacedRow {
					table.AddRow(track.Row{T: replaced.T(), X: replaced.X, Y: replaced.Y}, true)
				}
			}
			tl.Update()
		},
		Redo: func() {
			if replaced != nil {
				replaced.Remove()
				if replacedRow {
					table.RemoveRow(replaced.T(), true)
				}
			}
			p.UnRemove()
			table.AddRow(track.Row{T: t, X: x, Y: y}, false)
			tl.Update()
		},
	})
	tl.Update()
	return p
}
