package view

import (
	"fmt"
	"time"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// RunStats displays auto-track progress and elapsed run time.
type RunStats interface {
	SetRun(frame, total int, elapsed time.Duration)
}

type runStats struct {
	progressLbl *LabelWidget
	elapsedLbl  *LabelWidget
}

// NewRunStats creates progress and elapsed labels in a grid layout at
// (row, startCol) and (row, startCol+1). If parent is nil, labels are
// positioned relative to the App root.
func NewRunStats(parent *FrameWidget, row, startCol int) RunStats {
	s := &runStats{progressLbl: Label(Width(16)), elapsedLbl: Label(Width(14))}
	if parent != nil {
		Grid(s.progressLbl, In(parent), Row(row), Column(startCol), Sticky("w"), Padx("0.2m"))
		Grid(s.elapsedLbl, In(parent), Row(row), Column(startCol+1), Sticky("w"), Padx("0.2m"))
	} else {
		Grid(s.progressLbl, Row(row), Column(startCol), Sticky("w"), Padx("0.2m"))
		Grid(s.elapsedLbl, Row(row), Column(startCol+1), Sticky("w"), Padx("0.2m"))
	}
	s.progressLbl.Configure(Txt("Tracked: 0/0"))
	s.elapsedLbl.Configure(Txt("Elapsed: 00:00"))
	return s
}

// SetRun updates both labels.
func (s *runStats) SetRun(frame, total int, elapsed time.Duration) {
	if s == nil {
		return
	}
	if s.progressLbl != nil {
		s.progressLbl.Configure(Txt(fmt.Sprintf("Tracked: %d/%d", frame, total)))
	}
	if s.elapsedLbl != nil {
		seconds := int(elapsed.Seconds())
		min, sec := seconds/60, seconds%60
		s.elapsedLbl.Configure(Txt(fmt.Sprintf("Elapsed: %02d:%02d", min, sec)))
	}
}
