package view

import (
	"fmt"
	"strings"
	"sync"

	"github.com/veillette/gotrack/autotrack"
	"github.com/veillette/gotrack/session"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// Prompts implements session.Prompter with modal toplevel dialogs. The
// session goroutine blocks on a reply channel; widget creation only happens
// in Pump, which the update loop runs on the Tk thread. One dialog is shown
// at a time.
type Prompts struct {
	mu    sync.Mutex
	queue []promptReq
	open  bool
}

type promptKind int

const (
	promptAlert promptKind = iota
	promptConfirm
	promptForm
)

type formOutcome struct {
	values session.FormValues
	ok     bool
}

type promptReq struct {
	kind      promptKind
	msg       string
	def       session.FormDefaults
	ackReply  chan struct{}
	boolReply chan bool
	formReply chan formOutcome
}

var _ session.Prompter = (*Prompts)(nil)

// NewPrompts returns a ready Prompts pump.
func NewPrompts() *Prompts { return &Prompts{} }

// Alert blocks until the user acknowledges the message.
func (p *Prompts) Alert(msg string) {
	req := promptReq{kind: promptAlert, msg: msg, ackReply: make(chan struct{}, 1)}
	p.enqueue(req)
	<-req.ackReply
}

// Confirm blocks until the user answers yes or no.
func (p *Prompts) Confirm(msg string) bool {
	req := promptReq{kind: promptConfirm, msg: msg, boolReply: make(chan bool, 1)}
	p.enqueue(req)
	return <-req.boolReply
}

// TrackingForm blocks until the form is submitted or dismissed.
func (p *Prompts) TrackingForm(def session.FormDefaults) (session.FormValues, bool) {
	req := promptReq{kind: promptForm, def: def, formReply: make(chan formOutcome, 1)}
	p.enqueue(req)
	out := <-req.formReply
	return out.values, out.ok
}

func (p *Prompts) enqueue(req promptReq) {
	p.mu.Lock()
	p.queue = append(p.queue, req)
	p.mu.Unlock()
}

// Pump shows the next queued dialog. Call from the UI thread only.
func (p *Prompts) Pump() {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.open || len(p.queue) == 0 {
		p.mu.Unlock()
		return
	}
	req := p.queue[0]
	p.queue = p.queue[1:]
	p.open = true
	p.mu.Unlock()

	switch req.kind {
	case promptAlert:
		p.alertDialog(req)
	case promptConfirm:
		p.confirmDialog(req)
	case promptForm:
		p.formDialog(req)
	}
}

func (p *Prompts) finish() {
	p.mu.Lock()
	p.open = false
	p.mu.Unlock()
}

func (p *Prompts) alertDialog(req promptReq) {
	win := App.Toplevel()
	win.WmTitle("Auto-Track")
	msg := win.Label(Txt(req.msg), Anchor("w"))
	Grid(msg, Row(0), Column(0), Sticky("we"), Padx("1m"), Pady("1m"))
	done := func() {
		Destroy(win)
		p.finish()
		req.ackReply <- struct{}{}
	}
	ok := win.Button(Txt("OK"), Command(done))
	Grid(ok, Row(1), Column(0), Sticky("e"), Padx("1m"), Pady("0.5m"))
	Bind(win, "<Return>", Command(done))
	Bind(win, "<Escape>", Command(done))
}

func (p *Prompts) confirmDialog(req promptReq) {
	win := App.Toplevel()
	win.WmTitle("Confirm")
	msg := win.Label(Txt(req.msg), Anchor("w"))
	Grid(msg, Row(0), Column(0), Columnspan(2), Sticky("we"), Padx("1m"), Pady("1m"))
	answer := func(v bool) func() {
		return func() {
			Destroy(win)
			p.finish()
			req.boolReply <- v
		}
	}
	yes := win.Button(Txt("Yes"), Command(answer(true)))
	Grid(yes, Row(1), Column(0), Sticky("e"), Padx("0.5m"), Pady("0.5m"))
	no := win.Button(Txt("No"), Command(answer(false)))
	Grid(no, Row(1), Column(1), Sticky("w"), Padx("0.5m"), Pady("0.5m"))
	Bind(win, "<Return>", Command(answer(true)))
	Bind(win, "<Escape>", Command(answer(false)))
}

var formAlgorithms = []string{
	string(autotrack.AlgorithmTemplate),
	string(autotrack.AlgorithmOpticalFlow),
}

func (p *Prompts) formDialog(req promptReq) {
	def := req.def
	win := App.Toplevel()
	win.WmTitle("Auto-Track Settings")
	row := 0
	if def.Message != "" {
		note := win.Label(Txt(def.Message), Anchor("w"), Foreground("#b91c1c"))
		Grid(note, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("1m"), Pady("0.5m"))
		row++
	}
	fields := make(map[string]*TextWidget)
	makeRow := func(id, label, value string) {
		lbl := win.Label(Txt(label), Anchor("w"))
		Grid(lbl, Row(row), Column(0), Sticky("w"), Padx("1m"), Pady("0.15m"))
		w := win.Text(Height(1), Width(12))
		Grid(w, Row(row), Column(1), Sticky("we"), Padx("1m"), Pady("0.15m"))
		w.Delete("1.0", END)
		w.Insert("1.0", value)
		fields[id] = w
		row++
	}
	makeRow("start", "Start Frame", fmt.Sprintf("%d", def.Start))
	makeRow("end", "End Frame", fmt.Sprintf("%d", def.End))
	makeRow("margin", "Search Margin", fmt.Sprintf("%d", def.SearchMargin))

	algoLbl := win.Label(Txt("Algorithm"), Anchor("w"))
	Grid(algoLbl, Row(row), Column(0), Sticky("w"), Padx("1m"), Pady("0.15m"))
	algo := win.TCombobox(Values(formAlgorithms), Width(14))
	Grid(algo, Row(row), Column(1), Sticky("we"), Padx("1m"), Pady("0.15m"))
	algoIdx := 0
	for i, name := range formAlgorithms {
		if name == string(def.Algorithm) {
			algoIdx = i
		}
	}
	algo.Current(algoIdx)
	row++

	text := func(id string) string {
		w := fields[id]
		if w == nil {
			return ""
		}
		return strings.TrimSpace(strings.Join(w.Get("1.0", END), ""))
	}
	submit := func(ok bool) func() {
		return func() {
			out := formOutcome{ok: ok}
			if ok {
				out.values = session.FormValues{
					Start:        text("start"),
					End:          text("end"),
					SearchMargin: text("margin"),
					Algorithm:    selectedAlgorithm(algo),
				}
			}
			Destroy(win)
			p.finish()
			req.formReply <- out
		}
	}
	start := win.Button(Txt("Start"), Command(submit(true)))
	Grid(start, Row(row), Column(0), Sticky("e"), Padx("0.5m"), Pady("0.5m"))
	cancel := win.Button(Txt("Cancel"), Command(submit(false)))
	Grid(cancel, Row(row), Column(1), Sticky("w"), Padx("0.5m"), Pady("0.5m"))
	Bind(win, "<Return>", Command(submit(true)))
	Bind(win, "<Escape>", Command(submit(false)))
}

func selectedAlgorithm(combo *TComboboxWidget) autotrack.Algorithm {
	idxStr := combo.Current(nil)
	if i, err := parseIndex(idxStr); err == nil && i >= 0 && i < len(formAlgorithms) {
		return autotrack.Algorithm(formAlgorithms[i])
	}
	return autotrack.AlgorithmTemplate
}

func parseIndex(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &i)
	return i, err
}
