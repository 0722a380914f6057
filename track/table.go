package track

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"
	"sync"
)

// rowMatchTolerance absorbs float drift when removing rows by time.
const rowMatchTolerance = 1e-9

// Row is one data-table entry: time plus position.
type Row struct {
	T, X, Y float64
}

// DataTable is the spreadsheet backing store, kept sorted by time. Mutations
// arrive from both the session goroutine and undo callbacks on the UI
// thread, so rows are guarded; the change hook fires outside the lock.
type DataTable struct {
	mu       sync.Mutex
	rows     []Row
	onChange func()
}

func NewDataTable() *DataTable { return &DataTable{} }

// SetOnChange registers the hook fired on non-silent mutations.
func (d *DataTable) SetOnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// AddRow inserts the row in time order. Silent adds skip the change hook;
// batch operations fire it once themselves.
func (d *DataTable) AddRow(r Row, silent bool) {
	d.mu.Lock()
	i := sort.Search(len(d.rows), func(i int) bool { return d.rows[i].T >= r.T })
	d.rows = append(d.rows, Row{})
	copy(d.rows[i+1:], d.rows[i:])
	d.rows[i] = r
	fn := d.onChange
	d.mu.Unlock()
	if !silent && fn != nil {
		fn()
	}
}

// RemoveRow deletes the first row at time t. Returns false when absent.
func (d *DataTable) RemoveRow(t float64, silent bool) bool {
	d.mu.Lock()
	for i, r := range d.rows {
		if math.Abs(r.T-t) <= rowMatchTolerance {
			d.rows = append(d.rows[:i], d.rows[i+1:]...)
			fn := d.onChange
			d.mu.Unlock()
			if !silent && fn != nil {
				fn()
			}
			return true
		}
	}
	d.mu.Unlock()
	return false
}

// Len returns the number of rows.
func (d *DataTable) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rows)
}

// Rows returns a copy of the table contents.
func (d *DataTable) Rows() []Row {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Row, len(d.rows))
	copy(out, d.rows)
	return out
}

// WriteCSV exports the table with a t,x,y header.
func (d *DataTable) WriteCSV(w io.Writer) error {
	rows := d.Rows()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"t", "x", "y"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.FormatFloat(r.T, 'g', -1, 64),
			strconv.FormatFloat(r.X, 'g', -1, 64),
			strconv.FormatFloat(r.Y, 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
