package ephemeris

import (
	"fmt"
	"sort"

	"trailgo/pkg/vmath"
)

// Row is one tabulated position.
type Row struct {
	Time     float64
	Position vmath.Vec3
}

// Track is a tabulated body relative to Parent.
type Track struct {
	Parent string
	Rows   []Row
}

// Table is a Source backed by tabulated samples held in memory.
// Positions between rows are linearly interpolated.
type Table struct {
	tracks map[string]Track
}

// NewTable creates a Table. Rows are sorted by time.
func NewTable(tracks map[string]Track) *Table {
	for name, tr := range tracks {
		sort.Slice(tr.Rows, func(i, j int) bool { return tr.Rows[i].Time < tr.Rows[j].Time })
		tracks[name] = tr
	}
	return &Table{tracks: tracks}
}

// Has implements Source.
func (tb *Table) Has(body string) bool {
	_, ok := tb.tracks[body]
	return ok
}

// Coverage returns the first and last tabulated time for body.
func (tb *Table) Coverage(body string) (start, end float64, ok bool) {
	tr, found := tb.tracks[body]
	if !found || len(tr.Rows) == 0 {
		return 0, 0, false
	}
	return tr.Rows[0].Time, tr.Rows[len(tr.Rows)-1].Time, true
}

// Relative implements Source.
func (tb *Table) Relative(body string, t float64) (string, vmath.Vec3, error) {
	tr, ok := tb.tracks[body]
	if !ok {
		return "", vmath.Vec3{}, fmt.Errorf("%w: %s", ErrUnknownBody, body)
	}
	rows := tr.Rows
	if len(rows) < 2 || t < rows[0].Time || t > rows[len(rows)-1].Time {
		return "", vmath.Vec3{}, fmt.Errorf("%w: %s at %.0f", ErrDataUnavailable, body, t)
	}

	i := sort.Search(len(rows), func(i int) bool { return rows[i].Time >= t })
	if rows[i].Time == t {
		return tr.Parent, rows[i].Position, nil
	}
	a, b := rows[i-1], rows[i]
	f := (t - a.Time) / (b.Time - a.Time)
	return tr.Parent, vmath.Lerp(a.Position, b.Position, f), nil
}
