package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownLabel is returned when a lookup names a label outside its Set.
	ErrUnknownLabel = errors.New("unknown label")
	// ErrMalformed is returned for input tables that cannot be loaded.
	ErrMalformed = errors.New("malformed table")
)

// Set is a dictionary-encoded list of labels (ID -> label, label -> ID).
// Order is the insertion order and never changes once built.
type Set struct {
	labels []string
	ids    map[string]int
}

// NewSet builds a Set, rejecting blank and duplicate labels.
func NewSet(labels ...string) (*Set, error) {
	s := &Set{
		labels: make([]string, 0, len(labels)),
		ids:    make(map[string]int, len(labels)),
	}
	for _, l := range labels {
		if strings.TrimSpace(l) == "" {
			return nil, errors.Wrap(ErrMalformed, "blank label")
		}
		if _, dup := s.ids[l]; dup {
			return nil, errors.Wrapf(ErrMalformed, "duplicate label %q", l)
		}
		s.ids[l] = len(s.labels)
		s.labels = append(s.labels, l)
	}
	return s, nil
}

// MustSet is NewSet for literal data; it panics on invalid labels.
func MustSet(labels ...string) *Set {
	s, err := NewSet(labels...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Set) Len() int { return len(s.labels) }

// Label returns the label with the given ID.
func (s *Set) Label(id int) string { return s.labels[id] }

// Labels returns a copy of the labels in order.
func (s *Set) Labels() []string {
	out := make([]string, len(s.labels))
	copy(out, s.labels)
	return out
}

// Index returns the ID of a label.
func (s *Set) Index(label string) (int, error) {
	id, ok := s.ids[label]
	if !ok {
		return -1, errors.Wrapf(ErrUnknownLabel, "%q", label)
	}
	return id, nil
}

func (s *Set) Contains(label string) bool {
	_, ok := s.ids[label]
	return ok
}

// Table is a dense parameter table keyed by (row label, column label).
// Values are stored flattened: [row * cols + col].
type Table struct {
	Rows   *Set
	Cols   *Set
	values []float64
}

// NewTable returns a zero-filled table over the given sets.
func NewTable(rows, cols *Set) *Table {
	return &Table{
		Rows:   rows,
		Cols:   cols,
		values: make([]float64, rows.Len()*cols.Len()),
	}
}

// TableFromMap builds a table from nested literal data. Every row and column
// label in data must belong to the sets, and every cell must be present.
func TableFromMap(rows, cols *Set, data map[string]map[string]float64) (*Table, error) {
	t := NewTable(rows, cols)
	for r, row := range data {
		ri, err := rows.Index(r)
		if err != nil {
			return nil, errors.Wrap(err, "row")
		}
		for c, v := range row {
			ci, err := cols.Index(c)
			if err != nil {
				return nil, errors.Wrapf(err, "column of row %q", r)
			}
			t.values[ri*cols.Len()+ci] = v
		}
		if len(row) != cols.Len() {
			return nil, errors.Wrapf(ErrMalformed, "row %q has %d of %d columns", r, len(row), cols.Len())
		}
	}
	if len(data) != rows.Len() {
		return nil, errors.Wrapf(ErrMalformed, "table has %d of %d rows", len(data), rows.Len())
	}
	return t, nil
}

// At returns the value by IDs. IDs come from the table's own sets.
func (t *Table) At(row, col int) float64 {
	return t.values[row*t.Cols.Len()+col]
}

// Get returns the value by labels.
func (t *Table) Get(row, col string) (float64, error) {
	ri, err := t.Rows.Index(row)
	if err != nil {
		return 0, err
	}
	ci, err := t.Cols.Index(col)
	if err != nil {
		return 0, err
	}
	return t.At(ri, ci), nil
}

// With returns a copy of the table with one cell replaced.
func (t *Table) With(row, col string, v float64) (*Table, error) {
	ri, err := t.Rows.Index(row)
	if err != nil {
		return nil, err
	}
	ci, err := t.Cols.Index(col)
	if err != nil {
		return nil, err
	}
	out := &Table{Rows: t.Rows, Cols: t.Cols, values: make([]float64, len(t.values))}
	copy(out.values, t.values)
	out.values[ri*t.Cols.Len()+ci] = v
	return out, nil
}

func (t *Table) String() string {
	return fmt.Sprintf("Table(%dx%d)", t.Rows.Len(), t.Cols.Len())
}

// Vector is a per-label scalar over one Set.
type Vector struct {
	Keys   *Set
	values []float64
}

// VectorFromMap builds a vector; every label of keys must be present.
func VectorFromMap(keys *Set, data map[string]float64) (*Vector, error) {
	v := &Vector{Keys: keys, values: make([]float64, keys.Len())}
	for k, x := range data {
		id, err := keys.Index(k)
		if err != nil {
			return nil, err
		}
		v.values[id] = x
	}
	if len(data) != keys.Len() {
		return nil, errors.Wrapf(ErrMalformed, "vector has %d of %d entries", len(data), keys.Len())
	}
	return v, nil
}

func (v *Vector) At(id int) float64 { return v.values[id] }

func (v *Vector) Get(label string) (float64, error) {
	id, err := v.Keys.Index(label)
	if err != nil {
		return 0, err
	}
	return v.values[id], nil
}

// Override replaces one cell of a loaded table.
type Override struct {
	Row   string  `json:"row"`
	Col   string  `json:"col"`
	Value float64 `json:"value"`
}

// WithOverrides applies overrides in order and returns the edited copy.
// The receiver is returned unchanged when there is nothing to apply.
func (t *Table) WithOverrides(overrides ...Override) (*Table, error) {
	out := t
	for _, o := range overrides {
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return nil, errors.Wrapf(ErrMalformed, "override %s/%s is not finite", o.Row, o.Col)
		}
		next, err := out.With(o.Row, o.Col, o.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "override %s/%s", o.Row, o.Col)
		}
		out = next
	}
	return out, nil
}
