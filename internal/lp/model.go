// Package lp holds a solver-neutral linear model and the solver backends
// that accept it.
//
// A Model is built once per solve: columns (decision variables) are added
// first, then the objective and the constraints, each of which may only
// reference columns already declared. Constraints are addressed by name, so
// a caller can derive a new model with one constraint replaced without
// touching the original:
//
//	m := lp.NewModel("production", lp.Maximize)
//	x, _ := m.AddVar("x", lp.Integer)
//	m.SetObjective(lp.Term{Col: x, Coef: 3})
//	m.AddConstraint(lp.Constraint{Name: "cap", Terms: []lp.Term{{Col: x, Coef: 1}}, Sense: lp.LE, RHS: 4})
//	relaxed, _ := m.ReplaceConstraint(lp.Constraint{Name: "cap", Terms: []lp.Term{{Col: x, Coef: 1}}, Sense: lp.LE, RHS: 5})
package lp

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownVariable is returned when a term references an undeclared column.
	ErrUnknownVariable = errors.New("unknown variable")
	// ErrDuplicateName is returned when a variable or constraint name is reused.
	ErrDuplicateName = errors.New("duplicate name")
	// ErrUnknownConstraint is returned when replacing a constraint that does not exist.
	ErrUnknownConstraint = errors.New("unknown constraint")
)

// VarType is the domain of a decision variable.
type VarType int

const (
	Continuous VarType = iota
	Integer
	Binary
)

func (v VarType) String() string {
	switch v {
	case Continuous:
		return "Continuous"
	case Integer:
		return "Integer"
	case Binary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// ObjSense is the direction of optimization.
type ObjSense int

const (
	Minimize ObjSense = iota
	Maximize
)

func (s ObjSense) String() string {
	if s == Maximize {
		return "Maximize"
	}
	return "Minimize"
}

// Sense is the relation of a constraint row.
type Sense int

const (
	LE Sense = iota
	GE
	EQ
)

func (s Sense) String() string {
	switch s {
	case LE:
		return "<="
	case GE:
		return ">="
	case EQ:
		return "="
	default:
		return "?"
	}
}

// Var is one column of the model. All columns are non-negative; Binary
// columns are bounded above by 1.
type Var struct {
	Name  string
	Type  VarType
	Lower float64
	Upper float64
}

// Term is Coef * column Col.
type Term struct {
	Col  int
	Coef float64
}

type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   float64
}

// Model is a linear or mixed-integer program.
type Model struct {
	Name      string
	Sense     ObjSense
	Objective []Term

	vars     []Var
	varIndex map[string]int
	rows     []Constraint
	rowIndex map[string]int
}

func NewModel(name string, sense ObjSense) *Model {
	return &Model{
		Name:     name,
		Sense:    sense,
		varIndex: make(map[string]int),
		rowIndex: make(map[string]int),
	}
}

// AddVar declares a non-negative column and returns its index.
func (m *Model) AddVar(name string, t VarType) (int, error) {
	if _, dup := m.varIndex[name]; dup {
		return -1, errors.Wrapf(ErrDuplicateName, "variable %s", name)
	}
	upper := math.Inf(1)
	if t == Binary {
		upper = 1
	}
	col := len(m.vars)
	m.vars = append(m.vars, Var{Name: name, Type: t, Lower: 0, Upper: upper})
	m.varIndex[name] = col
	return col, nil
}

// VarIndex looks up a column by name.
func (m *Model) VarIndex(name string) (int, bool) {
	col, ok := m.varIndex[name]
	return col, ok
}

func (m *Model) Var(col int) Var { return m.vars[col] }

func (m *Model) NumVars() int { return len(m.vars) }

func (m *Model) NumConstraints() int { return len(m.rows) }

// Vars returns the declared columns in order. The slice must not be modified.
func (m *Model) Vars() []Var { return m.vars }

// Constraints returns the rows in order. The slice must not be modified.
func (m *Model) Constraints() []Constraint { return m.rows }

// Constraint returns a row by name.
func (m *Model) Constraint(name string) (Constraint, int, bool) {
	i, ok := m.rowIndex[name]
	if !ok {
		return Constraint{}, -1, false
	}
	return m.rows[i], i, true
}

// SetObjective replaces the objective expression.
func (m *Model) SetObjective(terms ...Term) error {
	if err := m.checkTerms("objective", terms); err != nil {
		return err
	}
	m.Objective = terms
	return nil
}

// AddConstraint appends a row. Rows are kept in insertion order.
func (m *Model) AddConstraint(c Constraint) error {
	if _, dup := m.rowIndex[c.Name]; dup {
		return errors.Wrapf(ErrDuplicateName, "constraint %s", c.Name)
	}
	if err := m.checkTerms(c.Name, c.Terms); err != nil {
		return err
	}
	m.rowIndex[c.Name] = len(m.rows)
	m.rows = append(m.rows, c)
	return nil
}

// ReplaceConstraint returns a new model in which the row named c.Name is
// replaced by c, keeping its position. The receiver is left untouched.
func (m *Model) ReplaceConstraint(c Constraint) (*Model, error) {
	i, ok := m.rowIndex[c.Name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConstraint, "%s", c.Name)
	}
	if err := m.checkTerms(c.Name, c.Terms); err != nil {
		return nil, err
	}
	out := m.clone()
	out.rows[i] = c
	return out, nil
}

// Relaxed returns a copy of the model with every column continuous.
// Binary columns keep their [0, 1] bounds.
func (m *Model) Relaxed() *Model {
	out := m.clone()
	for i := range out.vars {
		out.vars[i].Type = Continuous
	}
	return out
}

// clone copies everything a derived model may change; the objective is
// shared since no method mutates it in place.
func (m *Model) clone() *Model {
	out := &Model{
		Name:      m.Name,
		Sense:     m.Sense,
		Objective: m.Objective,
		vars:      make([]Var, len(m.vars)),
		varIndex:  make(map[string]int, len(m.varIndex)),
		rows:      make([]Constraint, len(m.rows)),
		rowIndex:  make(map[string]int, len(m.rowIndex)),
	}
	copy(out.vars, m.vars)
	copy(out.rows, m.rows)
	for k, v := range m.varIndex {
		out.varIndex[k] = v
	}
	for k, v := range m.rowIndex {
		out.rowIndex[k] = v
	}
	return out
}

// IsMIP reports whether any column is integer or binary.
func (m *Model) IsMIP() bool {
	for _, v := range m.vars {
		if v.Type != Continuous {
			return true
		}
	}
	return false
}

// Evaluate computes the objective at the given column values.
func (m *Model) Evaluate(values []float64) float64 {
	return dot(m.Objective, values)
}

// Activity computes the left-hand side of a row at the given column values.
func (c Constraint) Activity(values []float64) float64 {
	return dot(c.Terms, values)
}

// Satisfied reports whether the row holds at values within tol.
func (c Constraint) Satisfied(values []float64, tol float64) bool {
	lhs := c.Activity(values)
	switch c.Sense {
	case LE:
		return lhs <= c.RHS+tol
	case GE:
		return lhs >= c.RHS-tol
	default:
		return math.Abs(lhs-c.RHS) <= tol
	}
}

func (m *Model) String() string {
	return fmt.Sprintf("%s(%s, %d vars, %d rows)", m.Name, m.Sense, len(m.vars), len(m.rows))
}

func (m *Model) checkTerms(owner string, terms []Term) error {
	for _, t := range terms {
		if t.Col < 0 || t.Col >= len(m.vars) {
			return errors.Wrapf(ErrUnknownVariable, "%s references column %d", owner, t.Col)
		}
	}
	return nil
}

func dot(terms []Term, values []float64) float64 {
	var sum float64
	for _, t := range terms {
		if t.Col < len(values) {
			sum += t.Coef * values[t.Col]
		}
	}
	return sum
}
