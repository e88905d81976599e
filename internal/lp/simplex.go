package lp

import (
	"context"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	convexlp "gonum.org/v1/gonum/optimize/convex/lp"
	"k8s.io/klog/v2"
)

const (
	// zeroTol is the magnitude under which solved values are reported as 0.
	zeroTol = 1e-9
	// defaultSimplexTol is the pivoting tolerance used when Simplex.Tol is 0.
	defaultSimplexTol = 1e-10
)

// Simplex solves the continuous relaxation of a model in-process with
// gonum's simplex routine. Integrality is dropped, so every solution it
// returns has Relaxed set. Row duals come from solving the dual program with
// the same routine.
type Simplex struct {
	// Tol is the pivoting tolerance passed to gonum.
	Tol float64
}

func (s *Simplex) Name() string { return "simplex" }

func (s *Simplex) tol() float64 {
	if s.Tol > 0 {
		return s.Tol
	}
	return defaultSimplexTol
}

// standardForm is min c'x s.t. Ax = b, x >= 0 together with the bookkeeping
// needed to map the answer back to the model.
type standardForm struct {
	c []float64
	a *mat.Dense
	b []float64

	// cols[j] is the standard-form column of model column j, -1 if dropped.
	cols []int
	// rows[i] is the standard-form row of model row i, -1 if dropped.
	rows []int
	// flip[r] is -1 when standard-form row r was negated to make b >= 0.
	flip []float64
}

func (s *Simplex) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sol := &Solution{Backend: s.Name(), Relaxed: true}

	sf, status, msg := buildStandardForm(m)
	if status != StatusNotSolved {
		sol.Status, sol.Message = status, msg
		return sol, nil
	}

	sol.Values = make([]float64, m.NumVars())
	if sf.a == nil {
		// Every column was dropped and sits at 0.
		sol.Status = StatusOptimal
		sol.Duals = make([]float64, m.NumConstraints())
		return sol, nil
	}

	optF, x, err := runSimplex(sf.c, sf.a, sf.b, s.tol())
	if err != nil {
		sol.Values = nil
		sol.Status, sol.Message = simplexStatus(err), err.Error()
		return sol, nil
	}

	sign := 1.0
	if m.Sense == Maximize {
		sign = -1
	}
	sol.Status = StatusOptimal
	sol.Objective = sign * optF
	for j, k := range sf.cols {
		if k >= 0 {
			sol.Values[j] = clean(x[k])
		}
	}

	y, err := solveDual(sf, s.tol())
	if err != nil {
		klog.V(2).InfoS("Dual solve failed, duals unavailable", "model", m.Name, "err", err)
		return sol, nil
	}
	sol.Duals = make([]float64, m.NumConstraints())
	for i, r := range sf.rows {
		if r >= 0 {
			sol.Duals[i] = clean(sign * sf.flip[r] * y[r])
		}
	}
	return sol, nil
}

// buildStandardForm converts m. It returns a status other than
// StatusNotSolved when the model is decided without running the simplex
// (empty infeasible rows, unbounded free columns) or cannot be handed to it.
// A nil matrix means no rows are left.
func buildStandardForm(m *Model) (*standardForm, Status, string) {
	sign := 1.0
	if m.Sense == Maximize {
		sign = -1
	}
	cost := make([]float64, m.NumVars())
	for _, t := range m.Objective {
		cost[t.Col] += sign * t.Coef
	}

	// Rows kept for the simplex: model rows with at least one non-zero term,
	// then one row per finite upper bound.
	type row struct {
		coefs map[int]float64
		sense Sense
		rhs   float64
	}
	var rows []row
	used := make([]bool, m.NumVars())
	sf := &standardForm{rows: make([]int, m.NumConstraints())}
	for i, c := range m.Constraints() {
		coefs := make(map[int]float64, len(c.Terms))
		for _, t := range c.Terms {
			coefs[t.Col] += t.Coef
		}
		for col, v := range coefs {
			if v == 0 {
				delete(coefs, col)
				continue
			}
			used[col] = true
		}
		if len(coefs) == 0 {
			sf.rows[i] = -1
			if !(Constraint{Sense: c.Sense, RHS: c.RHS}).Satisfied(nil, zeroTol) {
				return nil, StatusInfeasible, fmt.Sprintf("row %s has no terms and cannot hold", c.Name)
			}
			continue
		}
		sf.rows[i] = len(rows)
		rows = append(rows, row{coefs: coefs, sense: c.Sense, rhs: c.RHS})
	}
	for col, v := range m.Vars() {
		if v.Lower != 0 {
			return nil, StatusError, fmt.Sprintf("column %s has a non-zero lower bound", v.Name)
		}
		if !math.IsInf(v.Upper, 1) {
			rows = append(rows, row{coefs: map[int]float64{col: 1}, sense: LE, rhs: v.Upper})
			used[col] = true
		}
	}

	sf.cols = make([]int, m.NumVars())
	nCols := 0
	for col := range sf.cols {
		if !used[col] {
			// A column in no row sits at 0 unless it improves the objective
			// without limit.
			if cost[col] < 0 {
				return nil, StatusUnbounded, fmt.Sprintf("column %s is unbounded", m.Var(col).Name)
			}
			sf.cols[col] = -1
			continue
		}
		sf.cols[col] = nCols
		nCols++
	}
	nSlack := 0
	for _, r := range rows {
		if r.sense != EQ {
			nSlack++
		}
	}

	total := nCols + nSlack
	if len(rows) == 0 {
		return sf, StatusNotSolved, ""
	}
	if len(rows) > total {
		return nil, StatusError, fmt.Sprintf("%d rows exceed %d columns", len(rows), total)
	}

	sf.c = make([]float64, total)
	for col, k := range sf.cols {
		if k >= 0 {
			sf.c[k] = cost[col]
		}
	}
	sf.a = mat.NewDense(len(rows), total, nil)
	sf.b = make([]float64, len(rows))
	sf.flip = make([]float64, len(rows))
	slack := nCols
	for r, rw := range rows {
		f := 1.0
		if rw.rhs < 0 {
			f = -1
		}
		for col, v := range rw.coefs {
			sf.a.Set(r, sf.cols[col], f*v)
		}
		switch rw.sense {
		case LE:
			sf.a.Set(r, slack, f)
			slack++
		case GE:
			sf.a.Set(r, slack, -f)
			slack++
		}
		sf.b[r] = f * rw.rhs
		sf.flip[r] = f
	}
	return sf, StatusNotSolved, ""
}

// solveDual solves max b'y s.t. A'y <= c with y = y⁺ - y⁻ and returns y.
func solveDual(sf *standardForm, tol float64) ([]float64, error) {
	m, n := sf.a.Dims()
	c := make([]float64, 2*m+n)
	for i := 0; i < m; i++ {
		c[i] = -sf.b[i]
		c[m+i] = sf.b[i]
	}
	a := mat.NewDense(n, 2*m+n, nil)
	b := make([]float64, n)
	for j := 0; j < n; j++ {
		f := 1.0
		if sf.c[j] < 0 {
			f = -1
		}
		for i := 0; i < m; i++ {
			v := sf.a.At(i, j)
			a.Set(j, i, f*v)
			a.Set(j, m+i, -f*v)
		}
		a.Set(j, 2*m+j, f)
		b[j] = f * sf.c[j]
	}
	_, z, err := runSimplex(c, a, b, tol)
	if err != nil {
		return nil, err
	}
	y := make([]float64, m)
	for i := range y {
		y[i] = z[i] - z[m+i]
	}
	return y, nil
}

// runSimplex calls gonum, turning its dimension panics into errors.
func runSimplex(c []float64, a mat.Matrix, b []float64, tol float64) (optF float64, x []float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("simplex: %v", r)
		}
	}()
	return convexlp.Simplex(c, a, b, tol, nil)
}

func simplexStatus(err error) Status {
	switch {
	case errors.Is(err, convexlp.ErrInfeasible):
		return StatusInfeasible
	case errors.Is(err, convexlp.ErrUnbounded):
		return StatusUnbounded
	default:
		return StatusError
	}
}

func clean(v float64) float64 {
	if math.Abs(v) < zeroTol {
		return 0
	}
	return v
}
