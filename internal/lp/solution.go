package lp

import (
	"context"

	"github.com/pkg/errors"
)

// ErrNotOptimal is returned by extractors when asked to read a solution that
// the solver did not prove optimal.
var ErrNotOptimal = errors.New("solver did not return an optimal solution")

// Status is the outcome of a solve.
type Status int

const (
	// StatusNotSolved indicates no solve was attempted or the solver gave no verdict.
	StatusNotSolved Status = iota
	// StatusOptimal indicates an optimal solution was found.
	StatusOptimal
	// StatusInfeasible indicates the model has no feasible point.
	StatusInfeasible
	// StatusUnbounded indicates the objective is unbounded.
	StatusUnbounded
	// StatusStopped indicates the solver stopped on a limit before proving optimality.
	StatusStopped
	// StatusError indicates the solver failed on the model.
	StatusError
)

func (s Status) String() string {
	names := []string{"NotSolved", "Optimal", "Infeasible", "Unbounded", "Stopped", "Error"}
	if int(s) >= 0 && int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// Solution contains the results from solving a Model.
type Solution struct {
	Status Status

	// Objective is the objective value reported by the solver.
	Objective float64

	// Values holds one value per model column. Empty unless Status is optimal.
	Values []float64

	// Duals holds one dual value per model row, as the marginal change of
	// the objective per unit increase of the right-hand side. Empty when the
	// backend cannot report duals (e.g. for integer solves).
	Duals []float64

	// Relaxed is set when integrality was dropped to obtain this solution.
	Relaxed bool

	// Backend names the solver that produced the solution.
	Backend string

	// Message carries the solver's own status line or error text.
	Message string
}

// IsOptimal returns true if the solution is optimal.
func (s *Solution) IsOptimal() bool {
	return s != nil && s.Status == StatusOptimal
}

// IsInfeasible returns true if the model is infeasible.
func (s *Solution) IsInfeasible() bool {
	return s != nil && s.Status == StatusInfeasible
}

// HasDuals returns true if row duals are available.
func (s *Solution) HasDuals() bool {
	return s != nil && len(s.Duals) > 0
}

// Value returns the value of a column.
// Returns 0 if the index is out of range.
func (s *Solution) Value(col int) float64 {
	if col < 0 || col >= len(s.Values) {
		return 0
	}
	return s.Values[col]
}

// Dual returns the dual value of a row.
// Returns 0 if the index is out of range.
func (s *Solution) Dual(row int) float64 {
	if row < 0 || row >= len(s.Duals) {
		return 0
	}
	return s.Duals[row]
}

// Solver hands a model to an optimizer and blocks until it answers.
//
// A returned error means the solver could not be run at all (binary
// missing, I/O failure). Infeasible or unbounded models are not errors;
// they come back as a Solution with the matching Status.
type Solver interface {
	Name() string
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, m *Model) (*Solution, error)

func (f SolverFunc) Name() string { return "func" }

func (f SolverFunc) Solve(ctx context.Context, m *Model) (*Solution, error) {
	return f(ctx, m)
}

// RequireOptimal returns ErrNotOptimal, annotated with the status, unless
// sol is optimal.
func RequireOptimal(sol *Solution) error {
	if sol.IsOptimal() {
		return nil
	}
	if sol == nil {
		return errors.Wrap(ErrNotOptimal, "no solution")
	}
	if sol.Message != "" {
		return errors.Wrapf(ErrNotOptimal, "status %s: %s", sol.Status, sol.Message)
	}
	return errors.Wrapf(ErrNotOptimal, "status %s", sol.Status)
}
