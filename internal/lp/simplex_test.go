package lp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delta = 1e-6

func solveSimplex(t *testing.T, m *Model) *Solution {
	t.Helper()
	sol, err := (&Simplex{}).Solve(context.Background(), m)
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.True(t, sol.Relaxed)
	assert.Equal(t, "simplex", sol.Backend)
	return sol
}

func TestSimplexMaximize(t *testing.T) {
	sol := solveSimplex(t, capacityModel(t))
	require.True(t, sol.IsOptimal(), sol.Message)

	assert.InDelta(t, 11.0, sol.Objective, delta)
	assert.InDelta(t, 3.0, sol.Value(0), delta)
	assert.InDelta(t, 1.0, sol.Value(1), delta)

	// Loosening "total" by one unit buys one more y at 2; "xcap" buys x at
	// 3 minus the y it displaces.
	require.True(t, sol.HasDuals())
	assert.InDelta(t, 2.0, sol.Dual(0), delta)
	assert.InDelta(t, 0.0, sol.Dual(1), delta)
	assert.InDelta(t, 1.0, sol.Dual(2), delta)
}

func TestSimplexMinimizeWithCoverRow(t *testing.T) {
	m := NewModel("cover", Minimize)
	x, _ := m.AddVar("x", Continuous)
	y, _ := m.AddVar("y", Continuous)
	require.NoError(t, m.SetObjective(Term{x, 2}, Term{y, 3}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "cover", Terms: []Term{{x, 1}, {y, 1}}, Sense: GE, RHS: 4}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "xmin", Terms: []Term{{x, 1}}, Sense: GE, RHS: 1}))

	sol := solveSimplex(t, m)
	require.True(t, sol.IsOptimal(), sol.Message)
	assert.InDelta(t, 8.0, sol.Objective, delta)
	assert.InDelta(t, 4.0, sol.Value(x), delta)
	assert.InDelta(t, 0.0, sol.Value(y), delta)
	assert.InDelta(t, 2.0, sol.Dual(0), delta)
	assert.InDelta(t, 0.0, sol.Dual(1), delta)
}

func TestSimplexNegativeRightHandSide(t *testing.T) {
	m := NewModel("negative", Minimize)
	x, _ := m.AddVar("x", Continuous)
	require.NoError(t, m.SetObjective(Term{x, 1}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "floor", Terms: []Term{{x, -1}}, Sense: LE, RHS: -2}))

	sol := solveSimplex(t, m)
	require.True(t, sol.IsOptimal(), sol.Message)
	assert.InDelta(t, 2.0, sol.Objective, delta)
	assert.InDelta(t, 2.0, sol.Value(x), delta)
	// Raising the rhs from -2 to -1 lowers the floor, and the cost, by one.
	assert.InDelta(t, -1.0, sol.Dual(0), delta)
}

func TestSimplexEquality(t *testing.T) {
	m := NewModel("balance", Maximize)
	prod, _ := m.AddVar("prod", Integer)
	ship, _ := m.AddVar("ship", Integer)
	require.NoError(t, m.SetObjective(Term{ship, 12}, Term{prod, -5}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "balance", Terms: []Term{{ship, 1}, {prod, -1}}, Sense: EQ, RHS: 0}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "demand", Terms: []Term{{ship, 1}}, Sense: LE, RHS: 10}))

	sol := solveSimplex(t, m)
	require.True(t, sol.IsOptimal(), sol.Message)
	assert.InDelta(t, 70.0, sol.Objective, delta)
	assert.InDelta(t, 10.0, sol.Value(prod), delta)
	assert.InDelta(t, 10.0, sol.Value(ship), delta)
	assert.InDelta(t, 7.0, sol.Dual(1), delta)
}

func TestSimplexRelaxesIntegrality(t *testing.T) {
	m := NewModel("fraction", Maximize)
	x, _ := m.AddVar("x", Integer)
	b, _ := m.AddVar("b", Binary)
	require.NoError(t, m.SetObjective(Term{x, 1}, Term{b, 1}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "half", Terms: []Term{{x, 2}}, Sense: LE, RHS: 3}))

	sol := solveSimplex(t, m)
	require.True(t, sol.IsOptimal(), sol.Message)
	assert.InDelta(t, 1.5, sol.Value(x), delta)
	assert.InDelta(t, 1.0, sol.Value(b), delta)
	assert.InDelta(t, 2.5, sol.Objective, delta)
}

func TestSimplexInfeasible(t *testing.T) {
	m := NewModel("infeasible", Minimize)
	x, _ := m.AddVar("x", Continuous)
	y, _ := m.AddVar("y", Continuous)
	require.NoError(t, m.SetObjective(Term{x, 1}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "low", Terms: []Term{{x, 1}, {y, 1}}, Sense: LE, RHS: 1}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "high", Terms: []Term{{x, 1}, {y, 1}}, Sense: GE, RHS: 3}))

	sol := solveSimplex(t, m)
	assert.Equal(t, StatusInfeasible, sol.Status)
	assert.Empty(t, sol.Values)
	assert.ErrorIs(t, RequireOptimal(sol), ErrNotOptimal)
}

func TestSimplexEmptyRowThatCannotHold(t *testing.T) {
	m := NewModel("empty", Minimize)
	_, _ = m.AddVar("x", Continuous)
	require.NoError(t, m.AddConstraint(Constraint{Name: "never", Sense: GE, RHS: 1}))

	sol := solveSimplex(t, m)
	assert.Equal(t, StatusInfeasible, sol.Status)
}

func TestSimplexUnbounded(t *testing.T) {
	m := NewModel("unbounded", Maximize)
	x, _ := m.AddVar("x", Continuous)
	y, _ := m.AddVar("y", Continuous)
	require.NoError(t, m.SetObjective(Term{x, 1}))
	require.NoError(t, m.AddConstraint(Constraint{Name: "gap", Terms: []Term{{x, 1}, {y, -1}}, Sense: LE, RHS: 1}))

	sol := solveSimplex(t, m)
	assert.Equal(t, StatusUnbounded, sol.Status)

	free := NewModel("free", Maximize)
	z, _ := free.AddVar("z", Continuous)
	w, _ := free.AddVar("w", Continuous)
	require.NoError(t, free.SetObjective(Term{z, 1}))
	require.NoError(t, free.AddConstraint(Constraint{Name: "w", Terms: []Term{{w, 1}}, Sense: LE, RHS: 1}))
	assert.Equal(t, StatusUnbounded, solveSimplex(t, free).Status)
}

func TestSimplexHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&Simplex{}).Solve(ctx, capacityModel(t))
	assert.ErrorIs(t, err, context.Canceled)
}
