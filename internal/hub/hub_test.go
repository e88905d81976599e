package hub

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiplan/internal/engine"
	"optiplan/internal/lp"
	"optiplan/internal/lp/lptest"
	"optiplan/internal/models"
)

// Three nodes, two hubs. With both hubs open the cheapest route of every
// pair is unique, so the relaxation is integral and the optimum is 30.
const threeByTwo = `Unnamed: 0,H1,H2
A,1,5
B,4,2
C,3,6
`

func loadInstance(t *testing.T, csv string, singleHub bool) *Instance {
	t.Helper()
	table, err := engine.ParseCostMatrix(strings.NewReader(csv))
	require.NoError(t, err)
	return NewInstance(table, singleHub)
}

func requireCBC(t *testing.T) lp.Solver {
	t.Helper()
	if _, err := exec.LookPath("cbc"); err != nil {
		t.Skip("cbc not on PATH")
	}
	return &lp.CBC{}
}

func TestCombinedCost(t *testing.T) {
	in := loadInstance(t, `,H1,H2,H3
A,10,12.5,9
B,11,8,14
C,7,6,13.25
D,2,3,4
`, false)

	assert.Len(t, in.Pairs, 12)
	assert.Len(t, in.Routes, 6)
	for _, p := range in.Pairs {
		assert.NotEqual(t, p.Origin, p.Destination)
		for _, r := range in.Routes {
			assert.NotEqual(t, r.First, r.Second)
			want := in.Costs.At(p.Origin, r.First) + in.Costs.At(p.Destination, r.Second)
			assert.Equal(t, want, in.CombinedCost(p.Origin, r.First, r.Second, p.Destination))
		}
	}

	single := NewInstance(in.Costs, true)
	assert.Len(t, single.Routes, 9)
	assert.Equal(t, 10.0+11.0, single.CombinedCost(0, 0, 0, 1))
}

func TestHubCountBounds(t *testing.T) {
	in := loadInstance(t, threeByTwo, false)
	assert.Equal(t, 2, in.MinHubCount())
	assert.Equal(t, 2, in.DefaultHubCount())
	assert.Equal(t, 1, NewInstance(in.Costs, true).MinHubCount())

	for _, p := range []int{0, 3, -1} {
		_, err := Build(in, p)
		assert.True(t, errors.Is(err, ErrHubCount), "p=%d", p)
	}

	assert.NoError(t, in.CheckHubCount(2))
	assert.True(t, errors.Is(in.CheckHubCount(1), ErrHubCount))
	assert.True(t, errors.Is(in.CheckHubCount(3), ErrHubCount))
	assert.NoError(t, NewInstance(in.Costs, true).CheckHubCount(1))

	oneHub := loadInstance(t, ",H1\nA,1\nB,2\n", false)
	_, err := Build(oneHub, 1)
	assert.True(t, errors.Is(err, ErrHubCount))
	_, err = Build(NewInstance(oneHub.Costs, true), 1)
	assert.NoError(t, err)
}

func TestCheckSize(t *testing.T) {
	assert.NoError(t, CheckSize(loadInstance(t, threeByTwo, false).Costs))

	var b strings.Builder
	b.WriteString("Unnamed: 0")
	for k := 0; k < 100; k++ {
		fmt.Fprintf(&b, ",H%d", k)
	}
	b.WriteString("\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&b, "N%d", i)
		for k := 0; k < 100; k++ {
			b.WriteString(",1")
		}
		b.WriteString("\n")
	}
	table, err := engine.ParseCostMatrix(strings.NewReader(b.String()))
	require.NoError(t, err)
	assert.True(t, errors.Is(CheckSize(table), ErrTooLarge))
}

func TestBuildShape(t *testing.T) {
	in := loadInstance(t, threeByTwo, false)
	f, err := Build(in, 2)
	require.NoError(t, err)

	pairs, routes, hubs := 6, 2, 2
	assert.Equal(t, pairs*routes+hubs, f.Model.NumVars())
	assert.Equal(t, 1+pairs+2*pairs*hubs, f.Model.NumConstraints())
	assert.Equal(t, lp.Minimize, f.Model.Sense)

	total, idx, ok := f.Model.Constraint("total_hubs")
	require.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, 2.0, total.RHS)

	_, _, ok = f.Model.Constraint("allocation[A,B]")
	assert.True(t, ok)
	first, _, ok := f.Model.Constraint("flow_first[C,A,H2]")
	require.True(t, ok)
	// y[H2] plus the one route whose first leg is H2.
	assert.Len(t, first.Terms, 2)
	_, _, ok = f.Model.Constraint("flow_second[B,C,H1]")
	assert.True(t, ok)

	col, ok := f.Model.VarIndex("x[A,B,H1,H2]")
	require.True(t, ok)
	assert.Equal(t, lp.Binary, f.Model.Var(col).Type)
}

func TestBuildIsIdempotent(t *testing.T) {
	in := loadInstance(t, threeByTwo, true)

	var a, b bytes.Buffer
	f1, err := Build(in, 2)
	require.NoError(t, err)
	f2, err := Build(in, 2)
	require.NoError(t, err)
	require.NoError(t, lp.WriteLP(&a, f1.Model))
	require.NoError(t, lp.WriteLP(&b, f2.Model))
	assert.Equal(t, a.String(), b.String())
	assert.Equal(t, f1.Model.Vars(), f2.Model.Vars())
}

// checkSolved asserts the structural properties every solved instance has.
func checkSolved(t *testing.T, in *Instance, p int, res *models.HubResult) {
	t.Helper()
	assert.Equal(t, p, res.HubCount)
	assert.Len(t, res.ActiveHubs, p)

	open := map[string]bool{}
	for _, h := range res.ActiveHubs {
		open[h] = true
	}
	routed := map[[2]string]int{}
	for _, row := range res.AllocationPlan {
		routed[[2]string{row.Origin, row.Destination}]++
		assert.True(t, open[row.FirstHub], "first hub %s of %s->%s is closed", row.FirstHub, row.Origin, row.Destination)
		assert.True(t, open[row.SecondHub], "second hub %s of %s->%s is closed", row.SecondHub, row.Origin, row.Destination)
	}
	assert.Len(t, routed, len(in.Pairs))
	for pair, n := range routed {
		assert.Equal(t, 1, n, "pair %v", pair)
	}
}

func TestSolveWithRelaxation(t *testing.T) {
	in := loadInstance(t, threeByTwo, false)

	res, err := Solve(context.Background(), &lp.Simplex{}, in, 2)
	require.NoError(t, err)

	assert.Equal(t, "Optimal", res.Status)
	assert.InDelta(t, 30.0, res.Objective, 1e-6)
	assert.Equal(t, []string{"H1", "H2"}, res.ActiveHubs)
	checkSolved(t, in, 2, res)

	var sum float64
	for _, row := range res.AllocationPlan {
		sum += row.Cost
		if row.Origin == "B" && row.Destination == "C" {
			assert.Equal(t, "H2", row.FirstHub)
			assert.Equal(t, "H1", row.SecondHub)
			assert.Equal(t, 5.0, row.Cost)
		}
	}
	assert.InDelta(t, res.Objective, sum, 1e-6)
}

func TestSolveSingleHubWithCBC(t *testing.T) {
	solver := requireCBC(t)
	in := loadInstance(t, threeByTwo, true)

	res, err := Solve(context.Background(), solver, in, 1)
	require.NoError(t, err)
	checkSolved(t, in, 1, res)
	for _, row := range res.AllocationPlan {
		assert.Equal(t, row.FirstHub, row.SecondHub)
	}
}

func TestSolveOneHubWithoutSingleHubRoutesIsInfeasible(t *testing.T) {
	solver := requireCBC(t)
	in := loadInstance(t, threeByTwo, false)

	_, err := Solve(context.Background(), solver, in, 1)
	assert.True(t, errors.Is(err, lp.ErrNotOptimal), "got %v", err)
}

func TestSolveSingleHubThroughCBCProcess(t *testing.T) {
	in := loadInstance(t, threeByTwo, true)
	f, err := Build(in, 1)
	require.NoError(t, err)

	// Everything through H1. Each node ends four pairs: 4 * (1+4+3) = 32.
	values := make([]float64, f.Model.NumVars())
	values[f.HubColumn(0)] = 1
	for pi := range in.Pairs {
		values[f.RouteColumn(pi, 0)] = 1
	}
	fake := lptest.NewFakeCBC(t, lptest.Solution("Optimal - objective value 32.00000000", values))

	res, err := Solve(context.Background(), &lp.CBC{Path: fake.Path}, in, 1)
	require.NoError(t, err)
	assert.False(t, res.Relaxed)
	assert.Equal(t, 32.0, res.Objective)
	assert.Equal(t, []string{"H1"}, res.ActiveHubs)
	checkSolved(t, in, 1, res)

	var sum float64
	for _, row := range res.AllocationPlan {
		assert.Equal(t, "H1", row.FirstHub)
		assert.Equal(t, "H1", row.SecondHub)
		sum += row.Cost
	}
	assert.InDelta(t, 32.0, sum, 1e-9)
	assert.Contains(t, fake.Model(t), "Binary")
}

func TestSolveInfeasibleThroughCBCProcess(t *testing.T) {
	in := loadInstance(t, threeByTwo, false)
	fake := lptest.NewFakeCBC(t, lptest.Solution("Infeasible - objective value 0.00000000", nil))

	_, err := Solve(context.Background(), &lp.CBC{Path: fake.Path}, in, 2)
	assert.True(t, errors.Is(err, lp.ErrNotOptimal), "got %v", err)
}

// The relaxation of this instance is fractional at p=2.
const fractionalFiveByFour = `,H1,H2,H3,H4
A,11,10,5,16
B,6,8,1,2
C,3,6,3,16
D,2,18,7,14
E,17,3,16,0
`

func TestSolveRejectsFractionalRelaxation(t *testing.T) {
	in := loadInstance(t, fractionalFiveByFour, false)

	_, err := Solve(context.Background(), &lp.Simplex{}, in, 2)
	assert.True(t, errors.Is(err, lp.ErrNotOptimal), "got %v", err)
}

func TestExtractRelaxedSolutions(t *testing.T) {
	in := loadInstance(t, threeByTwo, true)
	f, err := Build(in, 1)
	require.NoError(t, err)

	half := make([]float64, f.Model.NumVars())
	half[f.HubColumn(0)], half[f.HubColumn(1)] = 0.5, 0.5
	for pi := range in.Pairs {
		half[f.RouteColumn(pi, 0)], half[f.RouteColumn(pi, 3)] = 0.5, 0.5
	}
	_, err = Extract(f, &lp.Solution{Status: lp.StatusOptimal, Values: half, Relaxed: true})
	assert.True(t, errors.Is(err, lp.ErrNotOptimal), "got %v", err)

	whole := make([]float64, f.Model.NumVars())
	whole[f.HubColumn(1)] = 1 - 1e-8
	for pi := range in.Pairs {
		whole[f.RouteColumn(pi, 3)] = 1
	}
	res, err := Extract(f, &lp.Solution{Status: lp.StatusOptimal, Values: whole, Relaxed: true})
	require.NoError(t, err)
	assert.True(t, res.Relaxed)
	assert.Equal(t, []string{"H2"}, res.ActiveHubs)
	checkSolved(t, in, 1, res)
}

func TestExtractRejectsBrokenPlans(t *testing.T) {
	in := loadInstance(t, threeByTwo, false)
	f, err := Build(in, 2)
	require.NoError(t, err)

	oneHub := make([]float64, f.Model.NumVars())
	oneHub[f.HubColumn(0)] = 1
	for pi := range in.Pairs {
		oneHub[f.RouteColumn(pi, 0)] = 1
	}
	_, err = Extract(f, &lp.Solution{Status: lp.StatusOptimal, Values: oneHub})
	assert.True(t, errors.Is(err, lp.ErrNotOptimal), "got %v", err)

	unrouted := make([]float64, f.Model.NumVars())
	unrouted[f.HubColumn(0)], unrouted[f.HubColumn(1)] = 1, 1
	_, err = Extract(f, &lp.Solution{Status: lp.StatusOptimal, Values: unrouted})
	assert.True(t, errors.Is(err, lp.ErrNotOptimal), "got %v", err)
}

func TestExtractFiltersUnchosenRoutes(t *testing.T) {
	in := loadInstance(t, threeByTwo, false)
	f, err := Build(in, 2)
	require.NoError(t, err)

	values := make([]float64, f.Model.NumVars())
	for pi := range in.Pairs {
		values[f.RouteColumn(pi, 0)] = 1
		values[f.RouteColumn(pi, 1)] = 1e-7
	}
	values[f.HubColumn(0)] = 1
	values[f.HubColumn(1)] = 0.9999999

	res, err := Extract(f, &lp.Solution{Status: lp.StatusOptimal, Objective: 42, Values: values})
	require.NoError(t, err)
	assert.Equal(t, 42.0, res.Objective)
	assert.Len(t, res.AllocationPlan, len(in.Pairs))
	for _, row := range res.AllocationPlan {
		assert.Equal(t, "H1", row.FirstHub)
		assert.Equal(t, "H2", row.SecondHub)
	}

	_, err = Extract(f, &lp.Solution{Status: lp.StatusInfeasible})
	assert.True(t, errors.Is(err, lp.ErrNotOptimal))
}

func TestSolvePropagatesSolverErrors(t *testing.T) {
	in := loadInstance(t, threeByTwo, false)
	boom := errors.New("binary crashed")
	stub := lp.SolverFunc(func(context.Context, *lp.Model) (*lp.Solution, error) { return nil, boom })

	_, err := Solve(context.Background(), stub, in, 2)
	assert.Equal(t, boom, errors.Cause(err))
}
