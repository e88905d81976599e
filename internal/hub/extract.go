package hub

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"optiplan/internal/lp"
	"optiplan/internal/models"
)

// selected is the value above which a binary column counts as chosen.
const selected = 0.5

// integralTol bounds how far a relaxed value may sit from 0 or 1.
const integralTol = 1e-6

// Extract reads an optimal solution into the allocation plan. Only routes
// that were chosen are listed; the objective is the solver's.
//
// A relaxed solution is only accepted when every column is integral, in
// which case it is also optimal for the binary model. The plan must open
// exactly p hubs and route every pair once.
func Extract(f *Formulation, sol *lp.Solution) (*models.HubResult, error) {
	if err := lp.RequireOptimal(sol); err != nil {
		return nil, err
	}
	if sol.Relaxed {
		if err := checkIntegral(f, sol); err != nil {
			return nil, err
		}
	}
	in := f.Instance

	res := &models.HubResult{
		Status:         sol.Status.String(),
		Objective:      sol.Objective,
		Relaxed:        sol.Relaxed,
		ActiveHubs:     make([]string, 0, f.P),
		AllocationPlan: make([]models.AllocationRow, 0, len(in.Pairs)),
	}
	for k, col := range f.open {
		if sol.Value(col) > selected {
			res.ActiveHubs = append(res.ActiveHubs, in.Hubs.Label(k))
		}
	}
	res.HubCount = len(res.ActiveHubs)

	if res.HubCount != f.P {
		return nil, errors.Wrapf(lp.ErrNotOptimal, "solution opens %d hubs, want %d", res.HubCount, f.P)
	}

	for pi, p := range in.Pairs {
		routed := 0
		for ri, r := range in.Routes {
			v := sol.Value(f.route[pi][ri])
			if v <= selected {
				continue
			}
			routed++
			res.AllocationPlan = append(res.AllocationPlan, models.AllocationRow{
				Origin:      in.Nodes.Label(p.Origin),
				Destination: in.Nodes.Label(p.Destination),
				FirstHub:    in.Hubs.Label(r.First),
				SecondHub:   in.Hubs.Label(r.Second),
				Allocation:  v,
				Cost:        in.RouteCost(p, r),
			})
		}
		if routed != 1 {
			return nil, errors.Wrapf(lp.ErrNotOptimal, "pair %s->%s uses %d routes",
				in.Nodes.Label(p.Origin), in.Nodes.Label(p.Destination), routed)
		}
	}
	return res, nil
}

func checkIntegral(f *Formulation, sol *lp.Solution) error {
	for col := 0; col < f.Model.NumVars(); col++ {
		v := sol.Value(col)
		if math.Abs(v) > integralTol && math.Abs(v-1) > integralTol {
			return errors.Wrapf(lp.ErrNotOptimal, "relaxed solution for a binary model: %s = %g",
				f.Model.Var(col).Name, v)
		}
	}
	return nil
}

// Solve builds the model for p hubs, solves it and extracts the plan.
// A non-optimal outcome is returned as an error wrapping lp.ErrNotOptimal.
func Solve(ctx context.Context, solver lp.Solver, in *Instance, p int) (*models.HubResult, error) {
	f, err := Build(in, p)
	if err != nil {
		return nil, err
	}
	klog.V(2).InfoS("Hub model built", "model", f.Model, "p", p, "singleHubRoutes", in.SingleHubRoutes)

	sol, err := solver.Solve(ctx, f.Model)
	if err != nil {
		return nil, errors.Wrap(err, "solve hub model")
	}
	res, err := Extract(f, sol)
	if err != nil {
		return nil, errors.Wrapf(err, "hub model with p=%d", p)
	}
	klog.InfoS("Hub model solved", "objective", res.Objective, "activeHubs", res.ActiveHubs, "routes", len(res.AllocationPlan))
	return res, nil
}
