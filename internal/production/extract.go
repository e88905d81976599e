package production

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"optiplan/internal/engine"
	"optiplan/internal/lp"
	"optiplan/internal/models"
)

// ErrNoDuals is returned when a solver answered without row duals.
var ErrNoDuals = errors.New("solver returned no duals")

// Extract reads an optimal solution into the production and shipping plans,
// their pivots and the per-plant summary. Costs and revenues are computed
// from the same tables the builder used; the objective is the solver's.
func Extract(f *Formulation, sol *lp.Solution) (*models.ProductionResult, error) {
	if err := lp.RequireOptimal(sol); err != nil {
		return nil, err
	}
	in := f.Instance
	nP, nR, nC := in.Plants.Len(), in.Products.Len(), in.Customers.Len()

	res := &models.ProductionResult{
		Status:         sol.Status.String(),
		Objective:      sol.Objective,
		Relaxed:        sol.Relaxed,
		ProductionPlan: make([]models.ProductionRow, 0, nP*nR),
		ShippingPlan:   make([]models.ShippingRow, 0, nP*nR*nC),
		ProductionPivot: models.PivotTable{
			RowLabels: in.Plants.Labels(),
			ColLabels: in.Products.Labels(),
		},
		ShippingPivot: models.PivotTable{
			ColLabels: in.Customers.Labels(),
		},
	}

	for p := 0; p < nP; p++ {
		plant := in.Plants.Label(p)
		prodRow := make([]float64, nR)
		for r := 0; r < nR; r++ {
			product := in.Products.Label(r)
			qty := quantity(sol, f.prod[p][r], sol.Relaxed)
			prodRow[r] = qty
			res.ProductionPlan = append(res.ProductionPlan, models.ProductionRow{
				Plant:          plant,
				Product:        product,
				Production:     qty,
				ProductionCost: qty * in.ProductionCost.At(p, r),
			})

			shipRow := make([]float64, nC)
			for c := 0; c < nC; c++ {
				qty := quantity(sol, f.ship[p][r][c], sol.Relaxed)
				shipRow[c] = qty
				res.ShippingPlan = append(res.ShippingPlan, models.ShippingRow{
					Plant:        plant,
					Product:      product,
					Customer:     in.Customers.Label(c),
					Shipping:     qty,
					ShippingCost: qty * in.ShippingCost.At(p, c),
					Revenue:      qty * in.SalesPrice.At(c, r),
				})
			}
			res.ShippingPivot.RowLabels = append(res.ShippingPivot.RowLabels, plant+"/"+product)
			res.ShippingPivot.Cells = append(res.ShippingPivot.Cells, shipRow)
		}
		res.ProductionPivot.Cells = append(res.ProductionPivot.Cells, prodRow)
	}

	summaries, err := engine.AggregatePlants(in.Plants, res.ProductionPlan, res.ShippingPlan)
	if err != nil {
		return nil, err
	}
	res.PlantSummaries = summaries
	return res, nil
}

// quantity reads an integer column. Solver noise around whole numbers is
// removed unless the solution is a relaxation.
func quantity(sol *lp.Solution, col int, relaxed bool) float64 {
	v := sol.Value(col)
	if relaxed {
		return v
	}
	if r := math.Round(v); math.Abs(v-r) < 1e-6 {
		return r
	}
	return v
}

// Solve builds the model, solves it and extracts the plans. A non-optimal
// outcome is returned as an error wrapping lp.ErrNotOptimal.
func Solve(ctx context.Context, solver lp.Solver, in *Instance) (*models.ProductionResult, error) {
	f, err := Build(in)
	if err != nil {
		return nil, err
	}
	return SolveFormulation(ctx, solver, f)
}

// SolveFormulation solves an already built (possibly perturbed) formulation.
func SolveFormulation(ctx context.Context, solver lp.Solver, f *Formulation) (*models.ProductionResult, error) {
	sol, err := solver.Solve(ctx, f.Model)
	if err != nil {
		return nil, errors.Wrap(err, "solve production model")
	}
	res, err := Extract(f, sol)
	if err != nil {
		return nil, errors.Wrap(err, "production model")
	}
	klog.InfoS("Production model solved", "objective", res.Objective, "relaxed", res.Relaxed)
	return res, nil
}

// MachineShadowPrices solves the continuous relaxation of f and returns the
// dual of every machine[p] row. The values price machine hours in the
// relaxed problem; they approximate, and may differ from, the marginal value
// measured by Sweep on the integer model.
func MachineShadowPrices(ctx context.Context, solver lp.Solver, f *Formulation) ([]models.ShadowPrice, error) {
	sol, err := solver.Solve(ctx, f.Model.Relaxed())
	if err != nil {
		return nil, errors.Wrap(err, "solve relaxation")
	}
	if err := lp.RequireOptimal(sol); err != nil {
		return nil, errors.Wrap(err, "relaxation")
	}
	if !sol.HasDuals() {
		return nil, errors.Wrapf(ErrNoDuals, "backend %s", sol.Backend)
	}

	in := f.Instance
	out := make([]models.ShadowPrice, 0, in.Plants.Len())
	for _, plant := range in.Plants.Labels() {
		name := MachineConstraintName(plant)
		_, row, ok := f.Model.Constraint(name)
		if !ok {
			return nil, errors.Wrapf(lp.ErrUnknownConstraint, "%s", name)
		}
		out = append(out, models.ShadowPrice{
			Constraint: name,
			Plant:      plant,
			Dual:       sol.Dual(row),
			Relaxed:    true,
		})
	}
	return out, nil
}
