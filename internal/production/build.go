package production

import (
	"fmt"

	"github.com/pkg/errors"

	"optiplan/internal/lp"
)

// Formulation is a built production model and the column bookkeeping needed
// to read its solution back or derive perturbed models from it.
type Formulation struct {
	Model    *lp.Model
	Instance *Instance

	// prod[p][r] is the column of prod[p,r].
	prod [][]int
	// ship[p][r][c] is the column of ship[p,r,c].
	ship [][][]int
}

// Build declares the model: integer production and shipping columns, the
// profit objective, and the labor, machine, material, demand, balance and
// inspection rows, in that order. The same instance always yields the same
// model.
func Build(in *Instance) (*Formulation, error) {
	f := &Formulation{
		Model:    lp.NewModel("production", lp.Maximize),
		Instance: in,
	}
	steps := []func() error{
		f.addVariables,
		f.setObjective,
		f.addLaborConstraints,
		f.addMachineConstraints,
		f.addMaterialConstraint,
		f.addDemandConstraints,
		f.addBalanceConstraints,
		f.addInspectionConstraint,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, errors.Wrap(err, "build production model")
		}
	}
	return f, nil
}

func (f *Formulation) addVariables() error {
	in := f.Instance
	nP, nR, nC := in.Plants.Len(), in.Products.Len(), in.Customers.Len()

	f.prod = make([][]int, nP)
	for p := 0; p < nP; p++ {
		f.prod[p] = make([]int, nR)
		for r := 0; r < nR; r++ {
			col, err := f.Model.AddVar(fmt.Sprintf("prod[%s,%s]", in.Plants.Label(p), in.Products.Label(r)), lp.Integer)
			if err != nil {
				return err
			}
			f.prod[p][r] = col
		}
	}

	f.ship = make([][][]int, nP)
	for p := 0; p < nP; p++ {
		f.ship[p] = make([][]int, nR)
		for r := 0; r < nR; r++ {
			f.ship[p][r] = make([]int, nC)
			for c := 0; c < nC; c++ {
				col, err := f.Model.AddVar(fmt.Sprintf("ship[%s,%s,%s]",
					in.Plants.Label(p), in.Products.Label(r), in.Customers.Label(c)), lp.Integer)
				if err != nil {
					return err
				}
				f.ship[p][r][c] = col
			}
		}
	}
	return nil
}

// profit = sum ship*(price - shipcost) - sum prod*cost
func (f *Formulation) setObjective() error {
	in := f.Instance
	var terms []lp.Term
	for p := range f.ship {
		for r := range f.ship[p] {
			for c, col := range f.ship[p][r] {
				terms = append(terms, lp.Term{Col: col, Coef: in.SalesPrice.At(c, r) - in.ShippingCost.At(p, c)})
			}
		}
	}
	for p := range f.prod {
		for r, col := range f.prod[p] {
			terms = append(terms, lp.Term{Col: col, Coef: -in.ProductionCost.At(p, r)})
		}
	}
	return f.Model.SetObjective(terms...)
}

func (f *Formulation) addLaborConstraints() error {
	in := f.Instance
	for p := range f.prod {
		c := f.capacityRow("labor", p, func(r int) float64 { return in.LaborHours.At(p, r) }, in.LaborCapacity.At(p))
		if err := f.Model.AddConstraint(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formulation) addMachineConstraints() error {
	for p := range f.prod {
		if err := f.Model.AddConstraint(f.machineRow(p, 0)); err != nil {
			return err
		}
	}
	return nil
}

// machineRow is machine[p] with extra hours on top of the plant's capacity.
func (f *Formulation) machineRow(p int, extra float64) lp.Constraint {
	in := f.Instance
	return f.capacityRow("machine", p, func(r int) float64 { return in.MachineHours.At(p, r) }, in.MachineCapacity.At(p)+extra)
}

// capacityRow is family[p]: sum_r prod[p,r]*use(r) <= capacity
func (f *Formulation) capacityRow(family string, p int, use func(r int) float64, capacity float64) lp.Constraint {
	terms := make([]lp.Term, len(f.prod[p]))
	for r, col := range f.prod[p] {
		terms[r] = lp.Term{Col: col, Coef: use(r)}
	}
	return lp.Constraint{
		Name:  fmt.Sprintf("%s[%s]", family, f.Instance.Plants.Label(p)),
		Terms: terms,
		Sense: lp.LE,
		RHS:   capacity,
	}
}

func (f *Formulation) addMaterialConstraint() error {
	in := f.Instance
	var terms []lp.Term
	for p := range f.prod {
		for r, col := range f.prod[p] {
			terms = append(terms, lp.Term{Col: col, Coef: in.Material.At(p, r)})
		}
	}
	return f.Model.AddConstraint(lp.Constraint{Name: "material", Terms: terms, Sense: lp.LE, RHS: in.TotalMaterial})
}

// demand[c,r]: sum_p ship[p,r,c] <= demand[c,r]
func (f *Formulation) addDemandConstraints() error {
	in := f.Instance
	for c := 0; c < in.Customers.Len(); c++ {
		for r := 0; r < in.Products.Len(); r++ {
			terms := make([]lp.Term, len(f.ship))
			for p := range f.ship {
				terms[p] = lp.Term{Col: f.ship[p][r][c], Coef: 1}
			}
			name := fmt.Sprintf("demand[%s,%s]", in.Customers.Label(c), in.Products.Label(r))
			if err := f.Model.AddConstraint(lp.Constraint{Name: name, Terms: terms, Sense: lp.LE, RHS: in.Demand.At(c, r)}); err != nil {
				return err
			}
		}
	}
	return nil
}

// balance[p,r]: sum_c ship[p,r,c] - prod[p,r] = 0
func (f *Formulation) addBalanceConstraints() error {
	in := f.Instance
	for p := range f.prod {
		for r, prodCol := range f.prod[p] {
			terms := make([]lp.Term, 0, len(f.ship[p][r])+1)
			for _, col := range f.ship[p][r] {
				terms = append(terms, lp.Term{Col: col, Coef: 1})
			}
			terms = append(terms, lp.Term{Col: prodCol, Coef: -1})
			name := fmt.Sprintf("balance[%s,%s]", in.Plants.Label(p), in.Products.Label(r))
			if err := f.Model.AddConstraint(lp.Constraint{Name: name, Terms: terms, Sense: lp.EQ, RHS: 0}); err != nil {
				return err
			}
		}
	}
	return nil
}

// inspection: sum ship over inspection plants, all products and inspection
// customers <= capacity. Skipped when either subset is empty.
func (f *Formulation) addInspectionConstraint() error {
	in := f.Instance
	if len(in.InspectionPlants) == 0 || len(in.InspectionCustomers) == 0 {
		return nil
	}
	var terms []lp.Term
	for _, p := range in.InspectionPlants {
		for r := range f.ship[p] {
			for _, c := range in.InspectionCustomers {
				terms = append(terms, lp.Term{Col: f.ship[p][r][c], Coef: 1})
			}
		}
	}
	return f.Model.AddConstraint(lp.Constraint{Name: "inspection", Terms: terms, Sense: lp.LE, RHS: in.InspectionCapacity})
}

// MachineConstraintName returns the row name of a plant's machine capacity.
func MachineConstraintName(plant string) string {
	return fmt.Sprintf("machine[%s]", plant)
}

// WithMachineHours returns a formulation whose machine[plant] row allows
// extra hours over the plant's base capacity. Extra hours are always added
// to the base capacity, never to a previous perturbation. The receiver is
// not modified.
func (f *Formulation) WithMachineHours(plant string, extra float64) (*Formulation, error) {
	p, err := f.Instance.Plants.Index(plant)
	if err != nil {
		return nil, errors.Wrap(err, "machine hours")
	}
	model, err := f.Model.ReplaceConstraint(f.machineRow(p, extra))
	if err != nil {
		return nil, err
	}
	out := *f
	out.Model = model
	return &out, nil
}
