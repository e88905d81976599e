package hub

import (
	"fmt"

	"github.com/pkg/errors"

	"optiplan/internal/lp"
)

// ErrHubCount is returned when p is outside [1, number of hubs].
var ErrHubCount = errors.New("invalid hub count")

// Formulation is a built hub model and the column bookkeeping needed to
// read its solution back.
type Formulation struct {
	Model    *lp.Model
	Instance *Instance
	P        int

	// route[pair][route] is the column of x[i,j,k,m].
	route [][]int
	// open[k] is the column of y[k].
	open []int
}

// Build declares the route and hub variables, the cost objective and the
// constraint families total_hubs, allocation, flow_first and flow_second.
// The same instance and p always yield the same model.
func Build(in *Instance, p int) (*Formulation, error) {
	if p < 1 || p > in.Hubs.Len() {
		return nil, errors.Wrapf(ErrHubCount, "p=%d with %d hubs", p, in.Hubs.Len())
	}
	if len(in.Routes) == 0 {
		return nil, errors.Wrap(ErrHubCount, "no hub routes; at least two hubs are needed")
	}

	f := &Formulation{
		Model:    lp.NewModel("hub_location", lp.Minimize),
		Instance: in,
		P:        p,
	}
	if err := f.addVariables(); err != nil {
		return nil, err
	}
	if err := f.setObjective(); err != nil {
		return nil, err
	}
	if err := f.addTotalHubsConstraint(); err != nil {
		return nil, err
	}
	if err := f.addAllocationConstraints(); err != nil {
		return nil, err
	}
	if err := f.addFlowConstraints(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Formulation) addVariables() error {
	in := f.Instance
	f.route = make([][]int, len(in.Pairs))
	for pi, p := range in.Pairs {
		f.route[pi] = make([]int, len(in.Routes))
		for ri, r := range in.Routes {
			col, err := f.Model.AddVar(fmt.Sprintf("x[%s,%s,%s,%s]",
				in.Nodes.Label(p.Origin), in.Nodes.Label(p.Destination),
				in.Hubs.Label(r.First), in.Hubs.Label(r.Second)), lp.Binary)
			if err != nil {
				return err
			}
			f.route[pi][ri] = col
		}
	}

	f.open = make([]int, in.Hubs.Len())
	for k := range f.open {
		col, err := f.Model.AddVar(fmt.Sprintf("y[%s]", in.Hubs.Label(k)), lp.Binary)
		if err != nil {
			return err
		}
		f.open[k] = col
	}
	return nil
}

func (f *Formulation) setObjective() error {
	in := f.Instance
	terms := make([]lp.Term, 0, len(in.Pairs)*len(in.Routes))
	for pi, p := range in.Pairs {
		for ri, r := range in.Routes {
			terms = append(terms, lp.Term{Col: f.route[pi][ri], Coef: in.RouteCost(p, r)})
		}
	}
	return f.Model.SetObjective(terms...)
}

// total_hubs: sum_k y[k] = p
func (f *Formulation) addTotalHubsConstraint() error {
	terms := make([]lp.Term, len(f.open))
	for k, col := range f.open {
		terms[k] = lp.Term{Col: col, Coef: 1}
	}
	return f.Model.AddConstraint(lp.Constraint{Name: "total_hubs", Terms: terms, Sense: lp.EQ, RHS: float64(f.P)})
}

// allocation[i,j]: sum_(k,m) x[i,j,k,m] = 1
func (f *Formulation) addAllocationConstraints() error {
	in := f.Instance
	for pi, p := range in.Pairs {
		terms := make([]lp.Term, len(in.Routes))
		for ri := range in.Routes {
			terms[ri] = lp.Term{Col: f.route[pi][ri], Coef: 1}
		}
		name := fmt.Sprintf("allocation[%s,%s]", in.Nodes.Label(p.Origin), in.Nodes.Label(p.Destination))
		if err := f.Model.AddConstraint(lp.Constraint{Name: name, Terms: terms, Sense: lp.EQ, RHS: 1}); err != nil {
			return err
		}
	}
	return nil
}

// flow_first[i,j,k]:  sum_m x[i,j,k,m] <= y[k]
// flow_second[i,j,m]: sum_k x[i,j,k,m] <= y[m]
func (f *Formulation) addFlowConstraints() error {
	in := f.Instance
	legs := []struct {
		family string
		hubOf  func(Route) int
	}{
		{"flow_first", func(r Route) int { return r.First }},
		{"flow_second", func(r Route) int { return r.Second }},
	}
	for _, leg := range legs {
		for pi, p := range in.Pairs {
			for hub, col := range f.open {
				terms := []lp.Term{{Col: col, Coef: -1}}
				for ri, r := range in.Routes {
					if leg.hubOf(r) == hub {
						terms = append(terms, lp.Term{Col: f.route[pi][ri], Coef: 1})
					}
				}
				name := fmt.Sprintf("%s[%s,%s,%s]", leg.family,
					in.Nodes.Label(p.Origin), in.Nodes.Label(p.Destination), in.Hubs.Label(hub))
				if err := f.Model.AddConstraint(lp.Constraint{Name: name, Terms: terms, Sense: lp.LE, RHS: 0}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// RouteColumn returns the column of x for a pair and route index.
func (f *Formulation) RouteColumn(pair, route int) int { return f.route[pair][route] }

// HubColumn returns the column of y for a hub ID.
func (f *Formulation) HubColumn(hub int) int { return f.open[hub] }
