// Package production formulates the production and shipping allocation
// problem: integer production per (plant, product) and shipments per
// (plant, product, customer) that maximize profit under labor, machine,
// material, demand, balance and inspection limits. It also runs the
// machine-hour sensitivity sweep.
package production

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"

	"optiplan/internal/engine"
)

// ErrUnknownScenario is returned for scenario names with no built-in data.
var ErrUnknownScenario = errors.New("unknown scenario")

// Matrix is nested literal data: outer key is the row label, inner key the
// column label.
type Matrix map[string]map[string]float64

// InstanceSpec is the serialized form of an instance, as read from YAML or
// JSON. Plant labels are strings ("1", "2", ...).
type InstanceSpec struct {
	Plants    []string `json:"plants"`
	Products  []string `json:"products"`
	Customers []string `json:"customers"`

	// Per plant and product.
	LaborHours     Matrix `json:"laborHours"`
	MachineHours   Matrix `json:"machineHours"`
	Material       Matrix `json:"material"`
	ProductionCost Matrix `json:"productionCost"`

	LaborCapacity   map[string]float64 `json:"laborCapacity"`
	MachineCapacity map[string]float64 `json:"machineCapacity"`
	TotalMaterial   float64            `json:"totalMaterial"`

	// Per customer and product.
	SalesPrice Matrix `json:"salesPrice"`
	Demand     Matrix `json:"demand"`

	// Per plant and customer.
	ShippingCost Matrix `json:"shippingCost"`

	Inspection InspectionSpec `json:"inspection"`
}

// InspectionSpec caps the shipments from a subset of plants to a subset of
// customers, summed over all products.
type InspectionSpec struct {
	Capacity  float64  `json:"capacity"`
	Plants    []string `json:"plants"`
	Customers []string `json:"customers"`
}

// Instance is a validated production problem.
type Instance struct {
	Plants    *engine.Set
	Products  *engine.Set
	Customers *engine.Set

	LaborHours     *engine.Table // plant x product
	MachineHours   *engine.Table // plant x product
	Material       *engine.Table // plant x product
	ProductionCost *engine.Table // plant x product
	SalesPrice     *engine.Table // customer x product
	Demand         *engine.Table // customer x product
	ShippingCost   *engine.Table // plant x customer

	LaborCapacity   *engine.Vector
	MachineCapacity *engine.Vector
	TotalMaterial   float64

	InspectionCapacity  float64
	InspectionPlants    []int
	InspectionCustomers []int
}

// Instance validates s. Every label used as a key must belong to the
// declared sets and every table must be complete.
func (s InstanceSpec) Instance() (*Instance, error) {
	plants, err := engine.NewSet(s.Plants...)
	if err != nil {
		return nil, errors.Wrap(err, "plants")
	}
	products, err := engine.NewSet(s.Products...)
	if err != nil {
		return nil, errors.Wrap(err, "products")
	}
	customers, err := engine.NewSet(s.Customers...)
	if err != nil {
		return nil, errors.Wrap(err, "customers")
	}
	if plants.Len() == 0 || products.Len() == 0 || customers.Len() == 0 {
		return nil, errors.Wrap(engine.ErrMalformed, "plants, products and customers must not be empty")
	}

	in := &Instance{
		Plants:             plants,
		Products:           products,
		Customers:          customers,
		TotalMaterial:      s.TotalMaterial,
		InspectionCapacity: s.Inspection.Capacity,
	}
	tables := []struct {
		name       string
		rows, cols *engine.Set
		data       Matrix
		dst        **engine.Table
	}{
		{"laborHours", plants, products, s.LaborHours, &in.LaborHours},
		{"machineHours", plants, products, s.MachineHours, &in.MachineHours},
		{"material", plants, products, s.Material, &in.Material},
		{"productionCost", plants, products, s.ProductionCost, &in.ProductionCost},
		{"salesPrice", customers, products, s.SalesPrice, &in.SalesPrice},
		{"demand", customers, products, s.Demand, &in.Demand},
		{"shippingCost", plants, customers, s.ShippingCost, &in.ShippingCost},
	}
	for _, t := range tables {
		table, err := engine.TableFromMap(t.rows, t.cols, t.data)
		if err != nil {
			return nil, errors.Wrap(err, t.name)
		}
		*t.dst = table
	}

	if in.LaborCapacity, err = engine.VectorFromMap(plants, s.LaborCapacity); err != nil {
		return nil, errors.Wrap(err, "laborCapacity")
	}
	if in.MachineCapacity, err = engine.VectorFromMap(plants, s.MachineCapacity); err != nil {
		return nil, errors.Wrap(err, "machineCapacity")
	}

	if _, err := engine.NewSet(s.Inspection.Plants...); err != nil {
		return nil, errors.Wrap(err, "inspection plants")
	}
	if _, err := engine.NewSet(s.Inspection.Customers...); err != nil {
		return nil, errors.Wrap(err, "inspection customers")
	}
	for _, p := range s.Inspection.Plants {
		id, err := plants.Index(p)
		if err != nil {
			return nil, errors.Wrap(err, "inspection plants")
		}
		in.InspectionPlants = append(in.InspectionPlants, id)
	}
	for _, c := range s.Inspection.Customers {
		id, err := customers.Index(c)
		if err != nil {
			return nil, errors.Wrap(err, "inspection customers")
		}
		in.InspectionCustomers = append(in.InspectionCustomers, id)
	}
	return in, nil
}

// ParseInstance reads an InstanceSpec from YAML (or JSON) and validates it.
func ParseInstance(data []byte) (*Instance, error) {
	var spec InstanceSpec
	if err := yaml.UnmarshalStrict(data, &spec); err != nil {
		return nil, errors.Wrap(engine.ErrMalformed, err.Error())
	}
	return spec.Instance()
}

// LoadInstance reads an instance file.
func LoadInstance(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read instance %s", path)
	}
	in, err := ParseInstance(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load instance %s", path)
	}
	klog.V(2).InfoS("Production instance loaded", "path", path,
		"plants", in.Plants.Len(), "products", in.Products.Len(), "customers", in.Customers.Len())
	return in, nil
}

// Scenario names of the built-in instances.
const (
	ScenarioBaseline       = "baseline"
	ScenarioExpandedDemand = "expanded-demand"
)

var scenarios = map[string]func() InstanceSpec{
	ScenarioBaseline:       BaselineSpec,
	ScenarioExpandedDemand: ExpandedDemandSpec,
}

// Scenarios lists the built-in scenario names in order.
func Scenarios() []string {
	names := make([]string, 0, len(scenarios))
	for n := range scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Scenario returns a built-in instance by name.
func Scenario(name string) (*Instance, error) {
	spec, ok := scenarios[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownScenario, "%q (have %v)", name, Scenarios())
	}
	return spec().Instance()
}

// BaselineSpec is the reference instance: three plants, four products and
// three customers.
func BaselineSpec() InstanceSpec {
	return InstanceSpec{
		Plants:    []string{"1", "2", "3"},
		Products:  []string{"Small", "Medium", "Large", "Precision"},
		Customers: []string{"RAYco", "HONco", "MMco"},
		LaborHours: Matrix{
			"1": {"Small": 3, "Medium": 3, "Large": 4, "Precision": 4},
			"2": {"Small": 3.5, "Medium": 3.5, "Large": 4.5, "Precision": 4.5},
			"3": {"Small": 3, "Medium": 3.5, "Large": 4, "Precision": 4.5},
		},
		MachineHours: Matrix{
			"1": {"Small": 8, "Medium": 8.5, "Large": 9, "Precision": 9},
			"2": {"Small": 7, "Medium": 7, "Large": 8, "Precision": 9},
			"3": {"Small": 7.5, "Medium": 7.5, "Large": 8.5, "Precision": 8.5},
		},
		Material: Matrix{
			"1": {"Small": 1.0, "Medium": 1.1, "Large": 1.2, "Precision": 1.3},
			"2": {"Small": 1.1, "Medium": 1.0, "Large": 1.1, "Precision": 1.4},
			"3": {"Small": 1.1, "Medium": 1.1, "Large": 1.3, "Precision": 1.3},
		},
		ProductionCost: Matrix{
			"1": {"Small": 14, "Medium": 16, "Large": 18, "Precision": 26},
			"2": {"Small": 13, "Medium": 17, "Large": 20, "Precision": 24},
			"3": {"Small": 14, "Medium": 15, "Large": 19, "Precision": 23},
		},
		LaborCapacity:   map[string]float64{"1": 6000, "2": 5000, "3": 3000},
		MachineCapacity: map[string]float64{"1": 10000, "2": 12500, "3": 6000},
		TotalMaterial:   3500,
		SalesPrice: Matrix{
			"RAYco": {"Small": 17, "Medium": 18, "Large": 22, "Precision": 29},
			"HONco": {"Small": 16, "Medium": 18, "Large": 22, "Precision": 26},
			"MMco":  {"Small": 16, "Medium": 17, "Large": 23, "Precision": 27},
		},
		Demand: Matrix{
			"RAYco": {"Small": 200, "Medium": 300, "Large": 500, "Precision": 200},
			"HONco": {"Small": 400, "Medium": 300, "Large": 200, "Precision": 400},
			"MMco":  {"Small": 200, "Medium": 400, "Large": 300, "Precision": 300},
		},
		ShippingCost: Matrix{
			"1": {"RAYco": 1.0, "HONco": 1.6, "MMco": 1.1},
			"2": {"RAYco": 1.2, "HONco": 1.5, "MMco": 1.0},
			"3": {"RAYco": 1.4, "HONco": 1.5, "MMco": 1.3},
		},
		Inspection: InspectionSpec{
			Capacity:  1500,
			Plants:    []string{"1", "2"},
			Customers: []string{"RAYco", "HONco"},
		},
	}
}

// ExpandedDemandSpec is the baseline with RAYco's demand raised by half.
func ExpandedDemandSpec() InstanceSpec {
	s := BaselineSpec()
	s.Demand["RAYco"] = map[string]float64{"Small": 300, "Medium": 450, "Large": 750, "Precision": 300}
	return s
}
