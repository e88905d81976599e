// Package hub formulates the multiple-allocation hub location problem with
// interconnected hubs: every ordered origin/destination pair is routed
// through an ordered pair of hubs, exactly p hubs are opened, and the total
// combined routing cost is minimized.
package hub

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"optiplan/internal/engine"
)

// DefaultHubCount is the number of hubs opened when the caller gives none.
const DefaultHubCount = 5

// MaxCombinedCosts bounds nodes^2 * hubs^2, the size of the combined cost
// table an instance derives.
const MaxCombinedCosts = 1 << 22

// ErrTooLarge is returned for cost matrices too large to derive an instance from.
var ErrTooLarge = errors.New("cost matrix too large")

// Pair is an ordered origin/destination node pair, by node ID.
type Pair struct {
	Origin, Destination int
}

// Route is an ordered (first hub, second hub) pair, by hub ID.
type Route struct {
	First, Second int
}

// Instance is a validated cost table together with the index sets and the
// combined costs derived from it.
type Instance struct {
	Costs *engine.Table
	Nodes *engine.Set
	Hubs  *engine.Set

	// SingleHubRoutes admits routes whose two legs use the same hub.
	SingleHubRoutes bool

	Pairs  []Pair
	Routes []Route

	// combined is the dense 4-ary cost table, [i][k][m][j] flattened.
	combined []float64
}

// CheckSize rejects cost tables whose combined cost table would exceed
// MaxCombinedCosts entries. Callers holding untrusted tables check before
// NewInstance.
func CheckSize(costs *engine.Table) error {
	n, h := float64(costs.Rows.Len()), float64(costs.Cols.Len())
	if n*n*h*h > MaxCombinedCosts {
		return errors.Wrapf(ErrTooLarge, "%d nodes and %d hubs need %.0f combined costs, limit %d",
			costs.Rows.Len(), costs.Cols.Len(), n*n*h*h, MaxCombinedCosts)
	}
	return nil
}

// NewInstance derives pairs, routes and the combined cost
// cost(i,k,m,j) = base[i,k] + base[j,m] for every pair and route.
func NewInstance(costs *engine.Table, singleHubRoutes bool) *Instance {
	n, h := costs.Rows.Len(), costs.Cols.Len()
	in := &Instance{
		Costs:           costs,
		Nodes:           costs.Rows,
		Hubs:            costs.Cols,
		SingleHubRoutes: singleHubRoutes,
		combined:        make([]float64, n*h*h*n),
	}

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				in.Pairs = append(in.Pairs, Pair{i, j})
			}
		}
	}
	for k := 0; k < h; k++ {
		for m := 0; m < h; m++ {
			if k != m || singleHubRoutes {
				in.Routes = append(in.Routes, Route{k, m})
			}
		}
	}

	for _, p := range in.Pairs {
		for _, r := range in.Routes {
			in.combined[in.offset(p.Origin, r.First, r.Second, p.Destination)] =
				costs.At(p.Origin, r.First) + costs.At(p.Destination, r.Second)
		}
	}

	klog.V(2).InfoS("Hub instance derived", "nodes", n, "hubs", h, "pairs", len(in.Pairs), "routes", len(in.Routes))
	return in
}

func (in *Instance) offset(i, k, m, j int) int {
	n, h := in.Nodes.Len(), in.Hubs.Len()
	return ((i*h+k)*h+m)*n + j
}

// CombinedCost returns cost(i,k,m,j) by IDs. Entries outside the derived
// pairs and routes are 0.
func (in *Instance) CombinedCost(i, k, m, j int) float64 {
	return in.combined[in.offset(i, k, m, j)]
}

// RouteCost is CombinedCost for a pair and a route.
func (in *Instance) RouteCost(p Pair, r Route) float64 {
	return in.CombinedCost(p.Origin, r.First, r.Second, p.Destination)
}

// MinHubCount is the smallest hub count the interactive surfaces accept.
// Without single-hub routes a route needs two distinct open hubs.
func (in *Instance) MinHubCount() int {
	if in.SingleHubRoutes {
		return 1
	}
	return 2
}

// CheckHubCount rejects hub counts outside [MinHubCount, number of hubs].
func (in *Instance) CheckHubCount(p int) error {
	if p < in.MinHubCount() || p > in.Hubs.Len() {
		return errors.Wrapf(ErrHubCount, "hubs must be between %d and %d, got %d", in.MinHubCount(), in.Hubs.Len(), p)
	}
	return nil
}

// DefaultHubCount returns DefaultHubCount clamped to the available hubs.
func (in *Instance) DefaultHubCount() int {
	if in.Hubs.Len() < DefaultHubCount {
		return in.Hubs.Len()
	}
	return DefaultHubCount
}
