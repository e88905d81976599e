package engine

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"optiplan/internal/models"
)

// Ledger is a columnar list of per-plant cash flows: one entry per plan row,
// with the plant dictionary-encoded against Plants.
type Ledger struct {
	Plants *Set

	PlantIDs        []int32
	ProductionCosts []float64
	ShippingCosts   []float64
	Revenues        []float64
}

// NewLedger encodes production and shipping plan rows. Every row must name a
// plant of the set.
func NewLedger(plants *Set, production []models.ProductionRow, shipping []models.ShippingRow) (*Ledger, error) {
	n := len(production) + len(shipping)
	l := &Ledger{
		Plants:          plants,
		PlantIDs:        make([]int32, 0, n),
		ProductionCosts: make([]float64, 0, n),
		ShippingCosts:   make([]float64, 0, n),
		Revenues:        make([]float64, 0, n),
	}
	for _, row := range production {
		if err := l.add(row.Plant, row.ProductionCost, 0, 0); err != nil {
			return nil, err
		}
	}
	for _, row := range shipping {
		if err := l.add(row.Plant, 0, row.ShippingCost, row.Revenue); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Ledger) add(plant string, production, shipping, revenue float64) error {
	id, err := l.Plants.Index(plant)
	if err != nil {
		return errors.Wrap(err, "ledger plant")
	}
	l.PlantIDs = append(l.PlantIDs, int32(id))
	l.ProductionCosts = append(l.ProductionCosts, production)
	l.ShippingCosts = append(l.ShippingCosts, shipping)
	l.Revenues = append(l.Revenues, revenue)
	return nil
}

func (l *Ledger) Len() int { return len(l.PlantIDs) }

type plantTotals struct {
	production []float64
	shipping   []float64
	revenue    []float64
}

// minChunk keeps tiny ledgers on a single worker.
const minChunk = 1024

// Aggregate sums the ledger per plant and returns one summary per plant in
// set order. Chunks are summed in parallel and merged in chunk order, so the
// result does not depend on scheduling.
func (l *Ledger) Aggregate() []models.PlantSummary {
	numPlants := l.Plants.Len()

	numWorkers := runtime.NumCPU()
	if limit := (l.Len() + minChunk - 1) / minChunk; numWorkers > limit {
		numWorkers = limit
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	chunkSize := l.Len() / numWorkers

	partials := make([]*plantTotals, numWorkers)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if i == numWorkers-1 {
			end = l.Len()
		}

		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			p := &plantTotals{
				production: make([]float64, numPlants),
				shipping:   make([]float64, numPlants),
				revenue:    make([]float64, numPlants),
			}
			ids := l.PlantIDs
			for j := s; j < e; j++ {
				pid := ids[j]
				p.production[pid] += l.ProductionCosts[j]
				p.shipping[pid] += l.ShippingCosts[j]
				p.revenue[pid] += l.Revenues[j]
			}
			partials[w] = p
		}(i, start, end)
	}
	wg.Wait()

	out := make([]models.PlantSummary, numPlants)
	for id := range out {
		out[id].Plant = l.Plants.Label(id)
	}
	for _, p := range partials {
		for id := range out {
			out[id].ProductionCost += p.production[id]
			out[id].ShippingCost += p.shipping[id]
			out[id].Revenue += p.revenue[id]
		}
	}
	for id := range out {
		out[id].TotalCost = out[id].ProductionCost + out[id].ShippingCost
		out[id].NetRevenue = out[id].Revenue - out[id].TotalCost
	}
	return out
}

// AggregatePlants builds a ledger from plan rows and aggregates it.
func AggregatePlants(plants *Set, production []models.ProductionRow, shipping []models.ShippingRow) ([]models.PlantSummary, error) {
	l, err := NewLedger(plants, production, shipping)
	if err != nil {
		return nil, err
	}
	return l.Aggregate(), nil
}
