package production

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"optiplan/internal/lp"
	"optiplan/internal/models"
)

// ErrSweepRange is returned for empty or non-advancing sweep ranges.
var ErrSweepRange = errors.New("invalid sweep range")

// SweepRange is the half-open range [From, To) of additional machine hours,
// walked in increments of Step.
type SweepRange struct {
	From float64 `json:"from"`
	To   float64 `json:"to"`
	Step float64 `json:"step"`
}

// MaxSweepPoints bounds the number of solves a single sweep may request.
const MaxSweepPoints = 10000

// DefaultSweepRange is 0 to 199 additional hours in unit steps.
func DefaultSweepRange() SweepRange {
	return SweepRange{From: 0, To: 200, Step: 1}
}

// DefaultSweepPlants is the plant order of the reference analysis.
var DefaultSweepPlants = []string{"3", "1", "2"}

func (r SweepRange) Validate() error {
	if r.Step <= 0 || math.IsNaN(r.Step) || math.IsInf(r.Step, 0) {
		return errors.Wrapf(ErrSweepRange, "step %v", r.Step)
	}
	if !(r.To > r.From) || math.IsInf(r.To, 0) || math.IsInf(r.From, 0) {
		return errors.Wrapf(ErrSweepRange, "[%v, %v)", r.From, r.To)
	}
	if n := math.Ceil((r.To - r.From) / r.Step); !(n <= MaxSweepPoints) {
		return errors.Wrapf(ErrSweepRange, "[%v, %v) in steps of %v exceeds %d points", r.From, r.To, r.Step, MaxSweepPoints)
	}
	return nil
}

// Hours lists the points of the range. Points are computed as From + i*Step
// so rounding does not accumulate. An invalid range has no points.
func (r SweepRange) Hours() []float64 {
	if r.Validate() != nil {
		return nil
	}
	n := int(math.Ceil((r.To - r.From) / r.Step))
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		h := r.From + float64(i)*r.Step
		if h >= r.To {
			break
		}
		out = append(out, h)
	}
	return out
}

// Sweep re-solves f once per point of r with machine[plant] raised by that
// many hours and records the optimal profit. Each step derives its model from
// f, so steps are independent of each other. A step that is not solved to
// optimality aborts the sweep.
func Sweep(ctx context.Context, solver lp.Solver, f *Formulation, plant string, r SweepRange) ([]models.SweepPoint, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	hours := r.Hours()
	points := make([]models.SweepPoint, 0, len(hours))
	for _, h := range hours {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "sweep plant %s at %v hours", plant, h)
		}
		step, err := f.WithMachineHours(plant, h)
		if err != nil {
			return nil, err
		}
		sol, err := solver.Solve(ctx, step.Model)
		if err != nil {
			return nil, errors.Wrapf(err, "sweep plant %s at %v hours", plant, h)
		}
		if err := lp.RequireOptimal(sol); err != nil {
			return nil, errors.Wrapf(err, "sweep plant %s at %v hours", plant, h)
		}
		klog.V(3).InfoS("Sweep step", "plant", plant, "additionalHours", h, "profit", sol.Objective)
		points = append(points, models.SweepPoint{AdditionalHours: h, Profit: sol.Objective})
	}
	return points, nil
}

// AnalyzeSweep computes the marginal profit between consecutive points and
// picks the largest. Ties go to the first (lowest hours) occurrence. The
// reported hours are those of the point the best increment starts from.
func AnalyzeSweep(plant string, points []models.SweepPoint) models.SweepReport {
	rep := models.SweepReport{Plant: plant, Points: points, MarginalValues: []float64{}}
	if len(points) < 2 {
		return rep
	}

	best := -1
	for i := 0; i+1 < len(points); i++ {
		dh := points[i+1].AdditionalHours - points[i].AdditionalHours
		mv := (points[i+1].Profit - points[i].Profit) / dh
		rep.MarginalValues = append(rep.MarginalValues, mv)
		if best < 0 || mv > rep.MarginalValues[best] {
			best = i
		}
	}
	rep.OptimalAdditionalHours = points[best].AdditionalHours
	rep.WillingnessToPay = rep.MarginalValues[best]
	return rep
}

// SweepPlants sweeps each plant in order and analyzes every series.
func SweepPlants(ctx context.Context, solver lp.Solver, f *Formulation, plants []string, r SweepRange) ([]models.SweepReport, error) {
	reports := make([]models.SweepReport, 0, len(plants))
	for _, plant := range plants {
		points, err := Sweep(ctx, solver, f, plant, r)
		if err != nil {
			return nil, err
		}
		rep := AnalyzeSweep(plant, points)
		klog.InfoS("Sweep finished", "plant", plant, "points", len(points),
			"optimalAdditionalHours", rep.OptimalAdditionalHours, "willingnessToPay", rep.WillingnessToPay)
		reports = append(reports, rep)
	}
	return reports, nil
}
