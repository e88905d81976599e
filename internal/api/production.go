package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"optiplan/internal/models"
	"optiplan/internal/production"
)

// instanceRequest names a built-in scenario or carries a full instance.
// Instance wins when both are set.
type instanceRequest struct {
	Scenario string                   `json:"scenario"`
	Instance *production.InstanceSpec `json:"instance"`
}

func (r instanceRequest) load(fallback string) (*production.Instance, error) {
	if r.Instance != nil {
		return r.Instance.Instance()
	}
	if r.Scenario == "" {
		return production.Scenario(fallback)
	}
	return production.Scenario(r.Scenario)
}

type productionRequest struct {
	instanceRequest
	ShadowPrices bool `json:"shadowPrices"`
}

type sweepRequest struct {
	instanceRequest
	Plants []string               `json:"plants"`
	Range  *production.SweepRange `json:"range"`
}

type sweepResponse struct {
	RunID   string               `json:"run_id"`
	Reports []models.SweepReport `json:"reports"`
}

// SolveProduction solves a production instance. With ?format=csv&table=X
// one table (production, shipping or summary) is returned as CSV.
func (h *Handler) SolveProduction(c echo.Context) error {
	var req productionRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	in, err := req.load(h.defaults.Scenario)
	if err != nil {
		return httpError(err)
	}
	f, err := production.Build(in)
	if err != nil {
		return httpError(err)
	}

	var res *models.ProductionResult
	err = h.solve(func() error {
		ctx := c.Request().Context()
		if res, err = production.SolveFormulation(ctx, h.solver, f); err != nil {
			return err
		}
		if req.ShadowPrices {
			res.ShadowPrices, err = production.MachineShadowPrices(ctx, h.solver, f)
		}
		return err
	})
	if err != nil {
		return httpError(err)
	}
	res.RunID = uuid.NewString()

	if wantsCSV(c) {
		switch table := c.QueryParam("table"); table {
		case "", "production":
			return writeCSV(c, h.records.Production(res.ProductionPlan), "production_plan.csv")
		case "shipping":
			return writeCSV(c, h.records.Shipping(res.ShippingPlan), "shipping_plan.csv")
		case "summary":
			return writeCSV(c, h.records.Summary(res.PlantSummaries), "plant_summary.csv")
		default:
			return echo.NewHTTPError(http.StatusBadRequest, "unknown table "+table)
		}
	}
	return c.JSON(http.StatusOK, res)
}

// SweepProduction runs the machine-hour sweep for the requested plants.
func (h *Handler) SweepProduction(c echo.Context) error {
	var req sweepRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	plants := req.Plants
	if len(plants) == 0 {
		plants = h.defaults.SweepPlants
	}
	r := h.defaults.SweepRange
	if req.Range != nil {
		r = *req.Range
	}
	if err := r.Validate(); err != nil {
		return httpError(err)
	}

	in, err := req.load(h.defaults.Scenario)
	if err != nil {
		return httpError(err)
	}
	f, err := production.Build(in)
	if err != nil {
		return httpError(err)
	}

	var reports []models.SweepReport
	err = h.solve(func() (err error) {
		reports, err = production.SweepPlants(c.Request().Context(), h.solver, f, plants, r)
		return err
	})
	if err != nil {
		return httpError(err)
	}

	if wantsCSV(c) {
		return writeCSV(c, h.records.Sweep(reports), "sweep.csv")
	}
	return c.JSON(http.StatusOK, sweepResponse{RunID: uuid.NewString(), Reports: reports})
}
