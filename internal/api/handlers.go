// Package api serves the hub and production solvers over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"optiplan/internal/engine"
	"optiplan/internal/export"
	"optiplan/internal/hub"
	"optiplan/internal/lp"
	"optiplan/internal/models"
	"optiplan/internal/production"
)

// Defaults apply when a request leaves a setting out.
type Defaults struct {
	SingleHubRoutes bool
	Scenario        string
	SweepPlants     []string
	SweepRange      production.SweepRange
}

type Handler struct {
	solver   lp.Solver
	defaults Defaults
	records  *export.Builder

	// solveMu admits one solve at a time.
	solveMu sync.Mutex

	mu      sync.RWMutex
	matrix  *engine.Table
	lastHub *models.HubResult
}

// NewHandler returns a handler with no default cost matrix. Hub solves
// without an uploaded matrix answer 503 until SetMatrix is called.
func NewHandler(solver lp.Solver, defaults Defaults) *Handler {
	if defaults.Scenario == "" {
		defaults.Scenario = production.ScenarioBaseline
	}
	if len(defaults.SweepPlants) == 0 {
		defaults.SweepPlants = production.DefaultSweepPlants
	}
	if defaults.SweepRange == (production.SweepRange{}) {
		defaults.SweepRange = production.DefaultSweepRange()
	}
	return &Handler{solver: solver, defaults: defaults, records: export.NewBuilder(nil)}
}

// SetMatrix installs the default cost matrix.
func (h *Handler) SetMatrix(t *engine.Table) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.matrix = t
}

func (h *Handler) Matrix() *engine.Table {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.matrix
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")
	api.GET("/scenarios", h.GetScenarios)
	api.GET("/hub/matrix", h.GetCostMatrix)
	api.POST("/hub/solve", h.SolveHub)
	api.GET("/hub/allocation", h.GetAllocation)
	api.POST("/production/solve", h.SolveProduction)
	api.POST("/production/sweep", h.SweepProduction)
}

// --- HELPERS ---
func getPaginationParams(c echo.Context, defaultLimit int) (int, int) {
	limit, err := strconv.Atoi(c.QueryParam("limit"))
	if err != nil || limit <= 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(c.QueryParam("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// solve runs fn while holding the solve lock.
func (h *Handler) solve(fn func() error) error {
	h.solveMu.Lock()
	defer h.solveMu.Unlock()
	return fn()
}

// httpError maps domain errors to status codes. Input problems are 400,
// solves that end without an optimum are 422.
func httpError(err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, engine.ErrMalformed),
		errors.Is(err, engine.ErrUnknownLabel),
		errors.Is(err, hub.ErrHubCount),
		errors.Is(err, hub.ErrTooLarge),
		errors.Is(err, production.ErrUnknownScenario),
		errors.Is(err, production.ErrSweepRange):
		code = http.StatusBadRequest
	case errors.Is(err, lp.ErrNotOptimal), errors.Is(err, production.ErrNoDuals):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, lp.ErrSolverUnavailable):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusRequestTimeout
	}
	if code == http.StatusInternalServerError {
		klog.ErrorS(err, "Request failed")
	}
	return echo.NewHTTPError(code, err.Error()).SetInternal(err)
}

// writeCSV streams rec as a CSV attachment and releases it.
func writeCSV(c echo.Context, rec arrow.Record, filename string) error {
	defer rec.Release()
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=UTF-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	res.WriteHeader(http.StatusOK)
	return export.WriteCSV(res, rec)
}

func wantsCSV(c echo.Context) bool {
	return c.QueryParam("format") == "csv"
}

// --- HANDLERS ---

// GetScenarios lists the built-in production scenarios and sweep defaults.
func (h *Handler) GetScenarios(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"scenarios":    production.Scenarios(),
		"default":      h.defaults.Scenario,
		"sweep_plants": h.defaults.SweepPlants,
		"sweep_range":  h.defaults.SweepRange,
	})
}
