package api

import (
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"optiplan/internal/engine"
	"optiplan/internal/hub"
	"optiplan/internal/models"
)

type matrixView struct {
	Rows   []string    `json:"rows"`
	Cols   []string    `json:"cols"`
	Values [][]float64 `json:"values"`
}

func newMatrixView(t *engine.Table) matrixView {
	v := matrixView{Rows: t.Rows.Labels(), Cols: t.Cols.Labels(), Values: make([][]float64, t.Rows.Len())}
	for i := range v.Values {
		v.Values[i] = make([]float64, t.Cols.Len())
		for j := range v.Values[i] {
			v.Values[i][j] = t.At(i, j)
		}
	}
	return v
}

// GetCostMatrix returns the default cost matrix as a grid.
func (h *Handler) GetCostMatrix(c echo.Context) error {
	t := h.Matrix()
	if t == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "cost matrix is still loading")
	}
	return c.JSON(http.StatusOK, newMatrixView(t))
}

// SolveHub solves the hub location model. Form fields:
//
//	matrix           optional CSV or .xlsx upload; the default matrix otherwise
//	hubs             number of hubs to open; the instance default otherwise
//	singleHubRoutes  "true" to allow routes through one hub
//	overrides        JSON list of {"row","col","value"} cell edits
//
// With ?format=csv the allocation plan is returned as CSV.
func (h *Handler) SolveHub(c echo.Context) error {
	costs, err := h.costMatrix(c)
	if err != nil {
		return err
	}
	if raw := c.FormValue("overrides"); raw != "" {
		var overrides []engine.Override
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "overrides: "+err.Error())
		}
		if costs, err = costs.WithOverrides(overrides...); err != nil {
			return httpError(err)
		}
	}

	singleHubRoutes := h.defaults.SingleHubRoutes
	if raw := c.FormValue("singleHubRoutes"); raw != "" {
		if singleHubRoutes, err = strconv.ParseBool(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "singleHubRoutes must be a boolean")
		}
	}
	in := hub.NewInstance(costs, singleHubRoutes)

	p := in.DefaultHubCount()
	if raw := c.FormValue("hubs"); raw != "" {
		if p, err = strconv.Atoi(raw); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "hubs must be an integer")
		}
	}
	if err := in.CheckHubCount(p); err != nil {
		return httpError(err)
	}

	var res *models.HubResult
	err = h.solve(func() (err error) {
		res, err = hub.Solve(c.Request().Context(), h.solver, in, p)
		return err
	})
	if err != nil {
		return httpError(err)
	}
	res.RunID = uuid.NewString()

	h.mu.Lock()
	h.lastHub = res
	h.mu.Unlock()

	if wantsCSV(c) {
		return writeCSV(c, h.records.Allocation(res.AllocationPlan), "allocation.csv")
	}
	return c.JSON(http.StatusOK, res)
}

// costMatrix returns the uploaded matrix, or the default one when the
// request carries no file.
func (h *Handler) costMatrix(c echo.Context) (*engine.Table, error) {
	fh, err := c.FormFile("matrix")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			if t := h.Matrix(); t != nil {
				return t, nil
			}
			return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "cost matrix is still loading; upload one instead")
		}
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	defer f.Close()

	t, err := engine.ParseCostMatrixFile(fh.Filename, fh.Header.Get(echo.HeaderContentType), f)
	if err == nil {
		err = hub.CheckSize(t)
	}
	if err != nil {
		return nil, httpError(errors.Wrapf(err, "matrix %s", fh.Filename))
	}
	return t, nil
}

// GetAllocation pages through the allocation plan of the latest hub solve.
func (h *Handler) GetAllocation(c echo.Context) error {
	h.mu.RLock()
	res := h.lastHub
	h.mu.RUnlock()
	if res == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no hub model has been solved yet")
	}

	rows := res.AllocationPlan
	total := len(rows)
	limit, offset := getPaginationParams(c, total)

	if offset >= total {
		rows = []models.AllocationRow{}
	} else {
		end := offset + limit
		if end > total {
			end = total
		}
		rows = rows[offset:end]
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"run_id": res.RunID,
		"data":   rows,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
