package models

// HubResult is the extracted answer of a hub-location solve. Relaxed marks
// a plan read from an integral continuous relaxation.
type HubResult struct {
	RunID          string          `json:"run_id,omitempty"`
	Status         string          `json:"status"`
	Objective      float64         `json:"objective"`
	Relaxed        bool            `json:"relaxed,omitempty"`
	HubCount       int             `json:"hub_count"`
	ActiveHubs     []string        `json:"active_hubs"`
	AllocationPlan []AllocationRow `json:"allocation_plan"`
}

type AllocationRow struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	FirstHub    string  `json:"first_hub"`
	SecondHub   string  `json:"second_hub"`
	Allocation  float64 `json:"allocation"`
	Cost        float64 `json:"cost"`
}

// ProductionResult is the extracted answer of a production/shipping solve.
type ProductionResult struct {
	RunID           string          `json:"run_id,omitempty"`
	Status          string          `json:"status"`
	Objective       float64         `json:"objective"`
	Relaxed         bool            `json:"relaxed,omitempty"`
	ProductionPlan  []ProductionRow `json:"production_plan"`
	ShippingPlan    []ShippingRow   `json:"shipping_plan"`
	ProductionPivot PivotTable      `json:"production_pivot"`
	ShippingPivot   PivotTable      `json:"shipping_pivot"`
	PlantSummaries  []PlantSummary  `json:"plant_summaries"`
	ShadowPrices    []ShadowPrice   `json:"shadow_prices,omitempty"`
}

type ProductionRow struct {
	Plant          string  `json:"plant"`
	Product        string  `json:"product"`
	Production     float64 `json:"production"`
	ProductionCost float64 `json:"production_cost"`
}

type ShippingRow struct {
	Plant        string  `json:"plant"`
	Product      string  `json:"product"`
	Customer     string  `json:"customer"`
	Shipping     float64 `json:"shipping"`
	ShippingCost float64 `json:"shipping_cost"`
	Revenue      float64 `json:"revenue"`
}

// PivotTable is a contingency table: Cells[i][j] is the value at
// (RowLabels[i], ColLabels[j]). Composite row keys are joined with "/".
type PivotTable struct {
	RowLabels []string    `json:"row_labels"`
	ColLabels []string    `json:"col_labels"`
	Cells     [][]float64 `json:"cells"`
}

type PlantSummary struct {
	Plant          string  `json:"plant"`
	ProductionCost float64 `json:"production_cost"`
	ShippingCost   float64 `json:"shipping_cost"`
	TotalCost      float64 `json:"total_cost"`
	Revenue        float64 `json:"revenue"`
	NetRevenue     float64 `json:"net_revenue"`
}

// ShadowPrice is the dual value of one capacity constraint, taken from a
// continuous relaxation.
type ShadowPrice struct {
	Constraint string  `json:"constraint"`
	Plant      string  `json:"plant"`
	Dual       float64 `json:"dual"`
	Relaxed    bool    `json:"relaxed"`
}

type SweepPoint struct {
	AdditionalHours float64 `json:"additional_hours"`
	Profit          float64 `json:"profit"`
}

// SweepReport is the machine-hour sensitivity result for one plant.
type SweepReport struct {
	Plant                  string       `json:"plant"`
	Points                 []SweepPoint `json:"points"`
	MarginalValues         []float64    `json:"marginal_values"`
	OptimalAdditionalHours float64      `json:"optimal_additional_hours"`
	WillingnessToPay       float64      `json:"willingness_to_pay"`
}
