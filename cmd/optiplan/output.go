package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"optiplan/internal/models"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func row(w io.Writer, cells ...string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}

func num(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func qty(v float64) string {
	return fmt.Sprintf("%g", v)
}

func writeHubResult(w io.Writer, res *models.HubResult) error {
	fmt.Fprintf(w, "Status:      %s\n", res.Status)
	fmt.Fprintf(w, "Total cost:  %s\n", num(res.Objective))
	fmt.Fprintf(w, "Active hubs: %s (%d)\n", strings.Join(res.ActiveHubs, ", "), res.HubCount)
	if res.Relaxed {
		fmt.Fprintln(w, "Solved as a continuous relaxation with an integral optimum.")
	}
	fmt.Fprintln(w)

	t := newTable(w)
	row(t, "ORIGIN", "DESTINATION", "FIRST HUB", "SECOND HUB", "COST")
	for _, r := range res.AllocationPlan {
		row(t, r.Origin, r.Destination, r.FirstHub, r.SecondHub, num(r.Cost))
	}
	return t.Flush()
}

func writeProductionResult(w io.Writer, res *models.ProductionResult) error {
	fmt.Fprintf(w, "Status: %s\n", res.Status)
	fmt.Fprintf(w, "Profit: %s\n", num(res.Objective))
	if res.Relaxed {
		fmt.Fprintln(w, "Solved as a continuous relaxation; quantities may be fractional.")
	}

	fmt.Fprintln(w, "\nProduction (plant x product)")
	if err := writePivot(w, "PLANT", res.ProductionPivot); err != nil {
		return err
	}
	fmt.Fprintln(w, "\nShipping (plant/product x customer)")
	if err := writePivot(w, "PLANT/PRODUCT", res.ShippingPivot); err != nil {
		return err
	}

	fmt.Fprintln(w, "\nPlant summary")
	t := newTable(w)
	row(t, "PLANT", "PRODUCTION COST", "SHIPPING COST", "TOTAL COST", "REVENUE", "NET REVENUE")
	for _, s := range res.PlantSummaries {
		row(t, s.Plant, num(s.ProductionCost), num(s.ShippingCost), num(s.TotalCost), num(s.Revenue), num(s.NetRevenue))
	}
	if err := t.Flush(); err != nil {
		return err
	}

	if len(res.ShadowPrices) == 0 {
		return nil
	}
	fmt.Fprintln(w, "\nMachine-hour shadow prices (continuous relaxation)")
	t = newTable(w)
	row(t, "CONSTRAINT", "PLANT", "DUAL")
	for _, sp := range res.ShadowPrices {
		row(t, sp.Constraint, sp.Plant, num(sp.Dual))
	}
	return t.Flush()
}

func writePivot(w io.Writer, corner string, p models.PivotTable) error {
	t := newTable(w)
	row(t, append([]string{corner}, p.ColLabels...)...)
	for i, label := range p.RowLabels {
		cells := []string{label}
		for _, v := range p.Cells[i] {
			cells = append(cells, qty(v))
		}
		row(t, cells...)
	}
	return t.Flush()
}

func writeSweepReports(w io.Writer, reports []models.SweepReport) error {
	t := newTable(w)
	row(t, "PLANT", "POINTS", "BASE PROFIT", "BEST START (HOURS)", "WILLINGNESS TO PAY")
	for _, r := range reports {
		base := ""
		if len(r.Points) > 0 {
			base = num(r.Points[0].Profit)
		}
		row(t, r.Plant, fmt.Sprint(len(r.Points)), base, qty(r.OptimalAdditionalHours), num(r.WillingnessToPay))
	}
	return t.Flush()
}
