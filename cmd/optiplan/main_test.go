package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiplan/internal/hub"
	"optiplan/internal/lp"
	"optiplan/internal/models"
)

const threeByTwo = `Unnamed: 0,H1,H2
A,1,5
B,4,2
C,3,6
`

// One plant limited to 5 machine hours; every widget earns 9 - 4.
const widgetInstance = `
plants: ["1"]
products: [W]
customers: [C]
laborHours: {"1": {W: 1}}
machineHours: {"1": {W: 1}}
material: {"1": {W: 1}}
productionCost: {"1": {W: 4}}
laborCapacity: {"1": 100}
machineCapacity: {"1": 5}
totalMaterial: 100
salesPrice: {C: {W: 10}}
demand: {C: {W: 8}}
shippingCost: {"1": {C: 1}}
`

func tempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append(args, "--backend", "simplex"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHubCommandJSON(t *testing.T) {
	matrix := tempFile(t, "costs.csv", threeByTwo)
	out, err := run(t, "hub", "--matrix", matrix, "--hubs", "2", "-o", "json")
	require.NoError(t, err)

	var res models.HubResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.InDelta(t, 30.0, res.Objective, 1e-6)
	assert.Equal(t, []string{"H1", "H2"}, res.ActiveHubs)
	assert.Len(t, res.AllocationPlan, 6)
	assert.True(t, res.Relaxed)
}

func TestHubCommandRejectsFractionalRelaxation(t *testing.T) {
	matrix := tempFile(t, "costs.csv", `,H1,H2,H3,H4
A,11,10,5,16
B,6,8,1,2
C,3,6,3,16
D,2,18,7,14
E,17,3,16,0
`)
	_, err := run(t, "hub", "--matrix", matrix, "--hubs", "2")
	assert.True(t, errors.Is(err, lp.ErrNotOptimal), "got %v", err)
}

func TestHubCommandTableAndExport(t *testing.T) {
	matrix := tempFile(t, "costs.csv", threeByTwo)
	dir := filepath.Join(t.TempDir(), "out")

	// Without --hubs the default is clamped to the two hubs available.
	out, err := run(t, "hub", "--matrix", matrix, "--export", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Total cost:  30.00")
	assert.Contains(t, out, "Active hubs: H1, H2 (2)")
	assert.Contains(t, out, "continuous relaxation")
	assert.Contains(t, out, "ORIGIN")

	_, err = os.Stat(filepath.Join(dir, "allocation.csv"))
	assert.NoError(t, err)
}

func TestHubCommandRejectsBadHubCount(t *testing.T) {
	matrix := tempFile(t, "costs.csv", threeByTwo)
	_, err := run(t, "hub", "--matrix", matrix, "--hubs", "1")
	assert.True(t, errors.Is(err, hub.ErrHubCount), "got %v", err)

	_, err = run(t, "hub", "--matrix", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestProductionCommand(t *testing.T) {
	instance := tempFile(t, "widget.yaml", widgetInstance)

	out, err := run(t, "production", "--instance", instance, "--shadow-prices", "-o", "json")
	require.NoError(t, err)
	var res models.ProductionResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.InDelta(t, 25.0, res.Objective, 1e-6)
	require.Len(t, res.ShadowPrices, 1)
	assert.InDelta(t, 5.0, res.ShadowPrices[0].Dual, 1e-6)

	out, err = run(t, "production", "--instance", instance)
	require.NoError(t, err)
	assert.Contains(t, out, "Profit: 25.00")
	assert.Contains(t, out, "Plant summary")
	assert.NotContains(t, out, "shadow prices")
}

func TestProductionCommandScenario(t *testing.T) {
	dir := t.TempDir()
	_, err := run(t, "production", "--scenario", "expanded-demand", "--export", dir)
	require.NoError(t, err)
	for _, name := range []string{"production_plan.csv", "shipping_plan.csv", "plant_summary.csv"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	_, err = run(t, "production", "--scenario", "peak-season")
	assert.Error(t, err)
}

func TestSweepCommand(t *testing.T) {
	instance := tempFile(t, "widget.yaml", widgetInstance)

	out, err := run(t, "sweep", "--instance", instance, "--plants", "1", "--sweep-to", "3", "-o", "json")
	require.NoError(t, err)
	var reports []models.SweepReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports), out)
	require.Len(t, reports, 1)
	assert.Len(t, reports[0].Points, 3)
	assert.InDelta(t, 5.0, reports[0].WillingnessToPay, 1e-6)

	out, err = run(t, "sweep", "--instance", instance, "--plants", "1", "--sweep-to", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "WILLINGNESS TO PAY")

	_, err = run(t, "sweep", "--instance", instance, "--sweep-step", "0")
	assert.Error(t, err)
}

func TestConfigFileDrivesCommands(t *testing.T) {
	matrix := tempFile(t, "costs.csv", threeByTwo)
	cfg := tempFile(t, "optiplan.yaml", "hub:\n  matrix: "+matrix+"\n  hubs: 2\n")

	out, err := run(t, "hub", "--config", cfg, "-o", "json")
	require.NoError(t, err)
	var res models.HubResult
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, 2, res.HubCount)
}

func TestVersionAndOutputFormat(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "optiplan dev (solver simplex)\n", out)

	_, err = run(t, "version", "-o", "yaml")
	assert.Error(t, err)
}
