package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optiplan/internal/models"
)

func TestAllocationRecordToCSV(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := NewBuilder(mem).Allocation([]models.AllocationRow{
		{Origin: "A", Destination: "B", FirstHub: "H1", SecondHub: "H2", Allocation: 1, Cost: 3},
		{Origin: "B", Destination: "A", FirstHub: "H2", SecondHub: "H1", Allocation: 1, Cost: 3.5},
	})
	defer rec.Release()

	assert.EqualValues(t, 2, rec.NumRows())
	assert.EqualValues(t, 6, rec.NumCols())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rec))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "origin,destination,first_hub,second_hub,allocation,cost", lines[0])
	assert.Equal(t, "A,B,H1,H2,1,3", lines[1])
	assert.Equal(t, "B,A,H2,H1,1,3.5", lines[2])
}

func TestSweepRecordMarksLastPointNull(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := NewBuilder(mem).Sweep([]models.SweepReport{
		{
			Plant:          "3",
			Points:         []models.SweepPoint{{AdditionalHours: 0, Profit: 10}, {AdditionalHours: 1, Profit: 12}},
			MarginalValues: []float64{2},
		},
		{
			Plant:          "1",
			Points:         []models.SweepPoint{{AdditionalHours: 0, Profit: 10}},
			MarginalValues: []float64{},
		},
	})
	defer rec.Release()

	require.EqualValues(t, 3, rec.NumRows())
	marginal := rec.Column(3)
	assert.False(t, marginal.IsNull(0))
	assert.True(t, marginal.IsNull(1))
	assert.True(t, marginal.IsNull(2))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rec))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "plant,additional_hours,profit,marginal_value", lines[0])
	assert.Equal(t, "3,0,10,2", lines[1])
	assert.Equal(t, "3,1,12,", lines[2])
}

func TestExporterWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	e := NewExporter(dir)

	paths, err := e.Production(&models.ProductionResult{
		ProductionPlan: []models.ProductionRow{{Plant: "1", Product: "Small", Production: 10, ProductionCost: 140}},
		ShippingPlan:   []models.ShippingRow{{Plant: "1", Product: "Small", Customer: "RAYco", Shipping: 10, ShippingCost: 10, Revenue: 170}},
		PlantSummaries: []models.PlantSummary{{Plant: "1", ProductionCost: 140, ShippingCost: 10, TotalCost: 150, Revenue: 170, NetRevenue: 20}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "plant_summary.csv"),
		filepath.Join(dir, "production_plan.csv"),
		filepath.Join(dir, "shipping_plan.csv"),
	}, paths)

	data, err := os.ReadFile(filepath.Join(dir, "plant_summary.csv"))
	require.NoError(t, err)
	assert.Equal(t, "plant,production_cost,shipping_cost,total_cost,revenue,net_revenue\n1,140,10,150,170,20\n", string(data))

	paths, err = e.Hub(&models.HubResult{})
	require.NoError(t, err)
	data, err = os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "origin,destination,first_hub,second_hub,allocation,cost\n", string(data))
}
