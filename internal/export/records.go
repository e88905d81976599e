// Package export turns result tables into Arrow records and writes them as
// CSV files.
package export

import (
	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/memory"

	"optiplan/internal/models"
)

var (
	AllocationSchema = arrow.NewSchema([]arrow.Field{
		{Name: "origin", Type: arrow.BinaryTypes.String},
		{Name: "destination", Type: arrow.BinaryTypes.String},
		{Name: "first_hub", Type: arrow.BinaryTypes.String},
		{Name: "second_hub", Type: arrow.BinaryTypes.String},
		{Name: "allocation", Type: arrow.PrimitiveTypes.Float64},
		{Name: "cost", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	ProductionSchema = arrow.NewSchema([]arrow.Field{
		{Name: "plant", Type: arrow.BinaryTypes.String},
		{Name: "product", Type: arrow.BinaryTypes.String},
		{Name: "production", Type: arrow.PrimitiveTypes.Float64},
		{Name: "production_cost", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	ShippingSchema = arrow.NewSchema([]arrow.Field{
		{Name: "plant", Type: arrow.BinaryTypes.String},
		{Name: "product", Type: arrow.BinaryTypes.String},
		{Name: "customer", Type: arrow.BinaryTypes.String},
		{Name: "shipping", Type: arrow.PrimitiveTypes.Float64},
		{Name: "shipping_cost", Type: arrow.PrimitiveTypes.Float64},
		{Name: "revenue", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	SummarySchema = arrow.NewSchema([]arrow.Field{
		{Name: "plant", Type: arrow.BinaryTypes.String},
		{Name: "production_cost", Type: arrow.PrimitiveTypes.Float64},
		{Name: "shipping_cost", Type: arrow.PrimitiveTypes.Float64},
		{Name: "total_cost", Type: arrow.PrimitiveTypes.Float64},
		{Name: "revenue", Type: arrow.PrimitiveTypes.Float64},
		{Name: "net_revenue", Type: arrow.PrimitiveTypes.Float64},
	}, nil)

	// SweepSchema has one row per sweep point. marginal_value is the
	// increment to the next point and is null on the last point of a plant.
	SweepSchema = arrow.NewSchema([]arrow.Field{
		{Name: "plant", Type: arrow.BinaryTypes.String},
		{Name: "additional_hours", Type: arrow.PrimitiveTypes.Float64},
		{Name: "profit", Type: arrow.PrimitiveTypes.Float64},
		{Name: "marginal_value", Type: arrow.PrimitiveTypes.Float64, Nullable: true},
	}, nil)
)

// Builder turns result rows into records. Records must be released by the
// caller.
type Builder struct {
	mem memory.Allocator
}

func NewBuilder(mem memory.Allocator) *Builder {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return &Builder{mem: mem}
}

func (b *Builder) Allocation(rows []models.AllocationRow) arrow.Record {
	rb := array.NewRecordBuilder(b.mem, AllocationSchema)
	defer rb.Release()

	origin := rb.Field(0).(*array.StringBuilder)
	dest := rb.Field(1).(*array.StringBuilder)
	first := rb.Field(2).(*array.StringBuilder)
	second := rb.Field(3).(*array.StringBuilder)
	alloc := rb.Field(4).(*array.Float64Builder)
	cost := rb.Field(5).(*array.Float64Builder)
	for _, r := range rows {
		origin.Append(r.Origin)
		dest.Append(r.Destination)
		first.Append(r.FirstHub)
		second.Append(r.SecondHub)
		alloc.Append(r.Allocation)
		cost.Append(r.Cost)
	}
	return rb.NewRecord()
}

func (b *Builder) Production(rows []models.ProductionRow) arrow.Record {
	rb := array.NewRecordBuilder(b.mem, ProductionSchema)
	defer rb.Release()

	plant := rb.Field(0).(*array.StringBuilder)
	product := rb.Field(1).(*array.StringBuilder)
	qty := rb.Field(2).(*array.Float64Builder)
	cost := rb.Field(3).(*array.Float64Builder)
	for _, r := range rows {
		plant.Append(r.Plant)
		product.Append(r.Product)
		qty.Append(r.Production)
		cost.Append(r.ProductionCost)
	}
	return rb.NewRecord()
}

func (b *Builder) Shipping(rows []models.ShippingRow) arrow.Record {
	rb := array.NewRecordBuilder(b.mem, ShippingSchema)
	defer rb.Release()

	plant := rb.Field(0).(*array.StringBuilder)
	product := rb.Field(1).(*array.StringBuilder)
	customer := rb.Field(2).(*array.StringBuilder)
	qty := rb.Field(3).(*array.Float64Builder)
	cost := rb.Field(4).(*array.Float64Builder)
	revenue := rb.Field(5).(*array.Float64Builder)
	for _, r := range rows {
		plant.Append(r.Plant)
		product.Append(r.Product)
		customer.Append(r.Customer)
		qty.Append(r.Shipping)
		cost.Append(r.ShippingCost)
		revenue.Append(r.Revenue)
	}
	return rb.NewRecord()
}

func (b *Builder) Summary(rows []models.PlantSummary) arrow.Record {
	rb := array.NewRecordBuilder(b.mem, SummarySchema)
	defer rb.Release()

	plant := rb.Field(0).(*array.StringBuilder)
	values := make([]*array.Float64Builder, 5)
	for i := range values {
		values[i] = rb.Field(i + 1).(*array.Float64Builder)
	}
	for _, r := range rows {
		plant.Append(r.Plant)
		for i, v := range []float64{r.ProductionCost, r.ShippingCost, r.TotalCost, r.Revenue, r.NetRevenue} {
			values[i].Append(v)
		}
	}
	return rb.NewRecord()
}

func (b *Builder) Sweep(reports []models.SweepReport) arrow.Record {
	rb := array.NewRecordBuilder(b.mem, SweepSchema)
	defer rb.Release()

	plant := rb.Field(0).(*array.StringBuilder)
	hours := rb.Field(1).(*array.Float64Builder)
	profit := rb.Field(2).(*array.Float64Builder)
	marginal := rb.Field(3).(*array.Float64Builder)
	for _, rep := range reports {
		for i, p := range rep.Points {
			plant.Append(rep.Plant)
			hours.Append(p.AdditionalHours)
			profit.Append(p.Profit)
			if i < len(rep.MarginalValues) {
				marginal.Append(rep.MarginalValues[i])
			} else {
				marginal.AppendNull()
			}
		}
	}
	return rb.NewRecord()
}
