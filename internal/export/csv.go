package export

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/csv"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"optiplan/internal/models"
)

// WriteCSV writes a record as CSV with a header row. Null cells are empty.
func WriteCSV(w io.Writer, rec arrow.Record) error {
	cw := csv.NewWriter(w, rec.Schema(), csv.WithHeader(true), csv.WithNullWriter(""))
	if err := cw.Write(rec); err != nil {
		return errors.Wrap(err, "write csv")
	}
	if err := cw.Flush(); err != nil {
		return errors.Wrap(err, "flush csv")
	}
	return errors.Wrap(cw.Error(), "write csv")
}

// Exporter writes result tables as CSV files into Dir.
type Exporter struct {
	Dir     string
	builder *Builder
}

func NewExporter(dir string) *Exporter {
	return &Exporter{Dir: dir, builder: NewBuilder(nil)}
}

// Hub writes allocation.csv and returns the paths written.
func (e *Exporter) Hub(res *models.HubResult) ([]string, error) {
	return e.write(map[string]arrow.Record{
		"allocation.csv": e.builder.Allocation(res.AllocationPlan),
	})
}

// Production writes the production plan, shipping plan and plant summary.
func (e *Exporter) Production(res *models.ProductionResult) ([]string, error) {
	return e.write(map[string]arrow.Record{
		"production_plan.csv": e.builder.Production(res.ProductionPlan),
		"shipping_plan.csv":   e.builder.Shipping(res.ShippingPlan),
		"plant_summary.csv":   e.builder.Summary(res.PlantSummaries),
	})
}

// Sweep writes every sweep series into sweep.csv.
func (e *Exporter) Sweep(reports []models.SweepReport) ([]string, error) {
	return e.write(map[string]arrow.Record{
		"sweep.csv": e.builder.Sweep(reports),
	})
}

// write releases every record, written or not. Paths come back sorted by
// file name.
func (e *Exporter) write(files map[string]arrow.Record) ([]string, error) {
	defer func() {
		for _, rec := range files {
			rec.Release()
		}
	}()
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create export dir %s", e.Dir)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		path := filepath.Join(e.Dir, name)
		if err := writeFile(path, files[name]); err != nil {
			return nil, err
		}
		klog.V(2).InfoS("Exported table", "path", path, "rows", files[name].NumRows())
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, rec arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := WriteCSV(f, rec); err != nil {
		f.Close()
		return errors.Wrapf(err, "export %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
