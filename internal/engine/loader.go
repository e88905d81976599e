package engine

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"k8s.io/klog/v2"
)

// XLSXContentType is the media type of an Excel workbook upload.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LoadCostMatrix reads a cost matrix file, a workbook when the name ends in
// .xlsx and CSV otherwise. See ParseCostMatrix for the layout.
func LoadCostMatrix(path string) (*Table, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read cost matrix %s", path)
	}
	defer f.Close()

	t, err := ParseCostMatrixFile(path, "", f)
	if err != nil {
		return nil, errors.Wrapf(err, "load cost matrix %s", path)
	}

	klog.V(2).InfoS("Cost matrix loaded", "path", path, "rows", t.Rows.Len(), "cols", t.Cols.Len(), "elapsed", time.Since(start))
	return t, nil
}

// ParseCostMatrixFile picks the reader by file name or content type.
func ParseCostMatrixFile(name, contentType string, r io.Reader) (*Table, error) {
	if IsXLSX(name, contentType) {
		return ParseCostMatrixXLSX(r)
	}
	return ParseCostMatrix(r)
}

// IsXLSX reports whether an upload is an Excel workbook.
func IsXLSX(name, contentType string) bool {
	return strings.EqualFold(filepath.Ext(name), ".xlsx") || strings.HasPrefix(contentType, XLSXContentType)
}

// ParseCostMatrix reads a rectangular CSV table:
//
//	,H1,H2,H3
//	A,10,12.5,9
//	B,11,8,14
//
// The first header cell is a placeholder for the row-label column (blank or
// a spreadsheet export name such as "Unnamed: 0"). Either the whole table
// loads or an error is returned.
func ParseCostMatrix(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		// csv reports ragged rows as ErrFieldCount
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	return costTable(records)
}

// ParseCostMatrixXLSX reads the first sheet of a workbook laid out like the
// CSV input of ParseCostMatrix. Cells are read raw, without number formats.
func ParseCostMatrixXLSX(r io.Reader) (*Table, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.Wrap(ErrMalformed, "workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrapf(ErrMalformed, "sheet %s: %v", sheets[0], err)
	}

	var records [][]string
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if len(records) > 0 && len(row) != len(records[0]) {
			return nil, errors.Wrapf(ErrMalformed, "sheet %s row %d has %d cells, want %d",
				sheets[0], len(records)+1, len(row), len(records[0]))
		}
		records = append(records, row)
	}
	return costTable(records)
}

// costTable validates a header record followed by labelled value rows.
func costTable(records [][]string) (*Table, error) {
	// --- HEADER ---
	if len(records) == 0 {
		return nil, errors.Wrap(ErrMalformed, "empty input")
	}
	header := records[0]
	if len(header) < 2 {
		return nil, errors.Wrap(ErrMalformed, "no value columns")
	}
	cols, err := NewSet(trimAll(header[1:])...)
	if err != nil {
		return nil, errors.Wrap(err, "header")
	}

	// --- BODY ---
	body := records[1:]
	if len(body) == 0 {
		return nil, errors.Wrap(ErrMalformed, "no data rows")
	}
	rowLabels := make([]string, 0, len(body))
	values := make([]float64, 0, len(body)*cols.Len())
	for n, rec := range body {
		line := n + 2
		if len(rec) != len(header) {
			return nil, errors.Wrapf(ErrMalformed, "line %d has %d fields, want %d", line, len(rec), len(header))
		}
		rowLabels = append(rowLabels, strings.TrimSpace(rec[0]))
		for i, field := range rec[1:] {
			v, err := parseCell(field)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformed, "line %d column %q: %v", line, cols.Label(i), err)
			}
			values = append(values, v)
		}
	}

	rows, err := NewSet(rowLabels...)
	if err != nil {
		return nil, errors.Wrap(err, "row labels")
	}
	return &Table{Rows: rows, Cols: cols, values: values}, nil
}

func parseCell(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.Errorf("non-finite value %q", field)
	}
	return v, nil
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
