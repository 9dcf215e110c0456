package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/laser-ci/internal/benchmark"
)

// Column orders for exported tables.
var (
	ComparisonColumns = []string{
		"wl_nm", "power_class", "vendor", "product", "model",
		"baseline_vendor", "baseline_model",
		"delta_noise_pct", "delta_stability", "delta_linewidth", "delta_power_mw",
	}
	ChangeColumns = []string{
		"product", "segment", "vendor", "model", "field",
		"previous", "current", "relative_pct", "snapshot_ts",
	}
)

// ComparisonRows adapts comparison rows for export.
func ComparisonRows(rows []benchmark.ComparisonRow) []benchmark.Row {
	out := make([]benchmark.Row, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}

// ChangeRows adapts changes for export.
func ChangeRows(changes []benchmark.Change) []benchmark.Row {
	out := make([]benchmark.Row, len(changes))
	for i, c := range changes {
		out[i] = c
	}
	return out
}

// WriteCSV writes a header of columns followed by one line per row.
func WriteCSV(w io.Writer, columns []string, rows []benchmark.Row) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(columns); err != nil {
		return eris.Wrap(err, "report: write CSV header")
	}
	record := make([]string, len(columns))
	for _, r := range rows {
		vals := r.Columns()
		for i, col := range columns {
			record[i] = formatValue(vals[col])
		}
		if err := cw.Write(record); err != nil {
			return eris.Wrap(err, "report: write CSV row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush CSV")
}

// WriteXLSX writes rows to a single-sheet workbook.
func WriteXLSX(w io.Writer, sheetName string, columns []string, rows []benchmark.Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "report: add sheet")
	}

	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}
	for _, r := range rows {
		vals := r.Columns()
		row := sheet.AddRow()
		for _, col := range columns {
			setCell(row.AddCell(), vals[col])
		}
	}

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

func setCell(c *xlsx.Cell, v any) {
	switch x := v.(type) {
	case nil:
	case float64:
		c.SetFloat(x)
	case int:
		c.SetInt(x)
	default:
		c.SetString(formatValue(v))
	}
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
