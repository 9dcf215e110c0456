package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/laser-ci/internal/benchmark"
)

func f(v float64) *float64 { return &v }

func testReport() *benchmark.Report {
	power, noise := benchmark.TrackedFields[0], benchmark.TrackedFields[1]
	return &benchmark.Report{
		BaselineVendor: "Coherent",
		NewEntrants:    []string{"Oxxius"},
		Changes: []benchmark.Change{
			{ProductID: "p1", ProductName: "LuxX+", Segment: "diode", Model: "LuxX 405-60", Field: power, Previous: 100, Current: 115, Relative: 0.15},
			{ProductID: "p1", ProductName: "LuxX+", Segment: "diode", Model: "LuxX 405-60", Field: noise, Previous: 0.2, Current: 0.3, Relative: 0.5},
			{ProductID: "p2", ProductName: "OBIS", Segment: "diode", Field: power, Previous: 50, Current: 40, Relative: 0.2},
		},
	}
}

func testComparison() []benchmark.ComparisonRow {
	return []benchmark.ComparisonRow{{
		Bucket:          benchmark.Bucket{WavelengthNM: 405, PowerClass: benchmark.PowerClass50to150},
		Vendor:          "Omicron",
		Product:         "LuxX+",
		Model:           "LuxX 405-60",
		BaselineVendor:  "Coherent",
		BaselineProduct: "OBIS LX",
		BaselineModel:   "OBIS 405 LX 100",
		DeltaNoisePct:   f(-0.05),
		DeltaPowerMW:    f(20),
	}}
}

func TestMarkdown(t *testing.T) {
	want := "# Monthly Laser CI Report\n\n" +
		"## New Entrants\n" +
		"- Oxxius\n\n" +
		"## Significant Spec Changes\n" +
		"- **LuxX 405-60** (diode) — Power 100→115 mW; RMS noise 0.2→0.3 %\n" +
		"- **OBIS** (diode) — Power 50→40 mW\n"

	assert.Equal(t, want, Markdown(testReport()))
}

func TestMarkdown_NoEntrantsOrChanges(t *testing.T) {
	got := Markdown(&benchmark.Report{})
	assert.Equal(t, "# Monthly Laser CI Report\n\n## Significant Spec Changes\n", got)
}

func TestMarkdown_Comparison(t *testing.T) {
	rep := testReport()
	rep.Comparison = testComparison()

	got := Markdown(rep)
	assert.Contains(t, got, "## Baseline Comparison vs Coherent\n")
	assert.Contains(t, got, "| 405 | 50–150 mW | Omicron | LuxX 405-60 | OBIS 405 LX 100 | -0.05 | n/a | n/a | +20 |\n")
}

func TestHTML(t *testing.T) {
	rep := testReport()
	rep.Comparison = testComparison()

	page, err := HTML("Laser CI <monthly>", Markdown(rep))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(page, "<!doctype html>"))
	assert.Contains(t, page, "<title>Laser CI &lt;monthly&gt;</title>")
	assert.Contains(t, page, "<h1>Monthly Laser CI Report</h1>")
	assert.Contains(t, page, "<strong>LuxX 405-60</strong>")
	assert.Contains(t, page, "<table>")
	assert.Contains(t, page, "<td>Omicron</td>")
}

func TestWriteCSV_Comparison(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ComparisonColumns, ComparisonRows(testComparison())))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(ComparisonColumns, ","), lines[0])
	assert.Equal(t, "405,50–150 mW,Omicron,LuxX+,LuxX 405-60,Coherent,OBIS 405 LX 100,-0.05,,,20", lines[1])
}

func TestWriteCSV_Changes(t *testing.T) {
	changes := testReport().Changes
	changes[0].SnapshotTS = time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, ChangeColumns, ChangeRows(changes[:1])))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "LuxX+,diode,,LuxX 405-60,output_power_mw_nominal,100,115,15,2026-09-01T00:00:00Z", lines[1])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "benchmark", ComparisonColumns, ComparisonRows(testComparison())))

	wb, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 1)

	sheet := wb.Sheets[0]
	assert.Equal(t, "benchmark", sheet.Name)
	require.Len(t, sheet.Rows, 2)
	assert.Equal(t, "wl_nm", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Omicron", sheet.Rows[1].Cells[2].String())

	wl, err := sheet.Rows[1].Cells[0].Int()
	require.NoError(t, err)
	assert.Equal(t, 405, wl)

	noise, err := sheet.Rows[1].Cells[7].Float()
	require.NoError(t, err)
	assert.InDelta(t, -0.05, noise, 1e-9)
}
