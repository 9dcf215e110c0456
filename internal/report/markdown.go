// Package report renders benchmark reports as Markdown, HTML, CSV and XLSX.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/laser-ci/internal/benchmark"
)

// PageTitle names the monthly report.
const PageTitle = "Monthly Laser CI Report"

// Title heads every monthly report.
const Title = "# " + PageTitle

// Markdown renders rep. Changes are grouped per model, in the order the
// benchmark produced them.
func Markdown(rep *benchmark.Report) string {
	var b strings.Builder
	b.WriteString(Title + "\n\n")

	if len(rep.NewEntrants) > 0 {
		b.WriteString("## New Entrants\n")
		for _, v := range rep.NewEntrants {
			fmt.Fprintf(&b, "- %s\n", v)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Significant Spec Changes\n")
	for _, g := range groupChanges(rep.Changes) {
		parts := make([]string, len(g.changes))
		for i, c := range g.changes {
			parts[i] = c.String()
		}
		fmt.Fprintf(&b, "- **%s** (%s) — %s\n", g.label, g.segment, strings.Join(parts, "; "))
	}

	if len(rep.Comparison) > 0 {
		b.WriteString("\n## Baseline Comparison")
		if rep.BaselineVendor != "" {
			fmt.Fprintf(&b, " vs %s", rep.BaselineVendor)
		}
		b.WriteString("\n\n")
		b.WriteString("| λ (nm) | Power class | Vendor | Model | Baseline | Δ noise (%) | Δ stability (%) | Δ linewidth (MHz) | Δ power (mW) |\n")
		b.WriteString("|---|---|---|---|---|---|---|---|---|\n")
		for _, r := range rep.Comparison {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s | %s | %s |\n",
				r.WavelengthNM, r.PowerClass, r.Vendor, r.Model, r.BaselineModel,
				cell(r.DeltaNoisePct), cell(r.DeltaStabilityPct), cell(r.DeltaLinewidthMHz), cell(r.DeltaPowerMW))
		}
	}
	return b.String()
}

type changeGroup struct {
	label   string
	segment string
	changes []benchmark.Change
}

func groupChanges(changes []benchmark.Change) []changeGroup {
	var groups []changeGroup
	index := make(map[string]int)
	for _, c := range changes {
		key := c.ProductID + "\x00" + c.Model
		i, ok := index[key]
		if !ok {
			label := c.ProductName
			if c.Model != "" {
				label = c.Model
			}
			groups = append(groups, changeGroup{label: label, segment: c.Segment})
			i = len(groups) - 1
			index[key] = i
		}
		groups[i].changes = append(groups[i].changes, c)
	}
	return groups
}

func cell(f *float64) string {
	if f == nil {
		return "n/a"
	}
	v := math.Round(*f*1000) / 1000
	if v > 0 {
		return "+" + strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
