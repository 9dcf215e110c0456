package benchmark

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/laser-ci/internal/model"
)

// DefaultReportDays is the lookback window of the monthly report.
const DefaultReportDays = 35

// Source supplies the data a report is built from.
type Source interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	ListSpecRecords(ctx context.Context, productID string) ([]model.CanonicalSpecRecord, error)
}

// Report bundles new entrants, significant changes and the baseline
// comparison.
type Report struct {
	GeneratedAt    time.Time       `json:"generated_at"`
	Since          time.Time       `json:"since"`
	BaselineVendor string          `json:"baseline_vendor"`
	NewEntrants    []string        `json:"new_entrants"`
	Changes        []Change        `json:"changes"`
	Comparison     []ComparisonRow `json:"comparison"`
}

// MonthlyReport builds a Report over the days before now. An empty
// productID in ListSpecRecords means all products.
func MonthlyReport(ctx context.Context, src Source, now time.Time, days int, baselineVendor string) (*Report, error) {
	if days <= 0 {
		days = DefaultReportDays
	}
	products, err := src.ListProducts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "benchmark: list products")
	}
	records, err := src.ListSpecRecords(ctx, "")
	if err != nil {
		return nil, eris.Wrap(err, "benchmark: list spec records")
	}

	since := now.AddDate(0, 0, -days)
	rep := &Report{
		GeneratedAt:    now,
		Since:          since,
		BaselineVendor: baselineVendor,
		NewEntrants:    NewEntrants(products, since),
		Changes:        annotate(Changes(records), products),
		Comparison:     Compare(records, products, baselineVendor),
	}
	return rep, nil
}

func annotate(changes []Change, products []model.Product) []Change {
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for i := range changes {
		if p, ok := byID[changes[i].ProductID]; ok {
			changes[i].ProductName = p.Name
			changes[i].Segment = p.Segment
			changes[i].Vendor = p.Vendor
		}
	}
	return changes
}
