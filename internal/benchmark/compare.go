package benchmark

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/laser-ci/internal/model"
)

// Power classes used to bucket comparable products.
const (
	PowerClassUnder50  = "<50 mW"
	PowerClass50to150  = "50–150 mW"
	PowerClass150to500 = "150–500 mW"
	PowerClassOver500  = "≥500 mW"
	PowerClassUnknown  = "unknown"
)

var powerClassOrder = map[string]int{
	PowerClassUnder50:  0,
	PowerClass50to150:  1,
	PowerClass150to500: 2,
	PowerClassOver500:  3,
	PowerClassUnknown:  4,
}

// PowerClass buckets a nominal output power in mW.
func PowerClass(mw *float64) string {
	switch {
	case mw == nil:
		return PowerClassUnknown
	case *mw < 50:
		return PowerClassUnder50
	case *mw < 150:
		return PowerClass50to150
	case *mw < 500:
		return PowerClass150to500
	}
	return PowerClassOver500
}

// Bucket is a wavelength band and power class.
type Bucket struct {
	WavelengthNM int
	PowerClass   string
}

// ComparisonRow compares one competitor model against the baseline vendor's
// model in the same bucket. Deltas are competitor minus baseline and nil
// when either side is unknown.
type ComparisonRow struct {
	Bucket
	Vendor            string
	Product           string
	Model             string
	BaselineVendor    string
	BaselineProduct   string
	BaselineModel     string
	DeltaNoisePct     *float64
	DeltaStabilityPct *float64
	DeltaLinewidthMHz *float64
	DeltaPowerMW      *float64
}

// Columns implements Row.
func (r ComparisonRow) Columns() map[string]any {
	return map[string]any{
		"wl_nm":           r.WavelengthNM,
		"power_class":     r.PowerClass,
		"vendor":          r.Vendor,
		"product":         r.Product,
		"model":           r.Model,
		"baseline_vendor": r.BaselineVendor,
		"baseline_model":  r.BaselineModel,
		"delta_noise_pct": deref(r.DeltaNoisePct),
		"delta_stability": deref(r.DeltaStabilityPct),
		"delta_linewidth": deref(r.DeltaLinewidthMHz),
		"delta_power_mw":  deref(r.DeltaPowerMW),
	}
}

// Row is a report row rendered as column name to value.
type Row interface {
	Columns() map[string]any
}

type entry struct {
	rec     model.CanonicalSpecRecord
	product model.Product
}

// Compare buckets the latest snapshot of every series by rounded wavelength
// and power class. Only buckets holding a baseline-vendor model and at least
// one other vendor's model produce rows. Records without a wavelength or
// whose product is unknown are ignored. Vendor matching is a
// case-insensitive prefix match on baselineVendor.
func Compare(records []model.CanonicalSpecRecord, products []model.Product, baselineVendor string) []ComparisonRow {
	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	buckets := map[Bucket][]entry{}
	for _, pair := range LatestPairs(records) {
		rec := pair.Latest
		p, ok := byID[rec.ProductID]
		if !ok || rec.Specs.WavelengthNM == nil {
			continue
		}
		b := Bucket{
			WavelengthNM: int(math.Round(*rec.Specs.WavelengthNM)),
			PowerClass:   PowerClass(rec.Specs.OutputPowerNominal),
		}
		buckets[b] = append(buckets[b], entry{rec: rec, product: p})
	}

	keys := make([]Bucket, 0, len(buckets))
	for b := range buckets {
		keys = append(keys, b)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].WavelengthNM != keys[j].WavelengthNM {
			return keys[i].WavelengthNM < keys[j].WavelengthNM
		}
		return powerClassOrder[keys[i].PowerClass] < powerClassOrder[keys[j].PowerClass]
	})

	var rows []ComparisonRow
	for _, b := range keys {
		var base []entry
		var rivals []entry
		for _, e := range buckets[b] {
			if isBaseline(e.product.Vendor, baselineVendor) {
				base = append(base, e)
			} else {
				rivals = append(rivals, e)
			}
		}
		if len(base) == 0 || len(rivals) == 0 {
			continue
		}
		sortEntries(base)
		sortEntries(rivals)

		ref := base[0]
		for _, e := range rivals {
			rows = append(rows, ComparisonRow{
				Bucket:            b,
				Vendor:            e.product.Vendor,
				Product:           e.product.Name,
				Model:             e.rec.Model,
				BaselineVendor:    ref.product.Vendor,
				BaselineProduct:   ref.product.Name,
				BaselineModel:     ref.rec.Model,
				DeltaNoisePct:     delta(e.rec.Specs.RMSNoisePct, ref.rec.Specs.RMSNoisePct),
				DeltaStabilityPct: delta(e.rec.Specs.PowerStabilityPct, ref.rec.Specs.PowerStabilityPct),
				DeltaLinewidthMHz: delta(e.rec.Specs.LinewidthMHz, ref.rec.Specs.LinewidthMHz),
				DeltaPowerMW:      delta(e.rec.Specs.OutputPowerNominal, ref.rec.Specs.OutputPowerNominal),
			})
		}
	}
	return rows
}

// isBaseline matches the configured baseline vendor by name, ignoring case.
func isBaseline(vendor, baseline string) bool {
	baseline = strings.TrimSpace(baseline)
	return baseline != "" && strings.EqualFold(strings.TrimSpace(vendor), baseline)
}

func sortEntries(es []entry) {
	sort.Slice(es, func(i, j int) bool {
		if es[i].product.Vendor != es[j].product.Vendor {
			return es[i].product.Vendor < es[j].product.Vendor
		}
		if es[i].product.Name != es[j].product.Name {
			return es[i].product.Name < es[j].product.Name
		}
		return es[i].rec.Model < es[j].rec.Model
	})
}

func delta(a, b *float64) *float64 {
	if a == nil || b == nil {
		return nil
	}
	d := *a - *b
	return &d
}

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
