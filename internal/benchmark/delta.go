// Package benchmark compares canonical spec snapshots across time and
// across vendors.
package benchmark

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/sells-group/laser-ci/internal/model"
)

// Field is a tracked spec with its significance threshold.
type Field struct {
	Key   model.CanonicalKey
	Label string
	Unit  string
	// Threshold is the minimum relative change |a-b|/|b| that counts.
	Threshold float64
	// IncreaseOnly reports any increase and ignores decreases.
	IncreaseOnly bool
}

// TrackedFields are the fields whose changes are reported. Thresholds are
// fixed.
var TrackedFields = []Field{
	{Key: model.KeyOutputPowerNominal, Label: "Power", Unit: "mW", Threshold: 0.10},
	{Key: model.KeyRMSNoisePct, Label: "RMS noise", Unit: "%", Threshold: 0.25},
	{Key: model.KeyPowerStabilityPct, Label: "Stability", Unit: "%", Threshold: 0.25},
	{Key: model.KeyModulationDigitalHz, Label: "Digital mod BW", Unit: "Hz", IncreaseOnly: true},
}

// SeriesKey identifies one model's snapshot history.
type SeriesKey struct {
	ProductID string
	Model     string
}

// Pair is the latest snapshot of a series and the one before it.
type Pair struct {
	Key      SeriesKey
	Latest   model.CanonicalSpecRecord
	Previous *model.CanonicalSpecRecord
}

// LatestPairs groups records by (product, model) and returns the most recent
// snapshot of each series with the next most recent distinct snapshot.
// Records sharing the latest timestamp are not treated as a previous
// snapshot. Pairs are sorted by product id then model.
func LatestPairs(records []model.CanonicalSpecRecord) []Pair {
	series := map[SeriesKey][]model.CanonicalSpecRecord{}
	for _, r := range records {
		k := SeriesKey{ProductID: r.ProductID, Model: r.Model}
		series[k] = append(series[k], r)
	}

	pairs := make([]Pair, 0, len(series))
	for k, rs := range series {
		sort.SliceStable(rs, func(i, j int) bool { return rs[i].SnapshotTS.After(rs[j].SnapshotTS) })
		p := Pair{Key: k, Latest: rs[0]}
		for i := 1; i < len(rs); i++ {
			if rs[i].SnapshotTS.Before(rs[0].SnapshotTS) {
				prev := rs[i]
				p.Previous = &prev
				break
			}
		}
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Key.ProductID != pairs[j].Key.ProductID {
			return pairs[i].Key.ProductID < pairs[j].Key.ProductID
		}
		return pairs[i].Key.Model < pairs[j].Key.Model
	})
	return pairs
}

// Change is one significant field change between two snapshots.
type Change struct {
	ProductID   string
	ProductName string
	Segment     string
	Vendor      string
	Model       string
	Field       Field
	Previous    float64
	Current     float64
	Relative    float64
	SnapshotTS  time.Time
}

// String renders the change as "Power 100→115 mW".
func (c Change) String() string {
	return fmt.Sprintf("%s %s→%s %s", c.Field.Label, formatNum(c.Previous), formatNum(c.Current), c.Field.Unit)
}

// Columns implements Row.
func (c Change) Columns() map[string]any {
	return map[string]any{
		"product":      c.ProductName,
		"segment":      c.Segment,
		"vendor":       c.Vendor,
		"model":        c.Model,
		"field":        string(c.Field.Key),
		"previous":     c.Previous,
		"current":      c.Current,
		"relative_pct": math.Round(c.Relative*1000) / 10,
		"snapshot_ts":  c.SnapshotTS,
	}
}

// Significant reports whether the move from prev to cur crosses f's
// threshold, and the relative change. A missing value or a zero previous
// value is never significant.
func Significant(prev, cur *float64, f Field) (float64, bool) {
	if prev == nil || cur == nil || *prev == 0 {
		return 0, false
	}
	rel := math.Abs(*cur-*prev) / math.Abs(*prev)
	if f.IncreaseOnly {
		return rel, *cur > *prev
	}
	return rel, rel >= f.Threshold
}

// Changes returns every significant change between the latest and previous
// snapshot of each series.
func Changes(records []model.CanonicalSpecRecord) []Change {
	var out []Change
	for _, p := range LatestPairs(records) {
		if p.Previous == nil {
			continue
		}
		for _, f := range TrackedFields {
			cur := p.Latest.Specs
			prev := p.Previous.Specs
			curV, prevV := *cur.Float(f.Key), *prev.Float(f.Key)
			rel, ok := Significant(prevV, curV, f)
			if !ok {
				continue
			}
			out = append(out, Change{
				ProductID:  p.Key.ProductID,
				Model:      p.Key.Model,
				Field:      f,
				Previous:   *prevV,
				Current:    *curV,
				Relative:   rel,
				SnapshotTS: p.Latest.SnapshotTS,
			})
		}
	}
	return out
}

// NewEntrants returns the vendors whose earliest product was created at or
// after since, sorted by name.
func NewEntrants(products []model.Product, since time.Time) []string {
	firstSeen := map[string]time.Time{}
	for _, p := range products {
		if ts, ok := firstSeen[p.Vendor]; !ok || p.CreatedAt.Before(ts) {
			firstSeen[p.Vendor] = p.CreatedAt
		}
	}
	var out []string
	for vendor, ts := range firstSeen {
		if !ts.Before(since) {
			out = append(out, vendor)
		}
	}
	sort.Strings(out)
	return out
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
