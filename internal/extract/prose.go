package extract

import (
	"github.com/sells-group/laser-ci/internal/model"
	"github.com/sells-group/laser-ci/internal/patterns"
)

// scanProse recovers quantities that only appear in running text.
func scanProse(text string, out model.RawSpecMap) {
	text = cleanText(text)
	if text == "" {
		return
	}
	if vals := quantities(patterns.Wavelength.FindAll(text)); len(vals) > 0 {
		out["wavelengths_nm"] = model.List(vals...)
	}
	if vals := quantities(patterns.Power.FindAll(text)); len(vals) > 0 {
		out["power_values"] = model.List(vals...)
	}
	if m, ok := patterns.BeamQuality.First(text); ok {
		out["beam_quality_m2"] = model.Str(m.Value)
	}
	if ms := patterns.Ratio.FindAll(text); len(ms) > 0 {
		vals := make([]string, 0, len(ms))
		for _, m := range ms {
			vals = append(vals, m.Value)
		}
		out["ratios"] = model.List(dedupe(vals)...)
	}
}

func quantities(ms []patterns.Match) []string {
	vals := make([]string, 0, len(ms))
	for _, m := range ms {
		vals = append(vals, m.Value+" "+m.Unit)
	}
	return dedupe(vals)
}
