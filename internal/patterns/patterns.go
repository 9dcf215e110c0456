// Package patterns recognizes physical-quantity tokens in free text.
//
// Every pattern yields the numeric part exactly as written, including any
// comparison operator and range syntax, plus the matched unit token.
// Resolving a range or operator to a single number is left to callers; see
// ParseNumber.
package patterns

import (
	"regexp"
	"strings"
)

// Match is one recognized quantity.
type Match struct {
	Value string // numeric or range text, operator preserved
	Unit  string // unit token as written
	Text  string // full matched text
}

// Pattern is a named, compiled quantity matcher.
type Pattern struct {
	Name string
	re   *regexp.Regexp
	// valueGroup and unitGroup index submatches; unitGroup < 0 means the unit
	// is fixed and taken from fixedUnit.
	valueGroup int
	unitGroup  int
	fixedUnit  string
}

const (
	num       = `\d+(?:,\d{3})*(?:\.\d+)?`
	operator  = `(?:[<>≤≥~≈]=?\s*)?`
	rangeTail = `(?:\s*(?:±|\+/-|-|–|to)\s*` + num + `)?`
	signed    = operator + `[-+−]?` + num + `(?:\s*(?:±|\+/-|-|–|to)\s*[-+−]?` + num + `)?`

	// Quantity matches a number with optional operator prefix and range tail.
	Quantity = operator + num + rangeTail
)

var (
	Wavelength = &Pattern{
		Name:       "wavelength",
		re:         regexp.MustCompile(`(?i)(` + Quantity + `)\s*(nm|μm|µm|um|microns?)\b`),
		valueGroup: 1, unitGroup: 2,
	}
	Power = &Pattern{
		Name:       "power",
		re:         regexp.MustCompile(`(?i)(` + Quantity + `)\s*(mW|μW|µW|uW|kW|W)\b`),
		valueGroup: 1, unitGroup: 2,
	}
	Ratio = &Pattern{
		Name:       "ratio",
		re:         regexp.MustCompile(`((?:[<>≤≥]=?\s*)?\d+(?:\.\d+)?\s*:\s*\d+(?:\.\d+)?)`),
		valueGroup: 1, unitGroup: -1, fixedUnit: "ratio",
	}
	BeamQuality = &Pattern{
		Name:       "beam_quality",
		re:         regexp.MustCompile(`(?i)\bM\s*(?:²|\^2|2)\s*(?:[:=]\s*)?(` + Quantity + `)`),
		valueGroup: 1, unitGroup: -1, fixedUnit: "M²",
	}
	Temperature = &Pattern{
		Name:       "temperature",
		re:         regexp.MustCompile(`(?i)(` + signed + `)\s*(°\s*C|°\s*F|℃|deg\.?\s*C|K)\b`),
		valueGroup: 1, unitGroup: 2,
	}
	Percentage = &Pattern{
		Name:       "percentage",
		re:         regexp.MustCompile(`(` + Quantity + `)\s*%`),
		valueGroup: 1, unitGroup: -1, fixedUnit: "%",
	}
	Dimension = &Pattern{
		Name:       "dimension",
		re:         regexp.MustCompile(`(?i)(?:[Ø⌀]\s*)?(` + num + `(?:\s*[x×]\s*` + num + `){0,2})\s*(mm|cm|inch(?:es)?|in|ft|m)\b`),
		valueGroup: 1, unitGroup: 2,
	}
	Frequency = &Pattern{
		Name:       "frequency",
		re:         regexp.MustCompile(`(?i)(` + Quantity + `)\s*(GHz|MHz|kHz|Hz)\b`),
		valueGroup: 1, unitGroup: 2,
	}
	Electrical = &Pattern{
		Name:       "electrical",
		re:         regexp.MustCompile(`(?i)(` + Quantity + `)\s*(kV|mV|V|mA|μA|µA|uA|A)\b`),
		valueGroup: 1, unitGroup: 2,
	}
	Time = &Pattern{
		Name:       "time",
		re:         regexp.MustCompile(`(?i)(` + Quantity + `)\s*(hours?|hrs?|h|minutes?|mins?|seconds?|secs?|ms|μs|µs|us|ns|s)\b`),
		valueGroup: 1, unitGroup: 2,
	}
)

// All lists every pattern in a stable order.
var All = []*Pattern{
	Wavelength,
	Power,
	Ratio,
	BeamQuality,
	Temperature,
	Percentage,
	Dimension,
	Frequency,
	Electrical,
	Time,
}

// FindAll returns every match of the pattern in text.
func (p *Pattern) FindAll(text string) []Match {
	if text == "" {
		return nil
	}
	found := p.re.FindAllStringSubmatch(text, -1)
	if len(found) == 0 {
		return nil
	}
	out := make([]Match, 0, len(found))
	for _, sm := range found {
		m := Match{
			Value: collapse(sm[p.valueGroup]),
			Text:  sm[0],
			Unit:  p.fixedUnit,
		}
		if p.unitGroup >= 0 {
			m.Unit = collapse(sm[p.unitGroup])
		}
		out = append(out, m)
	}
	return out
}

// First returns the first match in text, if any.
func (p *Pattern) First(text string) (Match, bool) {
	sm := p.re.FindStringSubmatch(text)
	if sm == nil {
		return Match{}, false
	}
	m := Match{Value: collapse(sm[p.valueGroup]), Text: sm[0], Unit: p.fixedUnit}
	if p.unitGroup >= 0 {
		m.Unit = collapse(sm[p.unitGroup])
	}
	return m, true
}

// Scan runs every pattern over text and returns the non-empty results keyed
// by pattern name.
func Scan(text string) map[string][]Match {
	out := make(map[string][]Match)
	for _, p := range All {
		if ms := p.FindAll(text); len(ms) > 0 {
			out[p.Name] = ms
		}
	}
	return out
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapse(s string) string {
	return spaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}
