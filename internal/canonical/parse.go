package canonical

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/laser-ci/internal/model"
	"github.com/sells-group/laser-ci/internal/patterns"
)

// ValueKind tags the shape of a parsed Value.
type ValueKind int

const (
	KindFloat ValueKind = iota
	KindString
	KindBool
	KindList
	KindDimensions
)

// Value is a parsed canonical value.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Bool bool
	List []string
	Dims model.Dimensions
}

// Float returns a numeric Value.
func Float(f float64) Value { return Value{Kind: KindFloat, Num: f} }

type unitTable struct {
	re      *regexp.Regexp
	factors map[string]float64
}

// newUnitTable compiles a matcher for a quantity followed by one of units.
// Units are listed longest first so alternation prefers the specific token.
func newUnitTable(units []string, factors map[string]float64) unitTable {
	alts := make([]string, len(units))
	for i, u := range units {
		alts[i] = regexp.QuoteMeta(u)
	}
	expr := `(?i)(` + patterns.Quantity + `)\s*(` + strings.Join(alts, "|") + `)(?:[^a-zA-Z]|$)`
	return unitTable{re: regexp.MustCompile(expr), factors: factors}
}

func (t unitTable) find(s string) (float64, string, bool) {
	sm := t.re.FindStringSubmatch(s)
	if sm == nil {
		return 0, "", false
	}
	n, ok := patterns.ParseNumber(sm[1])
	if !ok {
		return 0, "", false
	}
	unit := strings.ToLower(sm[2])
	return n * t.factors[unit], unit, true
}

func (t unitTable) factor(hint string) (float64, bool) {
	f, ok := t.factors[strings.ToLower(hint)]
	return f, ok
}

var (
	wavelengthUnits = newUnitTable(
		[]string{"nm", "μm", "um", "microns", "micron"},
		map[string]float64{"nm": 1, "μm": 1000, "um": 1000, "microns": 1000, "micron": 1000},
	)
	powerUnits = newUnitTable(
		[]string{"mw", "μw", "uw", "kw", "w"},
		map[string]float64{"mw": 1, "μw": 0.001, "uw": 0.001, "kw": 1e6, "w": 1000},
	)
	percentUnits = newUnitTable(
		[]string{"%"},
		map[string]float64{"%": 1},
	)
	frequencyUnits = newUnitTable(
		[]string{"ghz", "mhz", "khz", "hz"},
		map[string]float64{"ghz": 1e9, "mhz": 1e6, "khz": 1e3, "hz": 1},
	)
	linewidthFreqUnits = newUnitTable(
		[]string{"ghz", "mhz", "khz", "hz"},
		map[string]float64{"ghz": 1000, "mhz": 1, "khz": 0.001, "hz": 1e-6},
	)
	linewidthLengthUnits = newUnitTable(
		[]string{"nm", "pm"},
		map[string]float64{"nm": 1, "pm": 0.001},
	)
	diameterUnits = newUnitTable(
		[]string{"mm", "μm", "um", "cm"},
		map[string]float64{"mm": 1, "μm": 0.001, "um": 0.001, "cm": 10},
	)
	divergenceUnits = newUnitTable(
		[]string{"mrad", "μrad", "urad", "rad", "deg", "°"},
		map[string]float64{"mrad": 1, "μrad": 0.001, "urad": 0.001, "rad": 1000, "deg": 17.4533, "°": 17.4533},
	)
	mfdUnits = newUnitTable(
		[]string{"μm", "um", "mm", "nm"},
		map[string]float64{"μm": 1, "um": 1, "mm": 1000, "nm": 0.001},
	)
	warmupUnits = newUnitTable(
		[]string{"minutes", "minute", "mins", "min", "seconds", "second", "secs", "sec", "s", "hours", "hour", "hrs", "hr", "h"},
		map[string]float64{
			"minutes": 1, "minute": 1, "mins": 1, "min": 1,
			"seconds": 1.0 / 60, "second": 1.0 / 60, "secs": 1.0 / 60, "sec": 1.0 / 60, "s": 1.0 / 60,
			"hours": 60, "hour": 60, "hrs": 60, "hr": 60, "h": 60,
		},
	)
)

var numericUnits = map[model.CanonicalKey]unitTable{
	model.KeyWavelengthNM:        wavelengthUnits,
	model.KeyOutputPowerNominal:  powerUnits,
	model.KeyOutputPowerMin:      powerUnits,
	model.KeyRMSNoisePct:         percentUnits,
	model.KeyPowerStabilityPct:   percentUnits,
	model.KeyModulationAnalogHz:  frequencyUnits,
	model.KeyModulationDigitalHz: frequencyUnits,
	model.KeyBeamDiameterMM:      diameterUnits,
	model.KeyBeamDivergenceMrad:  divergenceUnits,
	model.KeyFiberMFDUM:          mfdUnits,
	model.KeyWarmupTimeMin:       warmupUnits,
}

var (
	m2Prefix     = regexp.MustCompile(`(?i)^\s*m\s*(?:\^?2|squared)\s*[:=]?\s*`)
	naValue      = regexp.MustCompile(`(?i)\bna\s*[=:]?\s*(\d*\.?\d+)`)
	ifaceSplit   = regexp.MustCompile(`(?i)\s*(?:[,/;]|\sand\s)\s*`)
	rsPort       = regexp.MustCompile(`RS\s*-?\s*(\d{3})`)
	dimsTriple   = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:mm)?\s*[x×]\s*(\d+(?:\.\d+)?)\s*(?:mm)?\s*[x×]\s*(\d+(?:\.\d+)?)\s*(mm|cm)?`)
	valueSpaces  = regexp.MustCompile(`\s+`)
	unitToken    = regexp.MustCompile(`\d\s*([\p{L}°%]+)`)
	leadingWord  = regexp.MustCompile(`^\s*(\p{L}+)`)
	affirmatives = map[string]bool{
		"yes": true, "y": true, "true": true, "1": true, "available": true,
		"included": true, "standard": true, "integrated": true, "on": true,
	}
	negativePrefixes = []string{"no", "not", "none", "without", "false", "n/a", "0"}
)

// qualifierWords may sit next to a number without being a unit.
var qualifierWords = map[string]bool{
	"typ": true, "typical": true, "typically": true, "max": true, "maximum": true,
	"min": true, "minimum": true, "nominal": true, "nom": true, "approx": true,
	"ca": true, "to": true, "up": true, "and": true, "at": true, "rms": true,
	"better": true, "less": true, "than": true, "below": true, "under": true,
}

// Parse converts raw into the canonical scale for key. hint is a unit taken
// from the label, used when the value carries none. Linewidths given in nm or
// pm are redirected to linewidth_nm, so the returned key may differ from the
// one passed in. Unparseable input reports false.
func Parse(key model.CanonicalKey, raw, hint string) (model.CanonicalKey, Value, bool) {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	if s == "" {
		return key, Value{}, false
	}

	if table, ok := numericUnits[key]; ok {
		f, ok := quantity(s, hint, table)
		return floatResult(key, f, ok)
	}

	switch key {
	case model.KeyM2:
		if m, ok := patterns.BeamQuality.First(s); ok {
			s = m.Value
		}
		s = m2Prefix.ReplaceAllString(s, "")
		if !plainNumber(s) {
			return key, Value{}, false
		}
		f, ok := patterns.ParseNumber(s)
		return floatResult(key, f, ok)
	case model.KeyFiberNA:
		if sm := naValue.FindStringSubmatch(s); sm != nil {
			if f, err := strconv.ParseFloat(sm[1], 64); err == nil {
				return key, Float(f), true
			}
		}
		if !plainNumber(s) {
			return key, Value{}, false
		}
		f, ok := patterns.ParseNumber(s)
		return floatResult(key, f, ok)
	case model.KeyLinewidthMHz, model.KeyLinewidthNM:
		return parseLinewidth(key, s, hint)
	case model.KeyTTLShutter:
		return key, Value{Kind: KindBool, Bool: affirmative(s, "shutter")}, true
	case model.KeyFiberOutput:
		return key, Value{Kind: KindBool, Bool: affirmative(s, "fiber", "fibre", "smf", "mmf", "pm fiber")}, true
	case model.KeyInterfaces:
		list := parseInterfaces(s)
		if len(list) == 0 {
			return key, Value{}, false
		}
		return key, Value{Kind: KindList, List: list}, true
	case model.KeyDimensionsMM:
		dims, ok := parseDimensions(s, hint)
		if !ok {
			return key, Value{}, false
		}
		return key, Value{Kind: KindDimensions, Dims: dims}, true
	case model.KeyPolarization:
		return key, Value{Kind: KindString, Str: strings.ToUpper(valueSpaces.ReplaceAllString(s, " "))}, true
	}
	return key, Value{}, false
}

func floatResult(key model.CanonicalKey, f float64, ok bool) (model.CanonicalKey, Value, bool) {
	if !ok {
		return key, Value{}, false
	}
	return key, Float(f), true
}

// plainNumber rejects values led by a word that is not a qualifier, such as
// "Class 2" or "TEM00".
func plainNumber(s string) bool {
	sm := leadingWord.FindStringSubmatch(s)
	return sm == nil || qualifierWords[strings.ToLower(sm[1])]
}

// quantity finds the first value written with a unit from table. Without one,
// the label hint scales the bare number; with neither the number is taken as
// already canonical. A number carrying a unit the table does not know is not
// a quantity of this key.
func quantity(s, hint string, table unitTable) (float64, bool) {
	if f, _, ok := table.find(s); ok {
		return f, true
	}
	if sm := unitToken.FindStringSubmatch(s); sm != nil {
		tok := strings.ToLower(sm[1])
		if _, known := table.factors[tok]; !known && !qualifierWords[tok] {
			return 0, false
		}
	}
	n, ok := patterns.ParseNumber(s)
	if !ok {
		return 0, false
	}
	if hint != "" {
		if factor, ok := table.factor(hint); ok {
			return n * factor, true
		}
	}
	return n, true
}

func parseLinewidth(key model.CanonicalKey, s, hint string) (model.CanonicalKey, Value, bool) {
	if f, _, ok := linewidthFreqUnits.find(s); ok {
		return model.KeyLinewidthMHz, Float(f), true
	}
	if f, _, ok := linewidthLengthUnits.find(s); ok {
		return model.KeyLinewidthNM, Float(f), true
	}
	n, ok := patterns.ParseNumber(s)
	if !ok {
		return key, Value{}, false
	}
	if factor, ok := linewidthFreqUnits.factor(hint); ok {
		return model.KeyLinewidthMHz, Float(n * factor), true
	}
	if factor, ok := linewidthLengthUnits.factor(hint); ok {
		return model.KeyLinewidthNM, Float(n * factor), true
	}
	return key, Float(n), true
}

func affirmative(s string, domainTerms ...string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, neg := range negativePrefixes {
		if lower == neg || strings.HasPrefix(lower, neg+" ") || strings.HasPrefix(lower, neg+",") {
			return false
		}
	}
	if affirmatives[lower] {
		return true
	}
	for _, term := range domainTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	first := strings.FieldsFunc(lower, func(r rune) bool { return r == ' ' || r == ',' || r == ';' || r == '(' })
	return len(first) > 0 && affirmatives[first[0]]
}

func parseInterfaces(s string) []string {
	var out []string
	for _, part := range ifaceSplit.Split(s, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		part = strings.ToUpper(valueSpaces.ReplaceAllString(part, " "))
		part = rsPort.ReplaceAllString(part, "RS-$1")
		out = append(out, part)
	}
	return out
}

func parseDimensions(s, hint string) (model.Dimensions, bool) {
	sm := dimsTriple.FindStringSubmatch(s)
	if sm == nil {
		return model.Dimensions{}, false
	}
	unit := strings.ToLower(sm[4])
	if unit == "" {
		unit = strings.ToLower(hint)
	}
	var scale float64
	switch unit {
	case "mm":
		scale = 1
	case "cm":
		scale = 10
	default:
		return model.Dimensions{}, false
	}
	var vals [3]float64
	for i := range vals {
		f, err := strconv.ParseFloat(sm[i+1], 64)
		if err != nil {
			return model.Dimensions{}, false
		}
		vals[i] = f * scale
	}
	return model.Dimensions{X: vals[0], Y: vals[1], Z: vals[2]}, true
}

// Apply stores v in the field for key. Values whose kind does not fit the
// field are ignored.
func Apply(f *model.SpecFields, key model.CanonicalKey, v Value) {
	if p := f.Float(key); p != nil {
		if v.Kind == KindFloat {
			n := v.Num
			*p = &n
		}
		return
	}
	if p := f.Bool(key); p != nil {
		if v.Kind == KindBool {
			b := v.Bool
			*p = &b
		}
		return
	}
	switch key {
	case model.KeyPolarization:
		if v.Kind == KindString {
			s := v.Str
			f.Polarization = &s
		}
	case model.KeyInterfaces:
		if v.Kind == KindList {
			f.Interfaces = append([]string(nil), v.List...)
		}
	case model.KeyDimensionsMM:
		if v.Kind == KindDimensions {
			d := v.Dims
			f.DimensionsMM = &d
		}
	}
}
