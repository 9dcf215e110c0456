package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/laser-ci/internal/canonical"
	"github.com/sells-group/laser-ci/internal/model"
)

// ErrEscalation marks an escalation that returned nothing usable.
var ErrEscalation = eris.New("normalize: escalation failed")

// EscalationRequest is what an Escalator sends to the LLM.
type EscalationRequest struct {
	RawSpecs model.RawSpecMap
	Context  string
}

// Escalation is the candidate record an Escalator returns.
type Escalation struct {
	Specs        model.SpecFields
	VendorFields model.RawSpecMap
}

// Escalator normalizes a raw spec map with an LLM.
type Escalator interface {
	Escalate(ctx context.Context, req EscalationRequest) (*Escalation, error)
}

// EscalationContext is the short contextual text sent with every request.
func EscalationContext(modelName, productName string) string {
	return fmt.Sprintf("Laser model: %s\nProduct family: %s", modelName, productName)
}

const systemPrompt = `You normalize laser product specifications into a fixed schema.
Return one JSON object and nothing else. Use null for anything the input does not state.
Keys and units:
  wavelength_nm (nm), output_power_mw_nominal (mW), output_power_mw_min (mW),
  rms_noise_pct (%), power_stability_pct (%), linewidth_mhz (MHz), linewidth_nm (nm),
  m2 (number), beam_diameter_mm (mm), beam_divergence_mrad (mrad),
  polarization (string as written), modulation_analog_hz (Hz), modulation_digital_hz (Hz),
  ttl_shutter (bool), fiber_output (bool), fiber_na (number), fiber_mfd_um (um),
  warmup_time_min (minutes), interfaces (list of strings),
  dimensions_mm ({"x":..,"y":..,"z":..} in mm),
  vendor_fields (object of any remaining specs, keyed by original name).
Convert every value to the unit listed. For "<X" or ">X" use X. For ranges use the midpoint.`

// userPrompt renders the request body sent after the system prompt.
func userPrompt(req EscalationRequest) (string, error) {
	raw, err := json.MarshalIndent(req.RawSpecs, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "normalize: marshal raw specs")
	}
	return req.Context + "\n\nRaw specifications:\n" + string(raw), nil
}

// ScalarKind tags the JSON shape held by a Scalar.
type ScalarKind int

const (
	ScalarNull ScalarKind = iota
	ScalarNumber
	ScalarString
	ScalarBool
	ScalarList
	ScalarObject
)

// Scalar is one decoded JSON value from an LLM response.
type Scalar struct {
	Kind   ScalarKind
	Num    float64
	Str    string
	Bool   bool
	List   []Scalar
	Object map[string]Scalar
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = scalarOf(v)
	return nil
}

func scalarOf(v any) Scalar {
	switch t := v.(type) {
	case nil:
		return Scalar{Kind: ScalarNull}
	case float64:
		return Scalar{Kind: ScalarNumber, Num: t}
	case string:
		return Scalar{Kind: ScalarString, Str: t}
	case bool:
		return Scalar{Kind: ScalarBool, Bool: t}
	case []any:
		list := make([]Scalar, len(t))
		for i, item := range t {
			list[i] = scalarOf(item)
		}
		return Scalar{Kind: ScalarList, List: list}
	case map[string]any:
		obj := make(map[string]Scalar, len(t))
		for k, item := range t {
			obj[k] = scalarOf(item)
		}
		return Scalar{Kind: ScalarObject, Object: obj}
	}
	return Scalar{Kind: ScalarNull}
}

var wrapperKeys = []string{"value", "typical", "nominal"}

// unwrap descends through {value|typical|nominal} wrapper objects.
func (s Scalar) unwrap() Scalar {
	for depth := 0; s.Kind == ScalarObject && depth < 4; depth++ {
		next, ok := Scalar{}, false
		for _, k := range wrapperKeys {
			if v, found := s.Object[k]; found {
				next, ok = v, true
				break
			}
		}
		if !ok {
			return s
		}
		s = next
	}
	return s
}

// text renders a scalar for storage as a raw vendor value.
func (s Scalar) text() string {
	switch s.Kind {
	case ScalarNumber:
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	case ScalarString:
		return s.Str
	case ScalarBool:
		return strconv.FormatBool(s.Bool)
	}
	return ""
}

func (s Scalar) rawValue() model.RawValue {
	switch s.Kind {
	case ScalarList:
		items := make([]string, 0, len(s.List))
		for _, item := range s.List {
			items = append(items, item.rawValue().String())
		}
		return model.List(items...)
	case ScalarObject:
		m := make(map[string]model.RawValue, len(s.Object))
		for k, v := range s.Object {
			m[k] = v.rawValue()
		}
		return model.Nested(m)
	}
	return model.Str(s.text())
}

// ParseEscalation decodes an LLM response into canonical fields. Code
// fences and prose around the JSON object are tolerated. Numeric fields
// accept numbers, numeric strings (parsed with units) and wrapper objects.
// Unknown keys are ignored.
func ParseEscalation(text string) (*Escalation, error) {
	body := cleanJSON(text)
	var fields map[string]Scalar
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, eris.Wrap(ErrEscalation, fmt.Sprintf("malformed response: %v", err))
	}

	out := &Escalation{VendorFields: model.RawSpecMap{}}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		key := model.CanonicalKey(k)
		if key == model.KeyVendorFields {
			for vk, vv := range fields[k].Object {
				if vv.Kind != ScalarNull {
					out.VendorFields[vk] = vv.rawValue()
				}
			}
			continue
		}
		v := fields[k].unwrap()
		if v.Kind == ScalarNull {
			continue
		}
		switch {
		case out.Specs.Float(key) != nil:
			coerceFloat(&out.Specs, key, v)
		case out.Specs.Bool(key) != nil:
			coerceBool(&out.Specs, key, v)
		case key == model.KeyPolarization:
			if s := v.text(); s != "" {
				out.Specs.Polarization = &s
			}
		case key == model.KeyInterfaces:
			coerceInterfaces(&out.Specs, v)
		case key == model.KeyDimensionsMM:
			coerceDimensions(&out.Specs, v)
		}
	}
	return out, nil
}

func coerceFloat(f *model.SpecFields, key model.CanonicalKey, v Scalar) {
	switch v.Kind {
	case ScalarNumber:
		canonical.Apply(f, key, canonical.Float(v.Num))
	case ScalarString:
		target, parsed, ok := canonical.Parse(key, v.Str, "")
		if ok && target == key {
			canonical.Apply(f, key, parsed)
		}
	}
}

func coerceBool(f *model.SpecFields, key model.CanonicalKey, v Scalar) {
	switch v.Kind {
	case ScalarBool:
		canonical.Apply(f, key, canonical.Value{Kind: canonical.KindBool, Bool: v.Bool})
	case ScalarString:
		if _, parsed, ok := canonical.Parse(key, v.Str, ""); ok {
			canonical.Apply(f, key, parsed)
		}
	}
}

func coerceInterfaces(f *model.SpecFields, v Scalar) {
	switch v.Kind {
	case ScalarList:
		var list []string
		for _, item := range v.List {
			if s := strings.TrimSpace(item.unwrap().text()); s != "" {
				list = append(list, s)
			}
		}
		if len(list) > 0 {
			f.Interfaces = list
		}
	case ScalarString:
		if _, parsed, ok := canonical.Parse(model.KeyInterfaces, v.Str, ""); ok {
			canonical.Apply(f, model.KeyInterfaces, parsed)
		}
	}
}

func coerceDimensions(f *model.SpecFields, v Scalar) {
	switch v.Kind {
	case ScalarObject:
		var d model.Dimensions
		for axis, dst := range map[string]*float64{"x": &d.X, "y": &d.Y, "z": &d.Z} {
			n := v.Object[axis].unwrap()
			if n.Kind != ScalarNumber {
				return
			}
			*dst = n.Num
		}
		f.DimensionsMM = &d
	case ScalarList:
		if len(v.List) != 3 {
			return
		}
		var vals [3]float64
		for i, item := range v.List {
			if item.Kind != ScalarNumber {
				return
			}
			vals[i] = item.Num
		}
		f.DimensionsMM = &model.Dimensions{X: vals[0], Y: vals[1], Z: vals[2]}
	case ScalarString:
		if _, parsed, ok := canonical.Parse(model.KeyDimensionsMM, v.Str, "mm"); ok {
			canonical.Apply(f, model.KeyDimensionsMM, parsed)
		}
	}
}

// cleanJSON extracts a JSON object from text that may contain markdown code
// fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
