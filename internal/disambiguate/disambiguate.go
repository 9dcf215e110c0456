// Package disambiguate splits a family-level spec map into per-model groups.
package disambiguate

import (
	"regexp"
	"strings"

	"github.com/sells-group/laser-ci/internal/model"
)

// Separator joins a spec name and a model qualifier in a composite key.
const Separator = "_"

// specVocabulary marks the spec-name half of a composite key.
var specVocabulary = []string{
	"wavelength", "power", "beam", "noise", "stability", "linewidth",
	"m²", "m2", "polarization", "polarisation", "modulation", "divergence",
	"diameter", "quality", "output",
}

// DefaultBrandPrefixes are vendor model-family tokens accepted as model names
// even without a digit.
var DefaultBrandPrefixes = []string{"LX", "LS", "LBX", "LCX", "OBIS", "LUXX", "CELESTA", "SPECTRA", "SOLA"}

var (
	digit      = regexp.MustCompile(`\d`)
	tokenSplit = regexp.MustCompile(`[\s\-/+®]+`)
)

// Splitter groups composite keys by model.
type Splitter struct {
	BrandPrefixes []string
}

// New returns a Splitter using the default brand prefixes.
func New() *Splitter {
	return &Splitter{BrandPrefixes: DefaultBrandPrefixes}
}

// Split returns {model name -> spec sub-map}. Keys that do not name a model
// are family-wide values and are copied into every model group lacking its
// own value for that spec. When no model can be identified the whole map is
// returned as a single group named after the product. An empty map yields an
// empty result.
func (s *Splitter) Split(flat model.RawSpecMap, productName string) map[string]model.RawSpecMap {
	if len(flat) == 0 {
		return map[string]model.RawSpecMap{}
	}

	groups := map[string]model.RawSpecMap{}
	shared := model.RawSpecMap{}
	for _, key := range flat.Keys() {
		value := flat[key]
		spec, modelName, ok := s.splitKey(key)
		if !ok {
			shared[key] = value
			continue
		}
		if groups[modelName] == nil {
			groups[modelName] = model.RawSpecMap{}
		}
		groups[modelName][spec] = value
	}

	if len(groups) == 0 {
		return map[string]model.RawSpecMap{productName: flat.Clone()}
	}

	for _, g := range groups {
		for k, v := range shared {
			if _, exists := g[k]; !exists {
				g[k] = v
			}
		}
	}
	return groups
}

// splitKey decides which half of a composite key is the spec name and
// whether the other half is an acceptable model name.
func (s *Splitter) splitKey(key string) (spec, modelName string, ok bool) {
	left, right, found := strings.Cut(key, Separator)
	if !found {
		return "", "", false
	}
	left, right = strings.TrimSpace(left), strings.TrimSpace(right)

	switch {
	case isSpecName(left) && isSpecName(right):
		return "", "", false
	case isSpecName(left):
		spec, modelName = left, right
	case isSpecName(right):
		spec, modelName = right, left
	default:
		spec, modelName = left, right
	}
	if spec == "" || !s.isModelName(modelName) {
		return "", "", false
	}
	return spec, modelName, true
}

func isSpecName(s string) bool {
	lower := strings.ToLower(s)
	for _, w := range specVocabulary {
		if strings.Contains(lower, w) {
			return true
		}
	}
	return false
}

func (s *Splitter) isModelName(name string) bool {
	if name == "" {
		return false
	}
	if digit.MatchString(name) {
		return true
	}
	for _, tok := range tokenSplit.Split(strings.ToUpper(name), -1) {
		for _, brand := range s.BrandPrefixes {
			if tok != "" && strings.HasPrefix(tok, strings.ToUpper(brand)) {
				return true
			}
		}
	}
	return false
}
