// Package normalize turns per-model raw spec maps into canonical spec
// records, escalating sparse results to an LLM.
package normalize

import (
	"strings"

	"github.com/sells-group/laser-ci/internal/canonical"
	"github.com/sells-group/laser-ci/internal/model"
)

// Heuristic classifies and parses every entry of specs without any network
// calls. Exact label matches are applied first; labels that only match once
// split at an underscore fill whatever is still empty. Entries that map to no
// canonical field, or whose field is already taken, are kept in
// vendor_fields under their original name.
func Heuristic(modelName string, specs model.RawSpecMap) model.SpecRecord {
	rec := model.SpecRecord{
		Model:        modelName,
		VendorFields: model.RawSpecMap{},
	}

	keys := specs.Keys()
	consumed := make(map[string]bool, len(keys))

	for _, key := range keys {
		ck, ok := canonical.Classify(key)
		if !ok {
			continue
		}
		if apply(&rec.Specs, ck, specs[key], canonical.UnitHint(key)) {
			consumed[key] = true
		}
	}

	for _, key := range keys {
		if consumed[key] || !strings.Contains(key, "_") {
			continue
		}
		if applyHalves(&rec.Specs, key, specs[key]) {
			consumed[key] = true
		}
	}

	for _, key := range keys {
		if !consumed[key] {
			rec.VendorFields[key] = specs[key]
		}
	}
	rec.VendorFields[model.ModelMarker] = model.Str(modelName)
	return rec
}

// applyHalves tries every underscore split point of key and classifies both
// sides, so "beam_quality_m2" and "wavelengths_nm" still land somewhere.
func applyHalves(f *model.SpecFields, key string, value model.RawValue) bool {
	hint := canonical.UnitHint(key)
	for i := 0; i < len(key); i++ {
		if key[i] != '_' {
			continue
		}
		for _, half := range []string{key[:i], key[i+1:]} {
			ck, ok := canonical.Classify(half)
			if !ok {
				continue
			}
			if apply(f, ck, value, hint) {
				return true
			}
		}
	}
	return false
}

// apply parses value for ck and stores it when the resolved field is still
// empty. The first value wins.
func apply(f *model.SpecFields, ck model.CanonicalKey, value model.RawValue, hint string) bool {
	raw := value.String()
	if strings.TrimSpace(raw) == "" {
		return false
	}
	target, v, ok := canonical.Parse(ck, raw, hint)
	if !ok || f.IsSet(target) {
		return false
	}
	canonical.Apply(f, target, v)
	return f.IsSet(target)
}
