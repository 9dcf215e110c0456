package extract

import (
	"regexp"

	"github.com/sells-group/laser-ci/internal/model"
)

// listingEntry matches one "<model> <wavelength> nm / <power> mW" entry of a
// product matrix that collapsed into a single text blob.
var listingEntry = regexp.MustCompile(`([A-Z][A-Za-z]{1,11}[®+]?\s*\d[\d-]*)\s+(\d+(?:\.\d+)?)\s*(?i:nm)\s*/\s*(\d+(?:\.\d+)?)\s*(?i:mw)`)

// parseConcatenated expands every listing entry in text into per-model
// composite keys plus summary lists. It reports whether anything was found.
func parseConcatenated(text string, out model.RawSpecMap) bool {
	found := listingEntry.FindAllStringSubmatch(text, -1)
	if len(found) == 0 {
		return false
	}

	var models, wavelengths, powers []string
	for _, sm := range found {
		name := cleanText(sm[1])
		wl := sm[2] + " nm"
		pw := sm[3] + " mW"
		out[name+"_wavelength"] = model.Str(wl)
		out[name+"_power"] = model.Str(pw)
		models = append(models, name)
		wavelengths = append(wavelengths, wl)
		powers = append(powers, pw)
	}
	out["product_models"] = model.List(dedupe(models)...)
	out["wavelengths"] = model.List(dedupe(wavelengths)...)
	out["power_levels"] = model.List(dedupe(powers)...)
	return true
}
