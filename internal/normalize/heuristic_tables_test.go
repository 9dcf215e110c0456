package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/laser-ci/internal/disambiguate"
	"github.com/sells-group/laser-ci/internal/extract"
	"github.com/sells-group/laser-ci/internal/model"
)

// recordsFrom runs a flat extraction through model splitting and the
// heuristic pass, keyed by model name.
func recordsFrom(t *testing.T, flat model.RawSpecMap, product string) map[string]model.SpecRecord {
	t.Helper()
	out := map[string]model.SpecRecord{}
	for name, specs := range disambiguate.New().Split(flat, product) {
		out[name] = Heuristic(name, specs)
	}
	return out
}

func TestHeuristic_BeamQualityM2LabelsFromHTML(t *testing.T) {
	t.Parallel()

	for _, label := range []string{"Beam Quality M²", "Beam quality factor M²"} {
		t.Run(label, func(t *testing.T) {
			t.Parallel()

			flat, err := extract.FromHTML(`<table>
				<thead><tr><th>Parameter</th><th>LuxX+ 405-60</th><th>LuxX+ 488-50</th></tr></thead>
				<tbody>
					<tr><td>Wavelength</td><td>405 nm</td><td>488 nm</td></tr>
					<tr><td>` + label + `</td><td>&lt;1.1</td><td>&lt;1.2</td></tr>
				</tbody>
			</table>`)
			require.NoError(t, err)

			recs := recordsFrom(t, flat, "LuxX+")
			require.Len(t, recs, 2)

			rec := recs["LuxX+ 405-60"]
			require.NotNil(t, rec.Specs.M2)
			assert.InDelta(t, 1.1, *rec.Specs.M2, 1e-9)
			require.NotNil(t, recs["LuxX+ 488-50"].Specs.M2)
			assert.InDelta(t, 1.2, *recs["LuxX+ 488-50"].Specs.M2, 1e-9)
			for k := range rec.VendorFields {
				assert.NotContains(t, k, "Beam")
			}
		})
	}
}

func TestHeuristic_ModeNameIsNotBeamQuality(t *testing.T) {
	t.Parallel()

	rec := Heuristic("X", model.RawSpecMap{
		"Beam quality": model.Str("TEM00"),
	})

	assert.Nil(t, rec.Specs.M2)
	assert.Equal(t, model.Str("TEM00"), rec.VendorFields["Beam quality"])
}

func TestHeuristic_UnitColumnFromHTML(t *testing.T) {
	t.Parallel()

	flat, err := extract.FromHTML(`<table>
		<thead><tr><th>Parameter</th><th>Value</th><th>Unit</th></tr></thead>
		<tbody>
			<tr><td>Output Power</td><td>1.5</td><td>W</td></tr>
			<tr><td>Warm-up time</td><td>30</td><td>s</td></tr>
		</tbody>
	</table>`)
	require.NoError(t, err)

	recs := recordsFrom(t, flat, "Cobolt 06-01")
	require.Len(t, recs, 1)
	rec := recs["Cobolt 06-01"]

	require.NotNil(t, rec.Specs.OutputPowerNominal)
	assert.InDelta(t, 1500, *rec.Specs.OutputPowerNominal, 1e-9)
	require.NotNil(t, rec.Specs.WarmupTimeMin)
	assert.InDelta(t, 0.5, *rec.Specs.WarmupTimeMin, 1e-9)
}

func TestHeuristic_UnitColumnFromPDF(t *testing.T) {
	t.Parallel()

	flat := extract.FromPDFText("| Parameter | Value | Unit |\n|---|---|---|\n| Output Power | 1.5 | W |\n| Warm-up time | 30 | s |")

	recs := recordsFrom(t, flat, "Cobolt 06-01")
	require.Len(t, recs, 1)
	rec := recs["Cobolt 06-01"]

	require.NotNil(t, rec.Specs.OutputPowerNominal)
	assert.InDelta(t, 1500, *rec.Specs.OutputPowerNominal, 1e-9)
	require.NotNil(t, rec.Specs.WarmupTimeMin)
	assert.InDelta(t, 0.5, *rec.Specs.WarmupTimeMin, 1e-9)
}

func TestHeuristic_MinTypMaxColumns(t *testing.T) {
	t.Parallel()

	html, err := extract.FromHTML(`<table>
		<thead><tr><th>Parameter</th><th>Min</th><th>Typ</th><th>Max</th><th>Unit</th></tr></thead>
		<tbody><tr><td>Output Power</td><td>1.2</td><td>1.5</td><td>1.8</td><td>W</td></tr></tbody>
	</table>`)
	require.NoError(t, err)
	pdf := extract.FromPDFText("| Parameter | Min | Typ | Max | Unit |\n|---|---|---|---|---|\n| Output Power | 1.2 | 1.5 | 1.8 | W |")

	for name, flat := range map[string]model.RawSpecMap{"html": html, "pdf": pdf} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := recordsFrom(t, flat, "Genesis")["Genesis"]
			require.NotNil(t, rec.Specs.OutputPowerNominal)
			assert.InDelta(t, 1500, *rec.Specs.OutputPowerNominal, 1e-9)
			require.NotNil(t, rec.Specs.OutputPowerMin)
			assert.InDelta(t, 1200, *rec.Specs.OutputPowerMin, 1e-9)
			assert.Equal(t, model.Str("1.8 W"), rec.VendorFields["Output Power, max"])
		})
	}
}
