package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/laser-ci/internal/model"
)

func TestFromHTML_SingleValuedTable(t *testing.T) {
	t.Parallel()

	got, err := FromHTML(`<html><body><table>
		<tr><td>Wavelength</td><td>405 nm</td></tr>
		<tr><td>Output Power (mW)</td><td>100</td></tr>
		<tr><td>Polarization Ratio</td><td>&gt;100:1</td></tr>
		<tr><td>Warm-up time</td><td>-</td></tr>
	</table></body></html>`)
	require.NoError(t, err)

	assert.Equal(t, model.RawSpecMap{
		"Wavelength":         model.Str("405 nm"),
		"Output Power (mW)":  model.Str("100"),
		"Polarization Ratio": model.Str(">100:1"),
	}, got)
}

func TestFromHTML_ComparisonTableUsesCompositeKeys(t *testing.T) {
	t.Parallel()

	got, err := FromHTML(`<table>
		<thead><tr><th>Parameter</th><th>LuxX 405-60</th><th>LuxX 488-50</th></tr></thead>
		<tbody>
			<tr><td>Wavelength</td><td>405 nm</td><td>488 nm</td></tr>
			<tr><td>Power</td><td>60 mW</td><td>N/A</td></tr>
			<tr><td>Interfaces</td><td colspan="2">USB, RS-232</td></tr>
		</tbody>
	</table>`)
	require.NoError(t, err)

	assert.Equal(t, model.RawSpecMap{
		"Wavelength_LuxX 405-60": model.Str("405 nm"),
		"Wavelength_LuxX 488-50": model.Str("488 nm"),
		"Power_LuxX 405-60":      model.Str("60 mW"),
		"Interfaces_LuxX 405-60": model.Str("USB, RS-232"),
		"Interfaces_LuxX 488-50": model.Str("USB, RS-232"),
	}, got)
}

func TestFromHTML_UnitAndStatisticColumns(t *testing.T) {
	t.Parallel()

	got, err := FromHTML(`<table>
		<thead><tr><th>Parameter</th><th>Min.</th><th>Typical</th><th>Max.</th><th>Units</th></tr></thead>
		<tbody>
			<tr><td>Output Power</td><td>1.2</td><td>1.5</td><td>1.8</td><td>W</td></tr>
			<tr><td>Warm-up time</td><td>-</td><td>30</td><td>-</td><td>s</td></tr>
			<tr><td>Polarization ratio</td><td>100:1</td><td></td><td></td><td>-</td></tr>
		</tbody>
	</table>`)
	require.NoError(t, err)

	assert.Equal(t, model.RawSpecMap{
		"Output Power, min":       model.Str("1.2 W"),
		"Output Power":            model.Str("1.5 W"),
		"Output Power, max":       model.Str("1.8 W"),
		"Warm-up time":            model.Str("30 s"),
		"Polarization ratio, min": model.Str("100:1"),
	}, got)
}

func TestFromHTML_MultiLevelHeader(t *testing.T) {
	t.Parallel()

	got, err := FromHTML(`<table>
		<thead>
			<tr><th rowspan="2">Spec</th><th colspan="2">LuxX+</th></tr>
			<tr><th>405-60</th><th>488-50</th></tr>
		</thead>
		<tbody><tr><td>Wavelength</td><td>405 nm</td><td>488 nm</td></tr></tbody>
	</table>`)
	require.NoError(t, err)

	assert.Equal(t, "405 nm", got["Wavelength_405-60"].Str)
	assert.Equal(t, "488 nm", got["Wavelength_488-50"].Str)
}

func TestFromHTML_HeaderlessMultiValueRowBecomesList(t *testing.T) {
	t.Parallel()

	got, err := FromHTML(`<table>
		<tr><td>Wavelengths</td><td>405 nm</td><td>488 nm</td><td>-</td></tr>
	</table>`)
	require.NoError(t, err)
	assert.Equal(t, model.List("405 nm", "488 nm"), got["Wavelengths"])
}

func TestFromHTML_ListsDefinitionsAndClassPairs(t *testing.T) {
	t.Parallel()

	got, err := FromHTML(`<body>
		<ul><li>Wavelength: 640 nm</li><li>Polarization Ratio: >50:1</li><li>no colon here</li></ul>
		<dl><dt>Beam diameter</dt><dd>0.7 mm</dd><dt>M²</dt><dd>&lt;1.1</dd></dl>
		<div class="spec"><span class="spec-label">Noise</span><span class="spec-value">&lt;0.2 %</span></div>
	</body>`)
	require.NoError(t, err)

	assert.Equal(t, model.RawSpecMap{
		"Wavelength":         model.Str("640 nm"),
		"Polarization Ratio": model.Str(">50:1"),
		"Beam diameter":      model.Str("0.7 mm"),
		"M²":                 model.Str("<1.1"),
		"Noise":              model.Str("<0.2 %"),
	}, got)
}

func TestFromHTML_ConcatenatedRow(t *testing.T) {
	t.Parallel()

	got, err := FromHTML(`<table>
		<tr><td>Models</td><td>LuxX 405-60 405nm / 60mW LuxX 488-50 488nm / 50mW</td></tr>
	</table>`)
	require.NoError(t, err)

	assert.Equal(t, "405 nm", got["LuxX 405-60_wavelength"].Str)
	assert.Equal(t, "50 mW", got["LuxX 488-50_power"].Str)
	assert.NotContains(t, got, "Models")
}

func TestFromHTML_ProseFallback(t *testing.T) {
	t.Parallel()

	got, err := FromHTML(`<body><p>The LuxX 405 nm module delivers up to 120 mW with M² &lt; 1.1 and &gt;100:1 polarization.</p></body>`)
	require.NoError(t, err)

	assert.Equal(t, model.List("405 nm"), got["wavelengths_nm"])
	assert.Equal(t, model.List("120 mW"), got["power_values"])
	assert.Equal(t, "< 1.1", got["beam_quality_m2"].Str)
	assert.Equal(t, model.List(">100:1"), got["ratios"])
}

func TestFromHTML_ProseIgnoredWhenStructuredDataExists(t *testing.T) {
	t.Parallel()

	got, err := FromHTML(`<body>
		<p>Available at 488 nm.</p>
		<table><tr><td>Wavelength</td><td>405 nm</td></tr></table>
	</body>`)
	require.NoError(t, err)
	assert.NotContains(t, got, "wavelengths_nm")
	assert.Len(t, got, 1)
}

func TestAlignHeaders(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"", "a", "b"}, alignHeaders([]string{"a", "b"}, 3))
	assert.Equal(t, []string{"a", "b"}, alignHeaders([]string{"a", "b"}, 2))
	assert.Nil(t, alignHeaders(nil, 3))
}
