package canonical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/laser-ci/internal/model"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		label string
		want  model.CanonicalKey
	}{
		{"Wavelength", model.KeyWavelengthNM},
		{"Center Wavelength (nm)", model.KeyWavelengthNM},
		{"λ", model.KeyWavelengthNM},
		{"Wavelength¹", model.KeyWavelengthNM},
		{"Output Power (mW)", model.KeyOutputPowerNominal},
		{"CW Power", model.KeyOutputPowerNominal},
		{"Typ. Power", model.KeyOutputPowerNominal},
		{"Maximum Output Power", model.KeyOutputPowerNominal},
		{"output_power", model.KeyOutputPowerNominal},
		{"Power", model.KeyOutputPowerNominal},
		{"Min. Power", model.KeyOutputPowerMin},
		{"Power, min", model.KeyOutputPowerMin},
		{"RMS Noise (20 Hz - 20 MHz)", model.KeyRMSNoisePct},
		{"Noise (rms)", model.KeyRMSNoisePct},
		{"Intensity noise", model.KeyRMSNoisePct},
		{"Power Stability (8 h)", model.KeyPowerStabilityPct},
		{"Long-term stability", model.KeyPowerStabilityPct},
		{"power_stability", model.KeyPowerStabilityPct},
		{"M²", model.KeyM2},
		{"M2", model.KeyM2},
		{"Beam Quality (M²)", model.KeyM2},
		{"Beam Quality M²", model.KeyM2},
		{"Beam quality factor M²", model.KeyM2},
		{"beam_quality", model.KeyM2},
		{"Beam diameter at aperture (1/e²)", model.KeyBeamDiameterMM},
		{"Beam Divergence", model.KeyBeamDivergenceMrad},
		{"Full-angle divergence", model.KeyBeamDivergenceMrad},
		{"Polarization Ratio", model.KeyPolarization},
		{"Polarisation", model.KeyPolarization},
		{"Linewidth", model.KeyLinewidthMHz},
		{"Spectral Linewidth", model.KeyLinewidthMHz},
		{"Analog Modulation", model.KeyModulationAnalogHz},
		{"analog_modulation", model.KeyModulationAnalogHz},
		{"Digital Modulation", model.KeyModulationDigitalHz},
		{"TTL modulation", model.KeyModulationDigitalHz},
		{"Blanking rate", model.KeyModulationDigitalHz},
		{"Electronic Shutter", model.KeyTTLShutter},
		{"Laser inhibit", model.KeyTTLShutter},
		{"Fiber Output", model.KeyFiberOutput},
		{"Fiber NA", model.KeyFiberNA},
		{"NA", model.KeyFiberNA},
		{"Mode field diameter", model.KeyFiberMFDUM},
		{"Interfaces", model.KeyInterfaces},
		{"Control interface", model.KeyInterfaces},
		{"Warm-up time", model.KeyWarmupTimeMin},
		{"Dimensions (L x W x H)", model.KeyDimensionsMM},
		{"Size", model.KeyDimensionsMM},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			t.Parallel()
			got, ok := Classify(tt.label)
			require.True(t, ok, "label %q should classify", tt.label)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_Unrecognized(t *testing.T) {
	t.Parallel()

	for _, label := range []string{"Model", "Power consumption", "Pointing stability", "Operating temperature", "", "   "} {
		_, ok := Classify(label)
		assert.False(t, ok, label)
	}
}

func TestUnitHint(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "W", UnitHint("Output Power (W)"))
	assert.Equal(t, "nm", UnitHint("Wavelength [nm]"))
	assert.Equal(t, "μm", UnitHint("MFD (µm)"))
	assert.Empty(t, UnitHint("Noise (rms)"))
	assert.Empty(t, UnitHint("Wavelength"))
}

func parseFloat(t *testing.T, key model.CanonicalKey, raw, hint string) float64 {
	t.Helper()
	gotKey, v, ok := Parse(key, raw, hint)
	require.True(t, ok, "parse %q", raw)
	require.Equal(t, key, gotKey)
	require.Equal(t, KindFloat, v.Kind)
	return v.Num
}

func TestParse_OperatorStripping(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.25, parseFloat(t, model.KeyRMSNoisePct, "<0.25%", ""), 1e-9)
	assert.InDelta(t, 50, parseFloat(t, model.KeyOutputPowerNominal, "≥50 mW", ""), 1e-9)
	assert.InDelta(t, 2, parseFloat(t, model.KeyPowerStabilityPct, "< 2 % (8 h)", ""), 1e-9)
}

func TestParse_UnitConversion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		key  model.CanonicalKey
		raw  string
		hint string
		want float64
	}{
		{"watts to mW", model.KeyOutputPowerNominal, "50 W", "", 50000},
		{"kW to mW", model.KeyOutputPowerNominal, "1.2 kW", "", 1.2e6},
		{"µW to mW", model.KeyOutputPowerMin, "500 µW", "", 0.5},
		{"label hint", model.KeyOutputPowerNominal, "1.5", "W", 1500},
		{"no unit is canonical", model.KeyOutputPowerNominal, "60", "", 60},
		{"µm to nm", model.KeyWavelengthNM, "1.55 µm", "", 1550},
		{"tolerance", model.KeyWavelengthNM, "405 ± 5 nm", "", 405},
		{"range midpoint", model.KeyWavelengthNM, "635-640 nm", "", 637.5},
		{"MHz to Hz", model.KeyModulationDigitalHz, "150 MHz", "", 1.5e8},
		{"kHz to Hz", model.KeyModulationAnalogHz, "up to 500 kHz", "", 5e5},
		{"seconds to min", model.KeyWarmupTimeMin, "30 s", "", 0.5},
		{"minutes", model.KeyWarmupTimeMin, "< 5 min", "", 5},
		{"hours to min", model.KeyWarmupTimeMin, "1 hour", "", 60},
		{"µm to mm", model.KeyBeamDiameterMM, "700 µm", "", 0.7},
		{"mrad", model.KeyBeamDivergenceMrad, "<1.5 mrad", "", 1.5},
		{"µrad to mrad", model.KeyBeamDivergenceMrad, "500 µrad", "", 0.5},
		{"mfd", model.KeyFiberMFDUM, "3.5 µm", "", 3.5},
		{"m2 symbol", model.KeyM2, "M² < 1.1", "", 1.1},
		{"m2 bare", model.KeyM2, "<1.2", "", 1.2},
		{"fiber na", model.KeyFiberNA, "NA = 0.12", "", 0.12},
		{"thousands separator", model.KeyModulationDigitalHz, "1,000 Hz", "", 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, parseFloat(t, tt.key, tt.raw, tt.hint), 1e-6)
		})
	}
}

func TestParse_RoundTripsMagnitude(t *testing.T) {
	t.Parallel()

	mw := parseFloat(t, model.KeyOutputPowerNominal, "50 W", "")
	assert.InDelta(t, 50000, mw, 1e-9)
	assert.InDelta(t, 50, mw/1000, 1e-9)

	hz := parseFloat(t, model.KeyModulationAnalogHz, "2.5 MHz", "")
	assert.InDelta(t, 2.5, hz/1e6, 1e-9)
}

func TestParse_Linewidth(t *testing.T) {
	t.Parallel()

	key, v, ok := Parse(model.KeyLinewidthMHz, "< 1 MHz", "")
	require.True(t, ok)
	assert.Equal(t, model.KeyLinewidthMHz, key)
	assert.InDelta(t, 1, v.Num, 1e-9)

	key, v, ok = Parse(model.KeyLinewidthMHz, "0.5 nm", "")
	require.True(t, ok)
	assert.Equal(t, model.KeyLinewidthNM, key)
	assert.InDelta(t, 0.5, v.Num, 1e-9)

	key, v, ok = Parse(model.KeyLinewidthMHz, "20 pm", "")
	require.True(t, ok)
	assert.Equal(t, model.KeyLinewidthNM, key)
	assert.InDelta(t, 0.02, v.Num, 1e-9)

	key, v, ok = Parse(model.KeyLinewidthMHz, "300 kHz", "")
	require.True(t, ok)
	assert.Equal(t, model.KeyLinewidthMHz, key)
	assert.InDelta(t, 0.3, v.Num, 1e-9)
}

func TestParse_Booleans(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  model.CanonicalKey
		raw  string
		want bool
	}{
		{model.KeyTTLShutter, "Yes", true},
		{model.KeyTTLShutter, "1", true},
		{model.KeyTTLShutter, "Integrated shutter", true},
		{model.KeyTTLShutter, "No", false},
		{model.KeyTTLShutter, "optional", false},
		{model.KeyFiberOutput, "SMF, FC/APC", true},
		{model.KeyFiberOutput, "Integrated fiber", true},
		{model.KeyFiberOutput, "free space", false},
		{model.KeyFiberOutput, "no fiber", false},
	}

	for _, tt := range tests {
		_, v, ok := Parse(tt.key, tt.raw, "")
		require.True(t, ok, tt.raw)
		assert.Equal(t, KindBool, v.Kind)
		assert.Equal(t, tt.want, v.Bool, tt.raw)
	}
}

func TestParse_Interfaces(t *testing.T) {
	t.Parallel()

	_, v, ok := Parse(model.KeyInterfaces, "TTL, RS232 / USB", "")
	require.True(t, ok)
	assert.Equal(t, []string{"TTL", "RS-232", "USB"}, v.List)

	_, v, ok = Parse(model.KeyInterfaces, "usb; rs 232 and ethernet", "")
	require.True(t, ok)
	assert.Equal(t, []string{"USB", "RS-232", "ETHERNET"}, v.List)
}

func TestParse_Dimensions(t *testing.T) {
	t.Parallel()

	_, v, ok := Parse(model.KeyDimensionsMM, "155 x 180 x 52.2 mm", "")
	require.True(t, ok)
	assert.Equal(t, model.Dimensions{X: 155, Y: 180, Z: 52.2}, v.Dims)

	_, v, ok = Parse(model.KeyDimensionsMM, "4 × 5 × 2 cm", "")
	require.True(t, ok)
	assert.Equal(t, model.Dimensions{X: 40, Y: 50, Z: 20}, v.Dims)

	_, v, ok = Parse(model.KeyDimensionsMM, "40 x 40 x 100", "mm")
	require.True(t, ok)
	assert.Equal(t, model.Dimensions{X: 40, Y: 40, Z: 100}, v.Dims)

	_, _, ok = Parse(model.KeyDimensionsMM, "compact", "")
	assert.False(t, ok)
	_, _, ok = Parse(model.KeyDimensionsMM, "40 x 40 x 100", "")
	assert.False(t, ok)
}

func TestParse_PolarizationKeepsRatio(t *testing.T) {
	t.Parallel()

	_, v, ok := Parse(model.KeyPolarization, ">50:1", "")
	require.True(t, ok)
	assert.Equal(t, ">50:1", v.Str)

	_, v, ok = Parse(model.KeyPolarization, "linear,  vertical", "")
	require.True(t, ok)
	assert.Equal(t, "LINEAR, VERTICAL", v.Str)
}

func TestParse_Unparseable(t *testing.T) {
	t.Parallel()

	for _, key := range []model.CanonicalKey{model.KeyWavelengthNM, model.KeyOutputPowerNominal, model.KeyM2} {
		_, _, ok := Parse(key, "see datasheet", "")
		assert.False(t, ok, key)
	}
	_, _, ok := Parse(model.KeyWavelengthNM, "  ", "")
	assert.False(t, ok)
	_, _, ok = Parse(model.KeyVendorFields, "x", "")
	assert.False(t, ok)
}

func TestParse_RejectsForeignUnitsAndWords(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key model.CanonicalKey
		raw string
	}{
		{model.KeyM2, "TEM00"},
		{model.KeyM2, "Class 2"},
		{model.KeyFiberNA, "Class 2"},
		{model.KeyWarmupTimeMin, "10 ms"},
		{model.KeyOutputPowerNominal, "5 V"},
		{model.KeyWavelengthNM, "LX405"},
	}

	for _, tt := range tests {
		t.Run(string(tt.key)+" "+tt.raw, func(t *testing.T) {
			t.Parallel()
			_, _, ok := Parse(tt.key, tt.raw, "")
			assert.False(t, ok)
		})
	}
}

func TestParse_QualifierWordsAreNotUnits(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.2, parseFloat(t, model.KeyRMSNoisePct, "0.2 rms", ""), 1e-9)
	assert.InDelta(t, 1.5, parseFloat(t, model.KeyOutputPowerNominal, "1.5 typ.", "W")/1000, 1e-9)
	assert.InDelta(t, 1.2, parseFloat(t, model.KeyM2, "better than 1.2", ""), 1e-9)
	assert.InDelta(t, 0.22, parseFloat(t, model.KeyFiberNA, "0.22", ""), 1e-9)
}

func TestCleanLabel_KeepsSquaredM(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "beam quality m2", CleanLabel("Beam Quality M²"))
	assert.Equal(t, "m2", CleanLabel("M²"))
	assert.Equal(t, "wavelength", CleanLabel("Wavelength²"))
	assert.Equal(t, "beam diameter", CleanLabel("Beam diameter (1/e²)"))
}

func TestApply(t *testing.T) {
	t.Parallel()

	var f model.SpecFields
	Apply(&f, model.KeyWavelengthNM, Float(405))
	Apply(&f, model.KeyTTLShutter, Value{Kind: KindBool, Bool: true})
	Apply(&f, model.KeyInterfaces, Value{Kind: KindList, List: []string{"USB"}})
	Apply(&f, model.KeyDimensionsMM, Value{Kind: KindDimensions, Dims: model.Dimensions{X: 1, Y: 2, Z: 3}})
	Apply(&f, model.KeyPolarization, Value{Kind: KindString, Str: "LINEAR"})
	Apply(&f, model.KeyM2, Value{Kind: KindString, Str: "bad"})

	require.NotNil(t, f.WavelengthNM)
	assert.InDelta(t, 405, *f.WavelengthNM, 1e-9)
	require.NotNil(t, f.TTLShutter)
	assert.True(t, *f.TTLShutter)
	assert.Equal(t, []string{"USB"}, f.Interfaces)
	assert.Equal(t, &model.Dimensions{X: 1, Y: 2, Z: 3}, f.DimensionsMM)
	assert.Equal(t, "LINEAR", *f.Polarization)
	assert.Nil(t, f.M2)
	assert.Equal(t, 5, f.Populated())
}
