package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWavelength_FindAll(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []Match
	}{
		{"plain", "Emission at 405 nm", []Match{{Value: "405", Unit: "nm", Text: "405 nm"}}},
		{"tolerance", "405±5 nm", []Match{{Value: "405±5", Unit: "nm", Text: "405±5 nm"}}},
		{"range with to", "Tunable 1.5 to 1.6 µm", []Match{{Value: "1.5 to 1.6", Unit: "µm", Text: "1.5 to 1.6 µm"}}},
		{"micron", "2 microns", []Match{{Value: "2", Unit: "microns", Text: "2 microns"}}},
		{"multiple", "405nm, 488nm and 640 NM", []Match{
			{Value: "405", Unit: "nm", Text: "405nm"},
			{Value: "488", Unit: "nm", Text: "488nm"},
			{Value: "640", Unit: "NM", Text: "640 NM"},
		}},
		{"none", "no wavelengths here", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Wavelength.FindAll(tt.text))
		})
	}
}

func TestPower_PreservesOperatorAndRange(t *testing.T) {
	t.Parallel()

	ms := Power.FindAll("Output ≥50 mW, max 1.5 W, family 50-100 mW")
	require.Len(t, ms, 3)
	assert.Equal(t, "≥50", ms[0].Value)
	assert.Equal(t, "mW", ms[0].Unit)
	assert.Equal(t, "1.5", ms[1].Value)
	assert.Equal(t, "W", ms[1].Unit)
	assert.Equal(t, "50-100", ms[2].Value)
}

func TestPower_DoesNotMatchWordStartingWithW(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Power.FindAll("405 Wavelength"))
}

func TestRatio(t *testing.T) {
	t.Parallel()

	m, ok := Ratio.First("Polarization ratio >100:1 (vertical)")
	require.True(t, ok)
	assert.Equal(t, ">100:1", m.Value)
	assert.Equal(t, "ratio", m.Unit)
}

func TestBeamQuality(t *testing.T) {
	t.Parallel()

	for _, text := range []string{"M² <1.1", "M2: <1.1", "m^2 <1.1"} {
		m, ok := BeamQuality.First(text)
		require.True(t, ok, text)
		assert.Equal(t, "<1.1", m.Value, text)
		assert.Equal(t, "M²", m.Unit)
	}
	assert.Empty(t, BeamQuality.FindAll("150 mm2 area"))
}

func TestTemperatureAcceptsNegativeRanges(t *testing.T) {
	t.Parallel()

	m, ok := Temperature.First("Operating: -20 to +60 °C")
	require.True(t, ok)
	assert.Equal(t, "-20 to +60", m.Value)
	assert.Equal(t, "°C", m.Unit)
}

func TestPercentage(t *testing.T) {
	t.Parallel()

	m, ok := Percentage.First("RMS noise <0.25 % (20 Hz - 20 MHz)")
	require.True(t, ok)
	assert.Equal(t, "<0.25", m.Value)
}

func TestDimension(t *testing.T) {
	t.Parallel()

	m, ok := Dimension.First("Size 155 x 180 x 52.2 mm")
	require.True(t, ok)
	assert.Equal(t, "155 x 180 x 52.2", m.Value)
	assert.Equal(t, "mm", m.Unit)

	m, ok = Dimension.First("Aperture Ø35.6 mm")
	require.True(t, ok)
	assert.Equal(t, "35.6", m.Value)
}

func TestFrequencyElectricalTime(t *testing.T) {
	t.Parallel()

	f, ok := Frequency.First("Digital modulation up to 150 MHz")
	require.True(t, ok)
	assert.Equal(t, "150", f.Value)
	assert.Equal(t, "MHz", f.Unit)

	e, ok := Electrical.First("Supply 12 V DC, 3 A")
	require.True(t, ok)
	assert.Equal(t, "12", e.Value)
	assert.Equal(t, "V", e.Unit)

	tm, ok := Time.First("Warm-up time < 5 min")
	require.True(t, ok)
	assert.Equal(t, "< 5", tm.Value)
	assert.Equal(t, "min", tm.Unit)

	tm, ok = Time.First("rise time 2 ns")
	require.True(t, ok)
	assert.Equal(t, "ns", tm.Unit)
}

func TestScan(t *testing.T) {
	t.Parallel()

	got := Scan("The LuxX 405 nm module delivers 60 mW with M² < 1.2")
	assert.Contains(t, got, "wavelength")
	assert.Contains(t, got, "power")
	assert.Contains(t, got, "beam_quality")
	assert.NotContains(t, got, "frequency")
	assert.Empty(t, Scan(""))
}

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"50", 50, true},
		{"<0.25", 0.25, true},
		{"≥ 50", 50, true},
		{"<= 2.5", 2.5, true},
		{"405±5", 405, true},
		{"50-100", 75, true},
		{"50 – 100", 75, true},
		{"1.5 to 1.6", 1.55, true},
		{"-20 to 60", 20, true},
		{"1,000", 1000, true},
		{"typ. 30", 30, true},
		{"max. <5", 5, true},
		{"n/a", 0, false},
		{"", 0, false},
		{"TEM00", 0, false},
		{"LX405", 0, false},
		{"Class 2", 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestStripOperator(t *testing.T) {
	t.Parallel()

	v, op := StripOperator(" ≥ 50 mW")
	assert.Equal(t, "50 mW", v)
	assert.Equal(t, "≥", op)

	v, op = StripOperator("50 mW")
	assert.Equal(t, "50 mW", v)
	assert.Empty(t, op)
}
