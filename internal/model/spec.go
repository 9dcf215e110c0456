package model

import "time"

// CanonicalKey names one field of the canonical spec schema.
type CanonicalKey string

const (
	KeyWavelengthNM        CanonicalKey = "wavelength_nm"
	KeyOutputPowerNominal  CanonicalKey = "output_power_mw_nominal"
	KeyOutputPowerMin      CanonicalKey = "output_power_mw_min"
	KeyRMSNoisePct         CanonicalKey = "rms_noise_pct"
	KeyPowerStabilityPct   CanonicalKey = "power_stability_pct"
	KeyLinewidthMHz        CanonicalKey = "linewidth_mhz"
	KeyLinewidthNM         CanonicalKey = "linewidth_nm"
	KeyM2                  CanonicalKey = "m2"
	KeyBeamDiameterMM      CanonicalKey = "beam_diameter_mm"
	KeyBeamDivergenceMrad  CanonicalKey = "beam_divergence_mrad"
	KeyPolarization        CanonicalKey = "polarization"
	KeyModulationAnalogHz  CanonicalKey = "modulation_analog_hz"
	KeyModulationDigitalHz CanonicalKey = "modulation_digital_hz"
	KeyTTLShutter          CanonicalKey = "ttl_shutter"
	KeyFiberOutput         CanonicalKey = "fiber_output"
	KeyFiberNA             CanonicalKey = "fiber_na"
	KeyFiberMFDUM          CanonicalKey = "fiber_mfd_um"
	KeyWarmupTimeMin       CanonicalKey = "warmup_time_min"
	KeyInterfaces          CanonicalKey = "interfaces"
	KeyDimensionsMM        CanonicalKey = "dimensions_mm"
	KeyVendorFields        CanonicalKey = "vendor_fields"
)

// CanonicalKeys lists the canonical fields in schema order, excluding
// vendor_fields.
var CanonicalKeys = []CanonicalKey{
	KeyWavelengthNM,
	KeyOutputPowerNominal,
	KeyOutputPowerMin,
	KeyRMSNoisePct,
	KeyPowerStabilityPct,
	KeyLinewidthMHz,
	KeyLinewidthNM,
	KeyM2,
	KeyBeamDiameterMM,
	KeyBeamDivergenceMrad,
	KeyPolarization,
	KeyModulationAnalogHz,
	KeyModulationDigitalHz,
	KeyTTLShutter,
	KeyFiberOutput,
	KeyFiberNA,
	KeyFiberMFDUM,
	KeyWarmupTimeMin,
	KeyInterfaces,
	KeyDimensionsMM,
}

// ModelMarker is the vendor_fields key that carries the model name.
const ModelMarker = "model"

// Dimensions is an x/y/z footprint in millimetres.
type Dimensions struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// SpecFields holds every canonical field. Nil means unknown.
type SpecFields struct {
	WavelengthNM        *float64    `json:"wavelength_nm"`
	OutputPowerNominal  *float64    `json:"output_power_mw_nominal"`
	OutputPowerMin      *float64    `json:"output_power_mw_min"`
	RMSNoisePct         *float64    `json:"rms_noise_pct"`
	PowerStabilityPct   *float64    `json:"power_stability_pct"`
	LinewidthMHz        *float64    `json:"linewidth_mhz"`
	LinewidthNM         *float64    `json:"linewidth_nm"`
	M2                  *float64    `json:"m2"`
	BeamDiameterMM      *float64    `json:"beam_diameter_mm"`
	BeamDivergenceMrad  *float64    `json:"beam_divergence_mrad"`
	Polarization        *string     `json:"polarization"`
	ModulationAnalogHz  *float64    `json:"modulation_analog_hz"`
	ModulationDigitalHz *float64    `json:"modulation_digital_hz"`
	TTLShutter          *bool       `json:"ttl_shutter"`
	FiberOutput         *bool       `json:"fiber_output"`
	FiberNA             *float64    `json:"fiber_na"`
	FiberMFDUM          *float64    `json:"fiber_mfd_um"`
	WarmupTimeMin       *float64    `json:"warmup_time_min"`
	Interfaces          []string    `json:"interfaces"`
	DimensionsMM        *Dimensions `json:"dimensions_mm"`
}

// Float returns a pointer to the numeric field for key, or nil when key is
// not a numeric field.
func (f *SpecFields) Float(key CanonicalKey) **float64 {
	switch key {
	case KeyWavelengthNM:
		return &f.WavelengthNM
	case KeyOutputPowerNominal:
		return &f.OutputPowerNominal
	case KeyOutputPowerMin:
		return &f.OutputPowerMin
	case KeyRMSNoisePct:
		return &f.RMSNoisePct
	case KeyPowerStabilityPct:
		return &f.PowerStabilityPct
	case KeyLinewidthMHz:
		return &f.LinewidthMHz
	case KeyLinewidthNM:
		return &f.LinewidthNM
	case KeyM2:
		return &f.M2
	case KeyBeamDiameterMM:
		return &f.BeamDiameterMM
	case KeyBeamDivergenceMrad:
		return &f.BeamDivergenceMrad
	case KeyModulationAnalogHz:
		return &f.ModulationAnalogHz
	case KeyModulationDigitalHz:
		return &f.ModulationDigitalHz
	case KeyFiberNA:
		return &f.FiberNA
	case KeyFiberMFDUM:
		return &f.FiberMFDUM
	case KeyWarmupTimeMin:
		return &f.WarmupTimeMin
	}
	return nil
}

// Bool returns a pointer to the boolean field for key, or nil.
func (f *SpecFields) Bool(key CanonicalKey) **bool {
	switch key {
	case KeyTTLShutter:
		return &f.TTLShutter
	case KeyFiberOutput:
		return &f.FiberOutput
	}
	return nil
}

// IsSet reports whether the field for key holds a value.
func (f SpecFields) IsSet(key CanonicalKey) bool {
	if p := f.Float(key); p != nil {
		return *p != nil
	}
	if p := f.Bool(key); p != nil {
		return *p != nil
	}
	switch key {
	case KeyPolarization:
		return f.Polarization != nil
	case KeyInterfaces:
		return f.Interfaces != nil
	case KeyDimensionsMM:
		return f.DimensionsMM != nil
	}
	return false
}

// Populated counts the canonical fields that hold a value.
func (f SpecFields) Populated() int {
	n := 0
	for _, k := range CanonicalKeys {
		if f.IsSet(k) {
			n++
		}
	}
	return n
}

// SpecRecord is the normalized result for one model before persistence.
type SpecRecord struct {
	Model        string     `json:"model"`
	Specs        SpecFields `json:"specs"`
	VendorFields RawSpecMap `json:"vendor_fields"`
}

// CanonicalSpecRecord is one persisted snapshot of a model's specs. Records
// are append-only.
type CanonicalSpecRecord struct {
	ID               string     `json:"id"`
	ProductID        string     `json:"product_id"`
	SourceDocumentID string     `json:"source_document_id,omitempty"`
	Model            string     `json:"model"`
	Specs            SpecFields `json:"specs"`
	VendorFields     RawSpecMap `json:"vendor_fields"`
	SnapshotTS       time.Time  `json:"snapshot_ts"`
}
