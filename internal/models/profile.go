package models

import "time"

// Profile represents one ARGO float measurement profile
type Profile struct {
	ID                 string    `json:"id"`
	PlatformNumber     string    `json:"platform_number,omitempty"`
	CycleNumber        int       `json:"cycle_number,omitempty"`
	CollectedAt        time.Time `json:"collected_at"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	MixedLayerDepth    float64   `json:"mixed_layer_depth"`
	ThermoclineDepth   float64   `json:"thermocline_depth"`
	SalinityMinDepth   float64   `json:"salinity_min_depth"`
	SalinityMaxDepth   float64   `json:"salinity_max_depth"`
	MeanStratification float64   `json:"mean_stratification"`
	OceanHeatContent   float64   `json:"ocean_heat_content"` // 0-200 m, GJ/m^2
	SurfaceTemp        float64   `json:"surface_temp"`       // degrees Celsius
	SurfaceSalinity    float64   `json:"surface_salinity"`   // PSU
	PressureMean       float64   `json:"pressure_mean"`      // dbar
	LevelCount         int       `json:"level_count"`
	Direction          string    `json:"direction,omitempty"` // A (ascending) or D (descending)
	QC                 QCFlags   `json:"qc"`
}

// QCFlags holds the per-parameter profile quality grades (A best .. F worst)
type QCFlags struct {
	Temperature string `json:"temperature,omitempty"`
	Salinity    string `json:"salinity,omitempty"`
	Pressure    string `json:"pressure,omitempty"`
}

// AcceptedQC is the set of profile QC grades treated as good quality
var AcceptedQC = []string{"A", "B"}

// PassesQC reports whether the temperature grade is in the accepted set
func (p Profile) PassesQC() bool {
	for _, f := range AcceptedQC {
		if p.QC.Temperature == f {
			return true
		}
	}
	return false
}

// Validate checks the coordinate bounds of a profile before ingest
func (p Profile) Validate() error {
	if p.Latitude < -90 || p.Latitude > 90 {
		return &ValidationError{Field: "latitude", Reason: "must be within -90..90"}
	}
	if p.Longitude < -180 || p.Longitude > 180 {
		return &ValidationError{Field: "longitude", Reason: "must be within -180..180"}
	}
	if p.CollectedAt.IsZero() {
		return &ValidationError{Field: "collected_at", Reason: "is required"}
	}
	return nil
}

// EmbeddingRecord pairs a profile summary with its vector and classification tags
type EmbeddingRecord struct {
	ProfileID    string    `json:"profile_id"`
	Summary      string    `json:"summary"`
	Vector       []float32 `json:"vector,omitempty"`
	ModelVersion string    `json:"model_version"`
	Tags         Tags      `json:"tags"`
	CollectedAt  time.Time `json:"collected_at"`
	IndexedAt    time.Time `json:"indexed_at"`
}

// Tags are the derived classifications attached to an embedding record
type Tags struct {
	Season        string `json:"season"`
	Monsoon       string `json:"monsoon"`
	WaterMass     string `json:"water_mass"`
	ThermalRegime string `json:"thermal_regime"`
}

// List returns the tags in a stable order for storage
func (t Tags) List() []string {
	return []string{t.Season, t.Monsoon, t.WaterMass, t.ThermalRegime}
}

// TagsFromList is the inverse of Tags.List
func TagsFromList(list []string) Tags {
	var t Tags
	fields := []*string{&t.Season, &t.Monsoon, &t.WaterMass, &t.ThermalRegime}
	for i := 0; i < len(list) && i < len(fields); i++ {
		*fields[i] = list[i]
	}
	return t
}

// ScoredProfile is a semantic search hit
type ScoredProfile struct {
	Profile     Profile `json:"profile"`
	Similarity  float64 `json:"similarity"`
	Explanation string  `json:"explanation"`
	Summary     string  `json:"summary,omitempty"`
}
