package models

// Dimension is a numeric profile measurement that can be filtered or aggregated
type Dimension string

const (
	DimTemperature    Dimension = "temperature"
	DimSalinity       Dimension = "salinity"
	DimMixedLayer     Dimension = "mixed_layer_depth"
	DimThermocline    Dimension = "thermocline_depth"
	DimHeatContent    Dimension = "ocean_heat_content"
	DimStratification Dimension = "mean_stratification"
	DimPressure       Dimension = "pressure_mean"
)

// Column returns the measurement store column backing the dimension
func (d Dimension) Column() string {
	switch d {
	case DimTemperature:
		return "surface_temp"
	case DimSalinity:
		return "surface_sal"
	case DimMixedLayer, DimThermocline, DimHeatContent, DimStratification, DimPressure:
		return string(d)
	}
	return ""
}

// Label is the human-readable dimension name
func (d Dimension) Label() string {
	switch d {
	case DimTemperature:
		return "Temperature"
	case DimSalinity:
		return "Salinity"
	case DimMixedLayer:
		return "Mixed layer depth"
	case DimThermocline:
		return "Thermocline depth"
	case DimHeatContent:
		return "Ocean heat content"
	case DimStratification:
		return "Mean stratification"
	case DimPressure:
		return "Mean pressure"
	}
	return string(d)
}

// Unit is the display unit of the dimension
func (d Dimension) Unit() string {
	switch d {
	case DimTemperature:
		return "°C"
	case DimSalinity:
		return "PSU"
	case DimMixedLayer, DimThermocline:
		return "m"
	case DimHeatContent:
		return "GJ/m²"
	case DimPressure:
		return "dbar"
	}
	return ""
}

// Stat holds min/avg/max for one aggregated dimension
type Stat struct {
	Dimension Dimension `json:"dimension"`
	Min       float64   `json:"min"`
	Avg       float64   `json:"avg"`
	Max       float64   `json:"max"`
}

// Aggregate is the single-row result of a count or statistics query
type Aggregate struct {
	Count int64  `json:"count"`
	Stats []Stat `json:"stats,omitempty"`
}

// ResultKind tags which member of SearchResult is populated
type ResultKind string

const (
	ResultRows      ResultKind = "rows"
	ResultAggregate ResultKind = "aggregate"
	ResultRanked    ResultKind = "ranked"
)

// SearchResult is the transient union handed to the synthesizer.
// Ranked results may also carry structured rows from the cross-check query.
type SearchResult struct {
	Kind      ResultKind      `json:"kind"`
	Rows      []Profile       `json:"rows,omitempty"`
	Aggregate *Aggregate      `json:"aggregate,omitempty"`
	Ranked    []ScoredProfile `json:"ranked,omitempty"`
	// CrossCheck is the structured row count gathered alongside a semantic search
	CrossCheck int `json:"cross_check,omitempty"`
}

// Empty reports whether the result carries nothing to describe
func (r SearchResult) Empty() bool {
	switch r.Kind {
	case ResultAggregate:
		return r.Aggregate == nil || r.Aggregate.Count == 0
	case ResultRanked:
		return len(r.Ranked) == 0
	default:
		return len(r.Rows) == 0
	}
}

// Profiles flattens the result into profiles in rank order
func (r SearchResult) Profiles() []Profile {
	if r.Kind != ResultRanked {
		return r.Rows
	}
	out := make([]Profile, 0, len(r.Ranked))
	for _, sp := range r.Ranked {
		out = append(out, sp.Profile)
	}
	return out
}

// StoreStats summarizes the profile table for dashboards and status tools
type StoreStats struct {
	TotalProfiles   int64    `json:"total_profiles"`
	Platforms       int64    `json:"platforms"`
	IndexedProfiles int64    `json:"indexed_profiles"`
	Earliest        *string  `json:"earliest,omitempty"`
	Latest          *string  `json:"latest,omitempty"`
	MinLatitude     *float64 `json:"min_latitude,omitempty"`
	MaxLatitude     *float64 `json:"max_latitude,omitempty"`
	MinLongitude    *float64 `json:"min_longitude,omitempty"`
	MaxLongitude    *float64 `json:"max_longitude,omitempty"`
	AvgTemperature  *float64 `json:"avg_temperature,omitempty"`
	AvgSalinity     *float64 `json:"avg_salinity,omitempty"`
}
