package synth

import (
	"math"

	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// Threshold tables for qualitative annotations. Checked top to bottom.

// band matches v >= min, or v > min when above is set
type band struct {
	min   float64
	above bool
	text  string
}

func (b band) holds(v float64) bool {
	if b.above {
		return v > b.min
	}
	return v >= b.min
}

var floor = math.Inf(-1)

var (
	temperatureBands = []band{
		{25, false, "warm tropical waters"},
		{15, false, "moderate subtropical waters"},
		{floor, false, "cold waters typical of high latitudes or deep layers"},
	}
	salinityBands = []band{
		{35.5, true, "high salinity, typical of evaporation-dominated basins such as the Arabian Sea"},
		{34, false, "typical open-ocean salinity"},
		{floor, false, "low salinity, suggesting freshwater influence from rivers or rainfall"},
	}
	mixedLayerBands = []band{
		{80, false, "a deep mixed layer, indicating vigorous vertical mixing"},
		{30, false, "a moderate mixed layer"},
		{floor, false, "a shallow mixed layer over a strongly stratified surface"},
	}
	thermoclineBands = []band{
		{150, true, "a deep thermocline"},
		{50, false, "a moderate thermocline"},
		{floor, false, "a shallow thermocline"},
	}
	heatContentBands = []band{
		{1.5, false, "high upper-ocean heat content"},
		{0.8, false, "moderate upper-ocean heat content"},
		{floor, false, "low upper-ocean heat content"},
	}
	stratificationBands = []band{
		{0.05, false, "strong stratification"},
		{0.01, false, "moderate stratification"},
		{floor, false, "weak stratification"},
	}
)

func lookup(bands []band, v float64) string {
	for _, b := range bands {
		if b.holds(v) {
			return b.text
		}
	}
	return ""
}

// Commentary returns the fixed qualitative annotation for an average value
func Commentary(d models.Dimension, avg float64) string {
	switch d {
	case models.DimTemperature:
		return lookup(temperatureBands, avg)
	case models.DimSalinity:
		return lookup(salinityBands, avg)
	case models.DimMixedLayer:
		return lookup(mixedLayerBands, avg)
	case models.DimThermocline:
		return lookup(thermoclineBands, avg)
	case models.DimHeatContent:
		return lookup(heatContentBands, avg)
	case models.DimStratification:
		return lookup(stratificationBands, avg)
	}
	return ""
}
