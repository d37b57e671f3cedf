package index

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// Classify derives the season, monsoon, water-mass and thermal-structure tags of a profile
func Classify(p models.Profile) models.Tags {
	return models.Tags{
		Season:        season(p.CollectedAt.Month(), p.Latitude),
		Monsoon:       monsoon(p.CollectedAt.Month(), p.Latitude, p.Longitude),
		WaterMass:     waterMass(p.SurfaceTemp, p.SurfaceSalinity),
		ThermalRegime: thermalRegime(p.ThermoclineDepth),
	}
}

// Summarize renders a profile as natural sentences for embedding
func Summarize(p models.Profile) (string, models.Tags) {
	tags := Classify(p)

	var b strings.Builder
	fmt.Fprintf(&b, "ARGO profile %s collected on %s during %s (%s) at %s.",
		p.ID, p.CollectedAt.UTC().Format("2006-01-02"), tags.Season, tags.Monsoon, position(p.Latitude, p.Longitude))
	fmt.Fprintf(&b, " Surface temperature %.1f°C and salinity %.2f PSU indicate %s.",
		p.SurfaceTemp, p.SurfaceSalinity, tags.WaterMass)
	fmt.Fprintf(&b, " The mixed layer is %.0f m deep with a %s at %.0f m", p.MixedLayerDepth, tags.ThermalRegime, p.ThermoclineDepth)
	if p.MeanStratification != 0 {
		fmt.Fprintf(&b, ", %s stratification", stratification(p.MeanStratification))
	}
	fmt.Fprintf(&b, " and ocean heat content of %.2f GJ/m².", p.OceanHeatContent)
	if p.QC.Temperature != "" {
		fmt.Fprintf(&b, " Quality flags: temperature %s, salinity %s, pressure %s.",
			orDash(p.QC.Temperature), orDash(p.QC.Salinity), orDash(p.QC.Pressure))
	}

	return b.String(), tags
}

func season(m time.Month, lat float64) string {
	var s string
	switch m {
	case time.December, time.January, time.February:
		s = "winter"
	case time.March, time.April, time.May:
		s = "spring"
	case time.June, time.July, time.August:
		s = "summer"
	default:
		s = "autumn"
	}
	if lat >= 0 {
		return "northern " + s
	}
	flipped := map[string]string{"winter": "summer", "spring": "autumn", "summer": "winter", "autumn": "spring"}
	return "southern " + flipped[s]
}

// monsoon names the Indian monsoon phase for profiles inside the Indian Ocean basin
func monsoon(m time.Month, lat, lon float64) string {
	if lat < -40 || lat > 30 || lon < 20 || lon > 120 {
		return "outside the monsoon region"
	}
	switch m {
	case time.June, time.July, time.August, time.September:
		return "southwest monsoon"
	case time.December, time.January, time.February:
		return "northeast monsoon"
	case time.October, time.November:
		return "post-monsoon transition"
	default:
		return "pre-monsoon transition"
	}
}

func waterMass(temp, sal float64) string {
	switch {
	case temp >= 25 && sal > 35.5:
		return "high-salinity tropical water"
	case temp >= 25 && sal < 34:
		return "freshened tropical water"
	case temp >= 25:
		return "tropical surface water"
	case temp >= 15:
		return "subtropical mode water"
	case temp >= 5:
		return "subpolar water"
	default:
		return "polar water"
	}
}

func thermalRegime(thermoclineDepth float64) string {
	switch {
	case thermoclineDepth < 50:
		return "shallow thermocline"
	case thermoclineDepth <= 150:
		return "moderate thermocline"
	default:
		return "deep thermocline"
	}
}

func stratification(n float64) string {
	switch {
	case n >= 0.05:
		return "strong"
	case n >= 0.01:
		return "moderate"
	default:
		return "weak"
	}
}

func position(lat, lon float64) string {
	ns, ew := "N", "E"
	if lat < 0 {
		ns = "S"
	}
	if lon < 0 {
		ew = "W"
	}
	return fmt.Sprintf("%.2f°%s, %.2f°%s", math.Abs(lat), ns, math.Abs(lon), ew)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
