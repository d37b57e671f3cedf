// Package synth turns store and index results into chat narratives with
// follow-up actions.
package synth

import (
	"fmt"
	"math"
	"strings"

	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// MaxActions caps the suggested follow-ups per reply
const MaxActions = 4

// exemplarHits is how many ranked hits a semantic narrative walks through
const exemplarHits = 3

// NoResults opens every empty-result narrative
const NoResults = "No ARGO profiles found matching your query."

var broadenSuggestions = []string{
	`widen the region, for example "Indian Ocean" instead of "Arabian Sea"`,
	"relax the temperature or salinity bounds",
	"drop the year or month filter",
	`ask "How many ARGO profiles are in the database?" to see what is available`,
}

// Respond builds the chat reply for a finished search
func Respond(q intent.QueryIntent, res models.SearchResult, mode models.ChatMode) models.ChatResponse {
	content := Narrate(q, res)
	if isEmpty(q, res) {
		return models.ChatResponse{
			Content: content,
			Actions: []models.Action{actionFor(models.ActionBroaden, q, content)},
		}
	}
	return models.ChatResponse{Content: content, Actions: SuggestActions(content, q, mode)}
}

// Narrate renders the natural-language answer for a result
func Narrate(q intent.QueryIntent, res models.SearchResult) string {
	if isEmpty(q, res) {
		return emptyNarrative(q)
	}
	switch {
	case q.Mode == intent.ModeCount:
		return countNarrative(q, res.Aggregate)
	case res.Kind == models.ResultAggregate && len(res.Aggregate.Stats) == 0:
		return countNarrative(q, res.Aggregate)
	case res.Kind == models.ResultAggregate:
		return aggregateNarrative(q, res.Aggregate)
	default:
		return listNarrative(q, res)
	}
}

// A zero count is still an answer to "how many"
func isEmpty(q intent.QueryIntent, res models.SearchResult) bool {
	if q.Mode == intent.ModeCount {
		return false
	}
	return res.Empty()
}

func emptyNarrative(q intent.QueryIntent) string {
	var b strings.Builder
	b.WriteString(NoResults)
	b.WriteString("\n")
	if q.HasFilters() {
		fmt.Fprintf(&b, "Filters applied: %s\n", q.Summary())
	}
	b.WriteString("\nYou could try to:\n")
	for _, s := range broadenSuggestions {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	return strings.TrimRight(b.String(), "\n")
}

func countNarrative(q intent.QueryIntent, agg *models.Aggregate) string {
	var n int64
	if agg != nil {
		n = agg.Count
	}
	return fmt.Sprintf("ARGO profile count: %d\nScope: %s.", n, q.Scope())
}

func aggregateNarrative(q intent.QueryIntent, agg *models.Aggregate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ARGO profile statistics over %d profiles\nScope: %s.\n", agg.Count, q.Scope())
	if len(agg.Stats) > 0 {
		b.WriteString("\n")
	}
	for _, s := range agg.Stats {
		unit := unitSuffix(s.Dimension)
		fmt.Fprintf(&b, "- %s: min %.2f%s, avg %.2f%s, max %.2f%s", s.Dimension.Label(),
			s.Min, unit, s.Avg, unit, s.Max, unit)
		if c := Commentary(s.Dimension, s.Avg); c != "" {
			fmt.Fprintf(&b, ". On average %s", c)
		}
		b.WriteString(".\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func listNarrative(q intent.QueryIntent, res models.SearchResult) string {
	profiles := res.Profiles()
	var b strings.Builder

	fmt.Fprintf(&b, "Found %d ARGO %s.\n", len(profiles), plural(len(profiles), "profile", "profiles"))
	fmt.Fprintf(&b, "Filters applied: %s\n", q.Summary())

	temp := summarize(profiles, func(p models.Profile) float64 { return p.SurfaceTemp })
	fmt.Fprintf(&b, "Temperature range: %.2f°C to %.2f°C (avg %.2f°C), %s.\n",
		temp.min, temp.max, temp.avg, Commentary(models.DimTemperature, temp.avg))

	sal := summarize(profiles, func(p models.Profile) float64 { return p.SurfaceSalinity })
	fmt.Fprintf(&b, "Salinity range: %.2f to %.2f PSU (avg %.2f PSU), %s.\n",
		sal.min, sal.max, sal.avg, Commentary(models.DimSalinity, sal.avg))

	lat := summarize(profiles, func(p models.Profile) float64 { return p.Latitude })
	lon := summarize(profiles, func(p models.Profile) float64 { return p.Longitude })
	fmt.Fprintf(&b, "Geographic location: %s to %s, %s to %s.\n",
		latitude(lat.min), latitude(lat.max), longitude(lon.min), longitude(lon.max))

	passed := 0
	for _, p := range profiles {
		if p.PassesQC() {
			passed++
		}
	}
	fmt.Fprintf(&b, "Data quality: %d of %d pass temperature QC (grades %s), %.0f%%.\n",
		passed, len(profiles), strings.Join(models.AcceptedQC, "/"),
		100*float64(passed)/float64(len(profiles)))

	ex := profiles[0]
	fmt.Fprintf(&b, "Example profile: %s collected %s at %s, %s: %.2f°C, %.2f PSU, mixed layer %.0f m.",
		ex.ID, ex.CollectedAt.Format("2006-01-02"), latitude(ex.Latitude), longitude(ex.Longitude),
		ex.SurfaceTemp, ex.SurfaceSalinity, ex.MixedLayerDepth)

	if res.Kind == models.ResultRanked {
		b.WriteString("\n\nMost similar profiles:\n")
		for i, hit := range res.Ranked {
			if i == exemplarHits {
				break
			}
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, hit.Profile.ID, hit.Explanation)
		}
		fmt.Fprintf(&b, "Structured cross-check: %d %s matched the extracted filters.",
			res.CrossCheck, plural(res.CrossCheck, "profile", "profiles"))
	}
	return b.String()
}

type spread struct {
	min, avg, max float64
}

func summarize(profiles []models.Profile, value func(models.Profile) float64) spread {
	s := spread{min: math.Inf(1), max: math.Inf(-1)}
	var sum float64
	for _, p := range profiles {
		v := value(p)
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
		sum += v
	}
	if len(profiles) > 0 {
		s.avg = sum / float64(len(profiles))
	}
	return s
}

func unitSuffix(d models.Dimension) string {
	switch u := d.Unit(); u {
	case "":
		return ""
	case "°C":
		return u
	default:
		return " " + u
	}
}

func latitude(v float64) string {
	if v < 0 {
		return fmt.Sprintf("%.2f°S", -v)
	}
	return fmt.Sprintf("%.2f°N", v)
}

func longitude(v float64) string {
	if v < 0 {
		return fmt.Sprintf("%.2f°W", -v)
	}
	return fmt.Sprintf("%.2f°E", v)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
