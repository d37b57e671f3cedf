package intent

import (
	"fmt"
	"strings"
	"time"

	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// Mode is the statistical shape of a query. Exactly one is active per intent.
type Mode string

const (
	ModeList      Mode = "list"
	ModeCount     Mode = "count"
	ModeAggregate Mode = "aggregate"
	ModeSemantic  Mode = "semantic"
)

// IsValid checks if the mode is one of the supported values
func (m Mode) IsValid() bool {
	return m == ModeList || m == ModeCount || m == ModeAggregate || m == ModeSemantic
}

const (
	DefaultLimit = 50
	MaxLimit     = 1000
)

// Range is a numeric bound. Either end may be absent; open ends are exclusive.
type Range struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	MinOpen bool     `json:"min_open,omitempty"`
	MaxOpen bool     `json:"max_open,omitempty"`
}

// AtLeast is an inclusive lower bound
func AtLeast(v float64) Range { return Range{Min: &v} }

// Above is an exclusive lower bound
func Above(v float64) Range { return Range{Min: &v, MinOpen: true} }

// AtMost is an inclusive upper bound
func AtMost(v float64) Range { return Range{Max: &v} }

// Below is an exclusive upper bound
func Below(v float64) Range { return Range{Max: &v, MaxOpen: true} }

// Between is an inclusive two-sided bound
func Between(lo, hi float64) Range { return Range{Min: &lo, Max: &hi} }

// IsSet reports whether either end is present
func (r Range) IsSet() bool { return r.Min != nil || r.Max != nil }

// normalized swaps an inverted two-sided range
func (r Range) normalized() Range {
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		r.Min, r.Max = r.Max, r.Min
		r.MinOpen, r.MaxOpen = r.MaxOpen, r.MinOpen
	}
	return r
}

func (r Range) validate(category string) error {
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return models.NewInvalidIntent(category, fmt.Sprintf("min %g exceeds max %g", *r.Min, *r.Max))
	}
	return nil
}

// String renders the bound with the given unit, e.g. "> 25°C" or "30 to 35 PSU"
func (r Range) String(unit string) string {
	switch {
	case r.Min != nil && r.Max != nil:
		return fmt.Sprintf("%g to %g%s", *r.Min, *r.Max, unit)
	case r.Min != nil && r.MinOpen:
		return fmt.Sprintf("> %g%s", *r.Min, unit)
	case r.Min != nil:
		return fmt.Sprintf(">= %g%s", *r.Min, unit)
	case r.Max != nil && r.MaxOpen:
		return fmt.Sprintf("< %g%s", *r.Max, unit)
	case r.Max != nil:
		return fmt.Sprintf("<= %g%s", *r.Max, unit)
	}
	return "any"
}

// BoundingBox is a lat/lon rectangle. MinLon > MaxLon marks a box crossing the antimeridian.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// CrossesAntimeridian reports whether the longitude span wraps past 180°
func (b BoundingBox) CrossesAntimeridian() bool { return b.MinLon > b.MaxLon }

// Region is a named bounding box
type Region struct {
	Name string      `json:"name"`
	Box  BoundingBox `json:"box"`
}

// TimeRange is a half-open [Start, End) collection window
type TimeRange struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Relative bool      `json:"relative,omitempty"`
}

// QueryIntent is the structured reading of one natural-language question
type QueryIntent struct {
	Text         string             `json:"text"`
	Region       *Region            `json:"region,omitempty"`
	Temperature  Range              `json:"temperature"`
	Salinity     Range              `json:"salinity"`
	Depth        Range              `json:"depth"`
	Time         *TimeRange         `json:"time,omitempty"`
	Month        int                `json:"month,omitempty"`
	QualityFlags []string           `json:"quality_flags,omitempty"`
	Dimensions   []models.Dimension `json:"dimensions,omitempty"`
	Mode         Mode               `json:"mode"`
	Limit        int                `json:"limit"`
	// Matched holds the names of the rules that fired, in table order
	Matched []string `json:"matched,omitempty"`
}

// New returns the default intent: no bounds, list mode, default limit
func New(text string) QueryIntent {
	return QueryIntent{Text: text, Mode: ModeList, Limit: DefaultLimit}
}

// HasFilters reports whether any predicate category is set
func (q QueryIntent) HasFilters() bool {
	return q.Region != nil || q.Temperature.IsSet() || q.Salinity.IsSet() || q.Depth.IsSet() ||
		q.Time != nil || q.Month != 0 || len(q.QualityFlags) > 0
}

// Structured reports whether any rule other than sizing fired
func (q QueryIntent) Structured() bool {
	return q.HasFilters() || q.Mode != ModeList
}

// Validate checks the bound invariants the compiler relies on
func (q QueryIntent) Validate() error {
	if !q.Mode.IsValid() {
		return models.NewInvalidIntent("mode", fmt.Sprintf("unknown mode %q", q.Mode))
	}
	if err := q.Temperature.validate("temperature"); err != nil {
		return err
	}
	if err := q.Salinity.validate("salinity"); err != nil {
		return err
	}
	if err := q.Depth.validate("depth"); err != nil {
		return err
	}
	if q.Region != nil {
		b := q.Region.Box
		if b.MinLat > b.MaxLat {
			return models.NewInvalidIntent("region", fmt.Sprintf("min latitude %g exceeds max %g", b.MinLat, b.MaxLat))
		}
		if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
			return models.NewInvalidIntent("region", "bounding box outside valid coordinates")
		}
	}
	if q.Time != nil && !q.Time.Start.Before(q.Time.End) {
		return models.NewInvalidIntent("time", "start must precede end")
	}
	if q.Month < 0 || q.Month > 12 {
		return models.NewInvalidIntent("month", fmt.Sprintf("month %d out of range", q.Month))
	}
	if q.Limit < 1 {
		return models.NewInvalidIntent("limit", "must be at least 1")
	}
	return nil
}

// Summary renders the active filters in words for narratives and logs
func (q QueryIntent) Summary() string {
	var parts []string
	if q.Region != nil {
		parts = append(parts, "region "+q.Region.Name)
	}
	if q.Temperature.IsSet() {
		parts = append(parts, "temperature "+q.Temperature.String("°C"))
	}
	if q.Salinity.IsSet() {
		parts = append(parts, "salinity "+q.Salinity.String(" PSU"))
	}
	if q.Depth.IsSet() {
		parts = append(parts, "mean pressure "+q.Depth.String(" dbar"))
	}
	if q.Time != nil {
		if q.Time.Relative {
			parts = append(parts, "recent (last 12 months)")
		} else {
			parts = append(parts, fmt.Sprintf("collected %s to %s",
				q.Time.Start.Format("2006-01-02"), q.Time.End.AddDate(0, 0, -1).Format("2006-01-02")))
		}
	}
	if q.Month != 0 {
		parts = append(parts, "month "+time.Month(q.Month).String())
	}
	if len(q.QualityFlags) > 0 {
		parts = append(parts, "QC flag in "+strings.Join(q.QualityFlags, "/"))
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

// Scope names the filtered categories without any numbers
func (q QueryIntent) Scope() string {
	var parts []string
	if q.Region != nil {
		parts = append(parts, q.Region.Name)
	}
	if q.Temperature.IsSet() {
		parts = append(parts, "temperature-filtered")
	}
	if q.Salinity.IsSet() {
		parts = append(parts, "salinity-filtered")
	}
	if q.Depth.IsSet() {
		parts = append(parts, "depth-filtered")
	}
	if q.Time != nil || q.Month != 0 {
		parts = append(parts, "time-filtered")
	}
	if len(q.QualityFlags) > 0 {
		parts = append(parts, "quality-controlled")
	}
	if len(parts) == 0 {
		return "all profiles in the database"
	}
	return strings.Join(parts, ", ") + " profiles"
}
