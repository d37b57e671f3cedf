// Package filter compiles a QueryIntent into a measurement store query descriptor.
package filter

import (
	"fmt"
	"strings"
	"time"

	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// Measurement store columns referenced by compiled predicates
const (
	ColCollectedAt  = "collected_at"
	ColLatitude     = "latitude"
	ColLongitude    = "longitude"
	ColSurfaceTemp  = "surface_temp"
	ColSurfaceSal   = "surface_sal"
	ColPressureMean = "pressure_mean"
	ColTempQC       = "temp_qc"
)

// Op is the predicate form
type Op string

const (
	// OpRange bounds a numeric column
	OpRange Op = "range"
	// OpLonWrap matches longitudes outside the gap (Range.Min, Range.Max), for boxes crossing the antimeridian
	OpLonWrap Op = "lon_wrap"
	// OpIn is string equality against a set
	OpIn Op = "in"
	// OpWindow is a half-open timestamp window
	OpWindow Op = "window"
	// OpMonth matches the calendar month of a timestamp
	OpMonth Op = "month"
)

// Predicate is one column-bound clause. All predicates of a query combine with AND.
type Predicate struct {
	Column string       `json:"column"`
	Op     Op           `json:"op"`
	Range  intent.Range `json:"range,omitempty"`
	Values []string     `json:"values,omitempty"`
	From   time.Time    `json:"from,omitempty"`
	To     time.Time    `json:"to,omitempty"`
	Month  int          `json:"month,omitempty"`
}

// Sort orders list results
type Sort struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc"`
}

// Aggregation requests COUNT(*) plus AVG/MIN/MAX per dimension
type Aggregation struct {
	Dimensions []models.Dimension `json:"dimensions,omitempty"`
}

// StoreQuery is the compiled descriptor consumed by the measurement store
type StoreQuery struct {
	Mode        intent.Mode  `json:"mode"`
	Predicates  []Predicate  `json:"predicates"`
	Sort        *Sort        `json:"sort,omitempty"`
	Limit       int          `json:"limit,omitempty"` // 0 means unlimited
	Aggregation *Aggregation `json:"aggregation,omitempty"`
}

// Compile translates an intent into a store query. It re-validates the intent and
// fails with an InvalidIntentError on any inverted bound.
func Compile(q intent.QueryIntent) (StoreQuery, error) {
	if err := q.Validate(); err != nil {
		return StoreQuery{}, fmt.Errorf("failed to compile intent: %w", err)
	}

	sq := StoreQuery{Mode: q.Mode}

	if q.Region != nil {
		b := q.Region.Box
		if b.MinLat > -90 || b.MaxLat < 90 {
			sq.Predicates = append(sq.Predicates, Predicate{Column: ColLatitude, Op: OpRange, Range: intent.Between(b.MinLat, b.MaxLat)})
		}
		switch {
		case b.CrossesAntimeridian():
			sq.Predicates = append(sq.Predicates, Predicate{Column: ColLongitude, Op: OpLonWrap, Range: intent.Between(b.MaxLon, b.MinLon)})
		case b.MinLon > -180 || b.MaxLon < 180:
			sq.Predicates = append(sq.Predicates, Predicate{Column: ColLongitude, Op: OpRange, Range: intent.Between(b.MinLon, b.MaxLon)})
		}
	}
	if q.Temperature.IsSet() {
		sq.Predicates = append(sq.Predicates, Predicate{Column: ColSurfaceTemp, Op: OpRange, Range: q.Temperature})
	}
	if q.Salinity.IsSet() {
		sq.Predicates = append(sq.Predicates, Predicate{Column: ColSurfaceSal, Op: OpRange, Range: q.Salinity})
	}
	if q.Depth.IsSet() {
		sq.Predicates = append(sq.Predicates, Predicate{Column: ColPressureMean, Op: OpRange, Range: q.Depth})
	}
	if len(q.QualityFlags) > 0 {
		sq.Predicates = append(sq.Predicates, Predicate{Column: ColTempQC, Op: OpIn, Values: append([]string(nil), q.QualityFlags...)})
	}
	if q.Time != nil {
		sq.Predicates = append(sq.Predicates, Predicate{Column: ColCollectedAt, Op: OpWindow, From: q.Time.Start, To: q.Time.End})
	}
	if q.Month != 0 {
		sq.Predicates = append(sq.Predicates, Predicate{Column: ColCollectedAt, Op: OpMonth, Month: q.Month})
	}

	switch q.Mode {
	case intent.ModeList, intent.ModeSemantic:
		sq.Sort = &Sort{Column: ColCollectedAt, Desc: true}
		sq.Limit = q.Limit
	case intent.ModeCount:
		sq.Aggregation = &Aggregation{}
	case intent.ModeAggregate:
		sq.Aggregation = &Aggregation{Dimensions: append([]models.Dimension(nil), q.Dimensions...)}
	}

	return sq, nil
}

// IsAggregate reports whether the query returns a single aggregate row
func (sq StoreQuery) IsAggregate() bool {
	return sq.Aggregation != nil
}

// Describe renders the query for logs and narratives
func (sq StoreQuery) Describe() string {
	var b strings.Builder
	if sq.Aggregation != nil {
		b.WriteString("COUNT(*)")
		for _, d := range sq.Aggregation.Dimensions {
			fmt.Fprintf(&b, ", AVG/MIN/MAX(%s)", d.Column())
		}
	} else {
		b.WriteString("profiles")
	}

	if len(sq.Predicates) > 0 {
		clauses := make([]string, 0, len(sq.Predicates))
		for _, p := range sq.Predicates {
			clauses = append(clauses, p.String())
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(clauses, " AND "))
	}
	if sq.Sort != nil {
		dir := "ASC"
		if sq.Sort.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", sq.Sort.Column, dir)
	}
	if sq.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", sq.Limit)
	}
	return b.String()
}

func (p Predicate) String() string {
	switch p.Op {
	case OpRange:
		var parts []string
		if p.Range.Min != nil {
			op := ">="
			if p.Range.MinOpen {
				op = ">"
			}
			parts = append(parts, fmt.Sprintf("%s %s %g", p.Column, op, *p.Range.Min))
		}
		if p.Range.Max != nil {
			op := "<="
			if p.Range.MaxOpen {
				op = "<"
			}
			parts = append(parts, fmt.Sprintf("%s %s %g", p.Column, op, *p.Range.Max))
		}
		return strings.Join(parts, " AND ")
	case OpLonWrap:
		return fmt.Sprintf("(%s >= %g OR %s <= %g)", p.Column, *p.Range.Max, p.Column, *p.Range.Min)
	case OpIn:
		return fmt.Sprintf("%s IN (%s)", p.Column, strings.Join(p.Values, ", "))
	case OpWindow:
		return fmt.Sprintf("%s >= %s AND %s < %s", p.Column, p.From.Format(time.RFC3339), p.Column, p.To.Format(time.RFC3339))
	case OpMonth:
		return fmt.Sprintf("month(%s) = %d", p.Column, p.Month)
	}
	return string(p.Op)
}
