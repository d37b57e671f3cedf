package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/oscillatelabsllc/argoquery/internal/filter"
	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// Execute runs a compiled store query, returning rows or a single aggregate record
func (s *Store) Execute(ctx context.Context, sq filter.StoreQuery) (models.SearchResult, error) {
	where, args := buildWhere(sq.Predicates)

	if sq.IsAggregate() {
		agg, err := s.aggregate(ctx, sq.Aggregation, where, args)
		if err != nil {
			return models.SearchResult{}, err
		}
		return models.SearchResult{Kind: models.ResultAggregate, Aggregate: agg}, nil
	}

	query := "SELECT " + profileColumns + " FROM profiles" + where
	if sq.Sort != nil {
		dir := "ASC"
		if sq.Sort.Desc {
			dir = "DESC"
		}
		query += fmt.Sprintf(" ORDER BY %s %s, id", sq.Sort.Column, dir)
	}
	if sq.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", sq.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.SearchResult{}, unavailable("execute profile query", err)
	}
	defer rows.Close()

	profiles, err := scanProfiles(rows)
	if err != nil {
		return models.SearchResult{}, err
	}
	return models.SearchResult{Kind: models.ResultRows, Rows: profiles}, nil
}

func (s *Store) aggregate(ctx context.Context, agg *filter.Aggregation, where string, args []any) (*models.Aggregate, error) {
	selects := []string{"COUNT(*)"}
	for _, d := range agg.Dimensions {
		col := d.Column()
		if col == "" {
			return nil, fmt.Errorf("unknown dimension %q: %w", d, models.ErrInvalidArgument)
		}
		selects = append(selects, fmt.Sprintf("AVG(%s), MIN(%s), MAX(%s)", col, col, col))
	}

	query := "SELECT " + strings.Join(selects, ", ") + " FROM profiles" + where

	var count int64
	stats := make([]sql.NullFloat64, 3*len(agg.Dimensions))
	dest := []any{&count}
	for i := range stats {
		dest = append(dest, &stats[i])
	}

	if err := s.db.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
		return nil, unavailable("execute aggregate query", err)
	}

	result := &models.Aggregate{Count: count}
	if count == 0 {
		return result, nil
	}
	for i, d := range agg.Dimensions {
		result.Stats = append(result.Stats, models.Stat{
			Dimension: d,
			Avg:       stats[3*i].Float64,
			Min:       stats[3*i+1].Float64,
			Max:       stats[3*i+2].Float64,
		})
	}
	return result, nil
}

// buildWhere renders predicates as a parameterized WHERE clause
func buildWhere(preds []filter.Predicate) (string, []any) {
	var conditions []string
	var args []any
	argIdx := 1

	bind := func(v any) string {
		args = append(args, v)
		argIdx++
		return fmt.Sprintf("$%d", argIdx-1)
	}

	for _, p := range preds {
		switch p.Op {
		case filter.OpRange:
			if p.Range.Min != nil {
				op := ">="
				if p.Range.MinOpen {
					op = ">"
				}
				conditions = append(conditions, fmt.Sprintf("%s %s %s", p.Column, op, bind(*p.Range.Min)))
			}
			if p.Range.Max != nil {
				op := "<="
				if p.Range.MaxOpen {
					op = "<"
				}
				conditions = append(conditions, fmt.Sprintf("%s %s %s", p.Column, op, bind(*p.Range.Max)))
			}
		case filter.OpLonWrap:
			conditions = append(conditions, fmt.Sprintf("(%s >= %s OR %s <= %s)",
				p.Column, bind(*p.Range.Max), p.Column, bind(*p.Range.Min)))
		case filter.OpIn:
			start := argIdx
			for _, v := range p.Values {
				args = append(args, v)
				argIdx++
			}
			conditions = append(conditions, fmt.Sprintf("%s IN (%s)", p.Column, placeholders(len(p.Values), start)))
		case filter.OpWindow:
			conditions = append(conditions, fmt.Sprintf("%s >= %s AND %s < %s",
				p.Column, bind(p.From), p.Column, bind(p.To)))
		case filter.OpMonth:
			conditions = append(conditions, fmt.Sprintf("month(%s) = %s", p.Column, bind(p.Month)))
		}
	}

	if len(conditions) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// Stats returns table-wide counts, time span and bounding box
func (s *Store) Stats(ctx context.Context) (*models.StoreStats, error) {
	var st models.StoreStats
	var earliest, latest sql.NullTime
	var minLat, maxLat, minLon, maxLon, avgTemp, avgSal sql.NullFloat64

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT platform_number),
		       MIN(collected_at), MAX(collected_at),
		       MIN(latitude), MAX(latitude), MIN(longitude), MAX(longitude),
		       AVG(surface_temp), AVG(surface_sal)
		FROM profiles
	`).Scan(&st.TotalProfiles, &st.Platforms, &earliest, &latest,
		&minLat, &maxLat, &minLon, &maxLon, &avgTemp, &avgSal)
	if err != nil {
		return nil, unavailable("compute stats", err)
	}

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM profile_embeddings").Scan(&st.IndexedProfiles); err != nil {
		return nil, unavailable("count embedding records", err)
	}

	if earliest.Valid {
		v := earliest.Time.UTC().Format("2006-01-02")
		st.Earliest = &v
	}
	if latest.Valid {
		v := latest.Time.UTC().Format("2006-01-02")
		st.Latest = &v
	}
	st.MinLatitude = nullable(minLat)
	st.MaxLatitude = nullable(maxLat)
	st.MinLongitude = nullable(minLon)
	st.MaxLongitude = nullable(maxLon)
	st.AvgTemperature = nullable(avgTemp)
	st.AvgSalinity = nullable(avgSal)

	return &st, nil
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
