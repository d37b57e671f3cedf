package intent

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/oscillatelabsllc/argoquery/internal/models"
)

var dimensionPatterns = []struct {
	dim     models.Dimension
	pattern *regexp.Regexp
}{
	{models.DimTemperature, regexp.MustCompile(`\btemp(?:erature)?s?\b`)},
	{models.DimSalinity, regexp.MustCompile(`\bsalinity\b|\bsalty\b|\bsaline\b`)},
	{models.DimMixedLayer, regexp.MustCompile(`\bmixed[- ]layer\b|\bmld\b`)},
	{models.DimThermocline, regexp.MustCompile(`\bthermocline\b`)},
	{models.DimHeatContent, regexp.MustCompile(`\bheat content\b|\bohc\b`)},
	{models.DimStratification, regexp.MustCompile(`\bstratification\b`)},
}

// Extractor applies an ordered rule table to query text
type Extractor struct {
	rules []Rule
	now   func() time.Time
}

// Option configures an Extractor
type Option func(*Extractor)

// WithClock injects the time source used for relative windows
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithRules replaces the default rule table
func WithRules(rules []Rule) Option {
	return func(e *Extractor) { e.rules = rules }
}

// NewExtractor creates an extractor over DefaultRules
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{
		rules: DefaultRules(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses text into a QueryIntent. It never fails; unrecognized text yields the default intent.
func (e *Extractor) Extract(text string) QueryIntent {
	q := New(text)
	lower := strings.ToLower(text)
	now := e.now()

	bound := make(map[Category]bool)
	for _, rule := range e.rules {
		if bound[rule.Category] {
			continue
		}
		for _, m := range rule.Pattern.FindAllStringSubmatch(lower, -1) {
			if rule.Apply(&q, m, now) {
				bound[rule.Category] = true
				q.Matched = append(q.Matched, rule.Name)
				break
			}
		}
	}

	q.Temperature = q.Temperature.normalized()
	q.Salinity = q.Salinity.normalized()
	q.Depth = q.Depth.normalized()
	q.Dimensions = mentionedDimensions(lower)
	if q.Mode == ModeAggregate && len(q.Dimensions) == 0 {
		q.Dimensions = []models.Dimension{models.DimTemperature, models.DimSalinity}
	}
	return q
}

// mentionedDimensions returns measurements named in the text, in mention order
func mentionedDimensions(lower string) []models.Dimension {
	type hit struct {
		pos int
		dim models.Dimension
	}
	var hits []hit
	for _, dp := range dimensionPatterns {
		if loc := dp.pattern.FindStringIndex(lower); loc != nil {
			hits = append(hits, hit{loc[0], dp.dim})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	dims := make([]models.Dimension, 0, len(hits))
	for _, h := range hits {
		dims = append(dims, h.dim)
	}
	return dims
}
