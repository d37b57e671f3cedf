package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oscillatelabsllc/argoquery/internal/models"
)

// Category groups rules that bind the same slot. Within a category the first match wins.
type Category string

const (
	CatRegion      Category = "region"
	CatTemperature Category = "temperature"
	CatSalinity    Category = "salinity"
	CatQuality     Category = "quality"
	CatTime        Category = "time"
	CatMonth       Category = "month"
	CatDepth       Category = "depth"
	CatLimit       Category = "limit"
	CatMode        Category = "mode"
)

// Rule maps one pattern class onto an intent slot. Apply may decline a match by returning false.
type Rule struct {
	Name     string
	Category Category
	Pattern  *regexp.Regexp
	Apply    func(q *QueryIntent, m []string, now time.Time) bool
}

// Regions is the canonical bounding-box table. Specific basins precede the oceans containing them.
var Regions = []struct {
	Pattern string
	Region  Region
}{
	{`\barabian sea\b`, Region{"Arabian Sea", BoundingBox{10, 25, 50, 80}}},
	{`\bbay of bengal\b|\bbengal\b`, Region{"Bay of Bengal", BoundingBox{5, 25, 80, 100}}},
	{`\bindian ocean\b`, Region{"Indian Ocean", BoundingBox{-40, 30, 20, 120}}},
	{`\bpacific\b`, Region{"Pacific Ocean", BoundingBox{-60, 65, 120, -70}}},
	{`\batlantic\b`, Region{"Atlantic Ocean", BoundingBox{-60, 65, -70, 20}}},
	{`\bequator(?:ial)?\b`, Region{"Equatorial band", BoundingBox{-5, 5, -180, 180}}},
	{`\btropic(?:s|al)?\b`, Region{"Tropics", BoundingBox{-23.5, 23.5, -180, 180}}},
}

const num = `(-?\d+(?:\.\d+)?)`

var months = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

// DefaultRules returns the ordered rule table
func DefaultRules() []Rule {
	rules := make([]Rule, 0, 40)

	for _, r := range Regions {
		region := r.Region
		rules = append(rules, Rule{
			Name:     "region_" + strings.ReplaceAll(strings.ToLower(region.Name), " ", "_"),
			Category: CatRegion,
			Pattern:  regexp.MustCompile(r.Pattern),
			Apply: func(q *QueryIntent, _ []string, _ time.Time) bool {
				reg := region
				q.Region = &reg
				return true
			},
		})
	}

	rules = append(rules, measurementRules(CatTemperature, `temp(?:erature)?s?`, func(q *QueryIntent) *Range { return &q.Temperature })...)
	rules = append(rules,
		Rule{
			Name:     "temperature_warm",
			Category: CatTemperature,
			Pattern:  regexp.MustCompile(`\b(?:warm(?:er|est)?|hot(?:ter|test)?)\b`),
			Apply: func(q *QueryIntent, _ []string, _ time.Time) bool {
				q.Temperature = AtLeast(25)
				return true
			},
		},
		Rule{
			Name:     "temperature_cold",
			Category: CatTemperature,
			Pattern:  regexp.MustCompile(`\b(?:cold|cool)(?:er|est)?\b`),
			Apply: func(q *QueryIntent, _ []string, _ time.Time) bool {
				q.Temperature = AtMost(15)
				return true
			},
		},
	)

	rules = append(rules, measurementRules(CatSalinity, `salinity`, func(q *QueryIntent) *Range { return &q.Salinity })...)
	rules = append(rules,
		Rule{
			Name:     "salinity_high",
			Category: CatSalinity,
			Pattern:  regexp.MustCompile(`\bhigh(?:er)? salinity\b|\bsalty\b|\bsaline\b`),
			Apply: func(q *QueryIntent, _ []string, _ time.Time) bool {
				q.Salinity = AtLeast(35)
				return true
			},
		},
		Rule{
			Name:     "salinity_low",
			Category: CatSalinity,
			Pattern:  regexp.MustCompile(`\blow(?:er)? salinity\b|\bfresh(?:er|water)?\b`),
			Apply: func(q *QueryIntent, _ []string, _ time.Time) bool {
				q.Salinity = AtMost(34)
				return true
			},
		},
	)

	rules = append(rules,
		Rule{
			Name:     "quality_flag_a",
			Category: CatQuality,
			Pattern:  regexp.MustCompile(`\b(?:quality|qc) flag (?:of )?a\b|\bflag a\b`),
			Apply: func(q *QueryIntent, _ []string, _ time.Time) bool {
				q.QualityFlags = []string{"A"}
				return true
			},
		},
		Rule{
			Name:     "quality_good",
			Category: CatQuality,
			Pattern:  regexp.MustCompile(`\b(?:good|high|best) quality\b|\bquality[- ]controlled\b`),
			Apply: func(q *QueryIntent, _ []string, _ time.Time) bool {
				q.QualityFlags = append([]string(nil), models.AcceptedQC...)
				return true
			},
		},
	)

	rules = append(rules,
		Rule{
			Name:     "time_year_span",
			Category: CatTime,
			Pattern:  regexp.MustCompile(`\b((?:19|20)\d{2})\s*(?:-|to|through|until|and)\s*((?:19|20)\d{2})\b`),
			Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
				from, _ := strconv.Atoi(m[1])
				to, _ := strconv.Atoi(m[2])
				if from > to {
					from, to = to, from
				}
				q.Time = &TimeRange{Start: yearStart(from), End: yearStart(to + 1)}
				return true
			},
		},
		Rule{
			Name:     "time_year",
			Category: CatTime,
			Pattern:  regexp.MustCompile(`\b((?:19|20)\d{2})\b`),
			Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
				year, _ := strconv.Atoi(m[1])
				q.Time = &TimeRange{Start: yearStart(year), End: yearStart(year + 1)}
				return true
			},
		},
		Rule{
			Name:     "time_recent",
			Category: CatTime,
			Pattern:  regexp.MustCompile(`\b(?:recent(?:ly)?|latest|newest|last year|past year)\b`),
			Apply: func(q *QueryIntent, _ []string, now time.Time) bool {
				q.Time = &TimeRange{Start: now.AddDate(-1, 0, 0), End: now.Add(time.Second), Relative: true}
				return true
			},
		},
	)

	rules = append(rules, Rule{
		Name:     "month_name",
		Category: CatMonth,
		// "may" is a month only next to a year or after a temporal preposition
		Pattern: regexp.MustCompile(`\b(january|february|march|april|june|july|august|september|october|november|december)\b|\b(?:in|during) (may)\b|\b(may) (?:19|20)\d{2}\b`),
		Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
			for _, g := range m[1:] {
				if month, ok := months[g]; ok {
					q.Month = month
					return true
				}
			}
			return false
		},
	})

	rules = append(rules,
		Rule{
			Name:     "depth_deep",
			Category: CatDepth,
			// measurement names ending in "depth" do not bound pressure
			Pattern: regexp.MustCompile(`\b(layer |thermocline |min |max |minimum |maximum )?(?:deep(?:er|est)?|depths?)\b`),
			Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
				if m[1] != "" {
					return false
				}
				q.Depth = Above(100)
				return true
			},
		},
		Rule{
			Name:     "depth_shallow",
			Category: CatDepth,
			Pattern:  regexp.MustCompile(`\b(?:surface|shallow(?:er|est)?|near-surface)( temp(?:erature)?s?| salinity)?\b`),
			Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
				if m[1] != "" {
					return false
				}
				q.Depth = AtMost(50)
				return true
			},
		},
	)

	rules = append(rules,
		Rule{
			Name:     "limit_explicit",
			Category: CatLimit,
			Pattern:  regexp.MustCompile(`\b(?:show|list|find|get|give|display|return|fetch)(?: me)?(?: the)?(?: top| first| last| latest)?\s+(\d+)\b|\b(?:top|first|limit)\s+(\d+)\b`),
			Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
				raw := m[1]
				if raw == "" {
					raw = m[2]
				}
				n, err := strconv.Atoi(raw)
				if err != nil || isYear(n) {
					return false
				}
				q.Limit = clampLimit(n)
				return true
			},
		},
		sizeRule("limit_all", `\b(?:all|every)\b`, MaxLimit),
		sizeRule("limit_few", `\b(?:few|some)\b`, 10),
		Rule{
			Name:     "limit_many",
			Category: CatLimit,
			Pattern:  regexp.MustCompile(`\b(how )?many\b`),
			Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
				if m[1] != "" {
					return false
				}
				q.Limit = 100
				return true
			},
		},
	)

	rules = append(rules,
		modeRule("mode_count", `\bcount\b|\bhow many\b|\bnumber of\b|\btotal (?:number|count)\b`, ModeCount),
		modeRule("mode_aggregate", `\b(?:average|mean|avg|statistics|stats)\b`, ModeAggregate),
	)

	return rules
}

// measurementRules builds the numeric capture rules for one measured quantity
func measurementRules(cat Category, subject string, slot func(*QueryIntent) *Range) []Rule {
	name := string(cat)
	return []Rule{
		{
			Name:     name + "_between",
			Category: cat,
			Pattern:  regexp.MustCompile(`\b` + subject + `\s+(?:between|from|of)\s+` + num + `\s*(?:°?c|psu)?\s*(?:and|to|-)\s*` + num),
			Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
				lo, err1 := strconv.ParseFloat(m[1], 64)
				hi, err2 := strconv.ParseFloat(m[2], 64)
				if err1 != nil || err2 != nil {
					return false
				}
				*slot(q) = Between(lo, hi)
				return true
			},
		},
		{
			Name:     name + "_above",
			Category: cat,
			Pattern:  regexp.MustCompile(`\b` + subject + `\s+(?:is\s+)?(?:above|over|greater than|higher than|more than|exceeding|>)\s*` + num),
			Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
				v, err := strconv.ParseFloat(m[1], 64)
				if err != nil {
					return false
				}
				*slot(q) = Above(v)
				return true
			},
		},
		{
			Name:     name + "_below",
			Category: cat,
			Pattern:  regexp.MustCompile(`\b` + subject + `\s+(?:is\s+)?(?:below|under|less than|lower than|<)\s*` + num),
			Apply: func(q *QueryIntent, m []string, _ time.Time) bool {
				v, err := strconv.ParseFloat(m[1], 64)
				if err != nil {
					return false
				}
				*slot(q) = Below(v)
				return true
			},
		},
	}
}

func sizeRule(name, pattern string, limit int) Rule {
	return Rule{
		Name:     name,
		Category: CatLimit,
		Pattern:  regexp.MustCompile(pattern),
		Apply: func(q *QueryIntent, _ []string, _ time.Time) bool {
			q.Limit = limit
			return true
		},
	}
}

func modeRule(name, pattern string, mode Mode) Rule {
	return Rule{
		Name:     name,
		Category: CatMode,
		Pattern:  regexp.MustCompile(pattern),
		Apply: func(q *QueryIntent, _ []string, _ time.Time) bool {
			q.Mode = mode
			return true
		},
	}
}

func yearStart(year int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func isYear(n int) bool { return n >= 1900 && n <= 2099 }

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}
