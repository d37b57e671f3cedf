package synth

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/models"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func extract(text string) intent.QueryIntent {
	return intent.NewExtractor(intent.WithClock(func() time.Time { return fixedNow })).Extract(text)
}

func profile(id string, temp, sal, lat, lon float64, qc string) models.Profile {
	return models.Profile{
		ID:              id,
		CollectedAt:     time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Latitude:        lat,
		Longitude:       lon,
		SurfaceTemp:     temp,
		SurfaceSalinity: sal,
		MixedLayerDepth: 40,
		QC:              models.QCFlags{Temperature: qc},
	}
}

func kinds(actions []models.Action) []models.ActionKind {
	out := make([]models.ActionKind, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.Type)
	}
	return out
}

func TestCountNarrativeHasSingleInteger(t *testing.T) {
	q := extract("How many profiles in the Arabian Sea with temperature above 25 in 2023?")
	if q.Mode != intent.ModeCount {
		t.Fatalf("Expected count mode, got %s", q.Mode)
	}
	res := models.SearchResult{Kind: models.ResultAggregate, Aggregate: &models.Aggregate{Count: 1234}}

	content := Narrate(q, res)
	nums := regexp.MustCompile(`\d+`).FindAllString(content, -1)
	if len(nums) != 1 || nums[0] != "1234" {
		t.Errorf("Expected exactly one integer 1234, got %v in %q", nums, content)
	}
	if !strings.HasPrefix(content, "ARGO profile count: 1234") {
		t.Errorf("Expected count prefix, got %q", content)
	}
}

func TestCountZeroIsNotEmpty(t *testing.T) {
	q := extract("How many profiles are there?")
	res := models.SearchResult{Kind: models.ResultAggregate, Aggregate: &models.Aggregate{}}

	reply := Respond(q, res, models.ModeConversation)
	if !strings.Contains(reply.Content, "ARGO profile count: 0") {
		t.Errorf("Expected zero count narrative, got %q", reply.Content)
	}
	for _, a := range reply.Actions {
		if a.Type == models.ActionBroaden {
			t.Error("Expected no broaden action for a count reply")
		}
	}
}

func TestAggregateNarrative(t *testing.T) {
	q := extract("What is the average temperature and salinity?")
	res := models.SearchResult{Kind: models.ResultAggregate, Aggregate: &models.Aggregate{
		Count: 5,
		Stats: []models.Stat{
			{Dimension: models.DimTemperature, Min: 10, Avg: 21.2, Max: 29},
			{Dimension: models.DimSalinity, Min: 34.1, Avg: 35.8, Max: 36.4},
		},
	}}

	content := Narrate(q, res)
	for _, want := range []string{
		"over 5 profiles",
		"Temperature: min 10.00°C, avg 21.20°C, max 29.00°C",
		"moderate subtropical waters",
		"Salinity: min 34.10 PSU",
		"high salinity",
		"all profiles in the database",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected narrative to contain %q, got %q", want, content)
		}
	}
}

func TestCommentaryThresholds(t *testing.T) {
	tests := []struct {
		dim  models.Dimension
		avg  float64
		want string
	}{
		{models.DimTemperature, 25, "warm tropical"},
		{models.DimTemperature, 24.99, "moderate subtropical"},
		{models.DimTemperature, 15, "moderate subtropical"},
		{models.DimTemperature, 14.9, "cold"},
		{models.DimSalinity, 35.6, "high salinity"},
		{models.DimSalinity, 35.50001, "high salinity"},
		{models.DimSalinity, 35.5, "typical open-ocean"},
		{models.DimSalinity, 34, "typical open-ocean"},
		{models.DimSalinity, 33.9, "low salinity"},
		{models.DimMixedLayer, 90, "deep mixed layer"},
		{models.DimMixedLayer, 10, "shallow mixed layer"},
		{models.DimHeatContent, 2, "high upper-ocean heat content"},
		{models.DimThermocline, 150.5, "deep thermocline"},
		{models.DimThermocline, 150, "moderate thermocline"},
		{models.DimThermocline, 49, "shallow thermocline"},
		{models.DimStratification, -0.2, "weak stratification"},
	}
	for _, tt := range tests {
		t.Run(string(tt.dim), func(t *testing.T) {
			if got := Commentary(tt.dim, tt.avg); !strings.Contains(got, tt.want) {
				t.Errorf("Expected %q for %v, got %q", tt.want, tt.avg, got)
			}
		})
	}
	if got := Commentary(models.DimPressure, 100); got != "" {
		t.Errorf("Expected no commentary for pressure, got %q", got)
	}
}

func TestListNarrative(t *testing.T) {
	q := extract("Find warm water profiles")
	res := models.SearchResult{Kind: models.ResultRows, Rows: []models.Profile{
		profile("p1", 26, 35.0, 15, 65, "A"),
		profile("p2", 29, 36.1, 1, 60, "A"),
		profile("p3", 28, 35.2, 5, 70, "C"),
	}}

	content := Narrate(q, res)
	for _, want := range []string{
		"Found 3 ARGO profiles.",
		"Filters applied: temperature",
		"Temperature range: 26.00°C to 29.00°C",
		"warm tropical waters",
		"Salinity range: 35.00 to 36.10 PSU",
		"Geographic location: 1.00°N to 15.00°N, 60.00°E to 70.00°E",
		"Data quality: 2 of 3",
		"Example profile: p1",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected narrative to contain %q, got %q", want, content)
		}
	}
	if strings.Contains(content, "Most similar") {
		t.Error("Expected no similarity section for structured rows")
	}
}

func TestSemanticNarrative(t *testing.T) {
	q := extract("profiles similar to monsoon upwelling")
	q.Mode = intent.ModeSemantic
	res := models.SearchResult{
		Kind: models.ResultRanked,
		Ranked: []models.ScoredProfile{
			{Profile: profile("a", 27, 36, 15, 65, "A"), Similarity: 0.91, Explanation: "Similarity 0.91; matches southwest monsoon."},
			{Profile: profile("b", 25, 35, -10, -30, "A"), Similarity: 0.5, Explanation: "Similarity 0.50 from the overall profile description."},
		},
		CrossCheck: 7,
	}

	content := Narrate(q, res)
	for _, want := range []string{
		"Found 2 ARGO profiles.",
		"Most similar profiles:",
		"1. a: Similarity 0.91; matches southwest monsoon.",
		"2. b: Similarity 0.50",
		"10.00°S",
		"30.00°W",
		"Structured cross-check: 7 profiles",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Expected narrative to contain %q, got %q", want, content)
		}
	}
}

func TestEmptyResult(t *testing.T) {
	q := extract("profiles in the Arabian Sea with temperature below 2")
	res := models.SearchResult{Kind: models.ResultRows}

	reply := Respond(q, res, models.ModeExplorer)
	if !strings.HasPrefix(reply.Content, NoResults) {
		t.Errorf("Expected no-results narrative, got %q", reply.Content)
	}
	if len(reply.Actions) != 1 || reply.Actions[0].Type != models.ActionBroaden {
		t.Errorf("Expected a single broaden action, got %v", kinds(reply.Actions))
	}
	if again := Respond(q, res, models.ModeExplorer); again.Content != reply.Content {
		t.Error("Expected the empty narrative to be deterministic")
	}
}

func TestSuggestActionsOrderAndDedup(t *testing.T) {
	q := extract("show profiles")
	content := "Salinity is high here. Temperature too. The location is 15N. The data table follows. Each profile..."

	got := kinds(SuggestActions(content, q, models.ModeConversation))
	want := []models.ActionKind{models.ActionChart, models.ActionMap, models.ActionTable}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Expected %v at %d, got %v", want[i], i, got[i])
		}
	}
}

func TestSuggestActionsExplorerAppendsExport(t *testing.T) {
	q := extract("show profiles")

	t.Run("room left", func(t *testing.T) {
		got := kinds(SuggestActions("profile location", q, models.ModeExplorer))
		want := []models.ActionKind{models.ActionTable, models.ActionMap, models.ActionExport}
		if len(got) != len(want) {
			t.Fatalf("Expected %v, got %v", want, got)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Expected %v at %d, got %v", want[i], i, got[i])
			}
		}
	})

	t.Run("no triggers", func(t *testing.T) {
		got := kinds(SuggestActions("nothing relevant", q, models.ModeExplorer))
		if len(got) != 1 || got[0] != models.ActionExport {
			t.Errorf("Expected only export, got %v", got)
		}
	})

	t.Run("conversation has no export", func(t *testing.T) {
		for _, k := range kinds(SuggestActions("profile location salinity", q, models.ModeConversation)) {
			if k == models.ActionExport {
				t.Error("Expected no export action in conversation mode")
			}
		}
	})
}

func TestSuggestActionsCap(t *testing.T) {
	q := extract("show profiles")
	content := "temperature salinity location coordinates data profile"
	for _, mode := range []models.ChatMode{models.ModeConversation, models.ModeExplorer} {
		if got := SuggestActions(content, q, mode); len(got) > MaxActions {
			t.Errorf("Expected at most %d actions in %s mode, got %d", MaxActions, mode, len(got))
		}
	}
}

func TestEveryActionKindHasHandler(t *testing.T) {
	q := extract("Arabian Sea profiles")
	for _, k := range models.ActionKinds {
		t.Run(k.String(), func(t *testing.T) {
			a := actionFor(k, q, "temperature")
			if a.Type != k {
				t.Errorf("Expected type %v, got %v", k, a.Type)
			}
			if a.Label == "" || a.Data == nil {
				t.Errorf("Expected label and data for %v, got %+v", k, a)
			}
			if _, err := json.Marshal(a); err != nil {
				t.Errorf("Expected action to marshal, got %v", err)
			}
		})
	}
}

func TestMapActionCarriesRegion(t *testing.T) {
	q := extract("Arabian Sea profiles")
	a := actionFor(models.ActionMap, q, "")
	if a.Data["region"] != "Arabian Sea" {
		t.Errorf("Expected region Arabian Sea, got %v", a.Data["region"])
	}
}
