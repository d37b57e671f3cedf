package synth

import (
	"sort"
	"strings"

	"github.com/oscillatelabsllc/argoquery/internal/intent"
	"github.com/oscillatelabsllc/argoquery/internal/models"
)

type trigger struct {
	word string
	kind models.ActionKind
}

var triggers = []trigger{
	{"temperature", models.ActionChart},
	{"salinity", models.ActionChart},
	{"location", models.ActionMap},
	{"coordinates", models.ActionMap},
	{"data", models.ActionTable},
	{"profile", models.ActionTable},
}

// SuggestActions scans a narrative for trigger words and returns the matching
// follow-ups ordered by first mention. Explorer mode always ends with export.
func SuggestActions(content string, q intent.QueryIntent, mode models.ChatMode) []models.Action {
	lower := strings.ToLower(content)

	first := make(map[models.ActionKind]int)
	for _, t := range triggers {
		pos := strings.Index(lower, t.word)
		if pos < 0 {
			continue
		}
		if prev, ok := first[t.kind]; !ok || pos < prev {
			first[t.kind] = pos
		}
	}

	kinds := make([]models.ActionKind, 0, len(first))
	for k := range first {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		if first[kinds[i]] != first[kinds[j]] {
			return first[kinds[i]] < first[kinds[j]]
		}
		return kinds[i] < kinds[j]
	})
	if len(kinds) > MaxActions {
		kinds = kinds[:MaxActions]
	}
	if mode == models.ModeExplorer {
		if len(kinds) == MaxActions {
			kinds = kinds[:MaxActions-1]
		}
		kinds = append(kinds, models.ActionExport)
	}

	actions := make([]models.Action, 0, len(kinds))
	for _, k := range kinds {
		actions = append(actions, actionFor(k, q, lower))
	}
	return actions
}

func actionFor(kind models.ActionKind, q intent.QueryIntent, lower string) models.Action {
	switch kind {
	case models.ActionChart:
		var vars []string
		for _, v := range []string{"temperature", "salinity"} {
			if strings.Contains(lower, v) {
				vars = append(vars, v)
			}
		}
		return models.Action{
			Type:  kind,
			Label: "Plot " + strings.Join(vars, " and "),
			Data:  map[string]any{"chart": "profile_scatter", "variables": vars},
		}
	case models.ActionMap:
		data := map[string]any{"view": "map"}
		if q.Region != nil {
			data["region"] = q.Region.Name
			data["bounds"] = q.Region.Box
		}
		return models.Action{Type: kind, Label: "Show profile locations on a map", Data: data}
	case models.ActionTable:
		return models.Action{
			Type:  kind,
			Label: "Show data table",
			Data:  map[string]any{"view": "table", "limit": q.Limit},
		}
	case models.ActionExport:
		return models.Action{
			Type:  kind,
			Label: "Export results as CSV",
			Data:  map[string]any{"format": "csv", "query": q.Text},
		}
	case models.ActionBroaden:
		return models.Action{
			Type:  kind,
			Label: "Broaden the search",
			Data:  map[string]any{"suggestions": broadenSuggestions},
		}
	}
	panic("synth: unhandled action kind " + kind.String())
}
