package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestProfileValidate(t *testing.T) {
	base := Profile{ID: "p1", Latitude: 10, Longitude: 70, CollectedAt: time.Now()}

	t.Run("valid", func(t *testing.T) {
		if err := base.Validate(); err != nil {
			t.Errorf("Expected no error, got %v", err)
		}
	})

	t.Run("latitude out of range", func(t *testing.T) {
		p := base
		p.Latitude = 91
		err := p.Validate()
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("Expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("longitude out of range", func(t *testing.T) {
		p := base
		p.Longitude = -181
		var verr *ValidationError
		if !errors.As(p.Validate(), &verr) || verr.Field != "longitude" {
			t.Errorf("Expected longitude ValidationError, got %v", p.Validate())
		}
	})

	t.Run("missing timestamp", func(t *testing.T) {
		p := base
		p.CollectedAt = time.Time{}
		if p.Validate() == nil {
			t.Error("Expected error for zero collected_at")
		}
	})
}

func TestPassesQC(t *testing.T) {
	cases := map[string]bool{"A": true, "B": true, "C": false, "": false}
	for flag, want := range cases {
		p := Profile{QC: QCFlags{Temperature: flag}}
		if got := p.PassesQC(); got != want {
			t.Errorf("PassesQC(%q) = %v, want %v", flag, got, want)
		}
	}
}

func TestTagsRoundTrip(t *testing.T) {
	tags := Tags{Season: "winter", Monsoon: "northeast monsoon", WaterMass: "tropical", ThermalRegime: "shallow thermocline"}
	if got := TagsFromList(tags.List()); got != tags {
		t.Errorf("Expected %+v, got %+v", tags, got)
	}
	if got := TagsFromList([]string{"summer"}); got.Season != "summer" || got.Monsoon != "" {
		t.Errorf("Expected partial tags, got %+v", got)
	}
}

func TestInvalidIntentError(t *testing.T) {
	err := NewInvalidIntent("temperature", "min 30 exceeds max 20")
	if !errors.Is(err, ErrInvalidIntent) {
		t.Error("Expected error to wrap ErrInvalidIntent")
	}
	var ie *InvalidIntentError
	if !errors.As(err, &ie) || ie.Category != "temperature" {
		t.Errorf("Expected InvalidIntentError for temperature, got %v", err)
	}
}

func TestActionKindJSON(t *testing.T) {
	a := Action{Type: ActionMap, Label: "Show on map", Data: map[string]any{"view": "map"}}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Failed to marshal action: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Failed to unmarshal action: %v", err)
	}
	if decoded["type"] != "map" {
		t.Errorf("Expected type map, got %v", decoded["type"])
	}

	if _, err := json.Marshal(Action{Type: ActionKind(42)}); err == nil {
		t.Error("Expected error for unknown action kind")
	}

	var k ActionKind
	if err := k.UnmarshalText([]byte("export")); err != nil || k != ActionExport {
		t.Errorf("Expected export, got %v (%v)", k, err)
	}
}

func TestSearchResultEmpty(t *testing.T) {
	if !(SearchResult{Kind: ResultRows}).Empty() {
		t.Error("Expected empty row result")
	}
	if (SearchResult{Kind: ResultAggregate, Aggregate: &Aggregate{Count: 3}}).Empty() {
		t.Error("Expected non-empty aggregate")
	}
	r := SearchResult{Kind: ResultRanked, Ranked: []ScoredProfile{{Profile: Profile{ID: "a"}}}}
	if r.Empty() || len(r.Profiles()) != 1 || r.Profiles()[0].ID != "a" {
		t.Errorf("Unexpected ranked flattening: %+v", r.Profiles())
	}
}

func TestChatRequestNormalize(t *testing.T) {
	if got := (ChatRequest{Message: "hi"}).Normalize().Mode; got != ModeConversation {
		t.Errorf("Expected conversation, got %s", got)
	}
	if got := (ChatRequest{Mode: ModeExplorer}).Normalize().Mode; got != ModeExplorer {
		t.Errorf("Expected explorer, got %s", got)
	}
}
