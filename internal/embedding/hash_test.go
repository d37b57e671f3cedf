package embedding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/oscillatelabsllc/argoquery/internal/models"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(128)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Warm tropical surface water in the Arabian Sea")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, _ := e.Embed(ctx, "warm tropical surface water in the arabian sea")

	if len(a) != 128 {
		t.Fatalf("Expected 128 dimensions, got %d", len(a))
	}
	if sim := cosine(a, b); sim < 0.9999 {
		t.Errorf("Expected identical vectors for case variants, got similarity %f", sim)
	}

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("Expected unit norm, got %f", norm)
	}
}

func TestHashEmbedderSimilarity(t *testing.T) {
	e := NewHashEmbedder(DefaultHashDimensions)
	ctx := context.Background()

	base, _ := e.Embed(ctx, "summer monsoon upwelling with a shallow thermocline")
	near, _ := e.Embed(ctx, "monsoon upwelling and shallow thermocline")
	far, _ := e.Embed(ctx, "cold antarctic bottom water under sea ice")

	if cosine(base, near) <= cosine(base, far) {
		t.Errorf("Expected overlapping text to be closer: near=%f far=%f", cosine(base, near), cosine(base, far))
	}
}

func TestHashEmbedderEmptyText(t *testing.T) {
	_, err := NewHashEmbedder(0).Embed(context.Background(), "  ,, ")
	if !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Expected ErrInvalidArgument, got %v", err)
	}
}

func TestHashEmbedderVersion(t *testing.T) {
	if NewHashEmbedder(0).Version() != "hash-v1-384" {
		t.Errorf("Unexpected default version %s", NewHashEmbedder(0).Version())
	}
	if NewHashEmbedder(64).Version() == NewHashEmbedder(128).Version() {
		t.Error("Expected versions to differ by dimension")
	}
}

func TestTokenize(t *testing.T) {
	got := tokenize("Temperature 28.5°C, salinity 35.1 PSU.")
	want := []string{"temperature", "28.5", "c", "salinity", "35.1", "psu"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Token %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}
