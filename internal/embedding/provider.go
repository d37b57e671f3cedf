// Package embedding provides versioned text embedding backends.
package embedding

import "context"

// Provider embeds text into a fixed-length vector. Identical input under the same
// Version must yield the same vector.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Version() string
}
