// Package embedding provides text embedding providers for knowledge retrieval.
package embedding

import "context"

// Provider generates vector embeddings for text.
type Provider interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimensionality this provider produces.
	Dimensions() int

	Name() string
}
