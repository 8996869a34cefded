// Package mock provides a deterministic hash-based embedder for tests and
// offline development. Identical text always maps to the identical unit
// vector; different text almost always diverges.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

type Embedder struct {
	dimensions int
}

func New(dimensions int) *Embedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &Embedder{dimensions: dimensions}
}

func (m *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		// LCG step seeded by the text hash.
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

func (m *Embedder) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(float64(sum)))
	for i, v := range vec {
		vec[i] = v / norm
	}
	return vec
}
