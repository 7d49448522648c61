package builder

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/legal-rag/backend/pkg/logger"
)

// BuildSimilarityEdges connects non-adjacent chunk pairs whose cosine
// similarity clears the threshold. Adjacent pairs are excluded because the
// NEXT edge already covers them (and overlap makes them trivially similar).
// Returns the number of edges written.
func (b *Builder) BuildSimilarityEdges(ctx context.Context, chunkIDs []string, embeddings [][]float32) (int, error) {
	if len(chunkIDs) < 2 || len(embeddings) < len(chunkIDs) {
		return 0, nil
	}

	normed := make([][]float64, len(chunkIDs))
	for i := range chunkIDs {
		normed[i] = normalize(embeddings[i])
	}

	edgeCount := 0
	for i := 0; i < len(chunkIDs); i++ {
		for j := i + 1; j < len(chunkIDs); j++ {
			if j-i <= 1 {
				continue
			}

			sim := dot(normed[i], normed[j])
			if sim < b.similarityThreshold {
				continue
			}

			score := math.Round(sim*1000) / 1000
			if err := b.store.CreateSimilarityEdge(ctx, chunkIDs[i], chunkIDs[j], score); err != nil {
				return edgeCount, err
			}
			edgeCount++
		}
	}

	logger.Debug("Similarity edges built",
		zap.Int("chunks", len(chunkIDs)),
		zap.Int("edges", edgeCount),
	)

	return edgeCount, nil
}

// normalize returns the unit vector, leaving zero vectors untouched so
// their similarity with anything is zero.
func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		out[i] = float64(x)
		sum += out[i] * out[i]
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return out
	}
	for i := range out {
		out[i] /= norm
	}
	return out
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
