// Package embedding layers a best-effort cache over the LLM embedding
// endpoint, keyed by content hash so re-ingesting an unchanged document
// never re-embeds its chunks.
package embedding

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/legal-rag/backend/pkg/logger"
	"github.com/legal-rag/backend/pkg/utils"
)

const cacheTTL = 24 * time.Hour

// Generator produces embeddings, typically the llm client.
type Generator interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the embedding cache, typically the redis client. Implementations
// return found=false on miss; errors are logged and treated as misses.
type Store interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

type Provider struct {
	generator Generator
	cache     Store
}

// NewProvider wraps generator with cache. A nil cache disables caching.
func NewProvider(generator Generator, cache Store) *Provider {
	return &Provider{generator: generator, cache: cache}
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := utils.HashString(text)

	if p.cache != nil {
		embedding, found, err := p.cache.GetEmbedding(ctx, hash)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		} else if found {
			return embedding, nil
		}
	}

	embedding, err := p.generator.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.SetEmbedding(ctx, hash, embedding, cacheTTL); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}

	return embedding, nil
}

// EmbedBatch embeds texts in order, serving cached entries and batching the
// misses through the generator.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		if p.cache == nil {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
			continue
		}

		hash := utils.HashString(text)
		embedding, found, err := p.cache.GetEmbedding(ctx, hash)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
			found = false
		}
		if found {
			embeddings[i] = embedding
		} else {
			missing = append(missing, text)
			missingIdx = append(missingIdx, i)
		}
	}

	if len(missing) > 0 {
		generated, err := p.generator.GenerateBatchEmbeddings(ctx, missing)
		if err != nil {
			return nil, err
		}

		for j, embedding := range generated {
			idx := missingIdx[j]
			embeddings[idx] = embedding

			if p.cache != nil {
				if err := p.cache.SetEmbedding(ctx, utils.HashString(missing[j]), embedding, cacheTTL); err != nil {
					logger.Warn("Embedding cache write failed", zap.Error(err))
				}
			}
		}
	}

	logger.Debug("Batch embedded",
		zap.Int("total", len(texts)),
		zap.Int("cache_hits", len(texts)-len(missing)),
	)

	return embeddings, nil
}
