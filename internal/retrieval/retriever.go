// Package retrieval fuses six graph-backed retrieval strategies into one
// ranked chunk list. Strategies run in a fixed order and the first strategy
// to return a chunk owns its score; later strategies never overwrite it.
package retrieval

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/graph/neo4j"
	"github.com/legal-rag/backend/pkg/logger"
)

// Chunk is a retrieved passage with its provenance.
type Chunk struct {
	ChunkID         string  `json:"chunk_id"`
	Text            string  `json:"text"`
	Score           float64 `json:"score"`
	RetrievalMethod string  `json:"retrieval_method"`
	ContractID      string  `json:"contract_id"`
	ContractTitle   string  `json:"contract_title"`
	ClauseContext   string  `json:"clause_context"`
}

// Trace records which strategies fired for a query, returned to the caller
// for debugging and source attribution.
type Trace struct {
	QueryType           string   `json:"query_type"`
	DetectedClauseTypes []string `json:"detected_clause_types"`
	Strategies          []string `json:"strategies"`
	Total               int      `json:"total"`
}

// GraphSearcher is the slice of the graph client retrieval reads through.
type GraphSearcher interface {
	VectorSearchChunks(ctx context.Context, embedding []float32, k int) ([]neo4j.ChunkRow, error)
	ClauseChunks(ctx context.Context, clauseTypes []string, limit int) ([]neo4j.ChunkRow, error)
	ComparativeChunks(ctx context.Context, clauseType string, limit int) ([]neo4j.ChunkRow, error)
	SimilarNeighbors(ctx context.Context, seedIDs []string, limit int) ([]neo4j.ChunkRow, error)
	SequentialNeighbors(ctx context.Context, seedIDs []string) ([]neo4j.ChunkRow, error)
	RiskFlagChunks(ctx context.Context, limit int) ([]neo4j.ChunkRow, error)
	ConflictChunks(ctx context.Context, limit int) ([]neo4j.ChunkRow, error)
	PartyChunks(ctx context.Context, limit int) ([]neo4j.ChunkRow, error)
	ObligationChunks(ctx context.Context, limit int) ([]neo4j.ChunkRow, error)
	PostTerminationChunks(ctx context.Context, limit int) ([]neo4j.ChunkRow, error)
}

// Embedder embeds the query for vector search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Retriever struct {
	graph    GraphSearcher
	embedder Embedder
	topK     int
}

func New(graph GraphSearcher, embedder Embedder, topK int) *Retriever {
	if topK <= 0 {
		topK = 5
	}
	return &Retriever{graph: graph, embedder: embedder, topK: topK}
}

// Retrieve runs the strategy pipeline for a query. A failing strategy is
// logged and skipped; the remaining strategies still contribute, so a
// degraded answer beats no answer. The result is reranked by keyword
// overlap and capped at twice topK.
func (r *Retriever) Retrieve(ctx context.Context, query, queryType string) ([]Chunk, *Trace) {
	trace := &Trace{QueryType: queryType}

	detected := DetectClauseTypes(query)
	trace.DetectedClauseTypes = detected

	seen := make(map[string]bool)
	var fused []Chunk
	add := func(chunks []Chunk) {
		for _, c := range chunks {
			if !seen[c.ChunkID] {
				seen[c.ChunkID] = true
				fused = append(fused, c)
			}
		}
	}

	add(r.vectorSearch(ctx, query))
	trace.Strategies = append(trace.Strategies, "vector")

	seedIDs := make([]string, 0, len(fused))
	for _, c := range fused {
		seedIDs = append(seedIDs, c.ChunkID)
	}

	if len(detected) > 0 {
		add(r.clauseSearch(ctx, detected))
		trace.Strategies = append(trace.Strategies, "clause")
	}

	if len(detected) >= 2 || queryType == "comparative" {
		add(r.comparativeSearch(ctx, detected))
		trace.Strategies = append(trace.Strategies, "comparative")
	}

	add(r.graphExpand(ctx, seedIDs))
	trace.Strategies = append(trace.Strategies, "graph_expand")

	switch queryType {
	case "relational", "risk", "comparative", "multi-hop", "clause":
		add(r.structuredSearch(ctx, query))
		trace.Strategies = append(trace.Strategies, "structured")
	}

	add(r.sequentialExpand(ctx, seedIDs))
	trace.Strategies = append(trace.Strategies, "sequential")

	ranked := keywordRerank(fused, query)
	trace.Total = len(ranked)

	logger.Debug("Retrieval complete",
		zap.String("query_type", queryType),
		zap.Strings("detected_clause_types", detected),
		zap.Strings("strategies", trace.Strategies),
		zap.Int("total", len(ranked)),
	)

	if len(ranked) > r.topK*2 {
		ranked = ranked[:r.topK*2]
	}
	return ranked, trace
}

func (r *Retriever) vectorSearch(ctx context.Context, query string) []Chunk {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("Vector search skipped: query embedding failed", zap.Error(err))
		return nil
	}

	rows, err := r.graph.VectorSearchChunks(ctx, embedding, r.topK*2)
	if err != nil {
		logger.Warn("Vector search failed", zap.Error(err))
		return nil
	}
	if len(rows) > r.topK {
		rows = rows[:r.topK]
	}
	return toChunks(rows, "vector")
}

func (r *Retriever) clauseSearch(ctx context.Context, clauseTypes []string) []Chunk {
	rows, err := r.graph.ClauseChunks(ctx, clauseTypes, r.topK*3)
	if err != nil {
		logger.Warn("Clause search failed", zap.Error(err))
		return nil
	}
	return toChunks(rows, "clause")
}

func (r *Retriever) comparativeSearch(ctx context.Context, clauseTypes []string) []Chunk {
	var chunks []Chunk
	for _, clauseType := range clauseTypes {
		rows, err := r.graph.ComparativeChunks(ctx, clauseType, r.topK)
		if err != nil {
			logger.Warn("Comparative search failed",
				zap.String("clause_type", clauseType),
				zap.Error(err),
			)
			continue
		}
		chunks = append(chunks, toChunks(rows, "comparative")...)
	}
	return chunks
}

func (r *Retriever) graphExpand(ctx context.Context, seedIDs []string) []Chunk {
	if len(seedIDs) == 0 {
		return nil
	}

	rows, err := r.graph.SimilarNeighbors(ctx, seedIDs, r.topK)
	if err != nil {
		logger.Warn("Graph expansion failed", zap.Error(err))
		return nil
	}

	chunks := toChunks(rows, "graph_expand")
	for i := range chunks {
		if chunks[i].Score == 0 {
			chunks[i].Score = 0.5
		}
	}
	return chunks
}

func (r *Retriever) sequentialExpand(ctx context.Context, seedIDs []string) []Chunk {
	if len(seedIDs) == 0 {
		return nil
	}
	if len(seedIDs) > 3 {
		seedIDs = seedIDs[:3]
	}

	rows, err := r.graph.SequentialNeighbors(ctx, seedIDs)
	if err != nil {
		logger.Warn("Sequential expansion failed", zap.Error(err))
		return nil
	}
	return toChunks(rows, "sequential")
}

func (r *Retriever) structuredSearch(ctx context.Context, query string) []Chunk {
	var rows []neo4j.ChunkRow
	var err error

	switch classifyPattern(query) {
	case patternRisk:
		rows, err = r.graph.RiskFlagChunks(ctx, r.topK)
	case patternConflict:
		rows, err = r.graph.ConflictChunks(ctx, r.topK)
	case patternParty:
		rows, err = r.graph.PartyChunks(ctx, r.topK)
	case patternObligation:
		rows, err = r.graph.ObligationChunks(ctx, r.topK)
	case patternPostTermination:
		rows, err = r.graph.PostTerminationChunks(ctx, r.topK)
	default:
		return nil
	}

	if err != nil {
		logger.Warn("Structured search failed", zap.Error(err))
		return nil
	}
	return toChunks(rows, "structured")
}

type structuredPattern int

const (
	patternNone structuredPattern = iota
	patternRisk
	patternConflict
	patternParty
	patternObligation
	patternPostTermination
)

// classifyPattern dispatches a question to a structured query by keyword,
// first match wins.
func classifyPattern(query string) structuredPattern {
	queryLower := strings.ToLower(query)

	contains := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(queryLower, w) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("risk", "risky", "dangerous", "missing", "flag"):
		return patternRisk
	case contains("conflict", "contradict", "inconsistent", "clash"):
		return patternConflict
	case contains("party", "parties", "company", "who", "signed"):
		return patternParty
	case contains("obligation", "must", "required", "shall", "duty", "remain"):
		return patternObligation
	case contains("terminat", "after termination", "post-termination", "survive"):
		return patternPostTermination
	default:
		return patternNone
	}
}

var rerankStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "how": true, "what": true, "who": true,
	"where": true, "when": true, "why": true, "did": true, "do": true,
	"does": true, "in": true, "of": true, "to": true, "and": true,
	"for": true, "with": true, "that": true, "this": true, "from": true,
	"by": true, "on": true, "at": true, "as": true, "be": true,
	"have": true, "has": true, "had": true, "which": true, "their": true,
	"they": true, "can": true, "between": true,
	"contract": true, "agreement": true, "party": true, "parties": true,
	"clause": true, "section": true,
}

const rerankBoost = 0.15

// keywordRerank boosts each chunk by 0.15 per distinct query keyword it
// contains, then sorts by score. The sort is stable so equal scores keep
// strategy-priority order.
func keywordRerank(chunks []Chunk, query string) []Chunk {
	var keywords []string
	for _, word := range strings.Fields(query) {
		if len(word) <= 3 {
			continue
		}
		lower := strings.ToLower(word)
		if rerankStopwords[lower] {
			continue
		}
		keywords = append(keywords, strings.Trim(lower, "?.,"))
	}

	for i := range chunks {
		textLower := strings.ToLower(chunks[i].Text)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(textLower, kw) {
				hits++
			}
		}
		chunks[i].Score += float64(hits) * rerankBoost
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	return chunks
}

func toChunks(rows []neo4j.ChunkRow, method string) []Chunk {
	chunks := make([]Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, Chunk{
			ChunkID:         row.ID,
			Text:            row.Text,
			Score:           row.Score,
			RetrievalMethod: method,
			ContractID:      row.ContractID,
			ContractTitle:   row.Title,
			ClauseContext:   row.Context,
		})
	}
	return chunks
}
