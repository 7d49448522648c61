package retrieval

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legal-rag/backend/internal/graph/neo4j"
)

type fakeGraph struct {
	vector      []neo4j.ChunkRow
	vectorErr   error
	clause      []neo4j.ChunkRow
	clauseErr   error
	comparative map[string][]neo4j.ChunkRow
	similar     []neo4j.ChunkRow
	sequential  []neo4j.ChunkRow
	risk        []neo4j.ChunkRow
	conflict    []neo4j.ChunkRow
	party       []neo4j.ChunkRow
	obligation  []neo4j.ChunkRow
	postTerm    []neo4j.ChunkRow

	similarSeeds    []string
	sequentialSeeds []string
}

func (f *fakeGraph) VectorSearchChunks(_ context.Context, _ []float32, _ int) ([]neo4j.ChunkRow, error) {
	return f.vector, f.vectorErr
}

func (f *fakeGraph) ClauseChunks(_ context.Context, _ []string, _ int) ([]neo4j.ChunkRow, error) {
	return f.clause, f.clauseErr
}

func (f *fakeGraph) ComparativeChunks(_ context.Context, clauseType string, _ int) ([]neo4j.ChunkRow, error) {
	return f.comparative[clauseType], nil
}

func (f *fakeGraph) SimilarNeighbors(_ context.Context, seedIDs []string, _ int) ([]neo4j.ChunkRow, error) {
	f.similarSeeds = seedIDs
	return f.similar, nil
}

func (f *fakeGraph) SequentialNeighbors(_ context.Context, seedIDs []string) ([]neo4j.ChunkRow, error) {
	f.sequentialSeeds = seedIDs
	return f.sequential, nil
}

func (f *fakeGraph) RiskFlagChunks(_ context.Context, _ int) ([]neo4j.ChunkRow, error) {
	return f.risk, nil
}

func (f *fakeGraph) ConflictChunks(_ context.Context, _ int) ([]neo4j.ChunkRow, error) {
	return f.conflict, nil
}

func (f *fakeGraph) PartyChunks(_ context.Context, _ int) ([]neo4j.ChunkRow, error) {
	return f.party, nil
}

func (f *fakeGraph) ObligationChunks(_ context.Context, _ int) ([]neo4j.ChunkRow, error) {
	return f.obligation, nil
}

func (f *fakeGraph) PostTerminationChunks(_ context.Context, _ int) ([]neo4j.ChunkRow, error) {
	return f.postTerm, nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, f.err
}

func row(id string, score float64) neo4j.ChunkRow {
	return neo4j.ChunkRow{ID: id, Text: "text for " + id, ContractID: "c1", Title: "Agreement", Score: score}
}

func TestRetrieveFirstWriterWins(t *testing.T) {
	graph := &fakeGraph{
		vector: []neo4j.ChunkRow{row("ch0", 0.81), row("ch1", 0.7)},
		clause: []neo4j.ChunkRow{row("ch0", 0.92), row("ch2", 0.92)},
	}
	r := New(graph, &fakeEmbedder{}, 5)

	chunks, trace := r.Retrieve(context.Background(), "Is there a liability cap?", "clause")

	byID := make(map[string]Chunk)
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}

	require.Contains(t, byID, "ch0")
	// vector saw ch0 first, the clause strategy must not overwrite it
	assert.Equal(t, "vector", byID["ch0"].RetrievalMethod)
	assert.InDelta(t, 0.81, byID["ch0"].Score, 0.001)

	assert.Equal(t, "clause", byID["ch2"].RetrievalMethod)
	assert.Equal(t, []string{"limitation_of_liability"}, trace.DetectedClauseTypes)
	assert.Contains(t, trace.Strategies, "vector")
	assert.Contains(t, trace.Strategies, "clause")
}

func TestRetrieveStrategyFailureIsolated(t *testing.T) {
	graph := &fakeGraph{
		vectorErr: errors.New("index offline"),
		clause:    []neo4j.ChunkRow{row("ch5", 0.92)},
	}
	r := New(graph, &fakeEmbedder{}, 5)

	chunks, trace := r.Retrieve(context.Background(), "Is there a liability cap?", "clause")

	require.Len(t, chunks, 1)
	assert.Equal(t, "ch5", chunks[0].ChunkID)
	assert.Contains(t, trace.Strategies, "vector", "a failed strategy is still attempted and traced")
}

func TestRetrieveEmbedderFailureIsolated(t *testing.T) {
	graph := &fakeGraph{
		clause: []neo4j.ChunkRow{row("ch5", 0.92)},
	}
	r := New(graph, &fakeEmbedder{err: errors.New("llm down")}, 5)

	chunks, _ := r.Retrieve(context.Background(), "Is there a liability cap?", "clause")
	require.Len(t, chunks, 1)
	assert.Equal(t, "ch5", chunks[0].ChunkID)
}

func TestRetrieveCapsAtTwiceTopK(t *testing.T) {
	var clauseRows []neo4j.ChunkRow
	for i := 0; i < 10; i++ {
		clauseRows = append(clauseRows, row(fmt.Sprintf("cl%d", i), 0.92))
	}
	graph := &fakeGraph{
		vector: []neo4j.ChunkRow{row("v0", 0.8), row("v1", 0.8), row("v2", 0.8)},
		clause: clauseRows,
	}
	r := New(graph, &fakeEmbedder{}, 2)

	chunks, trace := r.Retrieve(context.Background(), "Is there a liability cap?", "clause")

	assert.Len(t, chunks, 4)
	assert.Greater(t, trace.Total, 4, "trace counts everything found before truncation")
}

func TestRetrieveComparativeTriggers(t *testing.T) {
	graph := &fakeGraph{
		comparative: map[string][]neo4j.ChunkRow{
			"termination":            {row("t0", 0.95)},
			"limitation_of_liability": {row("l0", 0.95)},
		},
	}
	r := New(graph, &fakeEmbedder{}, 5)

	// two clause types detected forces the comparative strategy
	chunks, trace := r.Retrieve(context.Background(),
		"Compare the liability cap with the termination clause", "factual")

	assert.Contains(t, trace.Strategies, "comparative")
	ids := make([]string, 0, len(chunks))
	for _, c := range chunks {
		ids = append(ids, c.ChunkID)
	}
	assert.Contains(t, ids, "t0")
	assert.Contains(t, ids, "l0")
}

func TestRetrieveSeedsFromVector(t *testing.T) {
	graph := &fakeGraph{
		vector: []neo4j.ChunkRow{
			row("s0", 0.9), row("s1", 0.8), row("s2", 0.7), row("s3", 0.6),
		},
	}
	r := New(graph, &fakeEmbedder{}, 5)

	r.Retrieve(context.Background(), "unusual wording nothing matches", "factual")

	assert.Equal(t, []string{"s0", "s1", "s2", "s3"}, graph.similarSeeds)
	// sequential expansion only walks from the first three seeds
	assert.Equal(t, []string{"s0", "s1", "s2"}, graph.sequentialSeeds)
}

func TestRetrieveStructuredOnlyForEligibleTypes(t *testing.T) {
	graph := &fakeGraph{
		risk: []neo4j.ChunkRow{row("r0", 0.95)},
	}
	r := New(graph, &fakeEmbedder{}, 5)

	_, trace := r.Retrieve(context.Background(), "What are the risky provisions?", "factual")
	assert.NotContains(t, trace.Strategies, "structured")

	_, trace = r.Retrieve(context.Background(), "What are the risky provisions?", "risk")
	assert.Contains(t, trace.Strategies, "structured")
}

func TestKeywordRerank(t *testing.T) {
	chunks := []Chunk{
		{ChunkID: "a", Text: "nothing relevant here", Score: 0.9},
		{ChunkID: "b", Text: "the indemnification duty survives termination", Score: 0.6},
	}

	ranked := keywordRerank(chunks, "Does indemnification survive termination?")

	// b gets +0.15 for "indemnification" and +0.15 for "termination",
	// "survive" also hits via the stripped keyword
	assert.Equal(t, "b", ranked[0].ChunkID)
	assert.InDelta(t, 1.05, ranked[0].Score, 0.001)
	assert.InDelta(t, 0.9, ranked[1].Score, 0.001)
}

func TestKeywordRerankIgnoresStopwordsAndShortWords(t *testing.T) {
	chunks := []Chunk{
		{ChunkID: "a", Text: "the contract between the parties", Score: 0.5},
	}

	ranked := keywordRerank(chunks, "What is the contract between all parties?")

	// "contract", "parties", "between" are stopwords; "what"/"the"/"all" too
	// short or stopped; no boost applies
	assert.InDelta(t, 0.5, ranked[0].Score, 0.001)
}

func TestKeywordRerankStableForEqualScores(t *testing.T) {
	chunks := []Chunk{
		{ChunkID: "first", Text: "alpha", Score: 0.8},
		{ChunkID: "second", Text: "beta", Score: 0.8},
	}

	ranked := keywordRerank(chunks, "zzzz")
	assert.Equal(t, "first", ranked[0].ChunkID)
	assert.Equal(t, "second", ranked[1].ChunkID)
}

func TestDetectClauseTypes(t *testing.T) {
	assert.Equal(t,
		[]string{"limitation_of_liability", "indemnification"},
		DetectClauseTypes("Is the indemnity subject to a liability cap?"))

	assert.Equal(t,
		[]string{"termination"},
		DetectClauseTypes("When can either side TERMINATE?"))

	assert.Empty(t, DetectClauseTypes("hello world"))
}

func TestClassifyPattern(t *testing.T) {
	cases := map[string]structuredPattern{
		"What are the risky clauses?":             patternRisk,
		"Do any clauses conflict?":                patternConflict,
		"Who signed this?":                        patternParty,
		"What must the supplier deliver?":         patternObligation,
		"Which payments remain due?":              patternObligation,
		"Which duties survive after termination?": patternPostTermination,
		"tell me about the weather":               patternNone,
	}
	for query, want := range cases {
		assert.Equal(t, want, classifyPattern(query), query)
	}
}
