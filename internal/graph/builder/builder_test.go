package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/legal-rag/backend/internal/extraction"
	"github.com/legal-rag/backend/internal/graph/neo4j"
)

type simEdge struct {
	a, b  string
	score float64
}

type conflictEdge struct {
	a, b, reason, evidence string
}

type relatedEdge struct {
	a, b, party string
}

type fakeStore struct {
	contract        *neo4j.Contract
	jurisdictions   []string
	parties         []neo4j.PartyNode
	clauses         []neo4j.ClauseNode
	obligations     []neo4j.ObligationNode
	riskFlags       []neo4j.RiskFlagNode
	chunks          []neo4j.ChunkNode
	nextEdges       [][2]string
	simEdges        []simEdge
	conflictEdges   []conflictEdge
	relatedEdges    []relatedEdge
	contractsByParty map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{contractsByParty: make(map[string][]string)}
}

func (f *fakeStore) UpsertContract(_ context.Context, c *neo4j.Contract) error {
	f.contract = c
	return nil
}

func (f *fakeStore) UpsertJurisdiction(_ context.Context, _, name string) error {
	f.jurisdictions = append(f.jurisdictions, name)
	return nil
}

func (f *fakeStore) UpsertParty(_ context.Context, _ string, p neo4j.PartyNode) error {
	f.parties = append(f.parties, p)
	return nil
}

func (f *fakeStore) CreateClause(_ context.Context, cl neo4j.ClauseNode) error {
	f.clauses = append(f.clauses, cl)
	return nil
}

func (f *fakeStore) CreateObligation(_ context.Context, o neo4j.ObligationNode) error {
	f.obligations = append(f.obligations, o)
	return nil
}

func (f *fakeStore) CreateRiskFlag(_ context.Context, r neo4j.RiskFlagNode) error {
	f.riskFlags = append(f.riskFlags, r)
	return nil
}

func (f *fakeStore) CreateChunk(_ context.Context, ch neo4j.ChunkNode) error {
	f.chunks = append(f.chunks, ch)
	return nil
}

func (f *fakeStore) CreateNextEdge(_ context.Context, prev, next string) error {
	f.nextEdges = append(f.nextEdges, [2]string{prev, next})
	return nil
}

func (f *fakeStore) CreateSimilarityEdge(_ context.Context, a, b string, score float64) error {
	f.simEdges = append(f.simEdges, simEdge{a, b, score})
	return nil
}

func (f *fakeStore) CreateConflictEdge(_ context.Context, a, b, reason, evidence string) error {
	f.conflictEdges = append(f.conflictEdges, conflictEdge{a, b, reason, evidence})
	return nil
}

func (f *fakeStore) FindContractsWithParty(_ context.Context, party, exclude string) ([]string, error) {
	var out []string
	for _, id := range f.contractsByParty[party] {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateRelatedEdge(_ context.Context, a, b, party string) error {
	f.relatedEdges = append(f.relatedEdges, relatedEdge{a, b, party})
	return nil
}

type fakeEmbedder struct {
	calls []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	return []float32{1, 0, 0}, nil
}

func TestBuildDocument(t *testing.T) {
	store := newFakeStore()
	embedder := &fakeEmbedder{}
	b := New(store, embedder, 0.55)

	result := &extraction.Result{
		Title:        "Master Services Agreement",
		ContractType: "Service Agreement",
		Jurisdiction: "Delaware",
		Parties: []extraction.Party{
			{Name: "Acme Corp", Type: "company", Role: "provider"},
			{Name: "  ", Type: "company"},
		},
		Clauses: []extraction.Clause{
			{Type: "indemnification", Name: "Indemnification", Summary: "Broad indemnity", RiskLevel: "high"},
			{Type: "warranty", Name: "Warranty", RiskLevel: "low"},
		},
		Obligations: []extraction.Obligation{
			{Party: "Acme Corp", Description: "INDEMNIFIES → Zenith Ltd"},
			{Party: "Acme Corp", Description: "   "},
		},
		RiskFlags: []extraction.RiskFlag{
			{Type: "UNCAPPED_INDEMNITY", Severity: "high", Description: "No cap on indemnity"},
		},
	}

	chunks := []string{"chunk zero", "chunk one", "chunk two"}
	embeddings := [][]float32{{1, 0}, {0, 1}, {1, 1}}

	chunkIDs, err := b.BuildDocument(context.Background(), "c1", "msa.pdf", result, chunks, embeddings)
	require.NoError(t, err)

	assert.Equal(t, []string{"c1_chunk_0", "c1_chunk_1", "c1_chunk_2"}, chunkIDs)

	require.NotNil(t, store.contract)
	assert.Equal(t, "Master Services Agreement", store.contract.Title)
	assert.Equal(t, []string{"Delaware"}, store.jurisdictions)

	// blank party name dropped
	require.Len(t, store.parties, 1)
	assert.Equal(t, "Acme Corp", store.parties[0].Name)

	require.Len(t, store.clauses, 2)
	assert.Equal(t, "c1_clause_0", store.clauses[0].ID)
	assert.Equal(t, "c1_clause_1", store.clauses[1].ID)
	// only the clause with a summary gets embedded
	assert.Equal(t, []string{"Broad indemnity"}, embedder.calls)
	assert.NotEmpty(t, store.clauses[0].Embedding)
	assert.Empty(t, store.clauses[1].Embedding)

	// blank obligation description dropped, ordinal id keeps source index
	require.Len(t, store.obligations, 1)
	assert.Equal(t, "c1_obl_0", store.obligations[0].ID)

	require.Len(t, store.riskFlags, 1)
	assert.Equal(t, "c1_risk_0", store.riskFlags[0].ID)

	require.Len(t, store.nextEdges, 2)
	assert.Equal(t, [2]string{"c1_chunk_0", "c1_chunk_1"}, store.nextEdges[0])
	assert.Equal(t, [2]string{"c1_chunk_1", "c1_chunk_2"}, store.nextEdges[1])
}

func TestBuildDocumentDefaults(t *testing.T) {
	store := newFakeStore()
	b := New(store, &fakeEmbedder{}, 0.55)

	_, err := b.BuildDocument(context.Background(), "c1", "unnamed.txt", &extraction.Result{}, nil, nil)
	require.NoError(t, err)

	require.NotNil(t, store.contract)
	assert.Equal(t, "unnamed.txt", store.contract.Title)
	assert.Equal(t, "Unknown", store.contract.ContractType)
	assert.Empty(t, store.jurisdictions)
}

func TestBuildSimilarityEdges(t *testing.T) {
	store := newFakeStore()
	b := New(store, &fakeEmbedder{}, 0.55)

	ids := []string{"c1_chunk_0", "c1_chunk_1", "c1_chunk_2", "c1_chunk_3"}
	embeddings := [][]float32{
		{1, 0, 0}, // identical to chunk 2
		{0, 1, 0},
		{1, 0, 0},
		{0, 0, 0}, // zero vector: similar to nothing
	}

	count, err := b.BuildSimilarityEdges(context.Background(), ids, embeddings)
	require.NoError(t, err)

	require.Equal(t, 1, count)
	assert.Equal(t, "c1_chunk_0", store.simEdges[0].a)
	assert.Equal(t, "c1_chunk_2", store.simEdges[0].b)
	assert.Equal(t, 1.0, store.simEdges[0].score)
}

func TestBuildSimilarityEdgesSkipsAdjacent(t *testing.T) {
	store := newFakeStore()
	b := New(store, &fakeEmbedder{}, 0.55)

	// all identical: only non-adjacent pairs get edges
	ids := []string{"a", "b", "c"}
	embeddings := [][]float32{{1, 1}, {1, 1}, {1, 1}}

	count, err := b.BuildSimilarityEdges(context.Background(), ids, embeddings)
	require.NoError(t, err)

	require.Equal(t, 1, count)
	assert.Equal(t, simEdge{"a", "c", 1.0}, store.simEdges[0])
}

func TestBuildSimilarityEdgesRoundsScore(t *testing.T) {
	store := newFakeStore()
	b := New(store, &fakeEmbedder{}, 0.55)

	ids := []string{"a", "b", "c"}
	embeddings := [][]float32{
		{1, 0},
		{0, 1},
		{1, 1}, // cos(a, c) = 1/sqrt(2) = 0.7071...
	}

	count, err := b.BuildSimilarityEdges(context.Background(), ids, embeddings)
	require.NoError(t, err)
	require.Equal(t, 1, count)
	assert.Equal(t, 0.707, store.simEdges[0].score)
}

func TestBuildSimilarityEdgesTooFewChunks(t *testing.T) {
	store := newFakeStore()
	b := New(store, &fakeEmbedder{}, 0.55)

	count, err := b.BuildSimilarityEdges(context.Background(), []string{"only"}, [][]float32{{1}})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBuildConflictEdges(t *testing.T) {
	store := newFakeStore()
	b := New(store, &fakeEmbedder{}, 0.55)

	clauses := []extraction.Clause{
		{Name: "Indemnification", Type: "indemnification"},
		{Name: "", Type: "cap_on_liability"}, // looked up by type
		{Name: "Warranty", Type: "warranty"},
	}
	relationships := []extraction.Relationship{
		{Subject: "indemnification", Relation: "CONFLICTS_WITH", Object: "CAP_ON_LIABILITY", Evidence: "broad indemnity vs cap"},
		{Subject: "Warranty", Relation: "CONFLICTS_WITH", Object: "Unknown Clause"}, // unresolved endpoint: skipped
		{Subject: "Indemnification", Relation: "PARTY_TO", Object: "Warranty"},      // wrong predicate: skipped
	}

	err := b.BuildConflictEdges(context.Background(), "c1", clauses, relationships)
	require.NoError(t, err)

	require.Len(t, store.conflictEdges, 1)
	edge := store.conflictEdges[0]
	assert.Equal(t, "c1_clause_0", edge.a)
	assert.Equal(t, "c1_clause_1", edge.b)
	assert.Equal(t, "indemnification conflicts with CAP_ON_LIABILITY", edge.reason)
	assert.Equal(t, "broad indemnity vs cap", edge.evidence)
}

func TestLinkRelatedContracts(t *testing.T) {
	store := newFakeStore()
	store.contractsByParty["Acme Corp"] = []string{"c1", "c2"}
	b := New(store, &fakeEmbedder{}, 0.55)

	parties := []extraction.Party{
		{Name: "Acme Corp"},
		{Name: ""},
	}

	err := b.LinkRelatedContracts(context.Background(), "c1", parties)
	require.NoError(t, err)

	require.Len(t, store.relatedEdges, 1)
	assert.Equal(t, relatedEdge{"c1", "c2", "Acme Corp"}, store.relatedEdges[0])
}
