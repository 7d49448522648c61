// Package builder turns an extraction result and its chunked text into the
// knowledge graph: nodes first, then similarity, conflict and
// related-contract edges.
package builder

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/extraction"
	"github.com/legal-rag/backend/internal/graph/neo4j"
	"github.com/legal-rag/backend/pkg/logger"
	"github.com/legal-rag/backend/pkg/utils"
)

// GraphStore is the slice of the graph client the builder writes through.
type GraphStore interface {
	UpsertContract(ctx context.Context, contract *neo4j.Contract) error
	UpsertJurisdiction(ctx context.Context, contractID, name string) error
	UpsertParty(ctx context.Context, contractID string, party neo4j.PartyNode) error
	CreateClause(ctx context.Context, clause neo4j.ClauseNode) error
	CreateObligation(ctx context.Context, obligation neo4j.ObligationNode) error
	CreateRiskFlag(ctx context.Context, flag neo4j.RiskFlagNode) error
	CreateChunk(ctx context.Context, chunk neo4j.ChunkNode) error
	CreateNextEdge(ctx context.Context, prevID, nextID string) error
	CreateSimilarityEdge(ctx context.Context, aID, bID string, score float64) error
	CreateConflictEdge(ctx context.Context, aID, bID, reason, evidence string) error
	FindContractsWithParty(ctx context.Context, partyName, excludeContractID string) ([]string, error)
	CreateRelatedEdge(ctx context.Context, aID, bID, sharedParty string) error
}

// Embedder supplies clause embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Builder struct {
	store               GraphStore
	embedder            Embedder
	similarityThreshold float64
}

func New(store GraphStore, embedder Embedder, similarityThreshold float64) *Builder {
	return &Builder{
		store:               store,
		embedder:            embedder,
		similarityThreshold: similarityThreshold,
	}
}

// BuildDocument writes the contract, its extracted entities and its chunks
// into the graph and returns the chunk ids in document order. Derived node
// ids are ordinal (contract_id + suffix + index) so a rebuild of the same
// contract lands on the same ids.
func (b *Builder) BuildDocument(
	ctx context.Context,
	contractID, filename string,
	result *extraction.Result,
	chunks []string,
	embeddings [][]float32,
) ([]string, error) {
	title := result.Title
	if title == "" {
		title = filename
	}
	contractType := result.ContractType
	if contractType == "" {
		contractType = "Unknown"
	}

	err := b.store.UpsertContract(ctx, &neo4j.Contract{
		ID:            contractID,
		Filename:      filename,
		Title:         title,
		ContractType:  contractType,
		EffectiveDate: result.EffectiveDate,
		ExpiryDate:    result.ExpiryDate,
		Jurisdiction:  result.Jurisdiction,
	})
	if err != nil {
		return nil, err
	}

	if result.Jurisdiction != "" {
		if err := b.store.UpsertJurisdiction(ctx, contractID, result.Jurisdiction); err != nil {
			return nil, err
		}
	}

	for _, party := range result.Parties {
		name := strings.TrimSpace(party.Name)
		if name == "" {
			continue
		}
		err := b.store.UpsertParty(ctx, contractID, neo4j.PartyNode{
			Name: name,
			Type: party.Type,
			Role: party.Role,
		})
		if err != nil {
			return nil, err
		}
	}

	for i, clause := range result.Clauses {
		var clauseEmbedding []float32
		if clause.Summary != "" {
			clauseEmbedding, err = b.embedder.Embed(ctx, clause.Summary)
			if err != nil {
				return nil, fmt.Errorf("failed to embed clause summary: %w", err)
			}
		}

		err := b.store.CreateClause(ctx, neo4j.ClauseNode{
			ID:         fmt.Sprintf("%s_clause_%d", contractID, i),
			ContractID: contractID,
			Type:       clause.Type,
			Name:       clause.Name,
			Summary:    clause.Summary,
			RiskLevel:  clause.RiskLevel,
			Embedding:  clauseEmbedding,
		})
		if err != nil {
			return nil, err
		}
	}

	for i, obligation := range result.Obligations {
		desc := strings.TrimSpace(obligation.Description)
		if desc == "" {
			continue
		}
		err := b.store.CreateObligation(ctx, neo4j.ObligationNode{
			ID:          fmt.Sprintf("%s_obl_%d", contractID, i),
			ContractID:  contractID,
			Party:       obligation.Party,
			Description: desc,
			Deadline:    obligation.Deadline,
			Evidence:    obligation.Evidence,
		})
		if err != nil {
			return nil, err
		}
	}

	for i, flag := range result.RiskFlags {
		desc := strings.TrimSpace(flag.Description)
		if desc == "" {
			continue
		}
		err := b.store.CreateRiskFlag(ctx, neo4j.RiskFlagNode{
			ID:          fmt.Sprintf("%s_risk_%d", contractID, i),
			ContractID:  contractID,
			Type:        flag.Type,
			Severity:    flag.Severity,
			Description: desc,
			ClauseRef:   flag.ClauseRef,
		})
		if err != nil {
			return nil, err
		}
	}

	chunkIDs := make([]string, 0, len(chunks))
	prevID := ""
	for i, chunkText := range chunks {
		chunkID := fmt.Sprintf("%s_chunk_%d", contractID, i)
		chunkIDs = append(chunkIDs, chunkID)

		var embedding []float32
		if i < len(embeddings) {
			embedding = embeddings[i]
		}

		err := b.store.CreateChunk(ctx, neo4j.ChunkNode{
			ID:         chunkID,
			ContractID: contractID,
			Text:       chunkText,
			Index:      i,
			Embedding:  embedding,
		})
		if err != nil {
			return nil, err
		}

		if prevID != "" {
			if err := b.store.CreateNextEdge(ctx, prevID, chunkID); err != nil {
				return nil, err
			}
		}
		prevID = chunkID
	}

	logger.Info("Graph built for contract",
		zap.String("contract_id", contractID),
		zap.Int("parties", len(result.Parties)),
		zap.Int("clauses", len(result.Clauses)),
		zap.Int("chunks", len(chunkIDs)),
	)

	return chunkIDs, nil
}

// BuildConflictEdges materializes CONFLICTS_WITH relationships between the
// clause nodes they name. Clause lookup is by normalized name, falling back
// to the clause type; relationships whose endpoints do not resolve to
// extracted clauses are skipped.
func (b *Builder) BuildConflictEdges(
	ctx context.Context,
	contractID string,
	clauses []extraction.Clause,
	relationships []extraction.Relationship,
) error {
	clauseByName := make(map[string]string)
	for i, clause := range clauses {
		name := clause.Name
		if name == "" {
			name = clause.Type
		}
		if key := utils.NormalizeName(name); key != "" {
			clauseByName[key] = fmt.Sprintf("%s_clause_%d", contractID, i)
		}
	}

	for _, rel := range relationships {
		if strings.ToUpper(rel.Relation) != "CONFLICTS_WITH" {
			continue
		}

		aID := clauseByName[utils.NormalizeName(rel.Subject)]
		bID := clauseByName[utils.NormalizeName(rel.Object)]
		if aID == "" || bID == "" {
			continue
		}

		reason := fmt.Sprintf("%s conflicts with %s", rel.Subject, rel.Object)
		if err := b.store.CreateConflictEdge(ctx, aID, bID, reason, rel.Evidence); err != nil {
			return err
		}
	}

	return nil
}

// LinkRelatedContracts adds RELATED_TO edges to every other contract that
// shares a party with this one.
func (b *Builder) LinkRelatedContracts(ctx context.Context, contractID string, parties []extraction.Party) error {
	for _, party := range parties {
		name := strings.TrimSpace(party.Name)
		if name == "" {
			continue
		}

		relatedIDs, err := b.store.FindContractsWithParty(ctx, name, contractID)
		if err != nil {
			return err
		}

		for _, relatedID := range relatedIDs {
			if err := b.store.CreateRelatedEdge(ctx, contractID, relatedID, name); err != nil {
				return err
			}
		}
	}

	return nil
}
