package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ChunkRow is a chunk returned by a retrieval query, joined with its
// contract title. Context carries the graph evidence that matched it
// (clause type, risk flag, conflicting pair) for source attribution.
type ChunkRow struct {
	ID         string
	Text       string
	ContractID string
	Title      string
	Score      float64
	Context    string
}

func (c *Client) runChunkQuery(ctx context.Context, query string, params map[string]interface{}) ([]ChunkRow, error) {
	var rows []ChunkRow

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, query, params)
		if err != nil {
			return fmt.Errorf("chunk query failed: %w", err)
		}

		rows = rows[:0]
		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("id")
			text, _ := record.Get("text")
			contractID, _ := record.Get("contract_id")
			title, _ := record.Get("title")
			score, _ := record.Get("score")
			context, _ := record.Get("context")

			rows = append(rows, ChunkRow{
				ID:         asString(id),
				Text:       asString(text),
				ContractID: asString(contractID),
				Title:      asString(title),
				Score:      asFloat(score),
				Context:    asString(context),
			})
		}
		return result.Err()
	})

	if err != nil {
		return nil, err
	}
	return rows, nil
}

// VectorSearchChunks queries the chunk_vector cosine index.
func (c *Client) VectorSearchChunks(ctx context.Context, embedding []float32, k int) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		CALL db.index.vector.queryNodes('chunk_vector', $k, $emb)
		YIELD node AS chunk, score
		MATCH (c:Contract)-[:HAS_CHUNK]->(chunk)
		RETURN chunk.id AS id, chunk.text AS text,
		       chunk.contract_id AS contract_id,
		       c.title AS title, score, '' AS context
		ORDER BY score DESC
	`, map[string]interface{}{
		"k":   k,
		"emb": floatSlice(embedding),
	})
}

// ClauseChunks returns chunks from contracts containing a clause of any of
// the given types.
func (c *Client) ClauseChunks(ctx context.Context, clauseTypes []string, limit int) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		MATCH (cl:Clause)
		WHERE cl.type IN $types
		MATCH (c:Contract)-[:CONTAINS]->(cl)
		MATCH (c)-[:HAS_CHUNK]->(chunk:Chunk)
		RETURN chunk.id AS id, chunk.text AS text,
		       chunk.contract_id AS contract_id,
		       c.title AS title,
		       0.92 AS score,
		       'clause:' + cl.type + ' risk:' + coalesce(cl.risk_level, '') AS context
		LIMIT $limit
	`, map[string]interface{}{
		"types": stringSlice(clauseTypes),
		"limit": limit,
	})
}

// ComparativeChunks returns chunks for a single clause type, letting the
// caller gather the same clause across every contract that has it.
func (c *Client) ComparativeChunks(ctx context.Context, clauseType string, limit int) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		MATCH (cl:Clause {type: $type})
		MATCH (c:Contract)-[:CONTAINS]->(cl)
		MATCH (c)-[:HAS_CHUNK]->(chunk:Chunk)
		RETURN chunk.id AS id, chunk.text AS text,
		       chunk.contract_id AS contract_id,
		       c.title AS title,
		       0.95 AS score,
		       'comparative:' + $type AS context
		LIMIT $limit
	`, map[string]interface{}{
		"type":  clauseType,
		"limit": limit,
	})
}

// SimilarNeighbors walks SIMILAR_TO edges out of the seed chunks.
func (c *Client) SimilarNeighbors(ctx context.Context, seedIDs []string, limit int) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		MATCH (seed:Chunk) WHERE seed.id IN $seed_ids
		MATCH (seed)-[r:SIMILAR_TO]-(neighbor:Chunk)
		WHERE NOT neighbor.id IN $seed_ids
		MATCH (c:Contract)-[:HAS_CHUNK]->(neighbor)
		RETURN neighbor.id AS id, neighbor.text AS text,
		       neighbor.contract_id AS contract_id,
		       c.title AS title, r.score AS score, '' AS context
		ORDER BY score DESC LIMIT $limit
	`, map[string]interface{}{
		"seed_ids": stringSlice(seedIDs),
		"limit":    limit,
	})
}

// SequentialNeighbors returns the chunks immediately before and after the
// seed chunks in document order.
func (c *Client) SequentialNeighbors(ctx context.Context, seedIDs []string) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		MATCH (seed:Chunk) WHERE seed.id IN $seed_ids
		MATCH (neighbor:Chunk)
		WHERE ((seed)-[:NEXT]->(neighbor) OR (neighbor)-[:NEXT]->(seed))
		  AND NOT neighbor.id IN $seed_ids
		MATCH (c:Contract)-[:HAS_CHUNK]->(neighbor)
		RETURN DISTINCT neighbor.id AS id, neighbor.text AS text,
		       neighbor.contract_id AS contract_id,
		       c.title AS title, 0.6 AS score, '' AS context
	`, map[string]interface{}{
		"seed_ids": stringSlice(seedIDs),
	})
}

// RiskFlagChunks returns chunks from contracts carrying high or medium
// severity risk flags, scored by severity.
func (c *Client) RiskFlagChunks(ctx context.Context, limit int) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		MATCH (c:Contract)-[:HAS_RISK]->(r:RiskFlag)
		WHERE r.severity IN ['high', 'medium']
		MATCH (c)-[:HAS_CHUNK]->(chunk:Chunk)
		RETURN chunk.id AS id, chunk.text AS text,
		       chunk.contract_id AS contract_id,
		       c.title AS title,
		       CASE r.severity WHEN 'high' THEN 0.95 ELSE 0.8 END AS score,
		       r.type + ': ' + r.description AS context
		LIMIT $limit
	`, map[string]interface{}{"limit": limit})
}

// ConflictChunks returns chunks from contracts holding CONFLICTS_WITH
// clause pairs.
func (c *Client) ConflictChunks(ctx context.Context, limit int) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		MATCH (a:Clause)-[r:CONFLICTS_WITH]->(b:Clause)
		MATCH (c:Contract)-[:CONTAINS]->(a)
		MATCH (c)-[:HAS_CHUNK]->(chunk:Chunk)
		RETURN chunk.id AS id, chunk.text AS text,
		       chunk.contract_id AS contract_id,
		       c.title AS title,
		       0.95 AS score,
		       a.type + ' CONFLICTS_WITH ' + b.type AS context
		LIMIT $limit
	`, map[string]interface{}{"limit": limit})
}

func (c *Client) PartyChunks(ctx context.Context, limit int) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		MATCH (p:Party)-[:PARTY_TO]->(c:Contract)
		MATCH (c)-[:HAS_CHUNK]->(chunk:Chunk)
		RETURN chunk.id AS id, chunk.text AS text,
		       chunk.contract_id AS contract_id,
		       c.title AS title,
		       0.85 AS score,
		       'Party: ' + p.name AS context
		LIMIT $limit
	`, map[string]interface{}{"limit": limit})
}

func (c *Client) ObligationChunks(ctx context.Context, limit int) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		MATCH (c:Contract)-[:IMPOSES]->(o:Obligation)
		MATCH (c)-[:HAS_CHUNK]->(chunk:Chunk)
		RETURN chunk.id AS id, chunk.text AS text,
		       chunk.contract_id AS contract_id,
		       c.title AS title,
		       0.85 AS score,
		       o.party + ': ' + o.description AS context
		LIMIT $limit
	`, map[string]interface{}{"limit": limit})
}

// PostTerminationChunks covers questions about duties that survive
// termination, joining termination, payment and royalty clauses.
func (c *Client) PostTerminationChunks(ctx context.Context, limit int) ([]ChunkRow, error) {
	return c.runChunkQuery(ctx, `
		MATCH (cl:Clause)
		WHERE cl.type IN ['termination', 'price_or_payment_terms', 'royalty']
		MATCH (c:Contract)-[:CONTAINS]->(cl)
		MATCH (c)-[:HAS_CHUNK]->(chunk:Chunk)
		RETURN chunk.id AS id, chunk.text AS text,
		       chunk.contract_id AS contract_id,
		       c.title AS title,
		       0.9 AS score,
		       'post-termination: ' + cl.type AS context
		LIMIT $limit
	`, map[string]interface{}{"limit": limit})
}

// GraphNode and GraphEdge feed the frontend graph visualization.
type GraphNode struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Label     string `json:"label"`
	RiskLevel string `json:"risk_level,omitempty"`
	Severity  string `json:"severity,omitempty"`
}

type GraphEdge struct {
	Source   int64  `json:"source"`
	Target   int64  `json:"target"`
	Relation string `json:"relation"`
}

// EntitySubgraph returns a bounded view of the entity-level graph, chunks
// excluded.
func (c *Client) EntitySubgraph(ctx context.Context, limit int) ([]GraphNode, []GraphEdge, error) {
	var nodes []GraphNode
	var edges []GraphEdge

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, `
			MATCH (n)
			WHERE n:Contract OR n:Party OR n:Clause
			   OR n:Jurisdiction OR n:RiskFlag
			RETURN id(n) AS id, labels(n)[0] AS type,
			       COALESCE(n.name, n.title, n.type, n.id) AS label,
			       n.risk_level AS risk_level,
			       n.severity AS severity
			LIMIT $limit
		`, map[string]interface{}{"limit": limit})
		if err != nil {
			return fmt.Errorf("failed to fetch graph nodes: %w", err)
		}

		nodes = nodes[:0]
		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("id")
			nodeType, _ := record.Get("type")
			label, _ := record.Get("label")
			riskLevel, _ := record.Get("risk_level")
			severity, _ := record.Get("severity")

			nodes = append(nodes, GraphNode{
				ID:        asInt(id),
				Type:      asString(nodeType),
				Label:     asString(label),
				RiskLevel: asString(riskLevel),
				Severity:  asString(severity),
			})
		}
		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating graph nodes: %w", err)
		}

		result, err = session.Run(ctx, `
			MATCH (a)-[r]->(b)
			WHERE (a:Contract OR a:Party OR a:Clause OR a:Jurisdiction)
			  AND (b:Contract OR b:Party OR b:Clause OR b:Jurisdiction OR b:RiskFlag)
			  AND type(r) IN [
			    'HAS_PARTY', 'PARTY_TO', 'CONTAINS', 'GOVERNED_BY',
			    'CONFLICTS_WITH', 'RELATED_TO', 'HAS_RISK', 'IMPOSES'
			  ]
			RETURN id(a) AS source, id(b) AS target, type(r) AS relation
			LIMIT $limit
		`, map[string]interface{}{"limit": limit * 2})
		if err != nil {
			return fmt.Errorf("failed to fetch graph edges: %w", err)
		}

		edges = edges[:0]
		for result.Next(ctx) {
			record := result.Record()
			source, _ := record.Get("source")
			target, _ := record.Get("target")
			relation, _ := record.Get("relation")

			edges = append(edges, GraphEdge{
				Source:   asInt(source),
				Target:   asInt(target),
				Relation: asString(relation),
			})
		}
		return result.Err()
	})

	if err != nil {
		return nil, nil, err
	}
	return nodes, edges, nil
}

func stringSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
