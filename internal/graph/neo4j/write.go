package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/legal-rag/backend/pkg/logger"
)

type Contract struct {
	ID            string
	Filename      string
	Title         string
	ContractType  string
	EffectiveDate string
	ExpiryDate    string
	Jurisdiction  string
}

type PartyNode struct {
	Name string
	Type string
	Role string
}

type ClauseNode struct {
	ID         string
	ContractID string
	Type       string
	Name       string
	Summary    string
	RiskLevel  string
	Embedding  []float32
}

type ObligationNode struct {
	ID          string
	ContractID  string
	Party       string
	Description string
	Deadline    string
	Evidence    string
}

type RiskFlagNode struct {
	ID          string
	ContractID  string
	Type        string
	Severity    string
	Description string
	ClauseRef   string
}

type ChunkNode struct {
	ID         string
	ContractID string
	Text       string
	Index      int
	Embedding  []float32
}

func (c *Client) UpsertContract(ctx context.Context, contract *Contract) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MERGE (c:Contract {id: $id})
			SET c.filename       = $filename,
			    c.title          = $title,
			    c.contract_type  = $type,
			    c.effective_date = $eff_date,
			    c.expiry_date    = $exp_date,
			    c.jurisdiction   = $jurisdiction,
			    c.created        = datetime()
		`, map[string]interface{}{
			"id":           contract.ID,
			"filename":     contract.Filename,
			"title":        contract.Title,
			"type":         contract.ContractType,
			"eff_date":     contract.EffectiveDate,
			"exp_date":     contract.ExpiryDate,
			"jurisdiction": contract.Jurisdiction,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert contract: %w", err)
		}
		return nil
	})
}

func (c *Client) UpsertJurisdiction(ctx context.Context, contractID, name string) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MERGE (j:Jurisdiction {name: $name})
			WITH j
			MATCH (c:Contract {id: $cid})
			MERGE (c)-[:GOVERNED_BY]->(j)
		`, map[string]interface{}{
			"name": name,
			"cid":  contractID,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert jurisdiction: %w", err)
		}
		return nil
	})
}

// UpsertParty merges on the party name so the same company across contracts
// resolves to one node, and writes both edge directions.
func (c *Client) UpsertParty(ctx context.Context, contractID string, party PartyNode) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MERGE (p:Party {name: $name})
			SET p.type = $type
			WITH p
			MATCH (c:Contract {id: $cid})
			MERGE (c)-[:HAS_PARTY {role: $role}]->(p)
			MERGE (p)-[:PARTY_TO]->(c)
		`, map[string]interface{}{
			"name": party.Name,
			"type": party.Type,
			"role": party.Role,
			"cid":  contractID,
		})
		if err != nil {
			return fmt.Errorf("failed to upsert party: %w", err)
		}
		return nil
	})
}

func (c *Client) CreateClause(ctx context.Context, clause ClauseNode) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			CREATE (cl:Clause {
				id:          $id,
				type:        $type,
				name:        $name,
				summary:     $summary,
				risk_level:  $risk,
				embedding:   $emb,
				contract_id: $cid
			})
			WITH cl
			MATCH (c:Contract {id: $cid})
			MERGE (c)-[:CONTAINS]->(cl)
		`, map[string]interface{}{
			"id":      clause.ID,
			"type":    clause.Type,
			"name":    clause.Name,
			"summary": clause.Summary,
			"risk":    clause.RiskLevel,
			"emb":     floatSlice(clause.Embedding),
			"cid":     clause.ContractID,
		})
		if err != nil {
			return fmt.Errorf("failed to create clause: %w", err)
		}
		return nil
	})
}

func (c *Client) CreateObligation(ctx context.Context, obligation ObligationNode) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			CREATE (o:Obligation {
				id:          $id,
				description: $desc,
				party:       $party,
				deadline:    $deadline,
				evidence:    $evidence,
				contract_id: $cid
			})
			WITH o
			MATCH (c:Contract {id: $cid})
			MERGE (c)-[:IMPOSES]->(o)
		`, map[string]interface{}{
			"id":       obligation.ID,
			"desc":     obligation.Description,
			"party":    obligation.Party,
			"deadline": obligation.Deadline,
			"evidence": obligation.Evidence,
			"cid":      obligation.ContractID,
		})
		if err != nil {
			return fmt.Errorf("failed to create obligation: %w", err)
		}
		return nil
	})
}

func (c *Client) CreateRiskFlag(ctx context.Context, flag RiskFlagNode) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			CREATE (r:RiskFlag {
				id:          $id,
				type:        $type,
				severity:    $severity,
				description: $desc,
				clause_ref:  $clause_ref,
				contract_id: $cid
			})
			WITH r
			MATCH (c:Contract {id: $cid})
			MERGE (c)-[:HAS_RISK]->(r)
		`, map[string]interface{}{
			"id":         flag.ID,
			"type":       flag.Type,
			"severity":   flag.Severity,
			"desc":       flag.Description,
			"clause_ref": flag.ClauseRef,
			"cid":        flag.ContractID,
		})
		if err != nil {
			return fmt.Errorf("failed to create risk flag: %w", err)
		}
		return nil
	})
}

func (c *Client) CreateChunk(ctx context.Context, chunk ChunkNode) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			CREATE (ch:Chunk {
				id:          $id,
				text:        $text,
				index:       $idx,
				contract_id: $cid,
				embedding:   $emb
			})
			WITH ch
			MATCH (c:Contract {id: $cid})
			MERGE (c)-[:HAS_CHUNK]->(ch)
		`, map[string]interface{}{
			"id":   chunk.ID,
			"text": chunk.Text,
			"idx":  chunk.Index,
			"cid":  chunk.ContractID,
			"emb":  floatSlice(chunk.Embedding),
		})
		if err != nil {
			return fmt.Errorf("failed to create chunk: %w", err)
		}
		return nil
	})
}

func (c *Client) CreateNextEdge(ctx context.Context, prevID, nextID string) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MATCH (a:Chunk {id: $a}), (b:Chunk {id: $b})
			MERGE (a)-[:NEXT]->(b)
		`, map[string]interface{}{"a": prevID, "b": nextID})
		if err != nil {
			return fmt.Errorf("failed to create next edge: %w", err)
		}
		return nil
	})
}

// CreateSimilarityEdge writes an undirected SIMILAR_TO edge so a pair is
// stored once regardless of orientation.
func (c *Client) CreateSimilarityEdge(ctx context.Context, aID, bID string, score float64) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MATCH (a:Chunk {id: $a}), (b:Chunk {id: $b})
			MERGE (a)-[r:SIMILAR_TO]-(b)
			SET r.score = $score
		`, map[string]interface{}{"a": aID, "b": bID, "score": score})
		if err != nil {
			return fmt.Errorf("failed to create similarity edge: %w", err)
		}
		return nil
	})
}

func (c *Client) CreateConflictEdge(ctx context.Context, aID, bID, reason, evidence string) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MATCH (a:Clause {id: $a}), (b:Clause {id: $b})
			MERGE (a)-[r:CONFLICTS_WITH]->(b)
			SET r.reason   = $reason,
			    r.evidence = $evidence
		`, map[string]interface{}{
			"a":        aID,
			"b":        bID,
			"reason":   reason,
			"evidence": evidence,
		})
		if err != nil {
			return fmt.Errorf("failed to create conflict edge: %w", err)
		}
		return nil
	})
}

// FindContractsWithParty returns the ids of other contracts the named party
// has signed.
func (c *Client) FindContractsWithParty(ctx context.Context, partyName, excludeContractID string) ([]string, error) {
	var ids []string

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, `
			MATCH (p:Party {name: $name})-[:PARTY_TO]->(c:Contract)
			WHERE c.id <> $cid
			RETURN c.id AS related_id
		`, map[string]interface{}{"name": partyName, "cid": excludeContractID})
		if err != nil {
			return fmt.Errorf("failed to find related contracts: %w", err)
		}

		ids = ids[:0]
		for result.Next(ctx) {
			record := result.Record()
			id, _ := record.Get("related_id")
			if s := asString(id); s != "" {
				ids = append(ids, s)
			}
		}
		return result.Err()
	})

	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *Client) CreateRelatedEdge(ctx context.Context, aID, bID, sharedParty string) error {
	return c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MATCH (a:Contract {id: $a}), (b:Contract {id: $b})
			MERGE (a)-[r:RELATED_TO]->(b)
			SET r.shared_party = $party
		`, map[string]interface{}{"a": aID, "b": bID, "party": sharedParty})
		if err != nil {
			return fmt.Errorf("failed to create related edge: %w", err)
		}
		return nil
	})
}

// DeleteContractContent removes the derived nodes of a contract (chunks,
// clauses, obligations, risk flags) but keeps the Contract node itself.
// Run before rebuilding the graph on re-ingestion so ordinal ids do not
// collide with stale nodes.
func (c *Client) DeleteContractContent(ctx context.Context, contractID string) error {
	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MATCH (n)
			WHERE n.contract_id = $cid
			  AND (n:Chunk OR n:Clause OR n:Obligation OR n:RiskFlag)
			DETACH DELETE n
		`, map[string]interface{}{"cid": contractID})
		if err != nil {
			return fmt.Errorf("failed to delete contract content: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("Contract content cleared", zap.String("contract_id", contractID))
	return nil
}

// DeleteContract removes the contract and everything derived from it, then
// cleans up parties and jurisdictions no longer attached to any contract.
func (c *Client) DeleteContract(ctx context.Context, contractID string) error {
	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		_, err := session.Run(ctx, `
			MATCH (c:Contract {id: $id})
			OPTIONAL MATCH (c)-[:HAS_CHUNK]->(ch:Chunk)
			OPTIONAL MATCH (c)-[:CONTAINS]->(cl:Clause)
			OPTIONAL MATCH (c)-[:IMPOSES]->(o:Obligation)
			OPTIONAL MATCH (c)-[:HAS_RISK]->(r:RiskFlag)
			DETACH DELETE c, ch, cl, o, r
		`, map[string]interface{}{"id": contractID})
		if err != nil {
			return fmt.Errorf("failed to delete contract: %w", err)
		}

		_, err = session.Run(ctx, `
			MATCH (p:Party)
			WHERE NOT (p)-[:PARTY_TO]->(:Contract)
			DETACH DELETE p
		`, nil)
		if err != nil {
			return fmt.Errorf("failed to clean orphaned parties: %w", err)
		}

		_, err = session.Run(ctx, `
			MATCH (j:Jurisdiction)
			WHERE NOT (:Contract)-[:GOVERNED_BY]->(j)
			DETACH DELETE j
		`, nil)
		if err != nil {
			return fmt.Errorf("failed to clean orphaned jurisdictions: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info("Contract deleted from graph", zap.String("contract_id", contractID))
	return nil
}

// floatSlice converts embeddings to the []interface{} the bolt protocol
// expects for list properties.
func floatSlice(embedding []float32) []interface{} {
	out := make([]interface{}, len(embedding))
	for i, v := range embedding {
		out[i] = float64(v)
	}
	return out
}
