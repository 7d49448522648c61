// Package neo4j holds the legal knowledge graph.
//
// Nodes:
//
//	Contract     - the agreement document
//	Party        - companies or individuals in contracts
//	Clause       - individual contract clauses
//	Obligation   - duties imposed by clauses
//	Jurisdiction - governing law location
//	RiskFlag     - detected risky clauses
//	Chunk        - text chunks for vector search
//
// Relationships:
//
//	(Contract)-[:HAS_PARTY {role}]->(Party)
//	(Party)-[:PARTY_TO]->(Contract)
//	(Contract)-[:CONTAINS]->(Clause)
//	(Contract)-[:GOVERNED_BY]->(Jurisdiction)
//	(Contract)-[:IMPOSES]->(Obligation)
//	(Contract)-[:HAS_RISK]->(RiskFlag)
//	(Contract)-[:HAS_CHUNK]->(Chunk)
//	(Contract)-[:RELATED_TO {shared_party}]->(Contract)
//	(Clause)-[:CONFLICTS_WITH {reason, evidence}]->(Clause)
//	(Chunk)-[:NEXT]->(Chunk)
//	(Chunk)-[:SIMILAR_TO {score}]-(Chunk)
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/legal-rag/backend/pkg/circuitbreaker"
	"github.com/legal-rag/backend/pkg/config"
	"github.com/legal-rag/backend/pkg/logger"
	"github.com/legal-rag/backend/pkg/retry"
)

type Client struct {
	driver       neo4j.DriverWithContext
	database     string
	embeddingDim int
	cb           *circuitbreaker.CircuitBreaker
	retryConfig  retry.Config
}

func NewClient(cfg config.Neo4jConfig, embeddingDim int) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	err = driver.VerifyConnectivity(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", cfg.URI))

	return &Client{
		driver:       driver,
		database:     cfg.Database,
		embeddingDim: embeddingDim,
		cb:           cb,
		retryConfig:  retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) session(ctx context.Context) neo4j.SessionWithContext {
	return c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.session(ctx)
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// SetupSchema creates uniqueness constraints and the cosine vector indexes.
// Everything is idempotent; vector index creation failures are logged and
// ignored so the server still starts against a Neo4j without the vector
// plugin.
func (c *Client) SetupSchema(ctx context.Context) error {
	constraints := []string{
		"CREATE CONSTRAINT contract_id IF NOT EXISTS FOR (c:Contract) REQUIRE c.id IS UNIQUE",
		"CREATE CONSTRAINT party_name IF NOT EXISTS FOR (p:Party) REQUIRE p.name IS UNIQUE",
		"CREATE CONSTRAINT clause_id IF NOT EXISTS FOR (c:Clause) REQUIRE c.id IS UNIQUE",
		"CREATE CONSTRAINT chunk_id IF NOT EXISTS FOR (c:Chunk) REQUIRE c.id IS UNIQUE",
		"CREATE CONSTRAINT jurisdiction_name IF NOT EXISTS FOR (j:Jurisdiction) REQUIRE j.name IS UNIQUE",
	}

	session := c.session(ctx)
	defer session.Close(ctx)

	for _, constraint := range constraints {
		if _, err := session.Run(ctx, constraint, nil); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}

	vectorIndexes := []struct {
		name     string
		label    string
		property string
	}{
		{"chunk_vector", "Chunk", "embedding"},
		{"clause_vector", "Clause", "embedding"},
	}

	for _, idx := range vectorIndexes {
		query := fmt.Sprintf(
			"CALL db.index.vector.createNodeIndex('%s', '%s', '%s', %d, 'cosine')",
			idx.name, idx.label, idx.property, c.embeddingDim,
		)
		if _, err := session.Run(ctx, query, nil); err != nil {
			logger.Debug("Vector index not created (may already exist)",
				zap.String("index", idx.name),
				zap.Error(err),
			)
		}
	}

	logger.Info("Legal graph schema ready")
	return nil
}

// Stats returns node counts by label and relationship counts by type.
func (c *Client) Stats(ctx context.Context) (map[string]int64, map[string]int64, error) {
	nodes := make(map[string]int64)
	rels := make(map[string]int64)

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, `
			MATCH (n) RETURN labels(n)[0] AS label, count(n) AS count
			ORDER BY count DESC
		`, nil)
		if err != nil {
			return fmt.Errorf("failed to count nodes: %w", err)
		}
		for result.Next(ctx) {
			record := result.Record()
			label, _ := record.Get("label")
			count, _ := record.Get("count")
			if name := asString(label); name != "" {
				nodes[name] = asInt(count)
			}
		}
		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating node counts: %w", err)
		}

		result, err = session.Run(ctx, `
			MATCH ()-[r]->() RETURN type(r) AS type, count(r) AS count
			ORDER BY count DESC
		`, nil)
		if err != nil {
			return fmt.Errorf("failed to count relationships: %w", err)
		}
		for result.Next(ctx) {
			record := result.Record()
			relType, _ := record.Get("type")
			count, _ := record.Get("count")
			if name := asString(relType); name != "" {
				rels[name] = asInt(count)
			}
		}
		return result.Err()
	})

	if err != nil {
		return nil, nil, err
	}

	return nodes, rels, nil
}

// asString tolerates null columns coming back from optional matches.
func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	default:
		return 0
	}
}

func asInt(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}
