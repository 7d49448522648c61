package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/graph/neo4j"
	"github.com/legal-rag/backend/internal/metrics"
	"github.com/legal-rag/backend/internal/storage/sqlite"
	"github.com/legal-rag/backend/pkg/logger"
)

type GraphHandler struct {
	graph *neo4j.Client
	db    *sqlite.Client
}

func NewGraphHandler(graph *neo4j.Client, db *sqlite.Client) *GraphHandler {
	return &GraphHandler{graph: graph, db: db}
}

// GetEntities returns a bounded subgraph for visualization.
func (h *GraphHandler) GetEntities(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 120)
	if limit <= 0 || limit > 500 {
		limit = 120
	}

	nodes, edges, err := h.graph.EntitySubgraph(c.Context(), limit)
	if err != nil {
		logger.Error("Failed to read entity subgraph", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read graph",
		})
	}

	if nodes == nil {
		nodes = []neo4j.GraphNode{}
	}
	if edges == nil {
		edges = []neo4j.GraphEdge{}
	}
	return c.JSON(fiber.Map{
		"nodes": nodes,
		"edges": edges,
	})
}

// GetStats reports node and relationship counts from the graph alongside the
// relational totals.
func (h *GraphHandler) GetStats(c *fiber.Ctx) error {
	nodeCounts, relCounts, err := h.graph.Stats(c.Context())
	if err != nil {
		logger.Error("Failed to read graph stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read graph stats",
		})
	}

	for label, count := range nodeCounts {
		metrics.GraphNodesTotal.WithLabelValues(label).Set(float64(count))
	}
	for relType, count := range relCounts {
		metrics.GraphEdgesTotal.WithLabelValues(relType).Set(float64(count))
	}

	contracts, err := h.db.CountContracts()
	if err != nil {
		logger.Warn("Failed to count contracts", zap.Error(err))
	}
	queries, err := h.db.CountQueries()
	if err != nil {
		logger.Warn("Failed to count queries", zap.Error(err))
	}
	flags, err := h.db.CountRiskFlags()
	if err != nil {
		logger.Warn("Failed to count risk flags", zap.Error(err))
	}

	return c.JSON(fiber.Map{
		"nodes":         nodeCounts,
		"relationships": relCounts,
		"contracts":     contracts,
		"queries":       queries,
		"risk_flags":    flags,
	})
}

func (h *GraphHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "healthy",
	})
}
