package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/cache/redis"
	"github.com/legal-rag/backend/internal/llm"
	"github.com/legal-rag/backend/internal/metrics"
	"github.com/legal-rag/backend/internal/retrieval"
	"github.com/legal-rag/backend/internal/storage/models"
	"github.com/legal-rag/backend/internal/storage/sqlite"
	"github.com/legal-rag/backend/pkg/logger"
	"github.com/legal-rag/backend/pkg/utils"
)

const (
	maxSources     = 6
	sourcePreview  = 300
	answerCacheTTL = time.Hour
)

// Source is one passage cited in an answer.
type Source struct {
	ChunkID         string  `json:"chunk_id"`
	ContractID      string  `json:"contract_id"`
	ContractTitle   string  `json:"contract_title"`
	Text            string  `json:"text"`
	Score           float64 `json:"score"`
	RetrievalMethod string  `json:"retrieval_method"`
	ClauseContext   string  `json:"clause_context,omitempty"`
}

// QueryResponse is the answer payload, also the unit of answer caching.
type QueryResponse struct {
	Answer          string           `json:"answer"`
	QueryType       string           `json:"query_type"`
	Sources         []Source         `json:"sources"`
	ChunkCount      int              `json:"chunk_count"`
	GraphOnlyChunks int              `json:"graph_only_chunks"`
	Retrieval       *retrieval.Trace `json:"retrieval"`
	LatencyMs       int64            `json:"latency_ms"`
	Cached          bool             `json:"cached"`
}

type QueryHandler struct {
	llm       *llm.Client
	retriever *retrieval.Retriever
	db        *sqlite.Client
	cache     *redis.Client
}

// NewQueryHandler wires the question answering endpoint. cache may be nil
// when Redis is disabled.
func NewQueryHandler(llmClient *llm.Client, retriever *retrieval.Retriever, db *sqlite.Client, cache *redis.Client) *QueryHandler {
	return &QueryHandler{
		llm:       llmClient,
		retriever: retriever,
		db:        db,
		cache:     cache,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	question, _ := c.Locals("question").(string)
	if question == "" {
		var req struct {
			Question string `json:"question"`
		}
		if err := c.BodyParser(&req); err != nil || req.Question == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Question is required",
			})
		}
		question = req.Question
	}

	queryHash := utils.HashString(question)
	if h.cache != nil {
		var cached QueryResponse
		found, err := h.cache.GetAnswer(c.Context(), queryHash, &cached)
		if err != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(err))
		} else if found {
			metrics.CacheHits.WithLabelValues("answer").Inc()
			cached.Cached = true
			return c.JSON(cached)
		}
		metrics.CacheMisses.WithLabelValues("answer").Inc()
	}

	start := time.Now()

	queryType := h.llm.ClassifyQuery(c.Context(), question)
	chunks, trace := h.retriever.Retrieve(c.Context(), question, queryType)
	metrics.RetrievedChunks.WithLabelValues("fused").Observe(float64(len(chunks)))

	var answer string
	if len(chunks) == 0 {
		answer = "No relevant contract passages found."
	} else {
		passages := make([]string, 0, min(len(chunks), maxSources))
		for _, chunk := range chunks[:min(len(chunks), maxSources)] {
			passages = append(passages, chunk.Text)
		}

		var err error
		answer, err = h.llm.GenerateAnswer(c.Context(), question, passages)
		if err != nil {
			logger.Error("Answer generation failed", zap.Error(err))
			metrics.QueryTotal.WithLabelValues("error").Inc()
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to generate answer",
			})
		}
	}

	graphOnly := 0
	for _, chunk := range chunks {
		if chunk.RetrievalMethod != "vector" {
			graphOnly++
		}
	}

	sources := make([]Source, 0, min(len(chunks), maxSources))
	for _, chunk := range chunks[:min(len(chunks), maxSources)] {
		text := chunk.Text
		if len(text) > sourcePreview {
			text = text[:sourcePreview] + "..."
		}
		sources = append(sources, Source{
			ChunkID:         chunk.ChunkID,
			ContractID:      chunk.ContractID,
			ContractTitle:   chunk.ContractTitle,
			Text:            text,
			Score:           chunk.Score,
			RetrievalMethod: chunk.RetrievalMethod,
			ClauseContext:   chunk.ClauseContext,
		})
	}

	latency := time.Since(start)
	response := QueryResponse{
		Answer:          answer,
		QueryType:       queryType,
		Sources:         sources,
		ChunkCount:      len(chunks),
		GraphOnlyChunks: graphOnly,
		Retrieval:       trace,
		LatencyMs:       latency.Milliseconds(),
	}

	if _, err := h.db.SaveQuery(&models.QueryRecord{
		Question:   question,
		Answer:     answer,
		QueryType:  queryType,
		ChunkCount: len(chunks),
		GraphOnly:  graphOnly,
		LatencyMs:  latency.Milliseconds(),
	}); err != nil {
		logger.Warn("Failed to save query history", zap.Error(err))
	}

	if h.cache != nil {
		if err := h.cache.SetAnswer(c.Context(), queryHash, response, answerCacheTTL); err != nil {
			logger.Warn("Answer cache write failed", zap.Error(err))
		}
	}

	metrics.QueryDuration.WithLabelValues(queryType).Observe(latency.Seconds())
	metrics.QueryTotal.WithLabelValues("ok").Inc()

	logger.Info("Query answered",
		zap.String("query_type", queryType),
		zap.Int("chunks", len(chunks)),
		zap.Int("graph_only", graphOnly),
		zap.Duration("latency", latency),
	)

	return c.JSON(response)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)

	history, err := h.db.GetHistory(limit)
	if err != nil {
		logger.Error("Failed to get query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get query history",
		})
	}

	if history == nil {
		history = []models.QueryRecord{}
	}
	return c.JSON(fiber.Map{
		"history": history,
		"total":   len(history),
	})
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
