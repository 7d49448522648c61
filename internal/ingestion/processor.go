// Package ingestion runs the contract processing pipeline: extract text,
// chunk, embed, extract legal entities, build the knowledge graph, then
// persist the bookkeeping rows.
package ingestion

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/extraction"
	"github.com/legal-rag/backend/internal/metrics"
	"github.com/legal-rag/backend/internal/segmenter"
	"github.com/legal-rag/backend/internal/storage/models"
	"github.com/legal-rag/backend/internal/storage/sqlite"
	"github.com/legal-rag/backend/internal/textextract"
	"github.com/legal-rag/backend/pkg/logger"
)

// ProgressFunc receives pipeline checkpoints for live status updates.
type ProgressFunc func(contractID, stage string, percent int)

// MetaStore is the relational bookkeeping the pipeline writes through.
type MetaStore interface {
	UpdateContractStatus(id, status, errorMsg string) error
	UpdateContractMeta(id string, meta sqlite.ContractMeta) error
	LogStage(contractID, stage, status, message string, durationMs int64) error
	SaveClauses(contractID string, clauses []models.ExtractedClause) error
	SaveRiskFlags(contractID string, flags []models.RiskFlag) error
}

// GraphBuilder writes the knowledge graph for one contract.
type GraphBuilder interface {
	BuildDocument(ctx context.Context, contractID, filename string, result *extraction.Result, chunks []string, embeddings [][]float32) ([]string, error)
	BuildSimilarityEdges(ctx context.Context, chunkIDs []string, embeddings [][]float32) (int, error)
	BuildConflictEdges(ctx context.Context, contractID string, clauses []extraction.Clause, relationships []extraction.Relationship) error
	LinkRelatedContracts(ctx context.Context, contractID string, parties []extraction.Party) error
}

// GraphCleaner tears down a contract's derived nodes before a rebuild, so
// re-ingesting the same contract never duplicates ordinal ids.
type GraphCleaner interface {
	DeleteContractContent(ctx context.Context, contractID string) error
}

// Extractor runs the LLM entity extraction pass.
type Extractor interface {
	ExtractContract(ctx context.Context, text string) (*extraction.Result, error)
}

// BatchEmbedder embeds chunk texts in document order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// AnswerCache invalidates cached answers once the corpus changes.
type AnswerCache interface {
	InvalidateAnswers(ctx context.Context) error
}

// Summary reports what one ingestion produced.
type Summary struct {
	ContractID    string   `json:"contract_id"`
	Title         string   `json:"title"`
	ContractType  string   `json:"contract_type"`
	Parties       []string `json:"parties"`
	Jurisdiction  string   `json:"jurisdiction"`
	EffectiveDate string   `json:"effective_date"`
	Chunks        int      `json:"chunks"`
	Clauses       int      `json:"clauses"`
	RiskFlags     int      `json:"risk_flags"`
	SimEdges      int      `json:"similarity_edges"`
	RiskScore     float64  `json:"risk_score"`
}

type Processor struct {
	store     MetaStore
	graph     GraphCleaner
	builder   GraphBuilder
	extractor Extractor
	embedder  BatchEmbedder
	cache     AnswerCache
	segmenter *segmenter.Segmenter
}

// NewProcessor wires the pipeline. cache may be nil when Redis is disabled.
func NewProcessor(
	store MetaStore,
	graph GraphCleaner,
	builder GraphBuilder,
	extractor Extractor,
	embedder BatchEmbedder,
	cache AnswerCache,
	seg *segmenter.Segmenter,
) *Processor {
	return &Processor{
		store:     store,
		graph:     graph,
		builder:   builder,
		extractor: extractor,
		embedder:  embedder,
		cache:     cache,
		segmenter: seg,
	}
}

// ProcessContract runs the full pipeline for an uploaded file. Pipeline
// stages are logged to the processing log as they start and finish; a stage
// failure marks the contract failed and aborts. progress may be nil.
func (p *Processor) ProcessContract(ctx context.Context, contractID, filePath string, progress ProgressFunc) (*Summary, error) {
	start := time.Now()
	report := func(stage string, percent int) {
		if progress != nil {
			progress(contractID, stage, percent)
		}
	}

	logger.Info("Processing contract",
		zap.String("contract_id", contractID),
		zap.String("path", filePath),
	)

	if err := p.store.UpdateContractStatus(contractID, models.StatusProcessing, ""); err != nil {
		return nil, err
	}

	report("Extracting text", 5)
	text, err := runStage(p, contractID, "text_extraction", func() (string, error) {
		return textextract.Extract(filePath)
	})
	if err != nil {
		return nil, p.fail(contractID, "text_extraction", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, p.fail(contractID, "text_extraction", fmt.Errorf("no text extracted from %s", filePath))
	}

	report("Chunking text", 15)
	chunks, err := runStage(p, contractID, "chunking", func() ([]string, error) {
		return p.segmenter.Split(text), nil
	})
	if err == nil && len(chunks) == 0 {
		err = fmt.Errorf("no chunks produced, document too short")
	}
	if err != nil {
		return nil, p.fail(contractID, "chunking", err)
	}

	report("Embedding chunks", 25)
	embeddings, err := runStage(p, contractID, "embedding", func() ([][]float32, error) {
		return p.embedder.EmbedBatch(ctx, chunks)
	})
	if err != nil {
		return nil, p.fail(contractID, "embedding", err)
	}

	report("Extracting legal entities", 45)
	result, err := runStage(p, contractID, "entity_extraction", func() (*extraction.Result, error) {
		return p.extractor.ExtractContract(ctx, text)
	})
	if err != nil {
		// the graph still gets the contract and its chunks
		logger.Warn("Entity extraction unavailable, ingesting without entities",
			zap.String("contract_id", contractID),
			zap.Error(err),
		)
		p.logStage(contractID, "entity_extraction", "failed", err.Error(), 0)
		result = extraction.Empty()
	}

	report("Building knowledge graph", 65)
	graphStart := time.Now()
	if err := p.graph.DeleteContractContent(ctx, contractID); err != nil {
		return nil, p.fail(contractID, "graph_build", err)
	}

	filename := filePath
	if i := strings.LastIndexByte(filePath, '/'); i >= 0 {
		filename = filePath[i+1:]
	}
	chunkIDs, err := p.builder.BuildDocument(ctx, contractID, filename, result, chunks, embeddings)
	if err != nil {
		return nil, p.fail(contractID, "graph_build", err)
	}

	report("Building graph edges", 85)
	simEdges, err := p.builder.BuildSimilarityEdges(ctx, chunkIDs, embeddings)
	if err != nil {
		return nil, p.fail(contractID, "graph_build", err)
	}
	if err := p.builder.BuildConflictEdges(ctx, contractID, result.Clauses, result.Relationships); err != nil {
		return nil, p.fail(contractID, "graph_build", err)
	}
	if err := p.builder.LinkRelatedContracts(ctx, contractID, result.Parties); err != nil {
		return nil, p.fail(contractID, "graph_build", err)
	}
	p.logStage(contractID, "graph_build", "complete", "", time.Since(graphStart))
	metrics.IngestDuration.WithLabelValues("graph_build").Observe(time.Since(graphStart).Seconds())

	if err := p.persistRows(contractID, result); err != nil {
		return nil, p.fail(contractID, "persist", err)
	}

	riskScore := computeRiskScore(result.RiskFlags)
	title := result.Title
	if title == "" {
		title = filename
	}
	err = p.store.UpdateContractMeta(contractID, sqlite.ContractMeta{
		Title:         title,
		ContractType:  result.ContractType,
		EffectiveDate: result.EffectiveDate,
		Jurisdiction:  result.Jurisdiction,
		Parties:       result.PartyNames(),
		ChunkCount:    len(chunkIDs),
		ClauseCount:   len(result.Clauses),
		RiskScore:     riskScore,
	})
	if err != nil {
		return nil, p.fail(contractID, "persist", err)
	}
	if err := p.store.UpdateContractStatus(contractID, models.StatusComplete, ""); err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.InvalidateAnswers(ctx); err != nil {
			logger.Warn("Answer cache invalidation failed", zap.Error(err))
		}
	}

	report("Complete", 100)
	metrics.IngestTotal.WithLabelValues("complete").Inc()
	for _, flag := range result.RiskFlags {
		if strings.TrimSpace(flag.Description) != "" {
			metrics.RiskFlagsFound.WithLabelValues(flag.Severity).Inc()
		}
	}

	logger.Info("Contract ingested",
		zap.String("contract_id", contractID),
		zap.Int("chunks", len(chunkIDs)),
		zap.Int("clauses", len(result.Clauses)),
		zap.Int("similarity_edges", simEdges),
		zap.Float64("risk_score", riskScore),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Summary{
		ContractID:    contractID,
		Title:         title,
		ContractType:  result.ContractType,
		Parties:       result.PartyNames(),
		Jurisdiction:  result.Jurisdiction,
		EffectiveDate: result.EffectiveDate,
		Chunks:        len(chunkIDs),
		Clauses:       len(result.Clauses),
		RiskFlags:     len(result.RiskFlags),
		SimEdges:      simEdges,
		RiskScore:     riskScore,
	}, nil
}

// runStage brackets fn with started/complete log rows and a duration metric.
func runStage[T any](p *Processor, contractID, stage string, fn func() (T, error)) (T, error) {
	p.logStage(contractID, stage, "started", "", 0)
	start := time.Now()

	out, err := fn()
	if err != nil {
		return out, err
	}

	elapsed := time.Since(start)
	p.logStage(contractID, stage, "complete", "", elapsed)
	metrics.IngestDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	return out, nil
}

func (p *Processor) logStage(contractID, stage, status, message string, elapsed time.Duration) {
	if err := p.store.LogStage(contractID, stage, status, message, elapsed.Milliseconds()); err != nil {
		logger.Warn("Failed to write processing log",
			zap.String("contract_id", contractID),
			zap.String("stage", stage),
			zap.Error(err),
		)
	}
}

func (p *Processor) fail(contractID, stage string, err error) error {
	logger.Error("Contract processing failed",
		zap.String("contract_id", contractID),
		zap.String("stage", stage),
		zap.Error(err),
	)
	p.logStage(contractID, stage, "failed", err.Error(), 0)
	if updateErr := p.store.UpdateContractStatus(contractID, models.StatusFailed, err.Error()); updateErr != nil {
		logger.Error("Failed to mark contract failed", zap.Error(updateErr))
	}
	metrics.IngestTotal.WithLabelValues("failed").Inc()
	return fmt.Errorf("%s: %w", stage, err)
}

// persistRows mirrors the extracted clauses and flags into SQLite for the
// listing endpoints. Blank descriptions are skipped the same way the graph
// builder skips them.
func (p *Processor) persistRows(contractID string, result *extraction.Result) error {
	clauses := make([]models.ExtractedClause, 0, len(result.Clauses))
	for _, clause := range result.Clauses {
		clauses = append(clauses, models.ExtractedClause{
			ContractID: contractID,
			ClauseType: clause.Type,
			ClauseText: clause.Summary,
			RiskLevel:  clause.RiskLevel,
		})
	}
	if err := p.store.SaveClauses(contractID, clauses); err != nil {
		return err
	}

	flags := make([]models.RiskFlag, 0, len(result.RiskFlags))
	for _, flag := range result.RiskFlags {
		if strings.TrimSpace(flag.Description) == "" {
			continue
		}
		flags = append(flags, models.RiskFlag{
			ContractID:  contractID,
			FlagType:    flag.Type,
			Severity:    flag.Severity,
			Description: flag.Description,
			ClauseRef:   flag.ClauseRef,
		})
	}
	return p.store.SaveRiskFlags(contractID, flags)
}

// computeRiskScore is the share of high-severity flags among all flags,
// rounded to two decimals.
func computeRiskScore(flags []extraction.RiskFlag) float64 {
	total := 0
	high := 0
	for _, flag := range flags {
		if strings.TrimSpace(flag.Description) == "" {
			continue
		}
		total++
		if flag.Severity == "high" {
			high++
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(float64(high)/float64(total)*100) / 100
}
