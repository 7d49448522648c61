// Package evaluation replays a gold dataset of contract questions through
// the full retrieve-and-answer pipeline and grades the results with an LLM
// judge. Used offline to catch retrieval regressions after prompt or schema
// changes.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/llm"
	"github.com/legal-rag/backend/internal/retrieval"
	"github.com/legal-rag/backend/pkg/logger"
)

type DatasetItem struct {
	Question    string `json:"question"`
	GroundTruth string `json:"ground_truth"`
	Category    string `json:"category"`
}

type Dataset struct {
	Items []DatasetItem `json:"items"`
}

// ItemResult is one graded question.
type ItemResult struct {
	Question         string  `json:"question"`
	Category         string  `json:"category"`
	Answer           string  `json:"answer"`
	Chunks           int     `json:"chunks"`
	GraphOnlyChunks  int     `json:"graph_only_chunks"`
	Relevance        float64 `json:"relevance"`
	Accuracy         float64 `json:"accuracy"`
	Completeness     float64 `json:"completeness"`
	Classification   string  `json:"classification"`
	CosineSimilarity float64 `json:"cosine_similarity"`
}

type Report struct {
	TotalQuestions     int          `json:"total_questions"`
	Failed             int          `json:"failed"`
	IrrelevantCount    int          `json:"irrelevant"`
	ModerateCount      int          `json:"moderate"`
	FullyRelevantCount int          `json:"fully_relevant"`
	AvgRelevance       float64      `json:"avg_relevance"`
	AvgAccuracy        float64      `json:"avg_accuracy"`
	AvgCompleteness    float64      `json:"avg_completeness"`
	AvgCosineSim       float64      `json:"avg_cosine_similarity"`
	AvgGraphOnlyChunks float64      `json:"avg_graph_only_chunks"`
	Items              []ItemResult `json:"items"`
}

type Evaluator struct {
	llm       *llm.Client
	retriever *retrieval.Retriever
}

func NewEvaluator(llmClient *llm.Client, retriever *retrieval.Retriever) *Evaluator {
	return &Evaluator{llm: llmClient, retriever: retriever}
}

func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return &dataset, nil
}

// Run answers and grades every dataset item. A single failing item is
// counted and skipped, the run continues.
func (e *Evaluator) Run(ctx context.Context, dataset *Dataset) (*Report, error) {
	report := &Report{TotalQuestions: len(dataset.Items)}

	logger.Info("Running evaluation", zap.Int("items", len(dataset.Items)))

	var totalRelevance, totalAccuracy, totalCompleteness, totalCosine, totalGraphOnly float64

	for i, item := range dataset.Items {
		logger.Info("Evaluating question",
			zap.Int("index", i+1),
			zap.Int("total", len(dataset.Items)),
		)

		result, err := e.evaluateItem(ctx, item)
		if err != nil {
			logger.Error("Evaluation item failed",
				zap.String("question", item.Question),
				zap.Error(err),
			)
			report.Failed++
			continue
		}

		switch result.Classification {
		case "irrelevant":
			report.IrrelevantCount++
		case "fully_relevant":
			report.FullyRelevantCount++
		default:
			report.ModerateCount++
		}

		totalRelevance += result.Relevance
		totalAccuracy += result.Accuracy
		totalCompleteness += result.Completeness
		totalCosine += result.CosineSimilarity
		totalGraphOnly += float64(result.GraphOnlyChunks)
		report.Items = append(report.Items, *result)
	}

	if graded := len(report.Items); graded > 0 {
		report.AvgRelevance = totalRelevance / float64(graded)
		report.AvgAccuracy = totalAccuracy / float64(graded)
		report.AvgCompleteness = totalCompleteness / float64(graded)
		report.AvgCosineSim = totalCosine / float64(graded)
		report.AvgGraphOnlyChunks = totalGraphOnly / float64(graded)
	}

	logger.Info("Evaluation complete",
		zap.Int("graded", len(report.Items)),
		zap.Int("failed", report.Failed),
		zap.Int("fully_relevant", report.FullyRelevantCount),
		zap.Float64("avg_accuracy", report.AvgAccuracy),
	)

	return report, nil
}

func (e *Evaluator) evaluateItem(ctx context.Context, item DatasetItem) (*ItemResult, error) {
	category := item.Category
	if category == "" {
		category = e.llm.ClassifyQuery(ctx, item.Question)
	}

	chunks, _ := e.retriever.Retrieve(ctx, item.Question, category)

	passages := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		passages = append(passages, chunk.Text)
	}
	answer, err := e.llm.GenerateAnswer(ctx, item.Question, passages)
	if err != nil {
		return nil, err
	}

	score, err := e.llm.JudgeAnswer(ctx, item.Question, answer, item.GroundTruth)
	if err != nil {
		return nil, err
	}

	cosine, err := e.answerSimilarity(ctx, answer, item.GroundTruth)
	if err != nil {
		logger.Warn("Failed to compute answer similarity", zap.Error(err))
	}

	graphOnly := 0
	for _, chunk := range chunks {
		if chunk.RetrievalMethod != "vector" {
			graphOnly++
		}
	}

	return &ItemResult{
		Question:         item.Question,
		Category:         category,
		Answer:           answer,
		Chunks:           len(chunks),
		GraphOnlyChunks:  graphOnly,
		Relevance:        score.Relevance,
		Accuracy:         score.Accuracy,
		Completeness:     score.Completeness,
		Classification:   score.Classification,
		CosineSimilarity: cosine,
	}, nil
}

func (e *Evaluator) answerSimilarity(ctx context.Context, answer, groundTruth string) (float64, error) {
	if groundTruth == "" {
		return 0, nil
	}

	a, err := e.llm.GenerateEmbedding(ctx, answer)
	if err != nil {
		return 0, err
	}
	b, err := e.llm.GenerateEmbedding(ctx, groundTruth)
	if err != nil {
		return 0, err
	}
	return cosineSimilarity(a, b), nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// FormatReport renders a report for terminal output.
func FormatReport(report *Report) string {
	graded := len(report.Items)
	pct := func(n int) float64 {
		if graded == 0 {
			return 0
		}
		return float64(n) / float64(graded) * 100
	}

	return fmt.Sprintf(`
Evaluation Report
=================

Questions: %d (graded %d, failed %d)

Classifications:
- Irrelevant: %d (%.1f%%)
- Moderate: %d (%.1f%%)
- Fully Relevant: %d (%.1f%%)

Average Scores (0-3):
- Relevance: %.2f
- Accuracy: %.2f
- Completeness: %.2f

Answer/Reference Cosine Similarity: %.3f
Graph-Only Chunks per Question: %.1f
`,
		report.TotalQuestions, graded, report.Failed,
		report.IrrelevantCount, pct(report.IrrelevantCount),
		report.ModerateCount, pct(report.ModerateCount),
		report.FullyRelevantCount, pct(report.FullyRelevantCount),
		report.AvgRelevance,
		report.AvgAccuracy,
		report.AvgCompleteness,
		report.AvgCosineSim,
		report.AvgGraphOnlyChunks,
	)
}
