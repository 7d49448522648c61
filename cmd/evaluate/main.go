// Command evaluate replays a gold question dataset against a populated
// knowledge graph and prints an LLM-judged quality report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/legal-rag/backend/internal/evaluation"
	"github.com/legal-rag/backend/internal/graph/neo4j"
	"github.com/legal-rag/backend/internal/llm"
	"github.com/legal-rag/backend/internal/retrieval"
	"github.com/legal-rag/backend/pkg/config"
	appLogger "github.com/legal-rag/backend/pkg/logger"
)

func main() {
	datasetPath := flag.String("dataset", "eval/questions.json", "path to the gold question dataset")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, "console", "stdout"); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	dataset, err := evaluation.LoadDataset(*datasetPath)
	if err != nil {
		appLogger.Fatal("Failed to load dataset", zap.Error(err))
	}

	neo4jClient, err := neo4j.NewClient(cfg.Neo4j, cfg.LLM.EmbeddingDim)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	llmClient := llm.NewClient(cfg.LLM)
	retriever := retrieval.New(neo4jClient, &queryEmbedder{llm: llmClient}, cfg.Retrieval.TopK)

	evaluator := evaluation.NewEvaluator(llmClient, retriever)
	report, err := evaluator.Run(context.Background(), dataset)
	if err != nil {
		appLogger.Fatal("Evaluation failed", zap.Error(err))
	}

	fmt.Println(evaluation.FormatReport(report))
}

// queryEmbedder adapts the llm client to the retrieval embedder without the
// Redis cache layer; evaluation queries are one-shot.
type queryEmbedder struct {
	llm *llm.Client
}

func (e *queryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.llm.GenerateEmbedding(ctx, text)
}
