package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// JudgeScore is the LLM grading of one generated answer against a ground
// truth reference. Scores run 0 to 3.
type JudgeScore struct {
	Relevance      float64 `json:"relevance"`
	Accuracy       float64 `json:"accuracy"`
	Completeness   float64 `json:"completeness"`
	Classification string  `json:"classification"`
	Reasoning      string  `json:"reasoning"`
}

const judgeSystemPrompt = `You are grading answers produced by a contract question answering system.
Score the answer against the reference on three axes from 0 to 3:
- relevance: does the answer address the question
- accuracy: does the answer agree with the reference
- completeness: does the answer cover the reference's key points

Classify the answer overall as one of: irrelevant, moderate, fully_relevant.

Respond with JSON only:
{"relevance": 0.0, "accuracy": 0.0, "completeness": 0.0, "classification": "...", "reasoning": "one sentence"}`

// JudgeAnswer grades answer against groundTruth for the given question.
func (c *Client) JudgeAnswer(ctx context.Context, question, answer, groundTruth string) (*JudgeScore, error) {
	prompt := fmt.Sprintf("Question:\n%s\n\nAnswer to grade:\n%s\n\nReference answer:\n%s",
		question, answer, groundTruth)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: judgeSystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    512,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to judge answer: %w", err)
	}

	raw := extractJSON(resp.Content)
	if raw == "" {
		return nil, fmt.Errorf("judge returned no JSON: %q", resp.Content)
	}

	var score JudgeScore
	if err := json.Unmarshal([]byte(raw), &score); err != nil {
		return nil, fmt.Errorf("failed to parse judge response: %w", err)
	}
	if score.Classification == "" {
		score.Classification = "moderate"
	}
	return &score, nil
}
