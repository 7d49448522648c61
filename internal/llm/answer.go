package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/legal-rag/backend/pkg/logger"
)

// InsufficientContextAnswer is the exact refusal sentence the model is told
// to return when the retrieved passages cannot answer the question.
const InsufficientContextAnswer = "The provided contracts do not contain sufficient information to answer this question."

const (
	maxAnswerPassages    = 5
	maxPassageChars      = 600
	answerSystemPrompt   = "You are a legal contract analysis assistant."
	classifySystemPrompt = "You classify legal contract questions. Reply with one word only."
)

// QueryCategories are the recognized classification labels, checked in
// order against the model reply.
var QueryCategories = []string{
	"factual",
	"clause",
	"relational",
	"comparative",
	"risk",
	"multi-hop",
}

// GenerateAnswer produces a grounded answer over the retrieved passages.
// Passages are numbered [P1]..[P5] and truncated so the model can cite them.
func (c *Client) GenerateAnswer(ctx context.Context, query string, chunks []string) (string, error) {
	if len(chunks) > maxAnswerPassages {
		chunks = chunks[:maxAnswerPassages]
	}

	var passages strings.Builder
	for i, chunk := range chunks {
		if len(chunk) > maxPassageChars {
			chunk = chunk[:maxPassageChars]
		}
		fmt.Fprintf(&passages, "[P%d] %s\n\n", i+1, chunk)
	}

	userPrompt := fmt.Sprintf(`-Context passages (retrieved from contracts)-
%s
-Question-
%s

-Instructions-
Answer the question using ONLY the context passages above.
Do NOT use any knowledge from your training data.
Do NOT add legal advice or interpretation beyond what the passages state.
When you state a fact, reference which passage it comes from using [P1], [P2] etc.
If the passages do not contain enough information to answer, respond with exactly:
"%s"

-Answer-`, passages.String(), query, InsufficientContextAnswer)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    2048,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.Debug("Answer generated",
		zap.Int("passages", len(chunks)),
		zap.Int("answer_length", len(resp.Content)),
	)

	return strings.TrimSpace(resp.Content), nil
}

// ClassifyQuery labels a question with one of the retrieval categories.
// Any failure or unrecognized reply falls back to "clause", the broadest
// category.
func (c *Client) ClassifyQuery(ctx context.Context, query string) string {
	userPrompt := fmt.Sprintf(`Classify this legal contract question into exactly one category:

- factual     : asks for a specific fact (date, party name, payment amount)
- clause      : asks about a specific clause type or its contents
- relational  : asks about relationships between parties or contracts
- comparative : compares terms across multiple contracts
- risk        : asks about legal risks, conflicts, or missing protections
- multi-hop   : requires connecting information across multiple contracts or clauses

Question: %s

Reply with one word only (the category name):`, query)

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: classifySystemPrompt,
		UserPrompt:   userPrompt,
		MaxTokens:    10,
	})
	if err != nil {
		logger.Warn("Query classification failed, defaulting to clause", zap.Error(err))
		return "clause"
	}

	return NormalizeCategory(resp.Content)
}

// NormalizeCategory maps a raw model reply onto a known category,
// defaulting to "clause".
func NormalizeCategory(reply string) string {
	reply = strings.ToLower(strings.TrimSpace(reply))
	for _, cat := range QueryCategories {
		if strings.Contains(reply, cat) {
			return cat
		}
	}
	return "clause"
}
