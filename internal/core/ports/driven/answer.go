package driven

import (
	"context"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// AnswerGenerator turns ranked passages into an answer.
// Deciding what to say when no passages are available belongs to the generator.
type AnswerGenerator interface {
	// Answer produces a response to question grounded only in sources.
	Answer(ctx context.Context, question string, sources []domain.QueryResult) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string
}
