package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_completer.go -package=mocks askgraph/internal/rag Completer

import (
	"context"

	"askgraph/internal/apperrors"
	"askgraph/internal/contextutil"
	"askgraph/internal/vectorstore"
)

// DefaultFallbackAnswer is returned when nothing in the index matches the question.
const DefaultFallbackAnswer = "I couldn't find an answer to your question."

// Completer generates text from a prompt.
type Completer interface {
	// Generate returns the model's completion of prompt.
	Generate(ctx context.Context, prompt string) (string, error)
}

// Searcher finds the chunks relevant to a question.
type Searcher interface {
	Search(ctx context.Context, question string) ([]vectorstore.SearchResult, error)
}

// Answer is the result of a question: the generated text and the chunks it was based on.
type Answer struct {
	Results []vectorstore.SearchResult
	Text    string
}

// Engine answers questions with retrieval-augmented generation.
type Engine struct {
	searcher  Searcher
	completer Completer
	fallback  string
}

// NewEngine creates an Engine. An empty fallback uses DefaultFallbackAnswer.
func NewEngine(searcher Searcher, completer Completer, fallback string) *Engine {
	if fallback == "" {
		fallback = DefaultFallbackAnswer
	}
	return &Engine{
		searcher:  searcher,
		completer: completer,
		fallback:  fallback,
	}
}

// Answer retrieves context for question and asks the completer to answer it.
// When retrieval finds nothing the fallback answer is returned and the
// completer is not called.
func (e *Engine) Answer(ctx context.Context, question string) (Answer, error) {
	logger := contextutil.LoggerFromContext(ctx)

	logger.InfoContext(ctx, "RAG query started", "question", question)

	results, err := e.searcher.Search(ctx, question)
	if err != nil {
		return Answer{}, err
	}

	if len(results) == 0 {
		logger.InfoContext(ctx, "no search results found")
		return Answer{Results: []vectorstore.SearchResult{}, Text: e.fallback}, nil
	}

	contextString := BuildContext(results)
	prompt := BuildPrompt(contextString, question)

	logger.InfoContext(ctx, "sending request to LLM",
		"chunks_included", len(results),
		"context_length", len(contextString),
		"prompt_length", len(prompt),
	)
	logger.DebugContext(ctx, "prompt for LLM", "prompt", prompt)

	text, err := e.completer.Generate(ctx, prompt)
	if err != nil {
		logger.ErrorContext(ctx, "failed to get LLM response", "error", err)
		return Answer{}, apperrors.Collaborator("completion", "generate", err)
	}

	logger.InfoContext(ctx, "RAG query completed", "chunks_used", len(results), "answer_length", len(text))
	return Answer{Results: results, Text: text}, nil
}
