package rag

import (
	"fmt"
	"strings"

	"askgraph/internal/vectorstore"
)

const promptTemplate = `You are an AI assistant providing answers based on the user's provided context.

We have provided context information below.
---------------------
%s
---------------------
Given this information, please answer the question: %s
If you don't know the answer, say "I don't know."
Please write page name in the answer if it is relevant.
If you write a page name in your answer, use the format [[Page Name]].

Answer:`

// BuildContext formats results for the prompt, in retrieval order.
func BuildContext(results []vectorstore.SearchResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		parts = append(parts, fmt.Sprintf("Content: %s\nPage: [[%s]]", r.Chunk.Text, r.Chunk.Metadata.PageName))
	}
	return strings.Join(parts, "\n\n")
}

// BuildPrompt substitutes context and question into the answer template.
func BuildPrompt(context, question string) string {
	return fmt.Sprintf(promptTemplate, context, question)
}
