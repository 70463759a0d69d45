package search

import (
	"fmt"
	"strings"

	"github.com/poiesic/arxivsearch/core"
)

const answerSystemPrompt = `You are a research assistant answering questions about scientific papers from arXiv.

Use only the numbered papers given in the context to answer. Cite papers by their number in square brackets, for example [2].
If the context does not contain the answer, say that you don't know. Do not make up papers, authors or results.`

// buildAnswerPrompt lays out the retrieved entries as numbered context
// followed by the question.
func buildAnswerPrompt(question string, results []*core.SearchResult) string {
	var b strings.Builder

	b.WriteString("Context:\n")
	for i, result := range results {
		md := result.Entry.Metadata
		fmt.Fprintf(&b, "\n[%d] %s (%s)\n", i+1, strings.TrimSpace(md.Title), md.Year)
		if authors := md.AuthorList(); authors != "" {
			fmt.Fprintf(&b, "Authors: %s\n", authors)
		}
		fmt.Fprintf(&b, "Link: https://arxiv.org/abs/%s\n", md.ID)
		fmt.Fprintf(&b, "Abstract: %s\n", result.Entry.RawText)
	}

	fmt.Fprintf(&b, "\nQuestion: %s\nAnswer:", strings.TrimSpace(question))
	return b.String()
}
