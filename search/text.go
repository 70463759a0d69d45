package search

import (
	"strings"

	"github.com/poiesic/arxivsearch/ingestion"
)

// Stop words to filter out when checking for title matches
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "about": true, "what": true, "how": true,
	"some": true, "me": true, "show": true, "papers": true, "articles": true,
}

// tokenizeAndFilter normalizes text the way documents are normalized, splits
// it into words and removes stop words.
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(ingestion.NormalizeText(text))
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		if !stopWords[word] {
			filtered = append(filtered, word)
		}
	}

	return filtered
}

// containsAllQueryWords checks if all query words (after filtering) appear in the title
func containsAllQueryWords(title, query string) bool {
	queryWords := tokenizeAndFilter(query)
	if len(queryWords) == 0 {
		return false
	}

	titleWords := tokenizeAndFilter(title)
	titleWordSet := make(map[string]bool, len(titleWords))
	for _, word := range titleWords {
		titleWordSet[word] = true
	}

	for _, qWord := range queryWords {
		if !titleWordSet[qWord] {
			return false
		}
	}

	return true
}
