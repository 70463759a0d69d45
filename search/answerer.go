package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/arxivsearch/ai"
	"github.com/poiesic/arxivsearch/core"
	"github.com/poiesic/arxivsearch/storage"
)

// DefaultContextHits is the number of entries given to the chat model.
const DefaultContextHits = 10

// Answer is a chat model response and the entries it was based on.
type Answer struct {
	Text    string
	Sources []*core.SearchResult
}

// Answerer answers questions from retrieved entries.
type Answerer struct {
	searcher *Searcher
	chat     ai.ChatModel
	logger   *slog.Logger
}

// NewAnswerer creates an answerer that retrieves with searcher.
func NewAnswerer(searcher *Searcher, chat ai.ChatModel) (*Answerer, error) {
	if searcher == nil {
		return nil, ErrStoreRequired
	}
	if chat == nil {
		return nil, ErrChatModelRequired
	}
	return &Answerer{
		searcher: searcher,
		chat:     chat,
		logger:   slog.Default().With("component", "answer"),
	}, nil
}

// Ask retrieves k entries for question and asks the chat model to answer
// from them. The chat model is not called when nothing matches.
func (a *Answerer) Ask(ctx context.Context, question string, k int) (*Answer, error) {
	if k <= 0 {
		k = DefaultContextHits
	}

	results, err := a.searcher.Search(ctx, question, k, storage.Filter{})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return &Answer{Text: "I don't know. No matching papers were found."}, nil
	}

	text, err := a.chat.Complete(ctx, answerSystemPrompt, buildAnswerPrompt(question, results))
	if err != nil {
		a.logger.Error("chat completion failed", "err", err)
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Answer{Text: text, Sources: results}, nil
}
