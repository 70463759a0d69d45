package search

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/arxivsearch/ai/mock"
	"github.com/poiesic/arxivsearch/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnswerer(t *testing.T) {
	searcher, err := NewSearcher(setupStore(t), mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = NewAnswerer(nil, mock.NewMockChatModel())
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewAnswerer(searcher, nil)
	assert.ErrorIs(t, err, ErrChatModelRequired)
}

func TestAsk(t *testing.T) {
	store := setupStore(t)
	seed(t, store,
		paper{"0704.0001", "Calculation of prompt diphoton production", "2007", []float32{1, 0}},
		paper{"0704.0002", "Sparsity-certifying Graph Decompositions", "2008", []float32{0, 1}},
	)
	searcher, err := NewSearcher(store, fixedEmbedder([]float32{1, 0}, nil))
	require.NoError(t, err)

	chat := mock.NewMockChatModel()
	chat.Answer = "Diphoton production is computed at NLO [1]."
	answerer, err := NewAnswerer(searcher, chat)
	require.NoError(t, err)

	answer, err := answerer.Ask(context.Background(), "How is diphoton production calculated?", 0)
	require.NoError(t, err)

	assert.Equal(t, chat.Answer, answer.Text)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, "0704.0001", answer.Sources[0].Entry.ID)

	system, prompt := chat.LastPrompt()
	assert.Equal(t, answerSystemPrompt, system)
	assert.Contains(t, prompt, "[1] Calculation of prompt diphoton production (2007)")
	assert.Contains(t, prompt, "Authors: A. Author, B. Author")
	assert.Contains(t, prompt, "https://arxiv.org/abs/0704.0001")
	assert.Contains(t, prompt, "Abstract: abstract of 0704.0001")
	assert.Contains(t, prompt, "Question: How is diphoton production calculated?")
}

func TestAsk_NoMatches(t *testing.T) {
	searcher, err := NewSearcher(setupStore(t), mock.NewMockEmbedder())
	require.NoError(t, err)
	chat := mock.NewMockChatModel()
	answerer, err := NewAnswerer(searcher, chat)
	require.NoError(t, err)

	answer, err := answerer.Ask(context.Background(), "anything at all", 5)
	require.NoError(t, err)
	assert.Empty(t, answer.Sources)
	assert.Zero(t, chat.CallCount(), "chat model is not called without context")
}

func TestAsk_ChatFailure(t *testing.T) {
	store := setupStore(t)
	seed(t, store, paper{"x", "Title", "2010", []float32{1, 0}})
	searcher, err := NewSearcher(store, fixedEmbedder([]float32{1, 0}, nil))
	require.NoError(t, err)

	chat := mock.NewMockChatModel()
	chat.CompleteFunc = func(ctx context.Context, system, prompt string) (string, error) {
		return "", errors.New("rate limited")
	}
	answerer, err := NewAnswerer(searcher, chat)
	require.NoError(t, err)

	_, err = answerer.Ask(context.Background(), "question", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestBuildAnswerPrompt_NoAuthors(t *testing.T) {
	results := []*core.SearchResult{{
		Entry: &core.IndexEntry{
			ID:       "1",
			Metadata: core.Metadata{ID: "1", Year: "2001", Title: " Spaced title "},
			RawText:  "text",
		},
	}}
	prompt := buildAnswerPrompt("q", results)
	assert.Contains(t, prompt, "[1] Spaced title (2001)")
	assert.NotContains(t, prompt, "Authors:")
}
