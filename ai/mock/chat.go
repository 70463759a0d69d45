package mock

import (
	"context"
	"sync"
)

// MockChatModel is a test double for ai.ChatModel.
type MockChatModel struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns Answer.
	CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

	// Answer is the default completion.
	Answer string

	mu         sync.Mutex
	callCount  int
	lastPrompt string
	lastSystem string
}

// NewMockChatModel creates a mock chat model that answers with a fixed string.
func NewMockChatModel() *MockChatModel {
	return &MockChatModel{Answer: "mock answer"}
}

// Complete records the prompt and returns the configured answer.
func (m *MockChatModel) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.callCount++
	m.lastSystem = system
	m.lastPrompt = prompt
	m.mu.Unlock()

	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, system, prompt)
	}
	return m.Answer, nil
}

// CallCount returns the number of Complete calls.
func (m *MockChatModel) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastPrompt returns the system instruction and prompt of the most recent call.
func (m *MockChatModel) LastPrompt() (system, prompt string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSystem, m.lastPrompt
}

// Reset clears recorded calls and injected behavior.
func (m *MockChatModel) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastPrompt = ""
	m.lastSystem = ""
	m.CompleteFunc = nil
}
