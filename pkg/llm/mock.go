package llm

import (
	"context"
)

// MockGateway is a configurable mock for testing LLM-backed services.
// Set the function fields to control behavior in tests.
type MockGateway struct {
	// CompleteFunc is called when Complete is invoked.
	// If nil, returns empty string and nil error.
	CompleteFunc func(ctx context.Context, req Request) (string, error)

	// EmbedFunc is called when Embed is invoked.
	// If nil, returns nil slice and nil error.
	EmbedFunc func(ctx context.Context, input string) ([]float32, error)

	// Call tracking for verification
	CompleteCalls int
	EmbedCalls    int

	// Prompts records every prompt passed to Complete, for assertions on
	// prompt construction.
	Prompts []string
}

// NewMockGateway creates a new mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

// Complete implements Gateway.
func (m *MockGateway) Complete(ctx context.Context, req Request) (string, error) {
	m.CompleteCalls++
	m.Prompts = append(m.Prompts, req.Prompt)
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return "", nil
}

// Embed implements Gateway.
func (m *MockGateway) Embed(ctx context.Context, input string) ([]float32, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, input)
	}
	return nil, nil
}

// Reset clears call tracking.
func (m *MockGateway) Reset() {
	m.CompleteCalls = 0
	m.EmbedCalls = 0
	m.Prompts = nil
}

// Ensure MockGateway implements Gateway at compile time.
var _ Gateway = (*MockGateway)(nil)

// MockProvider is a configurable chat provider for gateway failover tests.
type MockProvider struct {
	ProviderName string

	// ChatCompletionFunc is called when ChatCompletion is invoked.
	// If nil, returns empty string and nil error.
	ChatCompletionFunc func(ctx context.Context, req Request) (string, error)

	ChatCompletionCalls int
}

// ChatCompletion implements Provider.
func (m *MockProvider) ChatCompletion(ctx context.Context, req Request) (string, error) {
	m.ChatCompletionCalls++
	if m.ChatCompletionFunc != nil {
		return m.ChatCompletionFunc(ctx, req)
	}
	return "", nil
}

// Name implements Provider.
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// MockEmbedder is a configurable embeddings provider for gateway tests.
type MockEmbedder struct {
	EmbedderName string

	// CreateEmbeddingFunc is called when CreateEmbedding is invoked.
	// If nil, returns nil slice and nil error.
	CreateEmbeddingFunc func(ctx context.Context, input string) ([]float32, error)

	CreateEmbeddingCalls int
}

// CreateEmbedding implements Embedder.
func (m *MockEmbedder) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	m.CreateEmbeddingCalls++
	if m.CreateEmbeddingFunc != nil {
		return m.CreateEmbeddingFunc(ctx, input)
	}
	return nil, nil
}

// Name implements Embedder.
func (m *MockEmbedder) Name() string {
	if m.EmbedderName == "" {
		return "mock"
	}
	return m.EmbedderName
}

var (
	_ Provider = (*MockProvider)(nil)
	_ Embedder = (*MockEmbedder)(nil)
)
