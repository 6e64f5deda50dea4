package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIProvider is a chat-completion backend for any OpenAI-compatible
// endpoint (OpenAI itself, OpenRouter, a local vLLM, ...) selected via the
// base URL.
type OpenAIProvider struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewOpenAIProvider creates a provider for an OpenAI-compatible endpoint.
// baseURL may be empty to use the official OpenAI API.
func NewOpenAIProvider(baseURL, apiKey, model string, logger *zap.Logger) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logger.Named("openai"),
	}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string {
	return "openai:" + p.model
}

// ChatCompletion implements Provider.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req Request) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.SystemMessage != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleSystem, Content: req.SystemMessage,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser, Content: req.Prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", ClassifyError(err)
	}

	if len(resp.Choices) == 0 {
		return "", NewError(ErrorTypeUnknown, "no choices in response", false, nil)
	}

	p.logger.Debug("completion",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens))

	return resp.Choices[0].Message.Content, nil
}

// OpenAIEmbedder is an embeddings backend for OpenAI-compatible endpoints.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	logger     *zap.Logger
}

// NewOpenAIEmbedder creates an embedder. dimensions must match the width of
// the feature embedding column; it is passed through to endpoints that
// support requesting reduced dimensions and validated on every response.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dimensions int, logger *zap.Logger) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: dimensions,
		logger:     logger.Named("embedder"),
	}, nil
}

// Name implements Embedder.
func (e *OpenAIEmbedder) Name() string {
	return "openai:" + e.model
}

// CreateEmbedding implements Embedder.
func (e *OpenAIEmbedder) CreateEmbedding(ctx context.Context, input string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model:      openai.EmbeddingModel(e.model),
		Input:      []string{input},
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, ClassifyError(err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, NewError(ErrorTypeUnknown, "no embedding in response", false, nil)
	}

	vector := resp.Data[0].Embedding
	if e.dimensions > 0 && len(vector) != e.dimensions {
		return nil, NewError(ErrorTypeModel,
			fmt.Sprintf("embedding has %d dimensions, expected %d", len(vector), e.dimensions), false, nil)
	}

	return vector, nil
}

var (
	_ Provider = (*OpenAIProvider)(nil)
	_ Embedder = (*OpenAIEmbedder)(nil)
)
