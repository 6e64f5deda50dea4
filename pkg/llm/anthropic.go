package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// defaultAnthropicMaxTokens is used when the request does not set a budget;
// the Anthropic API requires an explicit max_tokens.
const defaultAnthropicMaxTokens = 1024

// AnthropicProvider is the Anthropic chat-completion backend, used as a
// fallback tier behind the OpenAI-compatible primary.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// NewAnthropicProvider creates an Anthropic provider.
func NewAnthropicProvider(apiKey, model string, logger *zap.Logger) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if model == "" {
		return nil, fmt.Errorf("model is required")
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(apiKey),
		model:  model,
		logger: logger.Named("anthropic"),
	}, nil
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string {
	return "anthropic:" + p.model
}

// ChatCompletion implements Provider.
func (p *AnthropicProvider) ChatCompletion(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	msgReq := anthropic.MessagesRequest{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		System:    req.SystemMessage,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(req.Prompt),
		},
	}
	if req.Temperature > 0 {
		temp := float32(req.Temperature)
		msgReq.Temperature = &temp
	}

	resp, err := p.client.CreateMessages(ctx, msgReq)
	if err != nil {
		return "", ClassifyError(err)
	}

	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			p.logger.Debug("completion",
				zap.Int("input_tokens", resp.Usage.InputTokens),
				zap.Int("output_tokens", resp.Usage.OutputTokens))
			return *block.Text, nil
		}
	}

	return "", NewError(ErrorTypeUnknown, "no text content in response", false, nil)
}

var _ Provider = (*AnthropicProvider)(nil)
