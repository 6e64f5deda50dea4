// Package llm wraps hosted chat-completion and embedding providers behind a
// single gateway with fixed-order failover and uniform error classification.
package llm

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Request is one chat-completion request, provider-agnostic.
type Request struct {
	Prompt        string
	SystemMessage string
	Temperature   float64 // 0 means the provider default
	MaxTokens     int     // 0 means the provider default
}

// Provider is a single chat-completion backend.
type Provider interface {
	ChatCompletion(ctx context.Context, req Request) (string, error)
	Name() string
}

// Embedder is a single embeddings backend.
type Embedder interface {
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)
	Name() string
}

// Gateway is the LLM access point every LLM-backed component depends on.
// Implementations must be safe for concurrent use.
type Gateway interface {
	Complete(ctx context.Context, req Request) (string, error)
	Embed(ctx context.Context, input string) ([]float32, error)
}

// FailoverGateway tries providers in configuration order; the first success
// wins. Provider order is the only retry mechanism in the pipeline.
type FailoverGateway struct {
	providers []Provider
	embedders []Embedder
	logger    *zap.Logger

	// CallTimeout bounds each provider attempt when positive, so a hung
	// primary still leaves budget for the fallback tier. The caller's
	// context applies regardless.
	CallTimeout time.Duration
}

// NewFailoverGateway creates a gateway over ordered provider lists. Either
// list may be empty; calls against an empty list fail with a classified
// error, which callers treat like any other provider failure.
func NewFailoverGateway(providers []Provider, embedders []Embedder, logger *zap.Logger) *FailoverGateway {
	return &FailoverGateway{
		providers: providers,
		embedders: embedders,
		logger:    logger.Named("llm"),
	}
}

// Complete runs the request against each provider in order and returns the
// first successful response. Every failure is classified and logged; the
// last classified error is returned only when all tiers fail.
func (g *FailoverGateway) Complete(ctx context.Context, req Request) (string, error) {
	if len(g.providers) == 0 {
		return "", NewError(ErrorTypeEndpoint, "no chat providers configured", false, nil)
	}

	var lastErr *Error
	for _, p := range g.providers {
		start := time.Now()
		content, err := callWithTimeout(ctx, g.CallTimeout, func(ctx context.Context) (string, error) {
			return p.ChatCompletion(ctx, req)
		})
		if err == nil {
			g.logger.Debug("completion succeeded",
				zap.String("provider", p.Name()),
				zap.Duration("elapsed", time.Since(start)))
			return content, nil
		}

		lastErr = ClassifyError(err)
		if lastErr.Provider == "" {
			lastErr.Provider = p.Name()
		}
		g.logger.Warn("provider failed, trying next tier",
			zap.String("provider", p.Name()),
			zap.String("error_type", string(lastErr.Type)),
			zap.Bool("retryable", lastErr.Retryable),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))

		// A canceled or expired run context fails every remaining tier
		// the same way; stop early.
		if ctx.Err() != nil {
			break
		}
	}

	return "", lastErr
}

// Embed computes an embedding vector using the first embedder that
// succeeds, in configuration order.
func (g *FailoverGateway) Embed(ctx context.Context, input string) ([]float32, error) {
	if len(g.embedders) == 0 {
		return nil, NewError(ErrorTypeEndpoint, "no embedding providers configured", false, nil)
	}

	var lastErr *Error
	for _, e := range g.embedders {
		start := time.Now()
		vector, err := callWithTimeout(ctx, g.CallTimeout, func(ctx context.Context) ([]float32, error) {
			return e.CreateEmbedding(ctx, input)
		})
		if err == nil {
			g.logger.Debug("embedding succeeded",
				zap.String("provider", e.Name()),
				zap.Int("dimensions", len(vector)),
				zap.Duration("elapsed", time.Since(start)))
			return vector, nil
		}

		lastErr = ClassifyError(err)
		if lastErr.Provider == "" {
			lastErr.Provider = e.Name()
		}
		g.logger.Warn("embedder failed, trying next tier",
			zap.String("provider", e.Name()),
			zap.String("error_type", string(lastErr.Type)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

// callWithTimeout runs one provider attempt under its own deadline when
// timeout is positive.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return fn(ctx)
}

var _ Gateway = (*FailoverGateway)(nil)
