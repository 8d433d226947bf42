package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/common"
	"github.com/ternarybob/responsa/internal/interfaces"
)

// ProviderType represents the AI provider type
type ProviderType string

const (
	// ProviderGemini uses Google Gemini API
	ProviderGemini ProviderType = "gemini"
	// ProviderClaude uses Anthropic Claude API
	ProviderClaude ProviderType = "claude"
)

// Router implements the LLMService contract by dispatching each request to
// the provider implied by its model string. Embeddings always go to Gemini
// regardless of the chat model; Claude has no embedding endpoint.
type Router struct {
	gemini    *GeminiService
	claude    *ClaudeService
	llmConfig *common.LLMConfig
	logger    arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.LLMService = (*Router)(nil)

// NewRouter creates the provider router over both provider services.
func NewRouter(cfg *common.Config, logger arbor.ILogger) (*Router, error) {
	gemini, err := NewGeminiService(&cfg.Gemini, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini service: %w", err)
	}

	claude, err := NewClaudeService(&cfg.Claude, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Claude service: %w", err)
	}

	return &Router{
		gemini:    gemini,
		claude:    claude,
		llmConfig: &cfg.LLM,
		logger:    logger,
	}, nil
}

// DetectProvider determines the provider type from a model string.
// Model strings can be:
//   - "claude-sonnet-4-20250514" -> Claude
//   - "claude/claude-sonnet-4-20250514" -> Claude (with prefix)
//   - "gemini-2.0-flash" -> Gemini
//   - "gemini/gemini-2.0-flash" -> Gemini (with prefix)
//   - Empty string -> uses default provider from config
func (r *Router) DetectProvider(model string) ProviderType {
	if model == "" {
		return ProviderType(r.llmConfig.DefaultProvider)
	}

	model = strings.ToLower(model)

	if strings.HasPrefix(model, "claude/") || strings.HasPrefix(model, "anthropic/") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini/") || strings.HasPrefix(model, "google/") {
		return ProviderGemini
	}

	if strings.HasPrefix(model, "claude-") {
		return ProviderClaude
	}
	if strings.HasPrefix(model, "gemini-") {
		return ProviderGemini
	}

	return ProviderType(r.llmConfig.DefaultProvider)
}

// NormalizeModel removes the provider prefix from a model name if present
func (r *Router) NormalizeModel(model string) string {
	prefixes := []string{"claude/", "anthropic/", "gemini/", "google/"}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToLower(model), prefix) {
			return model[len(prefix):]
		}
	}
	return model
}

// Embed generates an embedding vector for the given text.
func (r *Router) Embed(ctx context.Context, text string) ([]float32, error) {
	return r.gemini.Embed(ctx, text)
}

// EmbedDimension returns the embedding dimensionality of the embedding
// provider.
func (r *Router) EmbedDimension() int {
	return r.gemini.EmbedDimension()
}

// ChatStream dispatches the streamed completion to the provider named by
// the request's model.
func (r *Router) ChatStream(ctx context.Context, request *interfaces.StreamRequest, onDelta func(string)) error {
	provider := r.DetectProvider(request.Model)
	routed := *request
	routed.Model = r.NormalizeModel(request.Model)

	r.logger.Debug().
		Str("provider", string(provider)).
		Str("model", routed.Model).
		Int("message_count", len(routed.Messages)).
		Msg("Dispatching chat stream")

	switch provider {
	case ProviderClaude:
		return r.claude.ChatStream(ctx, &routed, onDelta)
	default:
		return r.gemini.ChatStream(ctx, &routed, onDelta)
	}
}

// HealthCheck probes the default provider. A missing API key for the other
// provider does not fail the check.
func (r *Router) HealthCheck(ctx context.Context) error {
	switch ProviderType(r.llmConfig.DefaultProvider) {
	case ProviderClaude:
		return r.claude.HealthCheck(ctx)
	default:
		return r.gemini.HealthCheck(ctx)
	}
}

// Close releases both provider clients.
func (r *Router) Close() error {
	return errors.Join(r.gemini.Close(), r.claude.Close())
}
