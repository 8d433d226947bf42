package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/responsa/internal/common"
	"github.com/ternarybob/responsa/internal/interfaces"
)

// GeminiService provides embeddings and streamed chat completions using
// Gemini models. The genai client is created lazily on first use so a server
// without a configured key still starts; the first call that needs the
// client reports the missing key instead.
type GeminiService struct {
	config  *common.GeminiConfig
	logger  arbor.ILogger
	timeout time.Duration

	initOnce sync.Once
	client   *genai.Client
	initErr  error
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content
// format, preserving chronological order. System messages are extracted
// separately for use with SystemInstruction; the first one wins.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	hasUserMessage := false
	for _, msg := range messages {
		if msg.Role == "user" {
			hasUserMessage = true
			break
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		var geminiRole genai.Role
		switch msg.Role {
		case "assistant":
			geminiRole = genai.RoleModel
		default:
			geminiRole = genai.RoleUser
		}

		contents = append(contents, &genai.Content{
			Role:  string(geminiRole),
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}

	return contents, systemText, nil
}

// NewGeminiService creates a Gemini service. The API key is not validated
// here; client creation is deferred to the first call.
func NewGeminiService(config *common.GeminiConfig, logger arbor.ILogger) (*GeminiService, error) {
	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	service := &GeminiService{
		config:  config,
		logger:  logger,
		timeout: timeout,
	}

	logger.Debug().
		Str("embed_model", config.EmbedModel).
		Str("chat_model", config.Model).
		Int("embed_dimension", config.EmbedDimension).
		Dur("timeout", timeout).
		Msg("Gemini LLM service configured")

	return service, nil
}

// getClient returns the shared genai client, creating it on first use.
// Concurrent callers during initialization all wait for the single creation
// attempt; a failed attempt is sticky for the process lifetime.
func (s *GeminiService) getClient(ctx context.Context) (*genai.Client, error) {
	s.initOnce.Do(func() {
		if s.config.APIKey == "" {
			s.initErr = fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or gemini.api_key in config)")
			return
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  s.config.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			s.initErr = fmt.Errorf("failed to initialize genai client: %w", err)
			return
		}
		s.client = client
		s.logger.Info().
			Str("chat_model", s.config.Model).
			Msg("Gemini client initialized")
	})
	if s.initErr == nil && s.client == nil {
		return nil, fmt.Errorf("Gemini service is closed")
	}
	return s.client, s.initErr
}

// Embed generates an embedding vector for the given text using the
// configured embedding model and output dimensionality.
func (s *GeminiService) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty for embedding generation")
	}

	client, err := s.getClient(ctx)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outputDim := int32(s.config.EmbedDimension)
	embeddingConfig := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	var result *genai.EmbedContentResponse
	err = retryWithBackoff(timeoutCtx, NewDefaultRetryConfig(), s.logger, "Gemini embedding call", func() (bool, error) {
		var callErr error
		result, callErr = client.Models.EmbedContent(
			timeoutCtx,
			s.config.EmbedModel,
			[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
			embeddingConfig,
		)
		return true, callErr
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if embedding == nil {
		return nil, fmt.Errorf("no embedding returned from API")
	}
	if len(embedding) != s.config.EmbedDimension {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", s.config.EmbedDimension, len(embedding))
	}

	return embedding, nil
}

// EmbedDimension returns the configured embedding dimensionality.
func (s *GeminiService) EmbedDimension() int {
	return s.config.EmbedDimension
}

// ChatStream generates a streamed completion, invoking onDelta for each
// text fragment as the provider emits it. Returns after the stream is
// drained or on the first provider error.
func (s *GeminiService) ChatStream(ctx context.Context, request *interfaces.StreamRequest, onDelta func(string)) error {
	client, err := s.getClient(ctx)
	if err != nil {
		return err
	}

	contents, systemText, err := convertMessagesToGemini(request.Messages)
	if err != nil {
		return fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	model := request.Model
	if model == "" {
		model = s.config.Model
	}
	temp := request.Temperature
	if temp <= 0 {
		temp = s.config.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	received := 0

	// Retry is only safe before the first delta reaches the caller; a
	// partially delivered stream cannot be replayed without duplication.
	err = retryWithBackoff(timeoutCtx, NewDefaultRetryConfig(), s.logger, "Gemini stream", func() (bool, error) {
		for resp, streamErr := range client.Models.GenerateContentStream(timeoutCtx, model, contents, config) {
			if streamErr != nil {
				return received == 0, fmt.Errorf("Gemini stream failed: %w", streamErr)
			}
			if text := resp.Text(); text != "" {
				received += len(text)
				onDelta(text)
			}
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Str("model", model).
		Int("response_length", received).
		Dur("duration", time.Since(startTime)).
		Msg("Gemini stream completed")

	if received == 0 {
		return fmt.Errorf("no response generated from chat model")
	}
	return nil
}

// HealthCheck verifies the service can reach the embedding model with a
// lightweight probe.
func (s *GeminiService) HealthCheck(ctx context.Context) error {
	healthCheckCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	embedding, err := s.Embed(healthCheckCtx, "health check probe")
	if err != nil {
		return fmt.Errorf("embedding probe failed: %w", err)
	}
	if len(embedding) == 0 {
		return fmt.Errorf("embedding probe returned empty vector")
	}

	s.logger.Debug().
		Int("embedding_dim", len(embedding)).
		Msg("Gemini health check passed")

	return nil
}

// Close releases the client reference. The genai client needs no explicit
// cleanup beyond this.
func (s *GeminiService) Close() error {
	s.client = nil
	return nil
}
