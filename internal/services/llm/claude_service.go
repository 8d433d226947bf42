package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/common"
	"github.com/ternarybob/responsa/internal/interfaces"
)

// ClaudeService provides streamed chat completions using Anthropic Claude
// models. Claude has no embedding endpoint; embedding calls are routed to
// Gemini by the provider router.
type ClaudeService struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	timeout   time.Duration
	maxTokens int

	initOnce sync.Once
	client   anthropic.Client
	ready    bool
	initErr  error
}

// convertMessagesToClaude converts []interfaces.Message to Claude
// MessageParam format, preserving chronological order. System messages are
// extracted separately for the System parameter; the first one wins.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
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

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		}

		switch msg.Role {
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}

	return claudeMessages, systemText, nil
}

// NewClaudeService creates a Claude service. The API key is not validated
// here; client creation is deferred to the first call.
func NewClaudeService(config *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeService, error) {
	timeout, err := time.ParseDuration(config.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", config.Timeout, err)
	}

	maxTokens := config.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	service := &ClaudeService{
		config:    config,
		logger:    logger,
		timeout:   timeout,
		maxTokens: maxTokens,
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Float32("temperature", config.Temperature).
		Int("max_tokens", maxTokens).
		Msg("Claude LLM service configured")

	return service, nil
}

// getClient returns the shared Claude client, creating it on first use.
func (s *ClaudeService) getClient() (anthropic.Client, error) {
	s.initOnce.Do(func() {
		if s.config.APIKey == "" {
			s.initErr = fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY or claude.api_key in config)")
			return
		}
		s.client = anthropic.NewClient(
			option.WithAPIKey(s.config.APIKey),
		)
		s.ready = true
		s.logger.Info().
			Str("model", s.config.Model).
			Msg("Claude client initialized")
	})
	if s.initErr != nil {
		return anthropic.Client{}, s.initErr
	}
	if !s.ready {
		return anthropic.Client{}, fmt.Errorf("Claude service is closed")
	}
	return s.client, nil
}

// ChatStream generates a streamed completion, invoking onDelta for each
// text fragment as the provider emits it.
func (s *ClaudeService) ChatStream(ctx context.Context, request *interfaces.StreamRequest, onDelta func(string)) error {
	client, err := s.getClient()
	if err != nil {
		return err
	}

	claudeMessages, systemText, err := convertMessagesToClaude(request.Messages)
	if err != nil {
		return fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	model := request.Model
	if model == "" {
		model = s.config.Model
	}
	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  claudeMessages,
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = s.config.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	startTime := time.Now()
	received := 0

	// Retry is only safe before the first delta reaches the caller; a
	// partially delivered stream cannot be replayed without duplication.
	err = retryWithBackoff(timeoutCtx, NewDefaultRetryConfig(), s.logger, "Claude stream", func() (bool, error) {
		stream := client.Messages.NewStreaming(timeoutCtx, params)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			switch ev := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				switch delta := ev.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if delta.Text != "" {
						received += len(delta.Text)
						onDelta(delta.Text)
					}
				}
			}
		}
		if streamErr := stream.Err(); streamErr != nil {
			return received == 0, fmt.Errorf("Claude stream failed: %w", streamErr)
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
		Msg("Claude stream completed")

	if received == 0 {
		return fmt.Errorf("no response generated from Claude API")
	}
	return nil
}

// HealthCheck verifies the Claude API is reachable with a minimal probe.
func (s *ClaudeService) HealthCheck(ctx context.Context) error {
	healthCheckCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var response string
	request := &interfaces.StreamRequest{
		Messages: []interfaces.Message{{Role: "user", Content: "ping"}},
	}
	if err := s.ChatStream(healthCheckCtx, request, func(text string) {
		response += text
	}); err != nil {
		return fmt.Errorf("Claude probe failed: %w", err)
	}
	if response == "" {
		return fmt.Errorf("Claude probe returned empty response")
	}

	s.logger.Debug().
		Int("response_length", len(response)).
		Msg("Claude health check passed")

	return nil
}

// Close releases the client reference.
func (s *ClaudeService) Close() error {
	s.ready = false
	return nil
}
