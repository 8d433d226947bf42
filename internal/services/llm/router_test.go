package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/common"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	cfg := common.NewDefaultConfig()
	router, err := NewRouter(cfg, arbor.NewLogger())
	require.NoError(t, err)
	return router
}

func TestDetectProvider(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		model string
		want  ProviderType
	}{
		{"claude-sonnet-4-20250514", ProviderClaude},
		{"claude/claude-sonnet-4-20250514", ProviderClaude},
		{"anthropic/claude-haiku-3", ProviderClaude},
		{"gemini-2.0-flash", ProviderGemini},
		{"gemini/gemini-2.0-flash", ProviderGemini},
		{"google/gemini-2.0-flash", ProviderGemini},
		{"CLAUDE-SONNET-4", ProviderClaude},
		{"", ProviderGemini},
		{"mystery-model", ProviderGemini},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, router.DetectProvider(tt.model), "model %q", tt.model)
	}
}

func TestNormalizeModel(t *testing.T) {
	router := newTestRouter(t)

	assert.Equal(t, "claude-sonnet-4-20250514", router.NormalizeModel("claude/claude-sonnet-4-20250514"))
	assert.Equal(t, "gemini-2.0-flash", router.NormalizeModel("gemini/gemini-2.0-flash"))
	assert.Equal(t, "gemini-2.0-flash", router.NormalizeModel("gemini-2.0-flash"))
	assert.Equal(t, "", router.NormalizeModel(""))
}

func TestEmbedDimensionFollowsConfig(t *testing.T) {
	router := newTestRouter(t)
	assert.Equal(t, 768, router.EmbedDimension())
}

func TestRetryBackoff(t *testing.T) {
	cfg := NewDefaultRetryConfig()

	first := cfg.CalculateBackoff(0, 0)
	second := cfg.CalculateBackoff(1, 0)
	assert.Greater(t, second, first)

	// Backoff never exceeds the cap.
	huge := cfg.CalculateBackoff(20, 0)
	assert.LessOrEqual(t, huge, cfg.MaxBackoff)
}
