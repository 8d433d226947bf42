package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
	"github.com/ternarybob/responsa/internal/services/prompt"
)

// Trailing metadata markers the model is instructed to emit. Everything
// from the first marker onward is metadata, never answer text.
var markers = []string{"SOURCE_RELEVANT:", "FOLLOWUP:"}

var followupArrayRegex = regexp.MustCompile(`\[.*\]`)

// Callbacks receive the stream as it happens. OnChunk fires per visible
// text fragment in order; OnMetadata fires exactly once after the last
// chunk; OnError fires exactly once on failure and nothing fires after it.
type Callbacks struct {
	OnChunk    func(text string)
	OnMetadata func(meta models.StreamMetadata)
	OnError    func(err error)
}

// Engine turns an LLM token stream into a clean answer stream. Raw deltas
// are withheld just long enough to guarantee no fragment of a trailing
// metadata marker reaches OnChunk, then the accumulated tail is parsed
// into followups and the relevance verdict.
type Engine struct {
	llmService interfaces.LLMService
	logger     arbor.ILogger
}

// NewEngine creates a generation engine over the provider router.
func NewEngine(llmService interfaces.LLMService, logger arbor.ILogger) *Engine {
	return &Engine{
		llmService: llmService,
		logger:     logger,
	}
}

// Stream runs one generation. sources is the retrieval source list for the
// final metadata; it is cleared when the model reports the context
// irrelevant or answers with a fallback phrase. Returns the final metadata,
// or an error after OnError has fired.
func (e *Engine) Stream(ctx context.Context, messages []interfaces.Message, settings models.Settings, sources []string, cb Callbacks) (*models.StreamMetadata, error) {
	var acc strings.Builder
	emitted := 0
	markerSeen := false

	request := &interfaces.StreamRequest{
		Messages: messages,
		Model:    settings.Model,
	}

	err := e.llmService.ChatStream(ctx, request, func(delta string) {
		acc.WriteString(delta)
		if markerSeen || ctx.Err() != nil {
			return
		}

		full := acc.String()
		boundary := metadataStart(full)
		if boundary < len(full) {
			markerSeen = true
		} else {
			boundary = len(full) - partialMarkerSuffix(full)
		}

		if boundary > emitted && cb.OnChunk != nil {
			cb.OnChunk(full[emitted:boundary])
			emitted = boundary
		}
	})

	if ctxErr := ctx.Err(); ctxErr != nil {
		// Cancellation silences all further callbacks, OnError included.
		return nil, ctxErr
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", models.ErrGenerationFailure, err)
		if cb.OnError != nil {
			cb.OnError(wrapped)
		}
		return nil, wrapped
	}

	full := acc.String()

	// Flush any tail withheld as a possible marker prefix. When the stream
	// ends without the marker forming, that text is answer, not metadata.
	if boundary := metadataStart(full); boundary > emitted && cb.OnChunk != nil {
		cb.OnChunk(full[emitted:boundary])
	}

	meta := parseMetadata(full, sources)

	e.logger.Debug().
		Int("answer_length", len(meta.Answer)).
		Int("followups", len(meta.Followups)).
		Int("sources", len(meta.Sources)).
		Msg("Generation stream completed")

	if cb.OnMetadata != nil {
		cb.OnMetadata(*meta)
	}
	return meta, nil
}

// metadataStart returns the index of the first marker occurrence in text,
// or len(text) when none is present.
func metadataStart(text string) int {
	start := len(text)
	for _, marker := range markers {
		if idx := strings.Index(text, marker); idx != -1 && idx < start {
			start = idx
		}
	}
	return start
}

// partialMarkerSuffix returns the length of the longest suffix of text
// that is a proper prefix of any marker. Those runes are withheld until
// the next delta resolves whether a marker is forming.
func partialMarkerSuffix(text string) int {
	longest := 0
	for _, marker := range markers {
		max := len(marker) - 1
		if max > len(text) {
			max = len(text)
		}
		for l := max; l > longest; l-- {
			if strings.HasSuffix(text, marker[:l]) {
				longest = l
				break
			}
		}
	}
	return longest
}

// parseMetadata splits the accumulated response into the visible answer
// and the trailing metadata, applying the relevance gate to sources and
// followups.
func parseMetadata(full string, sources []string) *models.StreamMetadata {
	boundary := metadataStart(full)
	answer := strings.TrimSpace(full[:boundary])

	sourceRelevant := true
	if idx := strings.Index(full, "SOURCE_RELEVANT:"); idx != -1 {
		verdict := full[idx+len("SOURCE_RELEVANT:"):]
		if nl := strings.IndexByte(verdict, '\n'); nl != -1 {
			verdict = verdict[:nl]
		}
		sourceRelevant = strings.Contains(strings.ToLower(verdict), "true")
	}

	var followups []string
	if idx := strings.Index(full, "FOLLOWUP:"); idx != -1 {
		followups = parseFollowups(full[idx+len("FOLLOWUP:"):])
	}

	if !sourceRelevant || isFallbackAnswer(answer) {
		sources = nil
		followups = nil
	}

	return &models.StreamMetadata{
		Answer:    answer,
		Sources:   sources,
		Followups: followups,
	}
}

// parseFollowups accepts either a JSON array of questions or a pipe
// separated list on the first line.
func parseFollowups(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	if match := followupArrayRegex.FindString(raw); match != "" {
		var questions []string
		if err := json.Unmarshal([]byte(match), &questions); err == nil {
			return trimNonEmpty(questions)
		}
	}

	if nl := strings.IndexByte(raw, '\n'); nl != -1 {
		raw = raw[:nl]
	}
	return trimNonEmpty(strings.Split(raw, "|"))
}

func trimNonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// isFallbackAnswer reports whether the answer is one of the instructed
// no-answer phrases, in which case citing sources would be misleading.
func isFallbackAnswer(answer string) bool {
	lower := strings.ToLower(answer)
	phrases := []string{
		strings.ToLower(strings.TrimSuffix(prompt.FallbackAnswer(), ".")),
		"i could not find information about this in your uploaded documents",
	}
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
