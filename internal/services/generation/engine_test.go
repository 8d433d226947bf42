package generation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

// scriptedLLM replays a fixed delta sequence, then optionally fails or
// blocks until cancellation.
type scriptedLLM struct {
	deltas           []string
	err              error
	blockUntilCancel bool
	closed           bool
}

func (s *scriptedLLM) ChatStream(ctx context.Context, request *interfaces.StreamRequest, onDelta func(string)) error {
	defer func() { s.closed = true }()
	for _, delta := range s.deltas {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		onDelta(delta)
	}
	if s.blockUntilCancel {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.err
}

func (s *scriptedLLM) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedLLM) EmbedDimension() int { return 0 }

func (s *scriptedLLM) HealthCheck(ctx context.Context) error { return nil }

func (s *scriptedLLM) Close() error { return nil }

type recorder struct {
	chunks    []string
	metadata  []models.StreamMetadata
	errs      []error
	afterMeta bool
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnChunk: func(text string) {
			if len(r.metadata) > 0 || len(r.errs) > 0 {
				r.afterMeta = true
			}
			r.chunks = append(r.chunks, text)
		},
		OnMetadata: func(meta models.StreamMetadata) {
			r.metadata = append(r.metadata, meta)
		},
		OnError: func(err error) {
			r.errs = append(r.errs, err)
		},
	}
}

func (r *recorder) text() string {
	return strings.Join(r.chunks, "")
}

func TestStreamVisibleTextAndMetadata(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{
		"Hel", "lo",
		"\nSOURCE_RELEVANT: True\nFOLLOWUP: [\"What next?\", \"And then?\"]",
	}}
	engine := NewEngine(llm, arbor.NewLogger())
	rec := &recorder{}

	meta, err := engine.Stream(context.Background(), nil, models.Settings{}, []string{"doc.txt"}, rec.callbacks())
	require.NoError(t, err)

	assert.Equal(t, "Hello", strings.TrimSpace(rec.text()))
	assert.NotContains(t, rec.text(), "FOLLOWUP")
	assert.NotContains(t, rec.text(), "SOURCE_RELEVANT")

	require.Len(t, rec.metadata, 1)
	assert.Equal(t, "Hello", meta.Answer)
	assert.Equal(t, []string{"doc.txt"}, meta.Sources)
	assert.Equal(t, []string{"What next?", "And then?"}, meta.Followups)
	assert.Empty(t, rec.errs)
	assert.False(t, rec.afterMeta, "chunk delivered after metadata")
}

func TestStreamHoldsBackPartialMarker(t *testing.T) {
	// The marker arrives split across deltas; no fragment of it may leak.
	llm := &scriptedLLM{deltas: []string{"Hello ", "F", "OLLOWUP: one? | two?"}}
	engine := NewEngine(llm, arbor.NewLogger())
	rec := &recorder{}

	meta, err := engine.Stream(context.Background(), nil, models.Settings{}, nil, rec.callbacks())
	require.NoError(t, err)

	assert.Equal(t, "Hello", strings.TrimSpace(rec.text()))
	assert.NotContains(t, rec.text(), "F")
	assert.Equal(t, []string{"one?", "two?"}, meta.Followups)
}

func TestStreamFlushesMarkerPrefixTailAtEnd(t *testing.T) {
	// An answer ending in a rune that could start a marker is withheld
	// while streaming but must be delivered once the stream completes.
	llm := &scriptedLLM{deltas: []string{"Grade is F"}}
	engine := NewEngine(llm, arbor.NewLogger())
	rec := &recorder{}

	meta, err := engine.Stream(context.Background(), nil, models.Settings{}, nil, rec.callbacks())
	require.NoError(t, err)

	assert.Equal(t, "Grade is F", rec.text())
	assert.Equal(t, "Grade is F", meta.Answer)

	require.Len(t, rec.metadata, 1)
	assert.False(t, rec.afterMeta, "chunk delivered after metadata")
}

func TestStreamRelevanceGateClearsSourcesAndFollowups(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{
		"Nothing about that here.",
		"\nSOURCE_RELEVANT: False\nFOLLOWUP: [\"Q?\"]",
	}}
	engine := NewEngine(llm, arbor.NewLogger())
	rec := &recorder{}

	meta, err := engine.Stream(context.Background(), nil, models.Settings{}, []string{"doc.txt"}, rec.callbacks())
	require.NoError(t, err)
	assert.Empty(t, meta.Sources)
	assert.Empty(t, meta.Followups)
}

func TestStreamFallbackAnswerHidesSources(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{
		"I don't know based on the documents provided.",
	}}
	engine := NewEngine(llm, arbor.NewLogger())
	rec := &recorder{}

	meta, err := engine.Stream(context.Background(), nil, models.Settings{}, []string{"doc.txt"}, rec.callbacks())
	require.NoError(t, err)
	assert.Empty(t, meta.Sources)
	assert.Equal(t, "I don't know based on the documents provided.", meta.Answer)
}

func TestStreamNoMarkersAtAll(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{"Plain ", "answer."}}
	engine := NewEngine(llm, arbor.NewLogger())
	rec := &recorder{}

	meta, err := engine.Stream(context.Background(), nil, models.Settings{}, []string{"doc.txt"}, rec.callbacks())
	require.NoError(t, err)
	assert.Equal(t, "Plain answer.", meta.Answer)
	assert.Equal(t, []string{"doc.txt"}, meta.Sources)
	assert.Empty(t, meta.Followups)
}

func TestStreamProviderErrorFiresOnErrorOnce(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{"partial"}, err: errors.New("provider exploded")}
	engine := NewEngine(llm, arbor.NewLogger())
	rec := &recorder{}

	_, err := engine.Stream(context.Background(), nil, models.Settings{}, nil, rec.callbacks())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrGenerationFailure))

	require.Len(t, rec.errs, 1)
	assert.Empty(t, rec.metadata, "metadata after error")
	assert.False(t, rec.afterMeta, "chunk after error")
}

func TestStreamCancellationStopsCallbacks(t *testing.T) {
	llm := &scriptedLLM{deltas: []string{"Hel"}, blockUntilCancel: true}
	engine := NewEngine(llm, arbor.NewLogger())

	ctx, cancel := context.WithCancel(context.Background())
	rec := &recorder{}
	cb := rec.callbacks()
	inner := cb.OnChunk
	cb.OnChunk = func(text string) {
		inner(text)
		cancel()
	}

	_, err := engine.Stream(ctx, nil, models.Settings{}, nil, cb)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	// Cancellation silences everything: no metadata, no error callback.
	assert.Empty(t, rec.metadata)
	assert.Empty(t, rec.errs)
	assert.True(t, llm.closed, "underlying stream not released")
}
