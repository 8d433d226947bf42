package index

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/models"
)

func testLogger() arbor.ILogger {
	return arbor.NewLogger()
}

func newTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	idx, err := New(path, testLogger())
	require.NoError(t, err)
	return idx, path
}

func chunk(id, source string, embedding []float32) models.Chunk {
	return models.Chunk{ID: id, Text: "text " + id, Source: source, Embedding: embedding}
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-3, 0}), 1e-9)

	// Zero-norm vectors never score NaN.
	score := CosineSimilarity([]float32{0, 0}, []float32{1, 2})
	assert.False(t, math.IsNaN(score))
	assert.Equal(t, 0.0, score)

	// Length mismatch scores zero rather than panicking.
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity(nil, nil))
}

func TestSearchEmptyIndex(t *testing.T) {
	idx, _ := newTestIndex(t)
	assert.Empty(t, idx.Search([]float32{1, 0}, 5, nil))
}

func TestSearchOrderingAndTopK(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []models.Chunk{
		chunk("a", "doc.txt", []float32{1, 0}),
		chunk("b", "doc.txt", []float32{0.9, 0.1}),
		chunk("c", "doc.txt", []float32{0, 1}),
		chunk("d", "doc.txt", []float32{0.5, 0.5}),
	}))

	results := idx.Search([]float32{1, 0}, 3, nil)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Chunk.ID)
	assert.Equal(t, "b", results[1].Chunk.ID)
	assert.Equal(t, "d", results[2].Chunk.ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchEqualScoresKeepInsertionOrder(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	// Identical embeddings, so every score ties.
	require.NoError(t, idx.AddDocuments(ctx, []models.Chunk{
		chunk("first", "doc.txt", []float32{1, 1}),
		chunk("second", "doc.txt", []float32{1, 1}),
		chunk("third", "doc.txt", []float32{1, 1}),
	}))

	results := idx.Search([]float32{1, 1}, 3, nil)
	require.Len(t, results, 3)
	assert.Equal(t, "first", results[0].Chunk.ID)
	assert.Equal(t, "second", results[1].Chunk.ID)
	assert.Equal(t, "third", results[2].Chunk.ID)
}

func TestSearchSourceFilter(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []models.Chunk{
		chunk("a", "one.txt", []float32{1, 0}),
		chunk("b", "two.txt", []float32{1, 0}),
		chunk("c", "one.txt", []float32{0.9, 0.1}),
	}))

	results := idx.Search([]float32{1, 0}, 5, []string{"one.txt"})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "one.txt", r.Chunk.Source)
	}

	// Filter matching nothing returns empty, not an error.
	assert.Empty(t, idx.Search([]float32{1, 0}, 5, []string{"missing.txt"}))
}

func TestDeleteBySource(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []models.Chunk{
		chunk("a", "keep.txt", []float32{1, 0}),
		chunk("b", "drop.txt", []float32{0, 1}),
		chunk("c", "drop.txt", []float32{1, 1}),
	}))

	removed, err := idx.DeleteBySource(ctx, "drop.txt")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, idx.Count())
	assert.Equal(t, []string{"keep.txt"}, idx.ListSources())

	// Deleting again is a no-op, not an error.
	removed, err = idx.DeleteBySource(ctx, "drop.txt")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestReplaceSourceSwapsChunks(t *testing.T) {
	idx, path := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []models.Chunk{
		chunk("a", "keep.txt", []float32{1, 0}),
		chunk("b", "swap.txt", []float32{0, 1}),
		chunk("c", "swap.txt", []float32{1, 1}),
	}))

	require.NoError(t, idx.ReplaceSource(ctx, "swap.txt", []models.Chunk{
		chunk("d", "swap.txt", []float32{0, 2}),
	}))

	assert.Equal(t, map[string]int{"keep.txt": 1, "swap.txt": 1}, idx.CountBySource())

	results := idx.Search([]float32{0, 1}, 1, []string{"swap.txt"})
	require.Len(t, results, 1)
	assert.Equal(t, "d", results[0].Chunk.ID)

	// The swap survives a reload.
	reloaded, err := New(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"keep.txt": 1, "swap.txt": 1}, reloaded.CountBySource())
}

func TestReplaceSourcePersistFailureKeepsPrevious(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	require.NoError(t, os.MkdirAll(dir, 0755))
	idx, err := New(filepath.Join(dir, "index.json"), testLogger())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []models.Chunk{
		chunk("a", "doc.txt", []float32{1, 0}),
		chunk("b", "doc.txt", []float32{0, 1}),
	}))

	// A regular file where the snapshot directory was makes the next
	// persist fail.
	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("not a directory"), 0644))

	err = idx.ReplaceSource(ctx, "doc.txt", []models.Chunk{
		chunk("c", "doc.txt", []float32{1, 1}),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrRetrievalUnavailable))

	// The failed replace left the previous chunks untouched.
	assert.Equal(t, 2, idx.Count())
	results := idx.Search([]float32{1, 0}, 1, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)
}

func TestCountBySource(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []models.Chunk{
		chunk("a", "one.txt", []float32{1, 0}),
		chunk("b", "one.txt", []float32{0, 1}),
		chunk("c", "two.txt", []float32{1, 1}),
	}))

	counts := idx.CountBySource()
	assert.Equal(t, map[string]int{"one.txt": 2, "two.txt": 1}, counts)
	assert.Equal(t, 3, idx.Count())
}

func TestSnapshotRoundTrip(t *testing.T) {
	idx, path := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []models.Chunk{
		chunk("a", "doc.txt", []float32{1, 0, 0}),
		chunk("b", "doc.txt", []float32{0, 1, 0}),
	}))

	// A new index over the same path sees everything the first one wrote.
	reloaded, err := New(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Count())

	results := reloaded.Search([]float32{1, 0, 0}, 1, nil)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].Chunk.ID)
}

func TestSnapshotSurvivesDelete(t *testing.T) {
	idx, path := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.AddDocuments(ctx, []models.Chunk{
		chunk("a", "one.txt", []float32{1, 0}),
		chunk("b", "two.txt", []float32{0, 1}),
	}))
	_, err := idx.DeleteBySource(ctx, "one.txt")
	require.NoError(t, err)

	reloaded, err := New(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"two.txt"}, reloaded.ListSources())
}

func TestConcurrentAddAndSearch(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = idx.AddDocuments(ctx, []models.Chunk{
				chunk(string(rune('a'+n)), "doc.txt", []float32{1, float32(n)}),
			})
		}(w)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				results := idx.Search([]float32{1, 0}, 5, nil)
				// Never observe a torn write: every result is whole.
				for _, r := range results {
					assert.NotEmpty(t, r.Chunk.ID)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 4, idx.Count())
}
