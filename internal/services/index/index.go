package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/responsa/internal/interfaces"
	"github.com/ternarybob/responsa/internal/models"
)

// Index is a brute-force cosine-similarity vector index over an in-memory
// ordered chunk collection, persisted as a single JSON snapshot. Record
// counts in the thousands make a linear scan per query perfectly adequate;
// an approximate-nearest-neighbor structure can replace the scan later
// without changing the contract.
//
// Writers (append, delete) are serialized; readers see either the pre- or
// post-write state, never a torn mix.
type Index struct {
	mu     sync.RWMutex
	chunks []models.Chunk
	path   string
	logger arbor.ILogger
}

// Compile-time interface assertion
var _ interfaces.VectorIndex = (*Index)(nil)

// New creates an index backed by the snapshot file at path. The snapshot is
// loaded immediately; a missing file yields an empty index.
func New(path string, logger arbor.ILogger) (*Index, error) {
	idx := &Index{
		path:   path,
		logger: logger,
	}

	chunks, err := loadSnapshot(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load index snapshot: %w", err)
	}
	idx.chunks = chunks

	logger.Info().
		Str("path", path).
		Int("chunks", len(chunks)).
		Msg("Vector index loaded")

	return idx, nil
}

// AddDocuments appends chunks and rewrites the snapshot. The write lock
// serializes concurrent ingestions: appends are queued, never interleaved
// into a corrupt snapshot.
func (i *Index) AddDocuments(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	i.chunks = append(i.chunks, chunks...)
	if err := writeSnapshot(i.path, i.chunks); err != nil {
		// Roll the in-memory state back so memory and disk stay consistent.
		i.chunks = i.chunks[:len(i.chunks)-len(chunks)]
		return fmt.Errorf("%w: persist failed: %v", models.ErrRetrievalUnavailable, err)
	}

	i.logger.Debug().
		Int("added", len(chunks)).
		Int("total", len(i.chunks)).
		Msg("Chunks appended to index")

	return nil
}

// Search scores every chunk passing the source filter against queryVector
// and returns the top k in descending similarity. The sort is stable, so
// equal scores keep insertion order. An empty index or a filter that matches
// nothing returns an empty slice.
func (i *Index) Search(queryVector []float32, k int, sourceFilter []string) []models.SearchResult {
	if k <= 0 {
		return nil
	}

	var filter map[string]bool
	if len(sourceFilter) > 0 {
		filter = make(map[string]bool, len(sourceFilter))
		for _, s := range sourceFilter {
			filter[s] = true
		}
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	results := make([]models.SearchResult, 0, len(i.chunks))
	for _, chunk := range i.chunks {
		if filter != nil && !filter[chunk.Source] {
			continue
		}
		results = append(results, models.SearchResult{
			Chunk: chunk,
			Score: CosineSimilarity(queryVector, chunk.Embedding),
		})
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// ReplaceSource swaps every chunk for source with chunks under a single
// lock and snapshot write, so re-ingestion is atomic: the snapshot is
// written before memory is touched, and a persist failure leaves the
// previous chunks in place.
func (i *Index) ReplaceSource(ctx context.Context, source string, chunks []models.Chunk) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	next := make([]models.Chunk, 0, len(i.chunks)+len(chunks))
	for _, chunk := range i.chunks {
		if chunk.Source != source {
			next = append(next, chunk)
		}
	}
	removed := len(i.chunks) - len(next)
	next = append(next, chunks...)

	if err := writeSnapshot(i.path, next); err != nil {
		return fmt.Errorf("%w: persist failed: %v", models.ErrRetrievalUnavailable, err)
	}
	i.chunks = next

	i.logger.Debug().
		Str("source", source).
		Int("removed", removed).
		Int("added", len(chunks)).
		Int("total", len(i.chunks)).
		Msg("Source replaced in index")

	return nil
}

// DeleteBySource removes every chunk for source and rewrites the snapshot.
// Returns the number removed; an unknown source removes nothing and is not
// an error.
func (i *Index) DeleteBySource(ctx context.Context, source string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	kept := i.chunks[:0:0]
	for _, chunk := range i.chunks {
		if chunk.Source != source {
			kept = append(kept, chunk)
		}
	}

	removed := len(i.chunks) - len(kept)
	if removed == 0 {
		return 0, nil
	}

	previous := i.chunks
	i.chunks = kept
	if err := writeSnapshot(i.path, i.chunks); err != nil {
		i.chunks = previous
		return 0, fmt.Errorf("%w: persist failed: %v", models.ErrRetrievalUnavailable, err)
	}

	i.logger.Info().
		Str("source", source).
		Int("removed", removed).
		Msg("Source deleted from index")

	return removed, nil
}

// ListSources returns the distinct source names in sorted order.
func (i *Index) ListSources() []string {
	counts := i.CountBySource()
	sources := make([]string, 0, len(counts))
	for s := range counts {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// CountBySource returns the number of chunks per source.
func (i *Index) CountBySource() map[string]int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	counts := make(map[string]int)
	for _, chunk := range i.chunks {
		counts[chunk.Source]++
	}
	return counts
}

// Count returns the total number of chunks in the index.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.chunks)
}

// CosineSimilarity computes dot(a,b) / (||a|| * ||b||). The similarity of a
// zero-norm vector to anything is 0, never NaN. Mismatched lengths score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
