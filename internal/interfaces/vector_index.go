package interfaces

import (
	"context"

	"github.com/ternarybob/responsa/internal/models"
)

// VectorIndex stores embedded chunks and answers k-nearest-neighbor queries
// by cosine similarity. Implementations persist a single snapshot after every
// mutation; a crash between mutation and persist must leave the previous
// snapshot intact.
type VectorIndex interface {
	// AddDocuments appends chunks and persists the snapshot. Concurrent
	// calls are serialized, never interleaved into a corrupt write.
	AddDocuments(ctx context.Context, chunks []models.Chunk) error

	// Search returns up to k chunks in descending similarity order. A nil
	// or empty sourceFilter searches all sources. An empty index or a
	// filter matching nothing yields an empty result, not an error.
	Search(queryVector []float32, k int, sourceFilter []string) []models.SearchResult

	// ReplaceSource swaps all chunks for the named source with chunks in
	// one persisted write. A persist failure leaves the previous chunks
	// intact in memory and on disk.
	ReplaceSource(ctx context.Context, source string, chunks []models.Chunk) error

	// DeleteBySource removes all chunks for the named source, persists,
	// and returns the number removed (0 when none matched).
	DeleteBySource(ctx context.Context, source string) (int, error)

	// ListSources returns the distinct source names, sorted.
	ListSources() []string

	// CountBySource returns chunk counts per source for the catalog.
	CountBySource() map[string]int

	// Count returns the total number of chunks.
	Count() int
}
