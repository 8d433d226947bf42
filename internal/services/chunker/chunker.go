package chunker

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ternarybob/responsa/internal/models"
)

// boundaryWindow is how far past the nominal cut the splitter will look for
// whitespace before accepting a mid-word split.
const boundaryWindow = 50

// Chunker splits raw document text into overlapping fixed-size windows.
// Successive chunks share Overlap characters so no information falls into a
// gap between windows. The zero value is not usable; construct with New.
type Chunker struct {
	chunkSize int
	overlap   int
	minLength int
}

// New creates a chunker. chunkSize must exceed overlap or the window could
// never advance; that combination is rejected as a configuration error.
func New(chunkSize, overlap, minLength int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size %d", models.ErrInvalidChunking, chunkSize)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: negative overlap %d", models.ErrInvalidChunking, overlap)
	}
	if chunkSize <= overlap {
		return nil, fmt.Errorf("%w: size %d, overlap %d", models.ErrInvalidChunking, chunkSize, overlap)
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
		minLength: minLength,
	}, nil
}

// Split produces the chunk windows for text. Each window is nominally
// chunkSize runes, extended to the next whitespace when one occurs within
// boundaryWindow runes of the cut so words are not split mid-way. Fragments
// shorter than the minimum length after trimming carry no retrievable
// signal and are dropped.
func (c *Chunker) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.chunkSize - c.overlap
	chunks := make([]string, 0, len(runes)/step+1)

	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = extendToWhitespace(runes, end)
		}

		// Length in runes, consistent with the rune-based windows.
		chunk := strings.TrimSpace(string(runes[start:end]))
		if utf8.RuneCountInString(chunk) >= c.minLength {
			chunks = append(chunks, chunk)
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}

// extendToWhitespace moves the cut forward to the next whitespace rune when
// one occurs within boundaryWindow runes, so the window ends on a word
// boundary. The overlap between successive windows keeps the skipped-over
// runes covered by the next chunk.
func extendToWhitespace(runes []rune, cut int) int {
	limit := cut + boundaryWindow
	if limit > len(runes) {
		limit = len(runes)
	}
	for i := cut; i < limit; i++ {
		if unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return cut
}
