package interfaces

import "context"

// ExtractorService converts uploaded files into plain text for ingestion.
// Supported formats: PDF and plain text.
type ExtractorService interface {
	// ExtractFile extracts text from the file at path, dispatching on the
	// file extension. Unsupported extensions are rejected.
	ExtractFile(ctx context.Context, path string) (string, error)
}
