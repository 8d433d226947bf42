package models

import "errors"

// Sentinel errors for the retrieval and generation pipeline. Callers match
// with errors.Is; wrapping sites add operation context via fmt.Errorf("%w").
var (
	// ErrInvalidChunking reports a chunk size / overlap combination that
	// cannot make progress. This is a configuration error and fails fast.
	ErrInvalidChunking = errors.New("chunk size must be greater than overlap")

	// ErrRetrievalUnavailable reports an embedding or index failure.
	// Callers must surface it rather than substitute a zero vector.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrGenerationFailure reports a model call failure mid-stream.
	// Chunks already emitted are not retracted.
	ErrGenerationFailure = errors.New("generation failed")

	// ErrPayloadTooLarge reports ingestion input over the configured byte
	// limit, rejected before any chunking or embedding work.
	ErrPayloadTooLarge = errors.New("document exceeds maximum size")

	// ErrSessionNotFound reports an unknown session ID.
	ErrSessionNotFound = errors.New("session not found")
)
