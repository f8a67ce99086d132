package domain

import "errors"

var (
	// ErrProviderUnavailable indicates the embedding or captioning backend
	// could not be reached, timed out, or is not configured.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrEmbeddingUnavailable is the embedding-specific name of ErrProviderUnavailable.
	ErrEmbeddingUnavailable = ErrProviderUnavailable

	// ErrRebuildInProgress indicates a rebuild was rejected because another one is running.
	ErrRebuildInProgress = errors.New("rebuild in progress")

	// ErrMalformedSource indicates a knowledge-source record could not be rendered to text.
	ErrMalformedSource = errors.New("malformed source")

	// ErrInvalidTimestamp indicates inconsistent order timestamps.
	ErrInvalidTimestamp = errors.New("invalid timestamp")

	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")
)
