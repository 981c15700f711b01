package domain

import "errors"

// Error taxonomy for the conversation core. Callers classify failures with
// errors.Is; every error carries wrapped detail for rendering.
var (
	// ErrIndexBuild marks a failed document load or index construction.
	// Not retried internally; the cache retries on the next request.
	ErrIndexBuild = errors.New("index build failed")

	// ErrRetrieval marks a failed search against a built index.
	ErrRetrieval = errors.New("retrieval failed")

	// ErrGeneration marks a failed answer generation, before or mid-stream.
	// Fragments already delivered may stay visible but are never persisted.
	ErrGeneration = errors.New("generation failed")

	// ErrValidation marks input rejected before any work began, such as a
	// collection name collision without the overwrite flag.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks a lookup against an absent record or collection.
	ErrNotFound = errors.New("not found")
)
