package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested document or tenant does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a document with the same name already exists for the tenant.
	// Callers must delete the existing document before creating it again.
	ErrConflict = errors.New("conflict")

	// ErrValidation indicates malformed input or configuration,
	// for example a chunk overlap that is not smaller than the chunk size.
	ErrValidation = errors.New("validation failed")

	// ErrEmbedding indicates the embedder call failed or timed out.
	// An ingestion that fails with this error leaves no trace of the document.
	ErrEmbedding = errors.New("embedding failed")

	// ErrIndexCorrupt indicates an index disagrees with the document store.
	// The affected tenant's indices must be rebuilt from stored chunks.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrUnsupportedType indicates a MIME type no extractor can handle.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Vector/semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable indicates the lexical index could not serve a query.
	ErrSearchUnavailable = errors.New("search engine unavailable")

	// ErrVectorIndexUnavailable indicates the vector index could not serve a query.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrLLMUnavailable indicates no answer generator is configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrTenantClosed indicates a tenant partition was wiped while an operation waited on it.
	ErrTenantClosed = errors.New("tenant closed")
)
