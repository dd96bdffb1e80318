package types

import "errors"

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrExtractionFailed  = errors.New("text extraction failed")
	ErrConfiguration     = errors.New("invalid configuration")
	ErrEmbeddingProvider = errors.New("embedding provider error")
	ErrProvider          = errors.New("language model provider error")
	ErrTimeout           = errors.New("external call timed out")
	ErrEmptyIndex        = errors.New("document has no extractable text")
	ErrStoreUnavailable  = errors.New("conversation store unavailable")
	ErrNotFound          = errors.New("not found")
)
