package knowledge

import "time"

// MetadataSource is the metadata key holding a document's provenance
// identifier (typically a URL). Set by ingestion, read by retrieval.
const MetadataSource = "source"

// MetadataSection is the metadata key holding the document section (or
// chunk) name within its source.
const MetadataSection = "section"

// Document represents a knowledge document.
type Document struct {
	ID        string            // Unique identifier
	Content   string            // Document text content
	Metadata  map[string]string // Optional metadata (source, section, ...)
	CreatedAt time.Time         // Creation timestamp
}

// Source returns the document's provenance identifier, or "" when unset.
func (d Document) Source() string {
	return d.Metadata[MetadataSource]
}

// Result is a single search result with its similarity score.
type Result struct {
	Document   Document
	Similarity float32 // Cosine similarity score (0-1)
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK    int
	filter  map[string]string
	timeout time.Duration
}

// DefaultTopK is the number of results returned when WithTopK is not given.
const DefaultTopK = 5

// DefaultSearchTimeout bounds a single vector search, embedding included.
const DefaultSearchTimeout = 10 * time.Second

// WithTopK sets the maximum number of results to return.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// WithFilter adds a metadata filter restricting search results.
// Multiple calls add additional filters (AND logic).
func WithFilter(key, value string) SearchOption {
	return func(c *searchConfig) {
		if c.filter == nil {
			c.filter = make(map[string]string)
		}
		c.filter[key] = value
	}
}

// WithTimeout overrides the per-search timeout.
func WithTimeout(d time.Duration) SearchOption {
	return func(c *searchConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func buildSearchConfig(opts []SearchOption) *searchConfig {
	cfg := &searchConfig{
		topK:    DefaultTopK,
		timeout: DefaultSearchTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}
