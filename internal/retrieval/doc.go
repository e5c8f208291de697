// Package retrieval exposes the knowledge store as a model-callable tool.
//
// The Adapter wraps similarity search and, per invocation, produces the
// ordered {source, snippet} provenance list for every document returned.
// That list is threaded back to the caller as part of the return value
// and never stashed in shared state, so concurrent requests cannot
// observe each other's retrieval metadata.
package retrieval
