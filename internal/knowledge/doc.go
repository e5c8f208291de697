// Package knowledge implements the retrieval capability: a vector store
// over PostgreSQL + pgvector with embedding generation on write and
// similarity search on read.
//
// The package is split in two layers:
//   - Store: business logic (embedding, filtering, result mapping)
//   - Queries: hand-written pgx implementation of the Querier interface
//
// Store depends on the consumer-defined Querier interface, so unit tests
// mock the database while integration tests exercise Queries against a real
// Postgres with the pgvector extension.
package knowledge
