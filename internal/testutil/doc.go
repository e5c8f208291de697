// Package testutil provides deterministic Genkit doubles for tests:
// a scripted model that answers or requests tools based on prompt
// patterns, and a hash-based embedder with controllable vectors.
package testutil
