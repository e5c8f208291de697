// Package ingest loads a JSON document corpus, splits long texts into
// sentence-aligned chunks, and indexes them into the knowledge store.
package ingest
