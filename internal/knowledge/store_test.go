package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/jackc/pgx/v5/pgtype"
)

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	upsertErr    error
	searchErr    error
	searchResult []SearchDocumentsRow
	countResult  int64
	countErr     error
	deleteErr    error

	upsertCalls     int
	searchCalls     int
	searchAllCalls  int
	lastUpsert      UpsertDocumentParams
	lastSearch      SearchDocumentsParams
	lastSearchAll   SearchDocumentsAllParams
	lastCountFilter []byte
	lastDeleteID    string
}

func (m *mockQuerier) UpsertDocument(_ context.Context, arg UpsertDocumentParams) error {
	m.upsertCalls++
	m.lastUpsert = arg
	return m.upsertErr
}

func (m *mockQuerier) SearchDocuments(_ context.Context, arg SearchDocumentsParams) ([]SearchDocumentsRow, error) {
	m.searchCalls++
	m.lastSearch = arg
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResult, nil
}

func (m *mockQuerier) SearchDocumentsAll(_ context.Context, arg SearchDocumentsAllParams) ([]SearchDocumentsRow, error) {
	m.searchAllCalls++
	m.lastSearchAll = arg
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResult, nil
}

func (m *mockQuerier) CountDocuments(_ context.Context, filterMetadata []byte) (int64, error) {
	m.lastCountFilter = filterMetadata
	return m.countResult, m.countErr
}

func (m *mockQuerier) CountDocumentsAll(_ context.Context) (int64, error) {
	return m.countResult, m.countErr
}

func (m *mockQuerier) DeleteDocument(_ context.Context, id string) error {
	m.lastDeleteID = id
	return m.deleteErr
}

// stubEmbedder implements ai.Embedder with a fixed vector.
type stubEmbedder struct {
	vec []float32
	err error
}

func (e *stubEmbedder) Name() string { return "stub/embedder" }

func (e *stubEmbedder) Register(_ api.Registry) {}

func (e *stubEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	if e.err != nil {
		return nil, e.err
	}
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: e.vec}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func testEmbedder() *stubEmbedder {
	return &stubEmbedder{vec: []float32{0.1, 0.2, 0.3}}
}

func TestStore_Add(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, testEmbedder(), nil)

	doc := Document{
		ID:        "doc-1",
		Content:   "hello world",
		Metadata:  map[string]string{MetadataSource: "https://example.com/a"},
		CreatedAt: time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
	}

	if err := store.Add(context.Background(), doc); err != nil {
		t.Fatalf("Add() error: %v", err)
	}

	if q.upsertCalls != 1 {
		t.Fatalf("expected 1 upsert call, got %d", q.upsertCalls)
	}
	if q.lastUpsert.ID != "doc-1" || q.lastUpsert.Content != "hello world" {
		t.Errorf("unexpected upsert params: %+v", q.lastUpsert)
	}
	if q.lastUpsert.Embedding == nil {
		t.Error("expected embedding to be set")
	}

	var metadata map[string]string
	if err := json.Unmarshal(q.lastUpsert.Metadata, &metadata); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}
	if metadata[MetadataSource] != "https://example.com/a" {
		t.Errorf("metadata source = %q, want %q", metadata[MetadataSource], "https://example.com/a")
	}
}

func TestStore_Add_EmbedderFailure(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, &stubEmbedder{err: errors.New("quota exceeded")}, nil)

	err := store.Add(context.Background(), Document{ID: "doc-1", Content: "x"})
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if q.upsertCalls != 0 {
		t.Errorf("upsert must not be called when embedding fails, got %d calls", q.upsertCalls)
	}
}

func TestStore_Search(t *testing.T) {
	metadata, _ := json.Marshal(map[string]string{MetadataSource: "https://example.com/b"})
	q := &mockQuerier{
		searchResult: []SearchDocumentsRow{
			{
				ID:         "doc-2",
				Content:    "retrieved content",
				Metadata:   metadata,
				CreatedAt:  pgtype.Timestamptz{Time: time.Now(), Valid: true},
				Similarity: 0.92,
			},
		},
	}
	store := New(q, testEmbedder(), nil)

	results, err := store.Search(context.Background(), "query", WithTopK(3))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if q.searchAllCalls != 1 || q.searchCalls != 0 {
		t.Fatalf("expected unfiltered search path, got filtered=%d unfiltered=%d", q.searchCalls, q.searchAllCalls)
	}
	if q.lastSearchAll.ResultLimit != 3 {
		t.Errorf("result limit = %d, want 3", q.lastSearchAll.ResultLimit)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Document.Source() != "https://example.com/b" {
		t.Errorf("source = %q, want %q", results[0].Document.Source(), "https://example.com/b")
	}
	if results[0].Similarity != 0.92 {
		t.Errorf("similarity = %v, want 0.92", results[0].Similarity)
	}
}

func TestStore_Search_WithFilter(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, testEmbedder(), nil)

	_, err := store.Search(context.Background(), "query",
		WithFilter("section", "finance"))
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if q.searchCalls != 1 {
		t.Fatalf("expected filtered search path, got %d calls", q.searchCalls)
	}

	var filter map[string]string
	if err := json.Unmarshal(q.lastSearch.FilterMetadata, &filter); err != nil {
		t.Fatalf("filter is not valid JSON: %v", err)
	}
	if filter["section"] != "finance" {
		t.Errorf("filter = %v, want section=finance", filter)
	}
}

func TestStore_Search_EmptyResultIsNotError(t *testing.T) {
	q := &mockQuerier{searchResult: nil}
	store := New(q, testEmbedder(), nil)

	results, err := store.Search(context.Background(), "nothing matches")
	if err != nil {
		t.Fatalf("empty search must not fail: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestStore_Search_DefaultTopK(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, testEmbedder(), nil)

	if _, err := store.Search(context.Background(), "query"); err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if q.lastSearchAll.ResultLimit != DefaultTopK {
		t.Errorf("default result limit = %d, want %d", q.lastSearchAll.ResultLimit, DefaultTopK)
	}
}

func TestStore_Search_QuerierFailure(t *testing.T) {
	q := &mockQuerier{searchErr: errors.New("connection refused")}
	store := New(q, testEmbedder(), nil)

	if _, err := store.Search(context.Background(), "query"); err == nil {
		t.Fatal("expected error from failing querier")
	}
}

func TestStore_Count(t *testing.T) {
	q := &mockQuerier{countResult: 42}
	store := New(q, testEmbedder(), nil)

	count, err := store.Count(context.Background(), nil)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}

	count, err = store.Count(context.Background(), map[string]string{"section": "hr"})
	if err != nil {
		t.Fatalf("Count() with filter error: %v", err)
	}
	if count != 42 {
		t.Errorf("filtered count = %d, want 42", count)
	}
	if q.lastCountFilter == nil {
		t.Error("expected filter to be passed to querier")
	}
}

func TestStore_Delete(t *testing.T) {
	q := &mockQuerier{}
	store := New(q, testEmbedder(), nil)

	if err := store.Delete(context.Background(), "doc-9"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if q.lastDeleteID != "doc-9" {
		t.Errorf("deleted id = %q, want doc-9", q.lastDeleteID)
	}
}
