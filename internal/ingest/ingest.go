package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/quillhq/quill/internal/knowledge"
)

// Sentinel errors for ingestion failures.
var (
	ErrStoreNil  = errors.New("store cannot be nil")
	ErrLoggerNil = errors.New("logger cannot be nil")
	ErrNoEntries = errors.New("corpus contains no entries")
)

// Entry is a single corpus document as it appears in the JSON input.
type Entry struct {
	URL     string `json:"url"`
	Section string `json:"section"`
	Text    string `json:"text"`
}

// LoadEntries decodes a JSON corpus of the form [{url, section, text}].
func LoadEntries(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}
	return entries, nil
}

// Store defines the storage operations needed by Ingestor.
// Following Go best practices: interfaces are defined by the consumer, not
// the provider. knowledge.Store satisfies this interface.
type Store interface {
	// Add adds a document to the store
	Add(ctx context.Context, doc knowledge.Document) error
}

// Ingestor chunks corpus entries and indexes them into the knowledge store.
type Ingestor struct {
	store     Store
	chunkSize int
	logger    *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithChunkSize overrides the minimum chunk length in runes.
func WithChunkSize(size int) Option {
	return func(in *Ingestor) {
		if size > 0 {
			in.chunkSize = size
		}
	}
}

// NewIngestor creates an ingestor writing to store.
func NewIngestor(store Store, logger *slog.Logger, opts ...Option) (*Ingestor, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if logger == nil {
		return nil, ErrLoggerNil
	}

	in := &Ingestor{
		store:     store,
		chunkSize: DefaultChunkSize,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in, nil
}

// Result summarizes an ingestion run.
type Result struct {
	Entries int // Corpus entries processed
	Chunks  int // Chunks successfully indexed
	Failed  int // Chunks that failed to index
}

// Run chunks and indexes every entry. Individual chunk failures are
// logged and counted; Run only returns an error when the context is
// cancelled.
func (in *Ingestor) Run(ctx context.Context, entries []Entry) (*Result, error) {
	res := &Result{}

	for _, entry := range entries {
		if strings.TrimSpace(entry.Text) == "" {
			in.logger.Warn("skipping entry with empty text",
				slog.String("url", entry.URL),
				slog.String("section", entry.Section))
			continue
		}
		res.Entries++

		chunks := Chunks(entry.Text, in.chunkSize)
		for i, content := range chunks {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			section := entry.Section
			if len(chunks) > 1 {
				section = fmt.Sprintf("%s_part%d", entry.Section, i+1)
			}

			doc := knowledge.Document{
				ID:      generateDocID(content),
				Content: content,
				Metadata: map[string]string{
					knowledge.MetadataSource:  entry.URL,
					knowledge.MetadataSection: section,
					"indexed_at":              time.Now().UTC().Format(time.RFC3339),
				},
			}

			if err := in.store.Add(ctx, doc); err != nil {
				res.Failed++
				in.logger.Warn("failed to index chunk",
					slog.String("url", entry.URL),
					slog.String("section", section),
					slog.Any("error", err))
				continue
			}
			res.Chunks++
		}
	}

	in.logger.Info("ingestion complete",
		slog.Int("entries", res.Entries),
		slog.Int("chunks", res.Chunks),
		slog.Int("failed", res.Failed))

	return res, nil
}

// IngestReader loads a JSON corpus from r and indexes it.
func (in *Ingestor) IngestReader(ctx context.Context, r io.Reader) (*Result, error) {
	entries, err := LoadEntries(r)
	if err != nil {
		return nil, err
	}
	return in.Run(ctx, entries)
}

// generateDocID derives a stable document ID from chunk content, so
// re-ingesting the same corpus overwrites rather than duplicates.
func generateDocID(content string) string {
	hash := sha256.Sum256([]byte(content))
	return "doc_" + hex.EncodeToString(hash[:16])
}
