package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/quillhq/quill/internal/knowledge"
)

// ToolName is the stable Genkit tool name the router model selects.
const ToolName = "search_knowledge"

// toolDescription is consumed by the model's tool-selection mechanism.
const toolDescription = "Search the organization knowledge base and return the entries " +
	"closest in meaning to the query. " +
	"Use this whenever the question concerns the organization, its services, " +
	"policies, or any fact that may be documented internally. " +
	"Returns: matched documents with their source URLs."

// Snippet bounds.
const (
	// DefaultSnippetLen is the number of runes kept from a document's
	// content for caller-facing provenance display.
	DefaultSnippetLen = 30

	// truncationMarker is appended when content exceeds the snippet length.
	truncationMarker = "..."
)

// TopK bounds for model-supplied result counts.
const (
	DefaultTopK = 5
	MaxTopK     = 10
)

// SearchInput is the model-facing argument schema for the tool.
type SearchInput struct {
	Query  string            `json:"query" jsonschema_description:"The search query string"`
	TopK   int               `json:"topK,omitempty" jsonschema_description:"Maximum results to return (1-10)"`
	Filter map[string]string `json:"filter,omitempty" jsonschema_description:"Optional metadata constraints, e.g. {\"section\": \"finance\"}"`
}

// Doc is one retrieved document as serialized into the tool result.
type Doc struct {
	Source  string `json:"source"`
	Content string `json:"content"`
}

// SourceDoc is a caller-facing provenance entry: the document's source
// identifier and a truncated prefix of its content.
type SourceDoc struct {
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

// Searcher is the slice of the knowledge store the adapter needs.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// Adapter adapts the knowledge store to a model-callable retrieval tool.
type Adapter struct {
	store      Searcher
	snippetLen int
	topK       int // default result count when the model supplies none
	logger     *slog.Logger
}

// NewAdapter creates an Adapter. snippetLen <= 0 selects DefaultSnippetLen;
// topK <= 0 selects DefaultTopK, and values above MaxTopK are capped.
func NewAdapter(store Searcher, snippetLen, topK int, logger *slog.Logger) (*Adapter, error) {
	if store == nil {
		return nil, errors.New("searcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if snippetLen <= 0 {
		snippetLen = DefaultSnippetLen
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	return &Adapter{store: store, snippetLen: snippetLen, topK: topK, logger: logger}, nil
}

// Retrieve runs a similarity search and returns the retrieved documents
// together with their provenance metadata, in ranking order.
//
// Fewer than k results means the index had fewer matches; zero results is a
// valid empty outcome, not an error. The returned SourceDoc slice
// corresponds 1:1, in order, to the returned documents.
func (a *Adapter) Retrieve(ctx context.Context, query string, k int, filter map[string]string) ([]Doc, []SourceDoc, error) {
	k = clampTopK(k, a.topK)

	opts := []knowledge.SearchOption{knowledge.WithTopK(k)}
	for key, value := range filter {
		opts = append(opts, knowledge.WithFilter(key, value))
	}

	results, err := a.store.Search(ctx, query, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("knowledge search: %w", err)
	}

	docs := make([]Doc, 0, len(results))
	sources := make([]SourceDoc, 0, len(results))
	for _, r := range results {
		docs = append(docs, Doc{
			Source:  r.Document.Source(),
			Content: r.Document.Content,
		})
		sources = append(sources, SourceDoc{
			Source:  r.Document.Source(),
			Snippet: snippet(r.Document.Content, a.snippetLen),
		})
	}

	a.logger.Debug("retrieval completed", "query_length", len(query), "k", k, "results", len(docs))
	return docs, sources, nil
}

// Register registers the adapter as a Genkit tool so the router model can
// declare and request it. The registered handler returns only the documents;
// provenance capture happens in Retrieve, on the graph's execution path.
func Register(g *genkit.Genkit, a *Adapter) ai.Tool {
	return genkit.DefineTool(g, ToolName, toolDescription,
		func(ctx *ai.ToolContext, input SearchInput) ([]Doc, error) {
			docs, _, err := a.Retrieve(ctx, input.Query, input.TopK, input.Filter)
			return docs, err
		})
}

// clampTopK bounds a model-supplied k to [1, MaxTopK], falling back to the
// adapter's configured default when unset.
func clampTopK(k, def int) int {
	if k <= 0 {
		return def
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// snippet returns the first n runes of content, appending the truncation
// marker when content is longer. Rune-based so multi-byte text never gets
// cut mid-character.
func snippet(content string, n int) string {
	runes := []rune(content)
	if len(runes) <= n {
		return content
	}
	return string(runes[:n]) + truncationMarker
}
