package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// EmbedderName is the provider-qualified name the hash embedder registers under.
const EmbedderName = "mock/embedder"

// HashEmbedder is a deterministic embedder for tests. Unknown content maps
// to a normalized SHA-256 derived vector; explicit vectors can be pinned per
// content string to control cosine similarity between inputs.
//
// Safe for concurrent use.
type HashEmbedder struct {
	mu     sync.Mutex
	pinned map[string][]float32
	dim    int
}

// NewHashEmbedder creates an embedder producing vectors of the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{
		pinned: make(map[string][]float32),
		dim:    dim,
	}
}

// Pin fixes the vector returned for content, overriding the hash derivation.
func (e *HashEmbedder) Pin(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pinned[content] = vec
}

// Register defines the embedder on g under EmbedderName.
func (e *HashEmbedder) Register(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, EmbedderName, &ai.EmbedderOptions{
		Label:      "Hash Test Embedder",
		Dimensions: e.dim,
	}, e.embed)
}

// Name implements ai.Embedder so the value can also be injected directly
// without a Genkit registry.
func (e *HashEmbedder) Name() string { return EmbedderName }

// Embed implements ai.Embedder.
func (e *HashEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	return e.embed(ctx, req)
}

func (e *HashEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	embeddings := make([]*ai.Embedding, len(req.Input))
	for i, doc := range req.Input {
		embeddings[i] = &ai.Embedding{Embedding: e.vectorFor(documentText(doc))}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func (e *HashEmbedder) vectorFor(content string) []float32 {
	e.mu.Lock()
	v, ok := e.pinned[content]
	e.mu.Unlock()
	if ok {
		return v
	}
	return hashVector(content, e.dim)
}

func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, p := range doc.Content {
		if p.Kind == ai.PartText {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// hashVector derives a unit vector from content via SHA-256 so that equal
// content always embeds identically.
func hashVector(content string, dim int) []float32 {
	sum := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)
	for i := range vec {
		idx := (i * 4) % len(sum)
		bits := binary.LittleEndian.Uint32([]byte{
			sum[idx%32],
			sum[(idx+1)%32],
			sum[(idx+2)%32],
			sum[(idx+3)%32],
		})
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec
}
