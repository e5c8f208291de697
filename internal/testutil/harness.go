package testutil

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"
)

// Harness bundles a plugin-free Genkit instance with the scripted doubles
// already registered on it.
type Harness struct {
	Genkit   *genkit.Genkit
	Model    *ScriptedModel
	Embedder *HashEmbedder
}

// NewHarness initializes Genkit and registers a scripted model and a hash
// embedder of the given dimension. The fallback text is returned by the
// model whenever no scripted rule matches.
func NewHarness(t *testing.T, fallback string, dim int) *Harness {
	t.Helper()

	g := genkit.Init(context.Background())
	model := NewScriptedModel(fallback)
	model.Register(g)
	embedder := NewHashEmbedder(dim)
	embedder.Register(g)

	return &Harness{
		Genkit:   g,
		Model:    model,
		Embedder: embedder,
	}
}
