package convo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/quillhq/quill/internal/retrieval"
)

// Sentinel errors for turn execution.
var (
	// ErrGeneration indicates a model call failed.
	ErrGeneration = errors.New("generation failed")

	// ErrRetrieval indicates the knowledge base search failed.
	ErrRetrieval = errors.New("retrieval failed")
)

const (
	// routerPrompt steers the decision step: answer directly or call the
	// retrieval tool when the question needs knowledge base content.
	routerPrompt = "You are a helpful assistant for an organization's knowledge base. " +
		"When the user's question requires facts from the knowledge base, call the " +
		retrieval.ToolName + " tool with a focused search query. " +
		"For greetings, small talk, or questions you can answer from the conversation " +
		"itself, respond directly without calling any tool."

	// answerPrompt renders the grounded generation step. The question is
	// passed in explicitly rather than recovered from message history.
	answerPrompt = `You are an assistant for question-answering tasks. Use the following retrieved context to answer the question. If the context does not contain the answer, say you don't know. Keep the answer concise.

Question: %s

Context:
%s`

	// fallbackAnswer is returned when the model produces empty text.
	fallbackAnswer = "I couldn't produce an answer. Please try rephrasing your question."
)

// Config contains all required parameters for the conversation graph.
type Config struct {
	Genkit  *genkit.Genkit
	Adapter *retrieval.Adapter
	History *History
	Logger  *slog.Logger

	// Tool is the registered retrieval tool, declared to the router model.
	Tool ai.Tool

	// ModelName is the provider-qualified model for both graph steps
	// (e.g. "ollama/llama3.3", "openai/gpt-4o-mini").
	ModelName string

	// GenConfig optionally sets sampling parameters for both graph steps.
	GenConfig *ai.GenerationCommonConfig
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Adapter == nil {
		return errors.New("retrieval adapter is required")
	}
	if cfg.History == nil {
		return errors.New("history is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Tool == nil {
		return errors.New("retrieval tool is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Graph executes conversation turns. It is stateless apart from the shared
// History and safe for concurrent use across threads.
type Graph struct {
	g         *genkit.Genkit
	adapter   *retrieval.Adapter
	history   *History
	logger    *slog.Logger
	tool      ai.Tool
	modelName string
	genConfig *ai.GenerationCommonConfig
}

// Turn is the result of one conversation turn.
type Turn struct {
	// Answer is the model's final text.
	Answer string

	// Messages are the messages this turn produced and committed to
	// history, in order, ending with the answer.
	Messages []*ai.Message

	// Sources lists provenance for the documents retrieved during this
	// turn. Empty when the router answered without retrieval.
	Sources []retrieval.SourceDoc

	// Retrieved reports whether the turn went through the retrieval path.
	Retrieved bool
}

// New creates a conversation graph.
func New(cfg Config) (*Graph, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Graph{
		g:         cfg.Genkit,
		adapter:   cfg.Adapter,
		history:   cfg.History,
		logger:    cfg.Logger,
		tool:      cfg.Tool,
		modelName: cfg.ModelName,
		genConfig: cfg.GenConfig,
	}, nil
}

// generateOpts returns the options shared by both graph steps.
func (gr *Graph) generateOpts(extra ...ai.GenerateOption) []ai.GenerateOption {
	opts := []ai.GenerateOption{ai.WithModelName(gr.modelName)}
	if gr.genConfig != nil {
		opts = append(opts, ai.WithConfig(*gr.genConfig))
	}
	return append(opts, extra...)
}

// decisionKind tags the router's outcome so downstream steps never have to
// sniff message content to tell a tool call from a direct answer.
type decisionKind int

const (
	answeredDirectly decisionKind = iota
	requestedTool
)

type decision struct {
	kind     decisionKind
	text     string            // set when answeredDirectly
	message  *ai.Message       // router's model message, carries the tool request parts
	requests []*ai.ToolRequest // set when requestedTool
}

// Run executes one turn for the thread: decide, optionally retrieve and
// generate a grounded answer, then commit the produced messages to history.
// History is only updated on success.
func (gr *Graph) Run(ctx context.Context, threadID int64, question string) (*Turn, error) {
	prior := gr.history.Messages(threadID)
	userMsg := ai.NewUserMessage(ai.NewTextPart(question))

	dec, err := gr.decide(ctx, append(prior, userMsg))
	if err != nil {
		return nil, fmt.Errorf("%w: decide: %v", ErrGeneration, err)
	}

	if dec.kind == answeredDirectly {
		text := dec.text
		if text == "" {
			gr.logger.Warn("router returned empty answer", "thread_id", threadID)
			text = fallbackAnswer
		}
		produced := []*ai.Message{userMsg, ai.NewModelMessage(ai.NewTextPart(text))}
		gr.history.Append(threadID, produced...)
		gr.logger.Debug("turn completed", "thread_id", threadID, "retrieved", false)
		return &Turn{Answer: text, Messages: produced}, nil
	}

	docs, sources, toolMsg, err := gr.retrieve(ctx, dec.requests)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}

	answer, err := gr.generateAnswer(ctx, question, docs)
	if err != nil {
		return nil, fmt.Errorf("%w: answer: %v", ErrGeneration, err)
	}

	produced := []*ai.Message{
		userMsg,
		dec.message,
		toolMsg,
		ai.NewModelMessage(ai.NewTextPart(answer)),
	}
	gr.history.Append(threadID, produced...)
	gr.logger.Debug("turn completed",
		"thread_id", threadID,
		"retrieved", true,
		"sources", len(sources))
	return &Turn{Answer: answer, Messages: produced, Sources: sources, Retrieved: true}, nil
}

// decide asks the router model whether to answer directly or search.
// WithReturnToolRequests keeps tool execution in the graph's hands instead
// of Genkit's internal loop, so provenance can be captured per call.
func (gr *Graph) decide(ctx context.Context, messages []*ai.Message) (decision, error) {
	resp, err := genkit.Generate(ctx, gr.g, gr.generateOpts(
		ai.WithSystem(routerPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(gr.tool),
		ai.WithReturnToolRequests(true),
	)...)
	if err != nil {
		return decision{}, err
	}

	if requests := resp.ToolRequests(); len(requests) > 0 {
		return decision{
			kind:     requestedTool,
			message:  resp.Message,
			requests: requests,
		}, nil
	}
	return decision{
		kind: answeredDirectly,
		text: strings.TrimSpace(resp.Text()),
	}, nil
}

// retrieve executes the router's tool requests against the knowledge base
// and builds the corresponding tool response message.
func (gr *Graph) retrieve(ctx context.Context, requests []*ai.ToolRequest) ([]retrieval.Doc, []retrieval.SourceDoc, *ai.Message, error) {
	var (
		docs    []retrieval.Doc
		sources []retrieval.SourceDoc
		parts   []*ai.Part
	)
	for _, req := range requests {
		if req.Name != retrieval.ToolName {
			return nil, nil, nil, fmt.Errorf("unexpected tool request %q", req.Name)
		}
		input, err := decodeSearchInput(req.Input)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("decoding tool input: %w", err)
		}

		d, s, err := gr.adapter.Retrieve(ctx, input.Query, input.TopK, input.Filter)
		if err != nil {
			return nil, nil, nil, err
		}
		docs = append(docs, d...)
		sources = append(sources, s...)
		parts = append(parts, ai.NewToolResponsePart(&ai.ToolResponse{
			Name:   req.Name,
			Ref:    req.Ref,
			Output: d,
		}))
	}

	toolMsg := &ai.Message{Role: ai.RoleTool, Content: parts}
	return docs, sources, toolMsg, nil
}

// generateAnswer produces the grounded answer. The question arrives as an
// explicit argument, never recovered by scanning history backwards.
func (gr *Graph) generateAnswer(ctx context.Context, question string, docs []retrieval.Doc) (string, error) {
	rendered := fmt.Sprintf(answerPrompt, question, formatContext(docs))

	resp, err := genkit.Generate(ctx, gr.g, gr.generateOpts(
		ai.WithMessages(ai.NewUserMessage(ai.NewTextPart(rendered))),
	)...)
	if err != nil {
		return "", err
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		gr.logger.Warn("model returned empty grounded answer")
		text = fallbackAnswer
	}
	return text, nil
}

// formatContext renders retrieved documents for the answer prompt.
func formatContext(docs []retrieval.Doc) string {
	if len(docs) == 0 {
		return "(no matching documents found)"
	}
	entries := make([]string, len(docs))
	for i, d := range docs {
		entries[i] = fmt.Sprintf("[%s]\n%s", d.Source, d.Content)
	}
	return strings.Join(entries, "\n\n")
}

// decodeSearchInput converts the model-provided tool input into a typed
// SearchInput via a JSON round trip. Genkit delivers input as decoded JSON
// (map[string]any), not as the tool's schema type.
func decodeSearchInput(in any) (retrieval.SearchInput, error) {
	var si retrieval.SearchInput
	raw, err := json.Marshal(in)
	if err != nil {
		return si, err
	}
	if err := json.Unmarshal(raw, &si); err != nil {
		return si, err
	}
	if strings.TrimSpace(si.Query) == "" {
		return si, errors.New("tool input has empty query")
	}
	return si, nil
}
