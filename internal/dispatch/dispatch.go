package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/quillhq/quill/internal/convo"
	"github.com/quillhq/quill/internal/retrieval"
)

// Sentinel errors for request processing.
var (
	// ErrInvalidSession indicates the session ID is not a valid UUID.
	ErrInvalidSession = errors.New("invalid session id")

	// ErrEmptyQuestion indicates the question was blank.
	ErrEmptyQuestion = errors.New("empty question")

	// ErrPipeline indicates the conversation turn failed.
	ErrPipeline = errors.New("pipeline failed")
)

// Resolver maps session UUIDs to stable conversation thread IDs.
type Resolver interface {
	Resolve(sessionID uuid.UUID) int64
}

// Runner executes one conversation turn on a thread.
type Runner interface {
	Run(ctx context.Context, threadID int64, question string) (*convo.Turn, error)
}

// Result is the caller-facing outcome of processing one question.
type Result struct {
	Answer          string                `json:"answer"`
	SourceDocuments []retrieval.SourceDoc `json:"source_documents"`
	SessionID       string                `json:"session_id"`
}

// Dispatcher validates requests and drives the conversation graph.
// Safe for concurrent use.
type Dispatcher struct {
	registry Resolver
	graph    Runner
	logger   *slog.Logger
}

// New creates a dispatcher.
func New(registry Resolver, graph Runner, logger *slog.Logger) (*Dispatcher, error) {
	if registry == nil {
		return nil, errors.New("session registry is required")
	}
	if graph == nil {
		return nil, errors.New("conversation graph is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Dispatcher{registry: registry, graph: graph, logger: logger}, nil
}

// Process answers one question within a session. The session ID must be a
// UUID; the same session always maps to the same conversation thread.
// SourceDocuments reflects only this invocation's retrieval: it is empty
// whenever the turn answered without searching the knowledge base.
func (d *Dispatcher) Process(ctx context.Context, question, sessionID string) (*Result, error) {
	q := strings.TrimSpace(question)
	if q == "" {
		return nil, ErrEmptyQuestion
	}

	id, err := uuid.Parse(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}

	threadID := d.registry.Resolve(id)
	d.logger.Debug("processing question",
		"session_id", id,
		"thread_id", threadID,
		"question_length", len(q))

	turn, err := d.graph.Run(ctx, threadID, q)
	if err != nil {
		d.logger.Error("conversation turn failed",
			"session_id", id,
			"thread_id", threadID,
			"error", err)
		return nil, fmt.Errorf("%w: %v", ErrPipeline, err)
	}

	// Empty (not null) when the turn skipped retrieval, and never carried
	// over from a previous turn.
	sources := []retrieval.SourceDoc{}
	if turn.Retrieved {
		sources = append(sources, turn.Sources...)
	}
	return &Result{
		Answer:          turn.Answer,
		SourceDocuments: sources,
		SessionID:       id.String(),
	}, nil
}
