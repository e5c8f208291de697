package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/quillhq/quill/internal/dispatch"
)

// maxAskBodyBytes bounds the request body to keep oversized payloads out
// of the JSON decoder.
const maxAskBodyBytes = 64 * 1024

// Processor answers one question within a session.
type Processor interface {
	Process(ctx context.Context, question, sessionID string) (*dispatch.Result, error)
}

// askRequest is the POST /api/v1/ask request body.
type askRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// askHandler serves question answering requests.
type askHandler struct {
	processor Processor
	logger    *slog.Logger
}

func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAskBodyBytes)

	var req askRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	// Reject trailing garbage after the JSON object.
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must contain a single JSON object")
		return
	}

	result, err := h.processor.Process(r.Context(), req.Question, req.SessionID)
	if err != nil {
		h.writeProcessError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// writeProcessError maps pipeline sentinel errors onto HTTP statuses.
func (h *askHandler) writeProcessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrEmptyQuestion):
		writeError(w, http.StatusBadRequest, "empty_question", "question must not be empty")
	case errors.Is(err, dispatch.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, "invalid_session", "session_id must be a valid UUID")
	default:
		requestID, _ := requestIDFromContext(r.Context())
		h.logger.Error("ask request failed",
			"error", err,
			"request_id", requestID,
		)
		writeError(w, http.StatusInternalServerError, "processing_failed", "failed to answer the question")
	}
}
