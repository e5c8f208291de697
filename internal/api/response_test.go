package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, 201, map[string]string{"message": "hello"})

	if w.Code != 201 {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("Content-Length") == "" {
		t.Error("Content-Length not set")
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["message"] != "hello" {
		t.Errorf("message = %q", body["message"])
	}
}

func TestWriteJSON_EncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()
	// Channels cannot be JSON-encoded; buffer-first lets us still send 500.
	writeJSON(w, 200, map[string]any{"ch": make(chan int)})

	if w.Code != 500 {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, 400, "bad_request", "invalid input")

	if w.Code != 400 {
		t.Errorf("status = %d, want 400", w.Code)
	}

	var envelope ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &envelope); err != nil {
		t.Fatal(err)
	}
	if envelope.Error != "bad_request" {
		t.Errorf("error = %q", envelope.Error)
	}
	if envelope.Message != "invalid input" {
		t.Errorf("message = %q", envelope.Message)
	}
}
