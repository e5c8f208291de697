package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quillhq/quill/internal/dispatch"
	"github.com/quillhq/quill/internal/log"
)

func TestNewServer_RequiresProcessor(t *testing.T) {
	_, err := NewServer(ServerConfig{Logger: log.NewNop()})
	if err == nil {
		t.Fatal("expected error without processor")
	}
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t, &stubProcessor{result: &dispatch.Result{}})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestReady_WithoutPool(t *testing.T) {
	handler := newTestServer(t, &stubProcessor{result: &dispatch.Result{}})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	handler := newTestServer(t, &stubProcessor{result: &dispatch.Result{}})

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHealthBypassesRateLimit(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:         log.NewNop(),
		Processor:      &stubProcessor{result: &dispatch.Result{}},
		RateLimitRPS:   0.0001,
		RateLimitBurst: 1,
	})
	if err != nil {
		t.Fatal(err)
	}
	handler := srv.Handler()

	// Exhaust the API bucket.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", nil)
	req.RemoteAddr = "192.0.2.50:1000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	// Health probes must keep working.
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		hr := httptest.NewRequest(http.MethodGet, "/health", nil)
		hr.RemoteAddr = "192.0.2.50:1000"
		handler.ServeHTTP(w, hr)
		if w.Code != http.StatusOK {
			t.Fatalf("health request %d status = %d", i+1, w.Code)
		}
	}
}
