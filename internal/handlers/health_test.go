package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHealthHandlerReportsNotReadyUntilFlagged(t *testing.T) {
	var ready atomic.Bool

	h := NewHealthHandler(testLogger(), &ready)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["ready"] != false || body["pipelineReady"] != false || body["status"] != "starting" {
		t.Fatalf("unexpected body: %#v", body)
	}
}

func TestHealthHandlerReportsReadyOnceFlagged(t *testing.T) {
	var ready atomic.Bool
	ready.Store(true)

	h := NewHealthHandler(testLogger(), &ready)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}

	if body["ready"] != true || body["pipelineReady"] != true || body["status"] != "ok" {
		t.Fatalf("unexpected body: %#v", body)
	}
}
