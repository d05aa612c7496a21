package kernel

import (
	"errors"
	"testing"

	"github.com/routecodex/routecodex/internal/corex"
)

func TestClassifyStatus(t *testing.T) {
	cases := map[int]string{
		401: "auth_rejected",
		403: "auth_rejected",
		408: "upstream_timeout",
		429: "rate_limited",
		500: "upstream_unavailable",
		503: "upstream_unavailable",
		400: "upstream_rejected",
		200: "ok",
	}

	for status, want := range cases {
		if got := classifyStatus(status); got != want {
			t.Errorf("classifyStatus(%d) = %q, want %q", status, got, want)
		}
	}
}

func TestNormalizeUpstreamErrorExtractsNestedErrorType(t *testing.T) {
	body := []byte(`{"error": {"type": "invalid_request_error", "message": "bad field"}}`)

	err := NormalizeUpstreamError(400, "openai-main", "req_1", body)

	if err.Code != "upstream_rejected" {
		t.Fatalf("Code = %q", err.Code)
	}

	if err.UpstreamCode != "invalid_request_error" {
		t.Fatalf("UpstreamCode = %q", err.UpstreamCode)
	}
}

func TestNormalizeUpstreamErrorFallsBackToTopLevelCode(t *testing.T) {
	body := []byte(`{"code": "1261"}`)

	err := NormalizeUpstreamError(400, "glm-main", "req_2", body)

	if err.UpstreamCode != "1261" {
		t.Fatalf("UpstreamCode = %q, want 1261", err.UpstreamCode)
	}
}

func TestNormalizeUpstreamErrorHandlesUnparseableBody(t *testing.T) {
	err := NormalizeUpstreamError(502, "p", "req_3", []byte("not json"))

	if err.Body != nil {
		t.Fatalf("expected nil Body for unparseable upstream payload, got %#v", err.Body)
	}

	if err.Code != "upstream_unavailable" {
		t.Fatalf("Code = %q", err.Code)
	}
}

func TestUpstreamErrorToRouteCodexError(t *testing.T) {
	upstream := NormalizeUpstreamError(429, "openai-main", "req_4", []byte(`{"error":{"code":"rate_limited"}}`))

	err := upstream.ToRouteCodexError()

	var rcErr *corex.RouteCodexError
	if !errors.As(err, &rcErr) {
		t.Fatal("expected RouteCodexError")
	}

	if rcErr.Kind != corex.KindUpstream {
		t.Fatalf("Kind = %q, want upstream", rcErr.Kind)
	}

	if rcErr.RequestID != "req_4" {
		t.Fatalf("RequestID = %q", rcErr.RequestID)
	}
}

func TestNopAuditSinkDiscardsSnapshots(t *testing.T) {
	var sink AuditSink = NopAuditSink{}
	sink.Record(AuditSnapshot{RequestID: "req_1"}) // must not panic
}
