package kernel

import (
	"encoding/json"
	"time"

	"github.com/routecodex/routecodex/internal/corex"
)

// UpstreamError is the normalized shape every upstream failure is reduced
// to (§4.4 "Error normalization"), regardless of which brand or protocol
// produced it.
type UpstreamError struct {
	StatusCode   int            `json:"statusCode"`
	Code         string         `json:"code"`
	UpstreamCode string         `json:"upstreamCode,omitempty"`
	ProviderKey  string         `json:"providerKey"`
	RequestID    string         `json:"requestId"`
	Body         map[string]any `json:"body,omitempty"`
}

func (e *UpstreamError) Error() string {
	return e.Code
}

// NormalizeUpstreamError builds an UpstreamError from a raw HTTP response
// body, best-effort extracting whatever error code the brand's JSON shape
// happens to use (error.type, error.code, code, type — tried in order since
// no two brands agree on a key name).
func NormalizeUpstreamError(statusCode int, providerKey, requestID string, rawBody []byte) *UpstreamError {
	normalized := &UpstreamError{
		StatusCode:  statusCode,
		Code:        classifyStatus(statusCode),
		ProviderKey: providerKey,
		RequestID:   requestID,
	}

	var parsed map[string]any
	if err := json.Unmarshal(rawBody, &parsed); err == nil {
		normalized.Body = parsed
		normalized.UpstreamCode = extractUpstreamCode(parsed)
	}

	return normalized
}

func extractUpstreamCode(body map[string]any) string {
	if errObj, ok := body["error"].(map[string]any); ok {
		if t, ok := errObj["type"].(string); ok && t != "" {
			return t
		}

		if c, ok := errObj["code"].(string); ok && c != "" {
			return c
		}
	}

	if c, ok := body["code"].(string); ok && c != "" {
		return c
	}

	if t, ok := body["type"].(string); ok && t != "" {
		return t
	}

	return ""
}

func classifyStatus(statusCode int) string {
	switch {
	case statusCode == 401 || statusCode == 403:
		return "auth_rejected"
	case statusCode == 408:
		return "upstream_timeout"
	case statusCode == 429:
		return "rate_limited"
	case statusCode >= 500:
		return "upstream_unavailable"
	case statusCode >= 400:
		return "upstream_rejected"
	default:
		return "ok"
	}
}

// ToRouteCodexError lifts the normalized upstream error into the shared
// error taxonomy so callers outside the kernel only ever see one error type.
func (e *UpstreamError) ToRouteCodexError() error {
	return corex.New(corex.KindUpstream, e.Code, "upstream request failed").
		WithDetails(map[string]any{
			"statusCode":   e.StatusCode,
			"upstreamCode": e.UpstreamCode,
			"providerKey":  e.ProviderKey,
			"body":         e.Body,
		}).
		WithRequestID(e.RequestID)
}

// AuditSnapshot is a redacted record of one upstream call, handed to an
// AuditSink after every attempt (§4.4 "Audit snapshot sink").
type AuditSnapshot struct {
	RequestID   string
	ProviderKey string
	Method      string
	URL         string
	StatusCode  int
	Attempt     int
	Duration    time.Duration
	Err         error
	Timestamp   time.Time
}

// AuditSink receives audit snapshots. Implementations might log them,
// forward them to a metrics pipeline, or both; the kernel never depends on
// what a sink does with a snapshot.
type AuditSink interface {
	Record(snap AuditSnapshot)
}

// NopAuditSink discards every snapshot; used when no auditing is configured.
type NopAuditSink struct{}

func (NopAuditSink) Record(AuditSnapshot) {}
