// Package kernel implements the provider kernel (§4.4): brand-agnostic
// authentication, HTTP execution with retries, response decompression,
// error normalization, and audit snapshotting. It must never branch on a
// provider's brand — only on declared AuthMode/RetryStrategy values.
package kernel

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/routecodex/routecodex/internal/corex"
	"github.com/routecodex/routecodex/internal/memory"
)

// Binding is the minimal shape the kernel needs out of a Provider Binding
// to execute a request: where to send it, how to authenticate, and how
// aggressively to retry.
type Binding struct {
	ProviderKey string
	Credential  Credential
	Retry       RetryPolicy
}

// Executor runs HTTP requests against upstream providers on behalf of the
// kernel's callers (normally a protocol adapter that has already built the
// request body).
type Executor struct {
	client   *http.Client
	sink     AuditSink
	logger   *slog.Logger
	breakers *memory.Registry
}

// Option configures an Executor.
type Option func(*Executor)

// WithAuditSink installs a non-default audit sink.
func WithAuditSink(sink AuditSink) Option {
	return func(e *Executor) { e.sink = sink }
}

// WithHTTPClient installs a non-default HTTP client, e.g. for tests.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Executor) { e.client = client }
}

// WithCircuitBreakers gates every Do call on a per-provider-boundary circuit
// breaker (§5 "Circuit breakers ... per error-boundary"). A nil registry (the
// default) disables breaker gating entirely.
func WithCircuitBreakers(breakers *memory.Registry) Option {
	return func(e *Executor) { e.breakers = breakers }
}

// defaultTransport bounds the per-host connection pool (§5 "Connection pool
// (upstream HTTP). A per-host pool with idle-timeout and max-concurrent
// limits; connections are not shared across hosts") — http.Transport already
// partitions by host, so the only job here is setting the limits.
func defaultTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConnsPerHost = 16
	t.MaxConnsPerHost = 64
	t.IdleConnTimeout = 90 * time.Second

	return t
}

// NewExecutor constructs an Executor. A nil logger is replaced with the
// default slog logger.
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	e := &Executor{
		client: &http.Client{Timeout: 120 * time.Second, Transport: defaultTransport()},
		sink:   NopAuditSink{},
		logger: logger,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Result carries the final, decompressed response body plus status, after
// retries have been exhausted or a success was reached.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do executes method/url/body against the upstream, applying auth and
// retrying per binding.Retry, decompressing the final response body, and
// emitting one audit snapshot per attempt.
func (e *Executor) Do(ctx context.Context, requestID string, binding Binding, method, url string, header http.Header, body []byte) (*Result, error) {
	var breaker *memory.CircuitBreaker

	if e.breakers != nil {
		breaker = e.breakers.GetOrCreate(binding.ProviderKey)

		if ok, err := breaker.Allow(); !ok {
			return nil, corex.New(corex.KindInstance, "circuit_open", err.Error()).WithRequestID(requestID)
		}
	}

	var result *Result

	err := withRetry(ctx, binding.Retry, func(attemptNum int) (int, error) {
		start := time.Now()

		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}

		req.Header = header.Clone()

		if err := ApplyAuth(req, binding.Credential); err != nil {
			return 0, err
		}

		resp, err := e.client.Do(req)

		snap := AuditSnapshot{
			RequestID:   requestID,
			ProviderKey: binding.ProviderKey,
			Method:      method,
			URL:         url,
			Attempt:     attemptNum,
			Duration:    time.Since(start),
			Err:         err,
			Timestamp:   time.Now(),
		}

		if err != nil {
			e.sink.Record(snap)
			return 0, err
		}

		defer resp.Body.Close()

		snap.StatusCode = resp.StatusCode
		e.sink.Record(snap)

		reader, err := decompressReader(resp)
		if err != nil {
			return resp.StatusCode, err
		}

		raw, err := io.ReadAll(reader)
		if err != nil {
			return resp.StatusCode, err
		}

		result = &Result{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       raw,
		}

		if Retryable(resp.StatusCode, nil) && resp.StatusCode >= 400 {
			return resp.StatusCode, nil
		}

		return resp.StatusCode, nil
	})

	if err != nil {
		if breaker != nil {
			breaker.RecordFailure()
		}

		return nil, err
	}

	if result == nil {
		if breaker != nil {
			breaker.RecordFailure()
		}

		return nil, context.DeadlineExceeded
	}

	if result.StatusCode >= 500 {
		if breaker != nil {
			breaker.RecordFailure()
		}
	} else if breaker != nil {
		breaker.RecordSuccess()
	}

	if result.StatusCode >= 400 {
		return result, NormalizeUpstreamError(result.StatusCode, binding.ProviderKey, requestID, result.Body).ToRouteCodexError()
	}

	return result, nil
}
