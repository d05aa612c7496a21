package corex

import "time"

// RuntimeMetadata carries the resolved provider binding and any upstream
// hints a request has accumulated by the time it reaches the kernel.
type RuntimeMetadata struct {
	ProviderProtocol     string
	ProviderID           string
	ProviderFamily       string
	CompatibilityProfile string
	BaseURL              string
	Category             string // default | longcontext | thinking | background
	ToolCallIDStyle      string // fc | preserve
	Hints                map[string]any
}

// RequestContext is the per-request object described in the data model
// (§3): created at route-match, moved through the chain, destroyed at
// response-emit or error-surface.
type RequestContext struct {
	RequestID string
	RouteID   string
	StartTime time.Time
	Runtime   RuntimeMetadata
}

// NewRequestContext creates a Request Context stamped with the current time
// and a fresh correlation id.
func NewRequestContext(routeID string) *RequestContext {
	return &RequestContext{
		RequestID: NewRequestID(),
		RouteID:   routeID,
		StartTime: time.Now(),
		Runtime:   RuntimeMetadata{Hints: map[string]any{}},
	}
}

// Elapsed returns the time since the request started.
func (c *RequestContext) Elapsed() time.Duration {
	return time.Since(c.StartTime)
}
