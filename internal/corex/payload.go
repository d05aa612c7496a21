package corex

// Payload is the unit of data a module chain passes from stage to stage.
// Body holds the wire-format-agnostic JSON document (decoded to map[string]any
// once at ingress and re-encoded once at egress); Stream carries raw SSE
// frame bytes when the request is streaming. Headers lets protocol adapters
// and family profiles exchange transport metadata without the kernel having
// to understand it.
type Payload struct {
	Body      map[string]any
	Raw       []byte
	Streaming bool
	Headers   map[string][]string
	Meta      map[string]any
}

// Clone returns a shallow copy of the payload with a fresh Meta map, enough
// isolation for module chain hand-off without deep-copying request bodies on
// every hop.
func (p *Payload) Clone() *Payload {
	meta := make(map[string]any, len(p.Meta))
	for k, v := range p.Meta {
		meta[k] = v
	}
	return &Payload{
		Body:      p.Body,
		Raw:       p.Raw,
		Streaming: p.Streaming,
		Headers:   p.Headers,
		Meta:      meta,
	}
}
