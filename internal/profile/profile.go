// Package profile implements family profiles and the profile registry
// (§4.6, §4.7): declarative, per-family policy hooks that adapt a protocol
// adapter's generic output to one provider family's specific quirks
// (header names, request fields it rejects, response shapes it wraps
// differently, signing, error vocabularies) without the protocol or kernel
// layers ever branching on family or brand themselves.
package profile

import (
	"net/http"

	"github.com/routecodex/routecodex/internal/corex"
)

// BusinessError is how an ApplyResponsePolicy hook reclassifies an
// HTTP-200 response that actually carries an upstream business error
// (§4.6's iFlow status=439 case) into a real error for llmswitch to return.
type BusinessError struct {
	Kind         corex.Kind
	Code         string
	Message      string
	UpstreamCode any
}

// Family names one of the eight supported provider families (§4.6).
type Family string

const (
	FamilyIFlow      Family = "iflow"
	FamilyAntigravity Family = "antigravity"
	FamilyQwen       Family = "qwen"
	FamilyGLM        Family = "glm"
	FamilyGemini     Family = "gemini"
	FamilyGeminiCLI  Family = "gemini-cli"
	FamilyOpenAI     Family = "openai"
	FamilyAnthropic  Family = "anthropic"
)

// Profile is the declarative hook set a family registers (§9 redesign
// flag: explicit policy interfaces, not decorator chains). Every hook is
// optional; a nil hook is simply skipped. None of these hooks may inspect
// the provider ID — only the family and, where relevant, the request/body
// already in hand.
type Profile struct {
	Family Family

	// ApplyRequestPolicy mutates the outgoing body in place (e.g. drop a
	// field the family's endpoint rejects, inject a family-specific
	// default, remap a parameter name).
	ApplyRequestPolicy func(body map[string]any)

	// ApplyHeaderPolicy sets/overrides headers beyond what the kernel's
	// auth assembly already set (e.g. a family-specific header name for
	// the API key, an extra version header).
	ApplyHeaderPolicy func(header http.Header, apiKey string)

	// ApplyResponsePolicy mutates a parsed response before it reaches
	// toolbridge (e.g. a family that wraps errors in a non-standard
	// envelope, or reports usage under a different accounting unit). A
	// family that received an HTTP-200 business-error envelope (iFlow's
	// status=439, for instance) signals it by setting parsed["businessError"]
	// to a *BusinessError; llmswitch turns that into a real error response
	// instead of a success.
	ApplyResponsePolicy func(parsed map[string]any)

	// ApplySigningPolicy computes any request-signing the family requires
	// beyond bearer/apikey auth (e.g. an HMAC over the body). Returns the
	// signature to attach as a header; a nil hook means no signing.
	ApplySigningPolicy func(body []byte) (headerName, value string)

	// MapError translates an upstream error code into the family's own
	// vocabulary before it is surfaced, if the family uses nonstandard
	// error identifiers.
	MapError func(upstreamCode string) string
}

// Registry resolves (protocol, providerId, compatibility) triples to a
// bound Profile (§4.7). It never instantiates anything — only selects
// among profiles registered at startup.
type Registry struct {
	profiles map[Family]*Profile
	bindings map[string]Family // "protocol|providerId|compatibility" -> family
}

// NewRegistry constructs an empty Registry preloaded with the eight
// built-in family profiles.
func NewRegistry() *Registry {
	r := &Registry{
		profiles: make(map[Family]*Profile),
		bindings: make(map[string]Family),
	}

	for _, p := range builtinProfiles() {
		r.RegisterProfile(p)
	}

	return r
}

// RegisterProfile adds or replaces a family's profile.
func (r *Registry) RegisterProfile(p *Profile) {
	r.profiles[p.Family] = p
}

// Bind associates a (protocol, providerId, compatibility) triple with a
// family, so Resolve can later look up the right profile for a concrete
// binding without the caller needing to know the family itself.
func (r *Registry) Bind(protocolName, providerID, compatibility string, family Family) {
	r.bindings[bindingKey(protocolName, providerID, compatibility)] = family
}

func bindingKey(protocolName, providerID, compatibility string) string {
	return protocolName + "|" + providerID + "|" + compatibility
}

// Resolve returns the Profile bound to a (protocol, providerId,
// compatibility) triple.
func (r *Registry) Resolve(protocolName, providerID, compatibility string) (*Profile, error) {
	family, ok := r.bindings[bindingKey(protocolName, providerID, compatibility)]
	if !ok {
		return nil, corex.New(corex.KindBinding, "profile_unbound",
			"no family profile bound for this (protocol, providerId, compatibility) triple")
	}

	profile, ok := r.profiles[family]
	if !ok {
		return nil, corex.New(corex.KindBinding, "profile_not_registered",
			"family "+string(family)+" has no registered profile")
	}

	return profile, nil
}
