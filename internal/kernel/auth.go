package kernel

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/routecodex/routecodex/internal/corex"
)

// AuthMode names one of the brand-agnostic authentication schemes the kernel
// knows how to assemble (§4.4 "Auth assembly"). Adding a brand never adds a
// mode; a new brand either reuses one of these or the family profile layer
// maps it onto one via applyHeaderPolicy.
type AuthMode string

const (
	AuthAPIKey    AuthMode = "apikey"
	AuthBearer    AuthMode = "bearer"
	AuthTokenFile AuthMode = "tokenfile"
	AuthCookie    AuthMode = "cookie"
	AuthOAuth     AuthMode = "oauth"
	// AuthNone means the credential is already fully applied by the
	// bound family profile's ApplyHeaderPolicy (e.g. Gemini's
	// x-goog-api-key); the kernel must not add a header of its own on
	// top of it.
	AuthNone AuthMode = "none"
)

// Credential carries whatever a binding needs to authenticate, independent
// of which provider brand it belongs to.
type Credential struct {
	Mode       AuthMode
	HeaderName string // used by apikey/bearer; defaults to "Authorization" for bearer
	Value      string // literal key/token/cookie value
	FilePath   string // used by tokenfile: value is re-read from disk each use
	CookieName string // used by cookie
}

// ApplyAuth assembles the credential onto the outgoing request. It never
// branches on provider brand — only on the declared AuthMode (§4.4: "the
// kernel must never special-case a provider brand").
func ApplyAuth(req *http.Request, cred Credential) error {
	switch cred.Mode {
	case AuthNone:
		return nil

	case AuthAPIKey:
		name := cred.HeaderName
		if name == "" {
			name = "X-Api-Key"
		}

		req.Header.Set(name, cred.Value)

		return nil

	case AuthBearer:
		name := cred.HeaderName
		if name == "" {
			name = "Authorization"
		}

		req.Header.Set(name, "Bearer "+cred.Value)

		return nil

	case AuthTokenFile:
		token, err := readTokenFile(cred.FilePath)
		if err != nil {
			return corex.New(corex.KindAuth, "tokenfile_unreadable", err.Error())
		}

		name := cred.HeaderName
		if name == "" {
			name = "Authorization"
		}

		req.Header.Set(name, "Bearer "+token)

		return nil

	case AuthCookie:
		req.AddCookie(&http.Cookie{Name: cred.CookieName, Value: cred.Value})

		return nil

	case AuthOAuth:
		if err := checkOAuthExpiry(cred.Value); err != nil {
			return err
		}

		req.Header.Set("Authorization", "Bearer "+cred.Value)

		return nil

	default:
		return corex.New(corex.KindAuth, "unknown_auth_mode", fmt.Sprintf("unrecognized auth mode %q", cred.Mode))
	}
}

func readTokenFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read token file %s: %w", path, err)
	}

	return strings.TrimSpace(string(data)), nil
}

// checkOAuthExpiry inspects an unverified JWT's exp claim and fails fast
// with a clear auth error rather than letting the upstream reject a request
// with a stale token (§4.4 "oauth credentials are inspected for expiry
// before use, not after a 401").
func checkOAuthExpiry(token string) error {
	parser := jwt.NewParser()

	claims := jwt.MapClaims{}

	_, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		// Not every oauth token is a JWT we can introspect; let it through
		// and rely on the upstream to reject it if it really is stale.
		return nil
	}

	expVal, err := claims.GetExpirationTime()
	if err != nil || expVal == nil {
		return nil
	}

	if expVal.Before(time.Now()) {
		return corex.New(corex.KindAuth, "oauth_token_expired", "oauth credential expired before the request was sent")
	}

	return nil
}
