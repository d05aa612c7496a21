package kernel

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newRequest(t *testing.T) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "http://example.com/v1/chat", nil)

	return req
}

func TestApplyAuthAPIKeyDefaultHeader(t *testing.T) {
	req := newRequest(t)

	if err := ApplyAuth(req, Credential{Mode: AuthAPIKey, Value: "secret"}); err != nil {
		t.Fatalf("ApplyAuth: %v", err)
	}

	if req.Header.Get("X-Api-Key") != "secret" {
		t.Fatalf("expected X-Api-Key header to be set")
	}
}

func TestApplyAuthBearerDefaultHeader(t *testing.T) {
	req := newRequest(t)

	if err := ApplyAuth(req, Credential{Mode: AuthBearer, Value: "tok"}); err != nil {
		t.Fatalf("ApplyAuth: %v", err)
	}

	if got := req.Header.Get("Authorization"); got != "Bearer tok" {
		t.Fatalf("Authorization = %q, want Bearer tok", got)
	}
}

func TestApplyAuthBearerCustomHeaderName(t *testing.T) {
	req := newRequest(t)

	if err := ApplyAuth(req, Credential{Mode: AuthBearer, HeaderName: "X-Custom-Auth", Value: "tok"}); err != nil {
		t.Fatalf("ApplyAuth: %v", err)
	}

	if got := req.Header.Get("X-Custom-Auth"); got != "Bearer tok" {
		t.Fatalf("X-Custom-Auth = %q", got)
	}
}

func TestApplyAuthCookie(t *testing.T) {
	req := newRequest(t)

	if err := ApplyAuth(req, Credential{Mode: AuthCookie, CookieName: "session", Value: "abc"}); err != nil {
		t.Fatalf("ApplyAuth: %v", err)
	}

	cookie, err := req.Cookie("session")
	if err != nil || cookie.Value != "abc" {
		t.Fatalf("expected session cookie abc, got %v err=%v", cookie, err)
	}
}

func TestApplyAuthTokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token.txt")

	if err := os.WriteFile(path, []byte("file-token\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	req := newRequest(t)

	if err := ApplyAuth(req, Credential{Mode: AuthTokenFile, FilePath: path}); err != nil {
		t.Fatalf("ApplyAuth: %v", err)
	}

	if got := req.Header.Get("Authorization"); got != "Bearer file-token" {
		t.Fatalf("Authorization = %q, want Bearer file-token", got)
	}
}

func TestApplyAuthTokenFileMissing(t *testing.T) {
	req := newRequest(t)

	err := ApplyAuth(req, Credential{Mode: AuthTokenFile, FilePath: "/nonexistent/path"})
	if err == nil {
		t.Fatal("expected error for missing token file")
	}
}

func TestApplyAuthUnknownMode(t *testing.T) {
	req := newRequest(t)

	if err := ApplyAuth(req, Credential{Mode: AuthMode("bogus")}); err == nil {
		t.Fatal("expected error for unknown auth mode")
	}
}

func signUnverifiedJWT(t *testing.T, exp time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	})

	signed, err := token.SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	return signed
}

func TestApplyAuthOAuthRejectsExpiredToken(t *testing.T) {
	req := newRequest(t)

	expired := signUnverifiedJWT(t, time.Now().Add(-time.Hour))

	err := ApplyAuth(req, Credential{Mode: AuthOAuth, Value: expired})
	if err == nil {
		t.Fatal("expected error for expired oauth token")
	}
}

func TestApplyAuthOAuthAcceptsFreshToken(t *testing.T) {
	req := newRequest(t)

	fresh := signUnverifiedJWT(t, time.Now().Add(time.Hour))

	if err := ApplyAuth(req, Credential{Mode: AuthOAuth, Value: fresh}); err != nil {
		t.Fatalf("ApplyAuth: %v", err)
	}

	if got := req.Header.Get("Authorization"); got != "Bearer "+fresh {
		t.Fatal("expected Authorization header set to bearer token")
	}
}

func TestApplyAuthOAuthNonJWTPassesThrough(t *testing.T) {
	req := newRequest(t)

	if err := ApplyAuth(req, Credential{Mode: AuthOAuth, Value: "opaque-token"}); err != nil {
		t.Fatalf("ApplyAuth: %v", err)
	}
}
