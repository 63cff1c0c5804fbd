package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "unit-test-secret"

func mintToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func baseClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  "user-1",
		"role": "member",
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(Options{Secret: []byte(testSecret)})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}
	return v
}

func TestVerifyValidToken(t *testing.T) {
	v := newTestVerifier(t)
	claims, err := v.Verify(mintToken(t, testSecret, baseClaims()))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "user-1" || claims.Role != RoleMember {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := newTestVerifier(t)

	wrongSecret := mintToken(t, "other-secret", baseClaims())
	if _, err := v.Verify(wrongSecret); err == nil {
		t.Fatalf("expected error for wrong secret")
	}

	expired := baseClaims()
	expired["exp"] = time.Now().Add(-2 * time.Hour).Unix()
	if _, err := v.Verify(mintToken(t, testSecret, expired)); err == nil {
		t.Fatalf("expected error for expired token")
	}

	noSubject := baseClaims()
	delete(noSubject, "sub")
	if _, err := v.Verify(mintToken(t, testSecret, noSubject)); err == nil {
		t.Fatalf("expected error for missing subject")
	}

	badRole := baseClaims()
	badRole["role"] = "superuser"
	if _, err := v.Verify(mintToken(t, testSecret, badRole)); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func TestVerifyEnforcesIssuerAndAudience(t *testing.T) {
	v, err := NewVerifier(Options{Secret: []byte(testSecret), Issuer: "starshop", Audience: "escrowd"})
	if err != nil {
		t.Fatalf("new verifier: %v", err)
	}

	claims := baseClaims()
	claims["iss"] = "starshop"
	claims["aud"] = "escrowd"
	if _, err := v.Verify(mintToken(t, testSecret, claims)); err != nil {
		t.Fatalf("verify: %v", err)
	}

	claims["iss"] = "somewhere-else"
	if _, err := v.Verify(mintToken(t, testSecret, claims)); err == nil {
		t.Fatalf("expected error for wrong issuer")
	}
}

func TestMiddlewareAttachesClaims(t *testing.T) {
	v := newTestVerifier(t)
	var got *Claims
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := FromContext(r.Context())
		if err != nil {
			t.Fatalf("claims missing from context: %v", err)
		}
		got = claims
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, baseClaims()))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if got == nil || got.Subject != "user-1" {
		t.Fatalf("claims not propagated: %+v", got)
	}

	// Missing and malformed headers never reach the handler.
	for _, header := range []string{"", "Token abc", "Bearer not-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, req)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, recorder.Code)
		}
	}
}

func TestRequireRole(t *testing.T) {
	v := newTestVerifier(t)
	handler := v.Middleware(RequireRole(RoleSystem)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, baseClaims()))
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("member hitting system route: expected 403, got %d", recorder.Code)
	}

	system := baseClaims()
	system["role"] = "system"
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, testSecret, system))
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusNoContent {
		t.Fatalf("system role: expected 204, got %d", recorder.Code)
	}
}
