package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testAudience = "backend"
	testIssuer   = "https://todopad.test/"
	testKid      = "test-key-1"
)

func generateKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	return key
}

// jwksHandler serves a single-key JWKS document for the given key pair.
func jwksHandler(key *rsa.PrivateKey, kid string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pub := &key.PublicKey
		doc := map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": kid,
				"use": "sig",
				"alg": "RS256",
				"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}

func newTestVerifier(jwksURL string) *JWKSVerifier {
	return &JWKSVerifier{
		keys:       NewKeySet(jwksURL),
		audience:   testAudience,
		issuer:     testIssuer,
		algorithms: []string{"RS256"},
	}
}

func baseClaims(perms []string) *Claims {
	now := time.Now()
	return &Claims{
		Permissions: perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "auth0|user-1",
			Issuer:    testIssuer,
			Audience:  jwt.ClaimStrings{testAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
}

func mintToken(t *testing.T, key *rsa.PrivateKey, kid string, claims *Claims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	signed, err := tok.SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestVerifyValidToken(t *testing.T) {
	key := generateKey(t)
	srv := httptest.NewServer(jwksHandler(key, testKid))
	defer srv.Close()

	v := newTestVerifier(srv.URL)
	token := mintToken(t, key, testKid, baseClaims([]string{PermReadOwnUser, PermWriteOwnTodos}))

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "auth0|user-1" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if !claims.HasPermission(PermReadOwnUser) || !claims.HasPermission(PermWriteOwnTodos) {
		t.Fatalf("permissions not preserved: %v", claims.Permissions)
	}
	if claims.HasPermission(PermReadAllUsers) {
		t.Fatalf("unexpected permission granted")
	}
}

func TestVerifyFailureKinds(t *testing.T) {
	key := generateKey(t)
	srv := httptest.NewServer(jwksHandler(key, testKid))
	defer srv.Close()

	v := newTestVerifier(srv.URL)

	cases := map[string]struct {
		mutate func(*Claims)
		want   Kind
	}{
		"expired": {
			mutate: func(c *Claims) { c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute)) },
			want:   KindTokenExpired,
		},
		"wrong audience": {
			mutate: func(c *Claims) { c.Audience = jwt.ClaimStrings{"frontend"} },
			want:   KindInvalidAudience,
		},
		"wrong issuer": {
			mutate: func(c *Claims) { c.Issuer = "https://someone-else.test/" },
			want:   KindInvalidToken,
		},
		"missing expiry": {
			mutate: func(c *Claims) { c.ExpiresAt = nil },
			want:   KindInvalidToken,
		},
		"missing subject": {
			mutate: func(c *Claims) { c.Subject = "" },
			want:   KindInvalidToken,
		},
		"missing permissions claim": {
			mutate: func(c *Claims) { c.Permissions = nil },
			want:   KindPermissionsClaimMissing,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			claims := baseClaims([]string{PermReadOwnUser})
			tc.mutate(claims)
			token := mintToken(t, key, testKid, claims)

			_, err := v.Verify(context.Background(), token)
			var authErr *Error
			if !errors.As(err, &authErr) {
				t.Fatalf("expected *auth.Error, got %v", err)
			}
			if authErr.Kind != tc.want {
				t.Fatalf("expected kind %s, got %s (%v)", tc.want, authErr.Kind, err)
			}
		})
	}
}

func TestVerifyRejectsForeignSignature(t *testing.T) {
	key := generateKey(t)
	srv := httptest.NewServer(jwksHandler(key, testKid))
	defer srv.Close()

	v := newTestVerifier(srv.URL)

	// Signed by a key the provider never published, under the published kid.
	attacker := generateKey(t)
	token := mintToken(t, attacker, testKid, baseClaims([]string{PermReadOwnUser}))

	_, err := v.Verify(context.Background(), token)
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *auth.Error, got %v", err)
	}
	if authErr.Kind != KindInvalidSignature {
		t.Fatalf("expected InvalidSignature, got %s", authErr.Kind)
	}
}

func TestVerifyUnknownSigningKey(t *testing.T) {
	key := generateKey(t)
	srv := httptest.NewServer(jwksHandler(key, testKid))
	defer srv.Close()

	v := newTestVerifier(srv.URL)

	for name, kid := range map[string]string{
		"unpublished kid": "rotated-away",
		"missing kid":     "",
	} {
		t.Run(name, func(t *testing.T) {
			token := mintToken(t, key, kid, baseClaims([]string{PermReadOwnUser}))
			_, err := v.Verify(context.Background(), token)
			var authErr *Error
			if !errors.As(err, &authErr) {
				t.Fatalf("expected *auth.Error, got %v", err)
			}
			if authErr.Kind != KindUnknownSigningKey {
				t.Fatalf("expected UnknownSigningKey, got %s", authErr.Kind)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]struct {
		header    string
		wantToken string
		wantKind  Kind
	}{
		"valid":            {header: "Bearer abc.def.ghi", wantToken: "abc.def.ghi"},
		"case insensitive": {header: "bearer abc", wantToken: "abc"},
		"missing":          {header: "", wantKind: KindAuthHeaderMissing},
		"blank":            {header: "   ", wantKind: KindAuthHeaderMissing},
		"no scheme":        {header: "abc.def.ghi", wantKind: KindAuthHeaderMalformed},
		"wrong scheme":     {header: "Basic dXNlcjpwYXNz", wantKind: KindAuthHeaderMalformed},
		"token missing":    {header: "Bearer", wantKind: KindAuthHeaderMalformed},
		"extra parts":      {header: "Bearer abc def", wantKind: KindAuthHeaderMalformed},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			token, err := ExtractBearerToken(tc.header)
			if tc.wantKind == "" {
				if err != nil {
					t.Fatalf("ExtractBearerToken: %v", err)
				}
				if token != tc.wantToken {
					t.Fatalf("expected token %q, got %q", tc.wantToken, token)
				}
				return
			}
			var authErr *Error
			if !errors.As(err, &authErr) {
				t.Fatalf("expected *auth.Error, got %v", err)
			}
			if authErr.Kind != tc.wantKind {
				t.Fatalf("expected kind %s, got %s", tc.wantKind, authErr.Kind)
			}
		})
	}
}

func TestNewVerifierConfig(t *testing.T) {
	v, err := NewVerifier(Config{Domain: "example.us.auth0.com", Audience: "backend"})
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}
	if v.issuer != "https://example.us.auth0.com/" {
		t.Fatalf("unexpected issuer: %s", v.issuer)
	}
	if v.keys.url != "https://example.us.auth0.com/.well-known/jwks.json" {
		t.Fatalf("unexpected jwks url: %s", v.keys.url)
	}
	if len(v.algorithms) != 1 || v.algorithms[0] != "RS256" {
		t.Fatalf("expected RS256 default, got %v", v.algorithms)
	}

	if _, err := NewVerifier(Config{Audience: "backend"}); err == nil {
		t.Fatal("expected error for missing domain")
	}
	if _, err := NewVerifier(Config{Domain: "example.us.auth0.com"}); err == nil {
		t.Fatal("expected error for missing audience")
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	if _, ok := ClaimsFromContext(ctx); ok {
		t.Fatal("expected no claims on empty context")
	}
	if _, ok := SubjectFromContext(ctx); ok {
		t.Fatal("expected no subject on empty context")
	}

	claims := baseClaims([]string{PermReadOwnTodos})
	ctx = ContextWithClaims(ctx, claims)

	got, ok := ClaimsFromContext(ctx)
	if !ok || !got.HasPermission(PermReadOwnTodos) {
		t.Fatalf("claims not recovered from context: %v ok=%v", got, ok)
	}
	subject, ok := SubjectFromContext(ctx)
	if !ok || subject != "auth0|user-1" {
		t.Fatalf("unexpected subject: %q ok=%v", subject, ok)
	}
}
