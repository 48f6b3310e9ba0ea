package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Config is the verifier configuration, read once at process start.
type Config struct {
	// Domain is the identity provider domain, e.g. "example.us.auth0.com".
	// Issuer and JWKS URL are derived from it.
	Domain string
	// Audience is the expected aud claim.
	Audience string
	// Algorithms restricts accepted signing algorithms. Defaults to RS256.
	Algorithms []string
}

// Verifier validates bearer tokens and surfaces the embedded permission set.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// JWKSVerifier verifies RS256 tokens against the provider's published keys.
type JWKSVerifier struct {
	keys       *KeySet
	audience   string
	issuer     string
	algorithms []string
}

// NewVerifier builds a JWKSVerifier from config. KeySet options are passed
// through so tests can point the cache at a local endpoint.
func NewVerifier(cfg Config, opts ...KeySetOption) (*JWKSVerifier, error) {
	domain := strings.TrimSpace(cfg.Domain)
	if domain == "" {
		return nil, errors.New("auth: provider domain is required")
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		return nil, errors.New("auth: audience is required")
	}
	algorithms := cfg.Algorithms
	if len(algorithms) == 0 {
		algorithms = []string{"RS256"}
	}
	issuer := fmt.Sprintf("https://%s/", domain)
	keysURL := fmt.Sprintf("https://%s/.well-known/jwks.json", domain)
	return &JWKSVerifier{
		keys:       NewKeySet(keysURL, opts...),
		audience:   audience,
		issuer:     issuer,
		algorithms: algorithms,
	}, nil
}

// ExtractBearerToken pulls the raw token out of an Authorization header value.
func ExtractBearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", Errorf(KindAuthHeaderMissing, "authorization header missing")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", Errorf(KindAuthHeaderMalformed, "authorization header must be of the form Bearer <token>")
	}
	return parts[1], nil
}

// Verify checks signature, audience, issuer and expiry, then extracts the
// permissions claim. Every failure mode maps to a distinct Kind.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, Errorf(KindUnknownSigningKey, "token header lacks a key id")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods(v.algorithms),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, Errorf(KindInvalidToken, "token lacks a subject claim")
	}
	if claims.Permissions == nil {
		return nil, Errorf(KindPermissionsClaimMissing, "permissions claim missing from token")
	}
	return claims, nil
}

func classifyTokenError(err error) error {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr
	}
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Errorf(KindTokenExpired, "token is expired")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return Errorf(KindInvalidAudience, "token audience does not match")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return Errorf(KindInvalidSignature, "token signature verification failed")
	default:
		return Errorf(KindInvalidToken, "token validation failed")
	}
}
