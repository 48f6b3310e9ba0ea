package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"
)

const (
	defaultKeyTTL = 10 * time.Minute
	// Minimum spacing between JWKS fetches. A burst of unknown-kid tokens
	// must not turn into a fetch storm against the provider.
	defaultRefreshInterval = time.Minute

	defaultFetchTimeout = 5 * time.Second
)

// KeySet is a process-wide cache of the identity provider's published
// signing keys. Keys are fetched lazily, expire after a TTL, and are
// re-fetched at most once per refresh interval on a key-id miss.
// A warm cache is served stale when a refresh attempt fails.
type KeySet struct {
	url    string
	client *http.Client
	ttl    time.Duration
	every  time.Duration
	now    func() time.Time

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
}

// KeySetOption configures KeySet behavior.
type KeySetOption func(*KeySet)

// WithKeyTTL overrides how long a fetched key set is considered fresh.
func WithKeyTTL(ttl time.Duration) KeySetOption {
	return func(ks *KeySet) {
		if ttl > 0 {
			ks.ttl = ttl
		}
	}
}

// WithRefreshInterval overrides the minimum spacing between fetches.
func WithRefreshInterval(d time.Duration) KeySetOption {
	return func(ks *KeySet) {
		if d >= 0 {
			ks.every = d
		}
	}
}

// WithHTTPClient overrides the HTTP client used to fetch the JWKS document.
func WithHTTPClient(c *http.Client) KeySetOption {
	return func(ks *KeySet) {
		if c != nil {
			ks.client = c
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) KeySetOption {
	return func(ks *KeySet) {
		if fn != nil {
			ks.now = fn
		}
	}
}

// NewKeySet builds a cache around the given JWKS endpoint, typically
// https://<domain>/.well-known/jwks.json.
func NewKeySet(url string, opts ...KeySetOption) *KeySet {
	ks := &KeySet{
		url:    url,
		client: &http.Client{Timeout: defaultFetchTimeout},
		ttl:    defaultKeyTTL,
		every:  defaultRefreshInterval,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ks)
	}
	return ks
}

// Key returns the public key matching kid, refreshing the cache on a miss.
// The mutex is held across the fetch so concurrent misses collapse into a
// single request.
func (ks *KeySet) Key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	fresh := ks.keys != nil && ks.now().Sub(ks.fetchedAt) < ks.ttl
	if fresh {
		if key, ok := ks.keys[kid]; ok {
			return key, nil
		}
	}

	if ks.now().Sub(ks.fetchedAt) >= ks.every {
		keys, err := ks.fetch(ctx)
		if err != nil {
			if ks.keys == nil {
				return nil, Errorf(KindUnknownSigningKey, "signing keys unavailable: %v", err)
			}
			// Serve stale keys; the provider endpoint is flaky, not the token.
		} else {
			ks.keys = keys
			ks.fetchedAt = ks.now()
		}
	}

	if key, ok := ks.keys[kid]; ok {
		return key, nil
	}
	return nil, Errorf(KindUnknownSigningKey, "token signed with unknown key %q", kid)
}

func (ks *KeySet) fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ks.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := ks.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var doc struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		if k.Use != "" && k.Use != "sig" {
			continue
		}
		pub, err := k.publicKey()
		if err != nil {
			return nil, fmt.Errorf("jwk %s: %w", k.Kid, err)
		}
		keys[k.Kid] = pub
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("jwks document contains no usable RSA keys")
	}
	return keys, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) publicKey() (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	e := new(big.Int).SetBytes(eBytes)
	if !e.IsInt64() || e.Int64() <= 0 || e.Int64() > int64(1)<<31 {
		return nil, fmt.Errorf("exponent out of range")
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(e.Int64()),
	}, nil
}
