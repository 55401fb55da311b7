package weave

import (
	"crypto"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
)

// JWKSKeySet resolves a key ID to the public key that should verify a token's
// signature. Callers typically back this with a fetched JWKS document,
// refreshed on the same schedule as the config file (config.go).
type JWKSKeySet interface {
	KeyForID(kid string) (crypto.PublicKey, bool)
}

// jsonWebKeySet adapts a parsed go-jose JSONWebKeySet to JWKSKeySet.
type jsonWebKeySet struct {
	set jose.JSONWebKeySet
}

// ParseJWKS parses a JWKS document as served by an identity provider's
// `/.well-known/jwks.json` endpoint.
func ParseJWKS(data []byte) (JWKSKeySet, error) {
	var set jose.JSONWebKeySet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing JWKS: %w", err)
	}
	return &jsonWebKeySet{set: set}, nil
}

func (j *jsonWebKeySet) KeyForID(kid string) (crypto.PublicKey, bool) {
	keys := j.set.Key(kid)
	if len(keys) == 0 {
		return nil, false
	}
	return keys[0].Key, true
}

// bearerTokenClaims is the subset of a verified token's claims this gateway
// understands; ClaimPermissions is expected to carry the same shape
// OperationPermissions itself marshals to.
type bearerTokenClaims struct {
	jwt.RegisteredClaims
	ClaimPermissions json.RawMessage `json:"weave_permissions"`
}

func (c bearerTokenClaims) permissions() (OperationPermissions, error) {
	if len(c.ClaimPermissions) == 0 {
		return OperationPermissions{}, nil
	}
	var perms OperationPermissions
	if err := json.Unmarshal(c.ClaimPermissions, &perms); err != nil {
		return OperationPermissions{}, fmt.Errorf("decoding weave_permissions claim: %w", err)
	}
	return perms, nil
}

// BearerAuthenticator verifies bearer tokens against a JWKS key set and
// caches verified tokens so the signature check doesn't run on every single
// request carrying the same still-valid token.
type BearerAuthenticator struct {
	keys  JWKSKeySet
	cache *lru.Cache[string, OperationPermissions]
}

// NewBearerAuthenticator builds an authenticator caching up to cacheSize
// distinct verified tokens.
func NewBearerAuthenticator(keys JWKSKeySet, cacheSize int) (*BearerAuthenticator, error) {
	cache, err := lru.New[string, OperationPermissions](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("building bearer token cache: %w", err)
	}
	return &BearerAuthenticator{keys: keys, cache: cache}, nil
}

// Verify validates token's signature and expiry and returns the permissions
// it grants. A cache hit skips signature verification entirely; a cache miss
// verifies then stores the result under the raw token string.
func (a *BearerAuthenticator) Verify(token string) (OperationPermissions, error) {
	if perms, ok := a.cache.Get(token); ok {
		return perms, nil
	}

	var claims bearerTokenClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		key, ok := a.keys.KeyForID(kid)
		if !ok {
			return nil, fmt.Errorf("unknown signing key %q", kid)
		}
		return key, nil
	})
	if err != nil {
		return OperationPermissions{}, fmt.Errorf("verifying bearer token: %w", err)
	}

	perms, err := claims.permissions()
	if err != nil {
		return OperationPermissions{}, err
	}

	a.cache.Add(token, perms)
	return perms, nil
}

// Middleware extracts a bearer token from the Authorization header, verifies
// it, and stores the resulting permissions in the request context for
// ExecuteQuery (executable_schema.go) to enforce via OperationPermissions. Requests
// without an Authorization header pass through unauthenticated — whether
// that's acceptable is a deployment-level policy decision, not this
// middleware's to make.
func (a *BearerAuthenticator) Middleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			h.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			http.Error(w, "malformed Authorization header", http.StatusUnauthorized)
			return
		}

		perms, err := a.Verify(token)
		if err != nil {
			log.WithError(err).Debug("bearer token rejected")
			http.Error(w, "invalid bearer token", http.StatusUnauthorized)
			return
		}

		ctx := AddPermissionsToContext(r.Context(), perms)
		h.ServeHTTP(w, r.WithContext(ctx))
	})
}
