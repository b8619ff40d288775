package auth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// VerifierConfig holds configuration for JWT verification.
type VerifierConfig struct {
	// RS256 configuration
	PublicKeyPEM string
	JWKSURL      string

	// HS256 configuration
	SecretKey string

	// Algorithm is "RS256" or "HS256".
	Algorithm string

	// JWKS configuration
	JWKSRefreshInterval time.Duration
	JWKSCacheTimeout    time.Duration
}

// JWK represents a JSON Web Key.
type JWK struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSet represents a JSON Web Key Set.
type JWKSet struct {
	Keys []JWK `json:"keys"`
}

type cachedKey struct {
	key     *rsa.PublicKey
	fetched time.Time
}

// Verifier verifies bearer tokens signed with RS256 or HS256.
type Verifier struct {
	config     VerifierConfig
	publicKey  *rsa.PublicKey
	jwksCache  map[string]*cachedKey
	jwksMutex  sync.RWMutex
	lastFetch  time.Time
	httpClient *http.Client
}

// NewVerifier creates a token verifier for the configured algorithm.
func NewVerifier(config VerifierConfig) (*Verifier, error) {
	v := &Verifier{
		config:    config,
		jwksCache: make(map[string]*cachedKey),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	switch config.Algorithm {
	case "RS256":
		if config.PublicKeyPEM != "" {
			if err := v.loadPublicKeyFromPEM(config.PublicKeyPEM); err != nil {
				return nil, fmt.Errorf("load public key from PEM: %w", err)
			}
		}
		if config.JWKSURL != "" {
			if err := v.fetchJWKS(); err != nil {
				return nil, fmt.Errorf("fetch initial JWKS: %w", err)
			}
		}
		if v.publicKey == nil && config.JWKSURL == "" {
			return nil, fmt.Errorf("RS256 requires a public key or a JWKS URL")
		}
	case "HS256":
		if config.SecretKey == "" {
			return nil, fmt.Errorf("HS256 requires a secret key")
		}
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", config.Algorithm)
	}

	return v, nil
}

// VerifyToken verifies a bearer token and returns its claims.
func (v *Verifier) VerifyToken(tokenString string) (*Claims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}

	var keyFunc jwt.Keyfunc
	switch v.config.Algorithm {
	case "RS256":
		keyFunc = v.rs256Key
	case "HS256":
		keyFunc = v.hs256Key
	default:
		return nil, fmt.Errorf("unsupported algorithm: %q", v.config.Algorithm)
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.MapClaims{}, keyFunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	return v.extractClaims(claims)
}

// rs256Key resolves the RSA public key for a token, from the static PEM key
// or the JWKS cache when the token names a key ID.
func (v *Verifier) rs256Key(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != "RS256" {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}

	kid, ok := token.Header["kid"].(string)
	if !ok {
		if v.publicKey == nil {
			return nil, fmt.Errorf("no public key available")
		}
		return v.publicKey, nil
	}

	key, err := v.getKeyFromJWKS(kid)
	if err != nil {
		return nil, fmt.Errorf("resolve JWKS key: %w", err)
	}
	return key, nil
}

func (v *Verifier) hs256Key(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != "HS256" {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(v.config.SecretKey), nil
}

// extractClaims pulls subject, roles and scopes out of verified MapClaims.
func (v *Verifier) extractClaims(claims *jwt.MapClaims) (*Claims, error) {
	sub, ok := (*claims)["sub"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'sub' claim")
	}

	roles, err := extractStringSlice(claims, "roles")
	if err != nil {
		return nil, fmt.Errorf("missing or invalid 'roles' claim: %w", err)
	}

	scopes, err := extractStringSlice(claims, "scopes")
	if err != nil {
		return nil, fmt.Errorf("missing or invalid 'scopes' claim: %w", err)
	}

	if !validRoles(roles) {
		return nil, fmt.Errorf("invalid roles: %v", roles)
	}
	if !validScopes(scopes) {
		return nil, fmt.Errorf("invalid scopes: %v", scopes)
	}

	return &Claims{
		Subject: sub,
		Roles:   roles,
		Scopes:  scopes,
	}, nil
}

func extractStringSlice(claims *jwt.MapClaims, key string) ([]string, error) {
	value, ok := (*claims)[key]
	if !ok {
		return nil, fmt.Errorf("missing claim: %s", key)
	}

	switch val := value.(type) {
	case []string:
		return val, nil
	case []interface{}:
		result := make([]string, len(val))
		for i, item := range val {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("claim %s is not a string array", key)
			}
			result[i] = str
		}
		return result, nil
	default:
		return nil, fmt.Errorf("claim %s is not a string array", key)
	}
}

func validRoles(roles []string) bool {
	known := map[string]bool{
		RoleAgent:    true,
		RoleOperator: true,
	}
	for _, role := range roles {
		if !known[role] {
			return false
		}
	}
	return len(roles) > 0
}

func validScopes(scopes []string) bool {
	known := map[string]bool{
		ScopeIngest: true,
		ScopeRead:   true,
		ScopeManage: true,
	}
	for _, scope := range scopes {
		if !known[scope] {
			return false
		}
	}
	return len(scopes) > 0
}

// loadPublicKeyFromPEM loads an RSA public key from PEM data.
func (v *Verifier) loadPublicKeyFromPEM(pemData string) error {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return fmt.Errorf("decode PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return fmt.Errorf("parse public key: %w", err)
	}

	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("not an RSA public key")
	}

	v.publicKey = rsaPub
	return nil
}

// fetchJWKS fetches and caches the key set from the configured URL.
func (v *Verifier) fetchJWKS() error {
	if v.config.JWKSURL == "" {
		return fmt.Errorf("JWKS URL not configured")
	}

	resp, err := v.httpClient.Get(v.config.JWKSURL)
	if err != nil {
		return fmt.Errorf("fetch JWKS: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read JWKS response: %w", err)
	}

	var jwks JWKSet
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("parse JWKS: %w", err)
	}

	v.jwksMutex.Lock()
	defer v.jwksMutex.Unlock()

	now := time.Now()
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" || key.Use != "sig" || key.Alg != "RS256" {
			continue
		}
		pubKey, err := jwkToRSAPublicKey(key)
		if err != nil {
			continue // Skip malformed keys
		}
		v.jwksCache[key.Kid] = &cachedKey{key: pubKey, fetched: now}
	}

	v.lastFetch = now
	return nil
}

// getKeyFromJWKS returns the cached key for kid, refreshing the key set when
// the cache entry or the whole set has gone stale.
func (v *Verifier) getKeyFromJWKS(kid string) (*rsa.PublicKey, error) {
	v.jwksMutex.RLock()
	entry, exists := v.jwksCache[kid]
	lastFetch := v.lastFetch
	v.jwksMutex.RUnlock()

	if exists && time.Since(entry.fetched) < v.config.JWKSCacheTimeout {
		return entry.key, nil
	}

	if time.Since(lastFetch) > v.config.JWKSRefreshInterval {
		if err := v.fetchJWKS(); err != nil {
			return nil, fmt.Errorf("refresh JWKS: %w", err)
		}

		v.jwksMutex.RLock()
		entry, exists = v.jwksCache[kid]
		v.jwksMutex.RUnlock()

		if exists {
			return entry.key, nil
		}
	}

	return nil, fmt.Errorf("key not found: %s", kid)
}

// jwkToRSAPublicKey converts a JWK entry to an RSA public key.
func jwkToRSAPublicKey(jwk JWK) (*rsa.PublicKey, error) {
	n, err := base64URLDecode(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}

	e, err := base64URLDecode(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}

	var exp int
	for _, b := range e {
		exp = exp<<8 + int(b)
	}

	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: exp,
	}, nil
}

func base64URLDecode(data string) ([]byte, error) {
	data = strings.TrimRight(data, "=")
	return base64.RawURLEncoding.DecodeString(data)
}
