// Package oidctest runs a fake OpenID provider for tests: discovery, a JWKS
// with one RSA key, and a signer for ID tokens.
package oidctest

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// ClientID is the audience the fake provider issues tokens for.
const ClientID = "moodle-agent"

// Provider is a running fake issuer.
type Provider struct {
	Server *httptest.Server
	key    *rsa.PrivateKey
	kid    string
}

// New starts a provider that is shut down when the test ends.
func New(t testing.TB) *Provider {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	p := &Provider{key: key, kid: "test-key"}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":   p.Issuer(),
			"jwks_uri": p.Issuer() + "/jwks",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kty": "RSA",
				"kid": p.kid,
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	})
	p.Server = httptest.NewServer(mux)
	t.Cleanup(p.Server.Close)
	return p
}

// Issuer returns the provider's issuer URL.
func (p *Provider) Issuer() string { return p.Server.URL }

// IDToken signs a token for subject with sensible defaults; extra claims
// override them.
func (p *Provider) IDToken(t testing.TB, subject string, extra map[string]interface{}) string {
	t.Helper()
	now := time.Now()
	claims := gojwt.MapClaims{
		"iss": p.Issuer(),
		"aud": ClientID,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	tok := gojwt.NewWithClaims(gojwt.SigningMethodRS256, claims)
	tok.Header["kid"] = p.kid
	signed, err := tok.SignedString(p.key)
	if err != nil {
		t.Fatalf("sign id token: %v", err)
	}
	return signed
}
