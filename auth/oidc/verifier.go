// Package oidc verifies OpenID Connect ID tokens for federated login.
//
// Discovery and the JWKS are fetched lazily on first use and the key set is
// cached; an unknown kid forces one refresh so provider key rotation is
// picked up without a restart. Signatures and registered claims are checked
// by golang-jwt.
//
//	v := oidc.NewVerifier(cfg, nil)
//	tok, err := v.Verify(ctx, rawIDToken)
package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// IDToken is a verified ID token.
type IDToken struct {
	Issuer        string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	ExpiresAt     time.Time
}

type idTokenClaims struct {
	gojwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
}

type discoveryDoc struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Verifier validates ID tokens from one issuer.
type Verifier struct {
	cfg    Config
	issuer string
	client *http.Client

	mu   sync.Mutex
	jwks *jwksCache
}

// NewVerifier creates a Verifier. A nil client gets one with cfg.HTTPTimeout.
func NewVerifier(cfg Config, client *http.Client) *Verifier {
	cfg.ApplyDefaults()
	if client == nil {
		client = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	return &Verifier{
		cfg:    cfg,
		issuer: strings.TrimRight(cfg.Issuer, "/"),
		client: client,
	}
}

// Issuer returns the configured issuer URL.
func (v *Verifier) Issuer() string { return v.issuer }

// Verify checks the signature, issuer, audience and validity window of
// rawIDToken.
func (v *Verifier) Verify(ctx context.Context, rawIDToken string) (*IDToken, error) {
	keys, err := v.keySet(ctx)
	if err != nil {
		return nil, err
	}

	claims := &idTokenClaims{}
	parser := gojwt.NewParser(
		gojwt.WithValidMethods(v.cfg.SupportedSigningAlgs),
		gojwt.WithIssuer(v.issuer),
		gojwt.WithAudience(v.cfg.ClientID),
		gojwt.WithExpirationRequired(),
		gojwt.WithIssuedAt(),
		gojwt.WithLeeway(v.cfg.Leeway),
	)
	_, err = parser.ParseWithClaims(rawIDToken, claims, func(t *gojwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return keys.key(ctx, kid)
	})
	if err != nil {
		return nil, fmt.Errorf("oidc: verify id token: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("oidc: id token has no subject")
	}

	return &IDToken{
		Issuer:        claims.Issuer,
		Subject:       claims.Subject,
		Email:         claims.Email,
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

func (v *Verifier) keySet(ctx context.Context) (*jwksCache, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.jwks != nil {
		return v.jwks, nil
	}

	var doc discoveryDoc
	if err := getJSON(ctx, v.client, v.issuer+"/.well-known/openid-configuration", &doc); err != nil {
		return nil, fmt.Errorf("oidc: discovery failed for %s: %w", v.issuer, err)
	}
	if strings.TrimRight(doc.Issuer, "/") != v.issuer {
		return nil, fmt.Errorf("oidc: discovery issuer mismatch: got %q", doc.Issuer)
	}
	if doc.JWKSURI == "" {
		return nil, errors.New("oidc: discovery document missing jwks_uri")
	}
	v.jwks = &jwksCache{uri: doc.JWKSURI, client: v.client, ttl: v.cfg.JWKSCacheDuration}
	return v.jwks, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // read-only

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("GET %s returned %d: %s", url, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}
