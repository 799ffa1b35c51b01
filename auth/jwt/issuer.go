// Package jwt issues and validates the agent's short-lived access tokens.
//
// Tokens carry exactly three claims: sub (identity id), iat and exp, signed
// with a process-wide HMAC key. They are never persisted and cannot be
// revoked before they expire.
//
//	issuer, err := jwt.NewIssuer(cfg)
//	tok, err := issuer.Issue(identity.ID.String())
//	claims, err := issuer.Validate(tok.Token)
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	apperrors "github.com/guiqiqi/itmo-moodle-agent/errors"
)

// Clock returns the current time.
type Clock func() time.Time

// Claims is the access token payload.
type Claims struct {
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"-"`
}

// AccessToken is a signed token and the claims it carries.
type AccessToken struct {
	Token  string
	Claims Claims
}

// ExpiresIn returns the remaining lifetime relative to now.
func (t *AccessToken) ExpiresIn(now time.Time) time.Duration {
	return t.Claims.ExpiresAt.Sub(now)
}

// Issuer signs and validates access tokens. It is safe for concurrent use
// and immutable after construction.
type Issuer struct {
	key    []byte
	method gojwt.SigningMethod
	ttl    time.Duration
	now    Clock
	parser *gojwt.Parser
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(i *Issuer) { i.now = c }
}

// NewIssuer creates an Issuer from cfg.
func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method := cfg.signingMethod()
	i := &Issuer{
		key:    []byte(cfg.Secret),
		method: method,
		ttl:    cfg.AccessTokenTTL,
		now:    time.Now,
		parser: gojwt.NewParser(
			gojwt.WithValidMethods([]string{method.Alg()}),
			gojwt.WithoutClaimsValidation(),
		),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the access token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for subject with iat=now and exp=now+TTL.
func (i *Issuer) Issue(subject string) (*AccessToken, error) {
	now := i.now().Truncate(time.Second)
	claims := Claims{
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	signed, err := gojwt.NewWithClaims(i.method, gojwt.MapClaims{
		"sub": claims.Subject,
		"iat": claims.IssuedAt.Unix(),
		"exp": claims.ExpiresAt.Unix(),
	}).SignedString(i.key)
	if err != nil {
		return nil, fmt.Errorf("jwt: sign token: %w", err)
	}
	return &AccessToken{Token: signed, Claims: claims}, nil
}

// Validate checks token in order: signature and algorithm, then expiry,
// then issue time. A correctly signed token past exp always reports
// TOKEN_EXPIRED; every other failure reports INVALID_TOKEN.
func (i *Issuer) Validate(token string) (*Claims, error) {
	mc := gojwt.MapClaims{}
	if _, err := i.parser.ParseWithClaims(token, mc, i.keyFunc); err != nil {
		return nil, apperrors.InvalidToken().WithCause(err)
	}

	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, apperrors.InvalidToken().WithCause(errors.New("missing sub claim"))
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, apperrors.InvalidToken().WithCause(errors.New("missing exp claim"))
	}
	iat, err := mc.GetIssuedAt()
	if err != nil || iat == nil {
		return nil, apperrors.InvalidToken().WithCause(errors.New("missing iat claim"))
	}

	now := i.now()
	if now.After(exp.Time) {
		return nil, apperrors.TokenExpired()
	}
	if iat.Time.After(now) {
		return nil, apperrors.InvalidToken().WithCause(errors.New("token used before issued"))
	}
	return &Claims{Subject: sub, IssuedAt: iat.Time, ExpiresAt: exp.Time}, nil
}

func (i *Issuer) keyFunc(token *gojwt.Token) (interface{}, error) {
	if token.Method.Alg() != i.method.Alg() {
		return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
	}
	return i.key, nil
}
