// Package jwt issues and verifies HMAC-signed access tokens.
//
//	svc, err := jwt.NewService(cfg)
//	token, err := svc.Generate("reader-1")
//	claims, err := svc.Parse(token)
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims carried by eventfeed access tokens.
type Claims struct {
	gojwt.RegisteredClaims
	Scope string `json:"scope,omitempty"`
}

// ErrExpired is wrapped by Parse when the token is past its expiry.
var ErrExpired = gojwt.ErrTokenExpired

// Service generates and parses tokens for one key.
type Service struct {
	cfg Config
	now func() time.Time
}

// NewService creates a new JWT service.
func NewService(cfg Config) (*Service, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("jwt: %w", err)
	}
	return &Service{cfg: cfg, now: time.Now}, nil
}

// Generate signs a token for subject with the configured TTL.
func (s *Service) Generate(subject string) (string, error) {
	return s.GenerateWithTTL(subject, s.cfg.AccessTokenTTL)
}

// GenerateWithTTL signs a token for subject that expires after ttl.
func (s *Service) GenerateWithTTL(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("jwt: subject is required")
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			NotBefore: gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: "events",
	}
	if s.cfg.Audience != "" {
		claims.Audience = gojwt.ClaimStrings{s.cfg.Audience}
	}
	signed, err := gojwt.NewWithClaims(s.cfg.signingMethod(), claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, expiry, issuer and audience of a token.
func (s *Service) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(token, claims, s.keyFunc, s.parserOptions()...)
	if err != nil {
		return nil, fmt.Errorf("jwt: parse token: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("jwt: invalid token")
	}
	return claims, nil
}

func (s *Service) keyFunc(token *gojwt.Token) (any, error) {
	if token.Method.Alg() != s.cfg.signingMethod().Alg() {
		return nil, fmt.Errorf("jwt: unexpected signing method: %s", token.Method.Alg())
	}
	return []byte(s.cfg.Secret), nil
}

func (s *Service) parserOptions() []gojwt.ParserOption {
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{s.cfg.signingMethod().Alg()}),
		gojwt.WithTimeFunc(s.now),
		gojwt.WithExpirationRequired(),
	}
	if s.cfg.Issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.cfg.Issuer))
	}
	if s.cfg.Audience != "" {
		opts = append(opts, gojwt.WithAudience(s.cfg.Audience))
	}
	return opts
}
