// Package jwt issues and verifies HS256 session tokens.
//
// Tokens carry the registered claims only: the subject is the user id and
// the jti identifies the token for revocation. Expiry is always bounded.
package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken      = errors.New("jwt: invalid token")
	ErrExpiredToken      = errors.New("jwt: token is expired")
	ErrMissingSigningKey = errors.New("jwt: missing signing key")
	ErrMissingSubject    = errors.New("jwt: missing subject")
)

// Config holds the session token settings.
type Config struct {
	Secret string        `env:"JWT_SECRET,required"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"taskflow"`
}

// Claims are the claims of a session token.
type Claims struct {
	gojwt.RegisteredClaims
}

// UserID returns the token subject.
func (c Claims) UserID() string { return c.Subject }

// Service signs and parses session tokens.
type Service struct {
	key    []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// New creates a Service. The signing key must not be empty.
func New(cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSigningKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &Service{
		key:    []byte(cfg.Secret),
		ttl:    cfg.TTL,
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// Issue signs a new token for userID with a fresh jti.
func (s *Service) Issue(userID string) (string, Claims, error) {
	if userID == "" {
		return "", Claims{}, ErrMissingSubject
	}

	now := s.now()
	claims := Claims{gojwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   userID,
		Issuer:    s.issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		NotBefore: gojwt.NewNumericDate(now),
		ExpiresAt: gojwt.NewNumericDate(now.Add(s.ttl)),
	}}

	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", Claims{}, fmt.Errorf("jwt: sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the signature, algorithm, issuer and expiry of tokenString.
func (s *Service) Parse(tokenString string) (Claims, error) {
	var claims Claims
	opts := []gojwt.ParserOption{
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, gojwt.WithIssuer(s.issuer))
	}

	_, err := gojwt.ParseWithClaims(tokenString, &claims, func(*gojwt.Token) (any, error) {
		return s.key, nil
	}, opts...)
	switch {
	case errors.Is(err, gojwt.ErrTokenExpired):
		return Claims{}, errors.Join(ErrExpiredToken, err)
	case err != nil:
		return Claims{}, errors.Join(ErrInvalidToken, err)
	case claims.Subject == "" || claims.ID == "":
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}
