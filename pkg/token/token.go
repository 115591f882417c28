// Package token signs small JSON payloads into compact URL safe strings.
//
// It backs short-lived single purpose credentials such as password reset
// tickets and invitation links. Format: base64url(payload) "." base64url(hmac-sha256).
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrSignatureInvalid = errors.New("signature mismatch")
	ErrExpired          = errors.New("token expired")
	ErrEmptySecret      = errors.New("token secret is empty")
)

// Expirable payloads are rejected by ParseToken once their deadline passed.
type Expirable interface {
	ExpiresAt() time.Time
}

// GenerateToken encodes payload and signs it with secret.
func GenerateToken[T any](payload T, secret string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data) + "." +
		base64.RawURLEncoding.EncodeToString(sign(data, secret)), nil
}

// ParseToken verifies the signature and decodes the payload.
func ParseToken[T any](tok, secret string) (T, error) {
	var payload T
	if secret == "" {
		return payload, ErrEmptySecret
	}

	encPayload, encSig, ok := strings.Cut(tok, ".")
	if !ok || encPayload == "" || encSig == "" {
		return payload, ErrInvalidToken
	}
	data, err := base64.RawURLEncoding.DecodeString(encPayload)
	if err != nil {
		return payload, ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(encSig)
	if err != nil {
		return payload, ErrInvalidToken
	}

	if !hmac.Equal(sig, sign(data, secret)) {
		return payload, ErrSignatureInvalid
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, errors.Join(ErrInvalidToken, err)
	}

	if exp, ok := any(payload).(Expirable); ok && !exp.ExpiresAt().After(time.Now()) {
		return payload, ErrExpired
	}
	return payload, nil
}

func sign(data []byte, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(data)
	return h.Sum(nil)
}
