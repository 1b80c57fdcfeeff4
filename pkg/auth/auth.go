// Package auth issues and verifies the bearer tokens that optionally protect
// the JSON API. Tokens are HS256 JWTs whose subject names the API client.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultJWTExpiry applies when a Signer is built with a zero expiry.
const DefaultJWTExpiry = 24 * time.Hour

// Issuer is written to and required in every token.
const Issuer = "cropdoctor"

// ScopeDiagnose grants access to the diagnosis API.
const ScopeDiagnose = "diagnose"

// ErrNoSecret is returned by NewSigner for an empty secret.
var ErrNoSecret = errors.New("auth: JWT secret is empty")

// Claims are the token claims. Subject is the client id.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the space-separated scope claim includes want.
func (c *Claims) HasScope(want string) bool {
	for _, s := range strings.Fields(c.Scope) {
		if s == want {
			return true
		}
	}
	return false
}

// Signer creates and validates tokens with one shared secret.
type Signer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewSigner returns a Signer for secret.
func NewSigner(secret string, expiry time.Duration) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrNoSecret
	}
	if expiry <= 0 {
		expiry = DefaultJWTExpiry
	}
	return &Signer{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

// GenerateJWT creates a signed token for clientID.
func (s *Signer) GenerateJWT(clientID, scope string) (string, error) {
	if strings.TrimSpace(clientID) == "" {
		return "", fmt.Errorf("auth: client id is empty")
	}
	now := s.now()
	claims := &Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// ParseJWT validates tokenString and returns its claims.
func (s *Signer) ParseJWT(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token is empty")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(Issuer), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid JWT claims or signature")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token has no subject")
	}
	return claims, nil
}
