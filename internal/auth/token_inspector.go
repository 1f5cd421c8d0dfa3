package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken indicates an empty credential.
	ErrMissingToken = errors.New("token inspector: token required")
	// ErrOpaqueToken indicates the credential is not a JWT and cannot be inspected locally.
	ErrOpaqueToken = errors.New("token inspector: token is not a jwt")
)

// TokenInfo is what can be read from a credential without verifying it.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenInspector reads unverified claims from stored credentials. Signature
// verification stays with the CMS service; the inspector only lets the
// console skip verifying a credential that has plainly expired.
type TokenInspector struct {
	parser *jwt.Parser
	clock  func() time.Time
	leeway time.Duration
}

// NewTokenInspector constructs an inspector; a nil clock uses time.Now.
func NewTokenInspector(clock func() time.Time, leeway time.Duration) *TokenInspector {
	if clock == nil {
		clock = time.Now
	}
	if leeway < 0 {
		leeway = 0
	}
	return &TokenInspector{
		parser: jwt.NewParser(),
		clock:  clock,
		leeway: leeway,
	}
}

// Inspect parses the credential without verifying the signature.
func (i *TokenInspector) Inspect(tokenString string) (TokenInfo, error) {
	token := strings.TrimSpace(tokenString)
	if token == "" {
		return TokenInfo{}, ErrMissingToken
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := i.parser.ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, ErrOpaqueToken
	}
	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, nil
}

// Expired reports whether the credential is a JWT whose exp has passed.
// Opaque credentials are never considered expired.
func (i *TokenInspector) Expired(tokenString string) bool {
	info, err := i.Inspect(tokenString)
	if err != nil || info.ExpiresAt.IsZero() {
		return false
	}
	return !i.clock().Before(info.ExpiresAt.Add(i.leeway))
}
