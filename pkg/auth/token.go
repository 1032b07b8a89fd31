// Package auth inspects gateway-issued tokens. Signatures are never verified here:
// the gateway remains the authority, the storefront only avoids sending tokens it
// can already tell are expired.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrTokenExpired = errors.New("token expired")

var ErrTokenMissing = errors.New("token missing")

// ExpiresAt returns the exp claim of a JWT-shaped token. ok is false when the token is
// opaque or carries no expiry.
func ExpiresAt(token string) (expiry time.Time, ok bool) {
	claims := &GatewayClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	if _, _, err := parser.ParseUnverified(strings.TrimSpace(token), claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// CheckUsable reports whether token can be presented to the gateway at now.
func CheckUsable(token string, now time.Time) error {
	if strings.TrimSpace(token) == "" {
		return ErrTokenMissing
	}
	expiry, ok := ExpiresAt(token)
	if ok && !now.Before(expiry) {
		return ErrTokenExpired
	}
	return nil
}
