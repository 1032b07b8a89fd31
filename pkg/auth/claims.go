package auth

import "github.com/golang-jwt/jwt/v5"

// GatewayClaims captures the registered claims the storefront reads from gateway tokens.
type GatewayClaims struct {
	jwt.RegisteredClaims
}
