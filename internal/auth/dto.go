package auth

import "github.com/beije/packet-storefront/internal/gateway"

// LoginRequest captures the user credentials sent to the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse reports a successful sign-in. The gateway token stays server side.
type LoginResponse struct {
	Authenticated bool             `json:"authenticated"`
	Profile       *gateway.Profile `json:"profile,omitempty"`
	Warning       string           `json:"warning,omitempty"`
}
