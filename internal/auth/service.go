package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/beije/packet-storefront/internal/gateway"
	"github.com/beije/packet-storefront/internal/storage"
	pkgerrors "github.com/beije/packet-storefront/pkg/errors"
	"github.com/beije/packet-storefront/pkg/logger"
	"github.com/beije/packet-storefront/pkg/validation"
)

const profileUnavailableWarning = "profile unavailable"

// Service defines the behavior needed by the auth controller.
type Service interface {
	Login(ctx context.Context, sessionID string, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
	Profile(ctx context.Context, sessionID string) (*gateway.Profile, error)
	Token(ctx context.Context, sessionID string) (string, error)
}

type gatewayClient interface {
	Login(ctx context.Context, creds gateway.Credentials) gateway.Result[gateway.Session]
	Profile(ctx context.Context, token string) gateway.Result[gateway.Profile]
}

type service struct {
	gateway gatewayClient
	tokens  storage.KV
	logg    *logger.Logger
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	Gateway gatewayClient
	Tokens  storage.KV
	Logger  *logger.Logger
}

// NewService constructs an auth service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client is required")
	}
	if params.Tokens == nil {
		return nil, fmt.Errorf("token storage is required")
	}
	return &service{
		gateway: params.Gateway,
		tokens:  params.Tokens,
		logg:    params.Logger,
	}, nil
}

// Login validates the form locally, signs in through the gateway, stores the token
// for the session and then fetches the profile. A profile failure does not undo the
// login.
func (s *service) Login(ctx context.Context, sessionID string, req LoginRequest) (*LoginResponse, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	res := s.gateway.Login(ctx, gateway.Credentials{Email: req.Email, Password: req.Password})
	if !res.Ok() {
		return nil, res.Err()
	}

	token := res.Value().Token
	if err := s.tokens.Set(ctx, storage.TokenKey(sessionID), token); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store session token")
	}

	resp := &LoginResponse{Authenticated: true}
	profile := s.gateway.Profile(ctx, token)
	if !profile.Ok() {
		s.logg.Warn(s.logg.WithField(ctx, "error", profile.Err().Error()), "auth.profile_after_login_failed")
		resp.Warning = profileUnavailableWarning
		return resp, nil
	}
	p := profile.Value()
	resp.Profile = &p
	return resp, nil
}

// Logout drops the session token. The selection is left untouched.
func (s *service) Logout(ctx context.Context, sessionID string) error {
	if err := s.tokens.Delete(ctx, storage.TokenKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear session token")
	}
	return nil
}

func (s *service) Profile(ctx context.Context, sessionID string) (*gateway.Profile, error) {
	token, err := s.Token(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	res := s.gateway.Profile(ctx, token)
	if !res.Ok() {
		return nil, res.Err()
	}
	p := res.Value()
	return &p, nil
}

// Token returns the stored gateway token, or CodeUnauthorized when none is stored.
func (s *service) Token(ctx context.Context, sessionID string) (string, error) {
	token, err := s.tokens.Get(ctx, storage.TokenKey(sessionID))
	if errors.Is(err, storage.ErrNotFound) || (err == nil && strings.TrimSpace(token) == "") {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session token")
	}
	return token, nil
}
