package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mnehpets/loopback/webserver"
)

// OAuthProvider starts implicit-grant logins against one authorization
// server.
type OAuthProvider struct {
	params LoginParams
	logger *slog.Logger
}

// ProviderOption configures an OAuthProvider.
type ProviderOption func(*OAuthProvider)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) ProviderOption {
	return func(p *OAuthProvider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewOAuthProvider returns a provider for params.
func NewOAuthProvider(params LoginParams, opts ...ProviderOption) *OAuthProvider {
	p := &OAuthProvider{
		params: params,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Params returns the login parameters.
func (p *OAuthProvider) Params() LoginParams {
	return p.params
}

// Provide starts a login and returns the URL the user must open.
//
// It reads the pending state from receiver, launches server with a callback
// that forwards tokens to receiver, and returns without waiting for the
// login to complete. Rejected callbacks are logged and answered with a
// failure by the server; they never surface here.
//
// Provide fails with ErrNoStatePresent if receiver has no pending state and
// with ErrLaunchFailed if server could not start.
func (p *OAuthProvider) Provide(ctx context.Context, server webserver.WebServer, receiver TokenReceiver) (string, error) {
	state, err := receiver.State()
	if err != nil {
		if errors.Is(err, ErrNoStatePresent) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrNoStatePresent, err)
	}

	port := server.Port()
	logger := p.logger.With("flow_id", uuid.NewString(), "port", port)
	authURL := p.params.AuthCodeURL(port, state)

	cb := func(token string, got int16) error {
		err := receiver.TokenReceived(token, got)
		switch {
		case err == nil:
			logger.Info("login completed")
		case errors.Is(err, ErrStateMismatch):
			logger.Warn("callback rejected", "error", err)
		case errors.Is(err, ErrAlreadyAuthenticated):
			logger.Info("callback ignored", "error", err)
		default:
			logger.Warn("callback failed", "error", err)
		}
		return err
	}

	if err := server.Launch(ctx, cb); err != nil {
		return "", fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	logger.Info("login started", "redirect_uri", p.params.RedirectURL(port))
	return authURL, nil
}
