package auth

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Defaults for the GitLab application the capture client is registered with.
const (
	DefaultClientID     = "1ec97e4c1c7346edf5ddb514fdd6598e304957b40ca5368b1f191ffc906142ba"
	DefaultAuthorizeURL = "https://gitlab.com/oauth/authorize"
	DefaultLandingPath  = "capture"
	DefaultScope        = "api"
)

// LoginParams is the static configuration of an implicit-grant login.
type LoginParams struct {
	ClientID     string
	AuthorizeURL string
	// LandingPath is the path segment the provider redirects back to,
	// without slashes.
	LandingPath string
	Scopes      []string
}

// DefaultLoginParams returns the parameters of the GitLab capture client.
func DefaultLoginParams() LoginParams {
	return LoginParams{
		ClientID:     DefaultClientID,
		AuthorizeURL: DefaultAuthorizeURL,
		LandingPath:  DefaultLandingPath,
		Scopes:       []string{DefaultScope},
	}
}

// RedirectURL returns the loopback URL the provider redirects to.
func (p LoginParams) RedirectURL(port uint16) string {
	return fmt.Sprintf("http://127.0.0.1:%d/%s/", port, strings.Trim(p.LandingPath, "/"))
}

// AuthCodeURL returns the authorization URL for an implicit-grant request
// carrying state, redirecting to the loopback listener on port.
func (p LoginParams) AuthCodeURL(port uint16, state int16) string {
	conf := &oauth2.Config{
		ClientID:    p.ClientID,
		Endpoint:    oauth2.Endpoint{AuthURL: p.AuthorizeURL},
		RedirectURL: p.RedirectURL(port),
		Scopes:      p.Scopes,
	}
	// The token comes back in the URL fragment, so no code exchange happens.
	return conf.AuthCodeURL(strconv.Itoa(int(state)), oauth2.SetAuthURLParam("response_type", "token"))
}

// DiscoverEndpoint returns the authorization endpoint published by an OIDC
// issuer.
func DiscoverEndpoint(ctx context.Context, issuer string) (string, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return "", fmt.Errorf("failed to query provider %q: %w", issuer, err)
	}
	return provider.Endpoint().AuthURL, nil
}
