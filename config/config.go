// Package config loads login, listener and storage settings from the
// environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mnehpets/loopback/auth"
	"github.com/mnehpets/loopback/webserver"
)

// Environment variable names.
const (
	EnvClientID        = "LOOPBACK_OAUTH_CLIENT_ID"
	EnvAuthorizeURL    = "LOOPBACK_OAUTH_AUTHORIZE_URL"
	EnvIssuer          = "LOOPBACK_OAUTH_ISSUER"
	EnvScopes          = "LOOPBACK_OAUTH_SCOPES"
	EnvLandingPath     = "LOOPBACK_LANDING_PATH"
	EnvPort            = "LOOPBACK_PORT"
	EnvPortRange       = "LOOPBACK_PORT_RANGE"
	EnvShutdownTimeout = "LOOPBACK_SHUTDOWN_TIMEOUT"
	EnvLogLevel        = "LOOPBACK_LOG_LEVEL"
	EnvOpenBrowser     = "LOOPBACK_OPEN_BROWSER"
	EnvGitLabURL       = "LOOPBACK_GITLAB_URL"
	EnvGitLabProject   = "LOOPBACK_GITLAB_PROJECT"
	EnvGitLabFile      = "LOOPBACK_GITLAB_FILE"
	EnvGitLabBranch    = "LOOPBACK_GITLAB_BRANCH"
)

// Config holds the settings of the capture login.
type Config struct {
	ClientID     string
	AuthorizeURL string
	// Issuer, when set, replaces AuthorizeURL with the endpoint the issuer
	// publishes through OIDC discovery.
	Issuer      string
	Scopes      []string
	LandingPath string

	// Port is the loopback port. Zero means probe PortRangeStart..PortRangeEnd,
	// or any free port if the range is unset.
	Port            uint16
	PortRangeStart  int
	PortRangeEnd    int
	ShutdownTimeout time.Duration

	LogLevel    slog.Level
	OpenBrowser bool

	GitLabURL     string
	GitLabProject string
	GitLabFile    string
	GitLabBranch  string
}

type lookupFunc func(key string) string

// Load reads the configuration. Values in the process environment take
// precedence over values in files; missing files are ignored. With no
// arguments, ".env" in the working directory is read if present.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	fileEnv := map[string]string{}
	for _, f := range files {
		vals, err := godotenv.Read(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, ok := fileEnv[k]; !ok {
				fileEnv[k] = v
			}
		}
	}
	return parse(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return fileEnv[key]
	})
}

func parse(get lookupFunc) (*Config, error) {
	cfg := &Config{
		ClientID:      valueOr(get(EnvClientID), auth.DefaultClientID),
		AuthorizeURL:  valueOr(get(EnvAuthorizeURL), auth.DefaultAuthorizeURL),
		Issuer:        strings.TrimSpace(get(EnvIssuer)),
		LandingPath:   strings.Trim(valueOr(get(EnvLandingPath), auth.DefaultLandingPath), "/"),
		GitLabURL:     strings.TrimRight(valueOr(get(EnvGitLabURL), "https://gitlab.com"), "/"),
		GitLabProject: valueOr(get(EnvGitLabProject), "3723174"),
		GitLabFile:    valueOr(get(EnvGitLabFile), "gtd/inbox.org"),
		GitLabBranch:  valueOr(get(EnvGitLabBranch), "master"),
		// Only an explicit "false" disables.
		OpenBrowser:     get(EnvOpenBrowser) != "false",
		ShutdownTimeout: 5 * time.Second,
	}

	cfg.Scopes = splitList(get(EnvScopes))
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{auth.DefaultScope}
	}

	if v := get(EnvPort); v != "" {
		n, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Port = uint16(n)
	}
	if v := get(EnvPortRange); v != "" {
		start, end, err := parseRange(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPortRange, err)
		}
		cfg.PortRangeStart, cfg.PortRangeEnd = start, end
	}
	if v := get(EnvShutdownTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			slog.Warn("invalid env var, using default", "key", EnvShutdownTimeout, "value", v, "default", cfg.ShutdownTimeout)
		} else {
			cfg.ShutdownTimeout = d
		}
	}

	switch strings.ToLower(get(EnvLogLevel)) {
	case "debug":
		cfg.LogLevel = slog.LevelDebug
	case "warn":
		cfg.LogLevel = slog.LevelWarn
	case "error":
		cfg.LogLevel = slog.LevelError
	default:
		cfg.LogLevel = slog.LevelInfo
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("%s is required", EnvClientID)
	}
	if c.Issuer == "" {
		u, err := url.Parse(c.AuthorizeURL)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			return fmt.Errorf("%s must be an absolute http(s) URL", EnvAuthorizeURL)
		}
	}
	if err := webserver.ValidateLandingPath(c.LandingPath); err != nil {
		return fmt.Errorf("%s: %w", EnvLandingPath, err)
	}
	if c.PortRangeStart != 0 && (c.PortRangeStart < 1 || c.PortRangeEnd > 65535 || c.PortRangeStart > c.PortRangeEnd) {
		return fmt.Errorf("%s: invalid range %d-%d", EnvPortRange, c.PortRangeStart, c.PortRangeEnd)
	}
	return nil
}

// LoginParams returns the login parameters described by c.
func (c *Config) LoginParams() auth.LoginParams {
	return auth.LoginParams{
		ClientID:     c.ClientID,
		AuthorizeURL: c.AuthorizeURL,
		LandingPath:  c.LandingPath,
		Scopes:       append([]string(nil), c.Scopes...),
	}
}

func valueOr(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// splitList splits on commas and whitespace.
func splitList(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

func parseRange(v string) (int, int, error) {
	lo, hi, ok := strings.Cut(v, "-")
	if !ok {
		return 0, 0, fmt.Errorf("expected start-end, got %q", v)
	}
	start, err := strconv.Atoi(strings.TrimSpace(lo))
	if err != nil {
		return 0, 0, err
	}
	end, err := strconv.Atoi(strings.TrimSpace(hi))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}
