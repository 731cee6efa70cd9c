package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnehpets/loopback/auth"
	"github.com/mnehpets/loopback/webserver"
)

func mapLookup(m map[string]string) lookupFunc {
	return func(key string) string { return m[key] }
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := parse(mapLookup(nil))
	require.NoError(t, err)

	assert.Equal(t, auth.DefaultLoginParams(), cfg.LoginParams())
	assert.Zero(t, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.OpenBrowser)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "https://gitlab.com", cfg.GitLabURL)
	assert.Equal(t, "3723174", cfg.GitLabProject)
	assert.Equal(t, "gtd/inbox.org", cfg.GitLabFile)
	assert.Equal(t, "master", cfg.GitLabBranch)
}

func TestParse_Overrides(t *testing.T) {
	cfg, err := parse(mapLookup(map[string]string{
		EnvClientID:        "cid",
		EnvAuthorizeURL:    "https://auth.example.com/authorize",
		EnvScopes:          "read_api, write_repository",
		EnvLandingPath:     "/login/",
		EnvPort:            "8123",
		EnvPortRange:       "9000-9010",
		EnvShutdownTimeout: "2s",
		EnvLogLevel:        "DEBUG",
		EnvOpenBrowser:     "false",
		EnvGitLabURL:       "https://git.example.com/",
	}))
	require.NoError(t, err)

	assert.Equal(t, auth.LoginParams{
		ClientID:     "cid",
		AuthorizeURL: "https://auth.example.com/authorize",
		LandingPath:  "login",
		Scopes:       []string{"read_api", "write_repository"},
	}, cfg.LoginParams())
	assert.Equal(t, uint16(8123), cfg.Port)
	assert.Equal(t, 9000, cfg.PortRangeStart)
	assert.Equal(t, 9010, cfg.PortRangeEnd)
	assert.Equal(t, 2*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.OpenBrowser)
	assert.Equal(t, "https://git.example.com", cfg.GitLabURL)
}

func TestParse_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"port not a number":  {EnvPort: "abc"},
		"port out of range":  {EnvPort: "70000"},
		"range without dash": {EnvPortRange: "9000"},
		"range reversed":     {EnvPortRange: "9010-9000"},
		"relative authorize": {EnvAuthorizeURL: "/oauth/authorize"},
		"nested landing":     {EnvLandingPath: "a/b"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parse(mapLookup(env))
			assert.Error(t, err)
		})
	}
}

func TestParse_RejectsUnservableLandingPath(t *testing.T) {
	for _, path := range []string{"save_token", "/save_token/", "a/b", "{x}", "{$}", "a b", ".."} {
		t.Run(path, func(t *testing.T) {
			_, err := parse(mapLookup(map[string]string{EnvLandingPath: path}))
			assert.ErrorIs(t, err, webserver.ErrInvalidLandingPath)
		})
	}
}

func TestParse_IssuerSkipsAuthorizeValidation(t *testing.T) {
	cfg, err := parse(mapLookup(map[string]string{
		EnvIssuer:       "https://gitlab.com",
		EnvAuthorizeURL: "not a url",
	}))
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.com", cfg.Issuer)
}

func TestParse_BadShutdownTimeoutFallsBack(t *testing.T) {
	cfg, err := parse(mapLookup(map[string]string{EnvShutdownTimeout: "-1s"}))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_EnvFileAndPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte(
		EnvClientID+"=from-file\n"+
			EnvScopes+"=api read_user\n"+
			EnvGitLabBranch+"=main\n"), 0o600))

	t.Setenv(EnvGitLabBranch, "from-env")

	cfg, err := Load(path, filepath.Join(dir, "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.ClientID)
	assert.Equal(t, []string{"api", "read_user"}, cfg.Scopes)
	assert.Equal(t, "from-env", cfg.GitLabBranch)
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.env")
	require.NoError(t, os.WriteFile(path, []byte("KEY='unterminated\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
