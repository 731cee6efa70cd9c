package inbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"

	"github.com/mnehpets/loopback/auth"
)

const commitMessage = "Reminder(s) added from Capture app"

// maxResponseBytes bounds repository file responses.
const maxResponseBytes = 8 << 20

// tokenLockWait bounds how long NewGitLabStorage retries a contended token.
const tokenLockWait = 2 * time.Second

// ErrTokenUnavailable is returned when storage is created before a login
// completed.
var ErrTokenUnavailable = errors.New("no access token available for storage")

// StatusError reports a non-2xx response from the GitLab API.
type StatusError struct {
	Method string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gitlab: %s: unexpected status %d: %s", e.Method, e.Status, e.Body)
}

// GitLabStorage keeps the inbox in a file of a GitLab repository, accessed
// with the login's bearer token.
type GitLabStorage struct {
	client  *http.Client
	baseURL string
	project string
	file    string
	branch  string
}

// GitLabOption configures a GitLabStorage.
type GitLabOption func(*GitLabStorage)

// WithBaseURL sets the GitLab instance URL. The default is https://gitlab.com.
func WithBaseURL(u string) GitLabOption {
	return func(s *GitLabStorage) { s.baseURL = strings.TrimRight(u, "/") }
}

// WithProject sets the project id or url-encoded path.
func WithProject(project string) GitLabOption {
	return func(s *GitLabStorage) { s.project = project }
}

// WithFile sets the repository file path.
func WithFile(path string) GitLabOption {
	return func(s *GitLabStorage) { s.file = path }
}

// WithBranch sets the branch read from and committed to.
func WithBranch(branch string) GitLabOption {
	return func(s *GitLabStorage) { s.branch = branch }
}

// NewGitLabStorage reads the token from retriever and returns storage
// authenticated with it. Lock contention is retried briefly; a missing token
// fails at once, so callers run auth.AwaitToken first. The http.Client in ctx
// under oauth2.HTTPClient, if any, is used as the transport.
func NewGitLabStorage(ctx context.Context, retriever auth.TokenRetriever, opts ...GitLabOption) (*GitLabStorage, error) {
	token, err := readToken(ctx, retriever)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}
	s := &GitLabStorage{
		client:  oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})),
		baseURL: "https://gitlab.com",
		project: "3723174",
		file:    "gtd/inbox.org",
		branch:  "master",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func readToken(ctx context.Context, retriever auth.TokenRetriever) (string, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = 10 * time.Millisecond
	expBackoff.MaxInterval = 200 * time.Millisecond
	expBackoff.Reset()

	return backoff.Retry(ctx, func() (string, error) {
		token, err := retriever.Token()
		if err != nil && !errors.Is(err, auth.ErrFailedToLockToken) {
			return "", backoff.Permanent(err)
		}
		return token, err
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxElapsedTime(tokenLockWait))
}

func (s *GitLabStorage) fileURL() string {
	return s.baseURL + "/api/v4/projects/" + url.PathEscape(s.project) + "/repository/files/" + url.PathEscape(s.file)
}

// Load implements Storage.
func (s *GitLabStorage) Load(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.fileURL()+"?ref="+url.QueryEscape(s.branch), nil)
	if err != nil {
		return "", err
	}
	body, err := s.do(req)
	if err != nil {
		return "", err
	}
	return DecodeContent(body)
}

type updateRequest struct {
	Branch        string `json:"branch"`
	Content       string `json:"content"`
	CommitMessage string `json:"commit_message"`
}

// Update implements Storage.
func (s *GitLabStorage) Update(ctx context.Context, content string) error {
	payload, err := json.Marshal(updateRequest{
		Branch:        s.branch,
		Content:       content,
		CommitMessage: commitMessage,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.fileURL(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	_, err = s.do(req)
	return err
}

func (s *GitLabStorage) do(req *http.Request) ([]byte, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gitlab: %s: %w", req.Method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("gitlab: %s: read body: %w", req.Method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{Method: req.Method, Status: resp.StatusCode, Body: snippet}
	}
	return body, nil
}

var _ Storage = (*GitLabStorage)(nil)
