package inbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/mnehpets/loopback/auth"
)

func encoded(s string) []byte {
	return []byte(`{"file_name":"inbox.org","content":"` + base64.StdEncoding.EncodeToString([]byte(s)) + `"}`)
}

func TestDecodeContent(t *testing.T) {
	got, err := DecodeContent(encoded("* Inbox\n- milk"))
	require.NoError(t, err)
	assert.Equal(t, "* Inbox\n- milk", got)
}

func TestDecodeContent_Errors(t *testing.T) {
	_, err := DecodeContent([]byte(`{"file_name":"x"}`))
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = DecodeContent([]byte(`{"content":null}`))
	assert.ErrorIs(t, err, ErrNoContent)

	_, err = DecodeContent([]byte(`{"content":42}`))
	var typeErr *InvalidContentTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, gjson.Number, typeErr.Type)

	_, err = DecodeContent([]byte(`{"content":"not base64!"}`))
	var contentErr *InvalidContentError
	assert.ErrorAs(t, err, &contentErr)

	_, err = DecodeContent([]byte(`{"content":"` + base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe}) + `"}`))
	assert.ErrorIs(t, err, ErrInvalidContentEncoding)

	_, err = DecodeContent([]byte(`{"content":`))
	assert.Error(t, err)
}

type memStorage struct {
	content   string
	loadErr   error
	updateErr error
	updates   []string
}

func (m *memStorage) Load(context.Context) (string, error) {
	return m.content, m.loadErr
}

func (m *memStorage) Update(_ context.Context, content string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updates = append(m.updates, content)
	m.content = content
	return nil
}

func TestInbox_LoadTrimsAndSaveAppends(t *testing.T) {
	store := &memStorage{content: "\n* Inbox\n- one\n\n"}
	in, err := LoadInbox(context.Background(), store)
	require.NoError(t, err)
	assert.Equal(t, "* Inbox\n- one", in.Content())

	require.NoError(t, in.Save(context.Background(), "  two "))
	assert.Equal(t, []string{"* Inbox\n- one\n- two"}, store.updates)
	assert.Equal(t, "* Inbox\n- one\n- two", in.Content())
}

func TestInbox_Errors(t *testing.T) {
	boom := errors.New("boom")

	_, err := LoadInbox(context.Background(), &memStorage{loadErr: boom})
	assert.ErrorIs(t, err, ErrFailedToLoad)
	assert.ErrorIs(t, err, boom)

	store := &memStorage{content: "a"}
	in, err := LoadInbox(context.Background(), store)
	require.NoError(t, err)

	store.updateErr = boom
	err = in.Save(context.Background(), "b")
	assert.ErrorIs(t, err, ErrCouldNotSaveReminder)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a", in.Content(), "failed save must not change the inbox")

	assert.ErrorIs(t, in.Save(context.Background(), "   "), ErrCouldNotSaveReminder)
}

func TestInbox_Latest(t *testing.T) {
	in := &Inbox{content: "h\n- 1\n- 2\n- 3\n- 4\n- 5"}
	assert.Equal(t, []string{"- 2", "- 3", "- 4", "- 5"}, in.Latest(DefaultLatest))
	assert.Equal(t, []string{"h", "- 1", "- 2", "- 3", "- 4", "- 5"}, in.Latest(10))
	assert.Nil(t, in.Latest(0))
	assert.Nil(t, (&Inbox{}).Latest(4))
}

func gitlabServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, context.Context) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, srv.Client())
	return srv, ctx
}

func authenticated(token string) auth.TokenRetriever {
	return auth.NewAuthState(auth.Authenticated(token)).Retriever()
}

func TestGitLabStorage_Load(t *testing.T) {
	srv, ctx := gitlabServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v4/projects/42/repository/files/gtd%2Finbox.org", r.URL.EscapedPath())
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		assert.Equal(t, "Bearer XYZ", r.Header.Get("Authorization"))
		_, _ = w.Write(encoded("* Inbox\n- a\n"))
	})

	store, err := NewGitLabStorage(ctx, authenticated("XYZ"),
		WithBaseURL(srv.URL+"/"), WithProject("42"), WithFile("gtd/inbox.org"), WithBranch("main"))
	require.NoError(t, err)

	content, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "* Inbox\n- a\n", content)
}

func TestGitLabStorage_Update(t *testing.T) {
	var body []byte
	srv, ctx := gitlabServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer XYZ", r.Header.Get("Authorization"))
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"file_path":"gtd/inbox.org","branch":"master"}`))
	})

	store, err := NewGitLabStorage(ctx, authenticated("XYZ"), WithBaseURL(srv.URL))
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, "* Inbox\n- a"))

	var got map[string]string
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, map[string]string{
		"branch":         "master",
		"content":        "* Inbox\n- a",
		"commit_message": "Reminder(s) added from Capture app",
	}, got)
}

func TestGitLabStorage_StatusError(t *testing.T) {
	srv, ctx := gitlabServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"401 Unauthorized"}`, http.StatusUnauthorized)
	})
	store, err := NewGitLabStorage(ctx, authenticated("XYZ"), WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = store.Load(ctx)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusUnauthorized, statusErr.Status)

	in, err := LoadInbox(ctx, store)
	assert.Nil(t, in)
	assert.ErrorIs(t, err, ErrFailedToLoad)
}

func TestNewGitLabStorage_NoToken(t *testing.T) {
	_, err := NewGitLabStorage(context.Background(), auth.NewAuthState(auth.Pending(1)).Retriever())
	assert.ErrorIs(t, err, ErrTokenUnavailable)
	assert.ErrorIs(t, err, auth.ErrNoTokenPresent)
}

type contendedRetriever struct {
	busy  int
	calls int
}

func (r *contendedRetriever) Token() (string, error) {
	r.calls++
	if r.calls <= r.busy {
		return "", auth.ErrFailedToLockToken
	}
	return "XYZ", nil
}

func TestNewGitLabStorage_RetriesLockContention(t *testing.T) {
	srv, ctx := gitlabServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer XYZ", r.Header.Get("Authorization"))
		_, _ = w.Write(encoded("a"))
	})

	retriever := &contendedRetriever{busy: 3}
	store, err := NewGitLabStorage(ctx, retriever, WithBaseURL(srv.URL))
	require.NoError(t, err)
	assert.Equal(t, 4, retriever.calls)

	content, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", content)
}

func TestNewGitLabStorage_MissingTokenIsNotRetried(t *testing.T) {
	calls := 0
	retriever := retrieverFunc(func() (string, error) {
		calls++
		return "", auth.ErrNoTokenPresent
	})
	_, err := NewGitLabStorage(context.Background(), retriever)
	assert.ErrorIs(t, err, auth.ErrNoTokenPresent)
	assert.Equal(t, 1, calls)
}

type retrieverFunc func() (string, error)

func (f retrieverFunc) Token() (string, error) { return f() }
