package webserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/mnehpets/loopback/endpoint"
	"github.com/mnehpets/loopback/middleware"
)

const (
	defaultLandingPath     = "capture"
	defaultShutdownTimeout = 5 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// ErrAlreadyLaunched is returned by Launch on a server that has been launched
// before. A LoopbackServer serves a single login.
var ErrAlreadyLaunched = errors.New("webserver: already launched")

// ErrInvalidLandingPath is returned by Launch when the landing path is not a
// single literal path segment, or collides with the callback route.
var ErrInvalidLandingPath = errors.New("webserver: invalid landing path")

var errMissingToken = errors.New("missing access_token")

// ProviderError is an error returned by the authorization provider in place
// of a token.
type ProviderError struct {
	Code        string
	Description string
}

func (e *ProviderError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("provider error: %s (description: %s)", e.Code, e.Description)
	}
	return fmt.Sprintf("provider error: %s", e.Code)
}

// LoopbackServer is the WebServer bound to 127.0.0.1. It serves the landing
// page the provider redirects to and accepts the token the page posts back.
// It stops after the first accepted token, when the launch context is
// cancelled, or on Shutdown.
type LoopbackServer struct {
	port            uint16
	landingPath     string
	shutdownTimeout time.Duration
	logger          *slog.Logger

	slot    shutdownSlot
	pathErr error

	mu      sync.Mutex
	srv     *http.Server
	handler http.Handler
	done    chan struct{}
	err     error
}

// Option configures a LoopbackServer.
type Option func(*LoopbackServer)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *LoopbackServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLandingPath sets the path segment the provider redirects to. The
// default is "capture". Surrounding slashes are ignored. A path rejected by
// ValidateLandingPath makes Launch fail with ErrInvalidLandingPath.
func WithLandingPath(path string) Option {
	return func(s *LoopbackServer) {
		p := strings.Trim(path, "/")
		if p == "" {
			return
		}
		s.pathErr = ValidateLandingPath(p)
		s.landingPath = p
	}
}

// ValidateLandingPath reports whether p can be served as the landing route:
// one literal path segment, other than the callback route.
func ValidateLandingPath(p string) error {
	switch {
	case p == "" || p == "." || p == "..":
	case p == strings.TrimPrefix(SaveTokenPath, "/"):
		return fmt.Errorf("%w: %q is reserved for the token callback", ErrInvalidLandingPath, p)
	case strings.ContainsAny(p, "/?#{}%\\") || strings.ContainsFunc(p, unicode.IsSpace):
	default:
		return nil
	}
	return fmt.Errorf("%w: %q must be a single path segment", ErrInvalidLandingPath, p)
}

// WithShutdownTimeout bounds how long in-flight requests may take to finish
// once the server stops.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *LoopbackServer) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// NewLoopbackServer returns a server that will bind 127.0.0.1:port.
func NewLoopbackServer(port uint16, opts ...Option) *LoopbackServer {
	s := &LoopbackServer{
		port:            port,
		landingPath:     defaultLandingPath,
		shutdownTimeout: defaultShutdownTimeout,
		logger:          slog.Default(),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "loopback", "port", port)
	return s
}

// Port implements WebServer.
func (s *LoopbackServer) Port() uint16 {
	return s.port
}

// Addr returns the listen address.
func (s *LoopbackServer) Addr() string {
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(int(s.port)))
}

// LandingPath returns the landing path with a leading and trailing slash.
func (s *LoopbackServer) LandingPath() string {
	return "/" + s.landingPath + "/"
}

// Launch implements WebServer.
func (s *LoopbackServer) Launch(ctx context.Context, cb Callback) error {
	if cb == nil {
		return errors.New("webserver: nil callback")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return ErrAlreadyLaunched
	}
	if s.pathErr != nil {
		return s.pathErr
	}

	// The router is built before binding so a bad route never leaves a
	// listener behind.
	handler := s.newRouter(cb)
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}

	stop := make(chan struct{})
	var once sync.Once
	s.slot.put(func() { once.Do(func() { close(stop) }) })

	s.handler = handler
	s.srv = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	srv := s.srv

	var g errgroup.Group
	served := make(chan struct{})
	g.Go(func() error {
		defer close(served)
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		select {
		case <-stop:
			s.logger.Info("login completed, stopping listener")
		case <-ctx.Done():
			s.slot.take()
			s.logger.Info("launch context done, stopping listener", "error", ctx.Err())
		case <-served:
			s.slot.take()
			return nil
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	go func() {
		err := g.Wait()
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	}()

	s.logger.Info("listening", "landing", "http://"+s.Addr()+s.LandingPath())
	return nil
}

// Done is closed once the server has stopped serving.
func (s *LoopbackServer) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the server has stopped and returns the first serve or
// shutdown error. It returns nil immediately if the server was never
// launched.
func (s *LoopbackServer) Wait() error {
	s.mu.Lock()
	launched := s.srv != nil
	s.mu.Unlock()
	if !launched {
		return nil
	}
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Shutdown stops the server without a completed login. If ctx expires first
// open connections are closed forcibly.
func (s *LoopbackServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	s.slot.fire()
	select {
	case <-s.done:
		return s.Wait()
	case <-ctx.Done():
		srv.Close()
		return ctx.Err()
	}
}

// Handler returns the router of a launched server, or nil.
func (s *LoopbackServer) Handler() http.Handler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handler
}

type tokenParams struct {
	AccessToken      string `form:"access_token"`
	State            string `form:"state"`
	TokenType        string `form:"token_type"`
	Error            string `form:"error"`
	ErrorDescription string `form:"error_description"`
}

func (s *LoopbackServer) newRouter(cb Callback) http.Handler {
	logging := middleware.NewRequestLogger(s.logger)
	pageHeaders := middleware.NewSecurityHeadersProcessor(middleware.WithCSP(landingCSP))
	apiHeaders := middleware.NewSecurityHeadersProcessor()

	landing := endpoint.HandleFunc(s.landing,
		logging, pageHeaders, endpoint.AllowMethods(http.StatusNotFound, http.MethodGet))
	saveToken := endpoint.HandleFunc(s.saveToken(cb),
		logging, apiHeaders, rejectAsNotFound, endpoint.AllowMethods(http.StatusNotFound, http.MethodPost))
	notFound := endpoint.HandleFunc(func(_ http.ResponseWriter, _ *http.Request, _ struct{}) (endpoint.Renderer, error) {
		return nil, endpoint.Error(http.StatusNotFound, "", nil)
	}, logging, apiHeaders)

	mux := http.NewServeMux()
	mux.Handle("/"+s.landingPath+"/{$}", landing)
	mux.Handle("/"+s.landingPath, landing)
	mux.Handle(SaveTokenPath, saveToken)
	mux.Handle("/", notFound)
	return mux
}

func (s *LoopbackServer) landing(_ http.ResponseWriter, _ *http.Request, _ struct{}) (endpoint.Renderer, error) {
	return &endpoint.HTMLRenderer{StringRenderer: endpoint.StringRenderer{Body: LandingPage}}, nil
}

func (s *LoopbackServer) saveToken(cb Callback) endpoint.EndpointFunc[tokenParams] {
	return func(_ http.ResponseWriter, _ *http.Request, p tokenParams) (endpoint.Renderer, error) {
		if p.Error != "" {
			perr := &ProviderError{Code: p.Error, Description: p.ErrorDescription}
			s.logger.Warn("provider denied login", "error", perr)
			return nil, endpoint.Error(http.StatusNotFound, "", perr)
		}
		state, err := strconv.ParseInt(p.State, 10, 16)
		if err != nil {
			return nil, endpoint.Error(http.StatusNotFound, "", fmt.Errorf("invalid state: %w", err))
		}
		if p.AccessToken == "" {
			return nil, endpoint.Error(http.StatusNotFound, "", errMissingToken)
		}
		if err := cb(p.AccessToken, int16(state)); err != nil {
			return nil, endpoint.Error(http.StatusNotFound, "", err)
		}
		return endpoint.Then(
			&endpoint.PlainRenderer{StringRenderer: endpoint.StringRenderer{Body: SuccessMessage}},
			func() { s.slot.fire() },
		), nil
	}
}

// rejectAsNotFound reports every client error on the callback route as 404,
// so a malformed post is indistinguishable from a rejected one.
var rejectAsNotFound = endpoint.ProcessorFunc(func(w http.ResponseWriter, r *http.Request, next func(http.ResponseWriter, *http.Request) error) error {
	err := next(w, r)
	if err != nil {
		if status := endpoint.StatusOf(err); status >= 400 && status < 500 && status != http.StatusNotFound {
			return &endpoint.EndpointError{Status: http.StatusNotFound, Cause: err}
		}
	}
	return err
})

var _ WebServer = (*LoopbackServer)(nil)
