// Command capture logs in to GitLab through the loopback implicit-grant flow
// and appends the command-line arguments to the inbox file as one reminder.
//
//	capture buy milk
//
// Settings come from the environment or a .env file; see package config.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/browser"

	"github.com/mnehpets/loopback/auth"
	"github.com/mnehpets/loopback/config"
	"github.com/mnehpets/loopback/inbox"
	"github.com/mnehpets/loopback/webserver"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, strings.Join(os.Args[1:], " ")); err != nil {
		logger.Error("capture failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, note string) error {
	params := cfg.LoginParams()
	if cfg.Issuer != "" {
		endpoint, err := auth.DiscoverEndpoint(ctx, cfg.Issuer)
		if err != nil {
			return err
		}
		params.AuthorizeURL = endpoint
	}

	port, err := pickPort(cfg)
	if err != nil {
		return err
	}

	state := auth.NewAuthState(auth.NewMachine(auth.RandomState))
	server := webserver.NewLoopbackServer(port,
		webserver.WithLogger(logger),
		webserver.WithLandingPath(params.LandingPath),
		webserver.WithShutdownTimeout(cfg.ShutdownTimeout),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("listener shutdown", "error", err)
		}
	}()

	provider := auth.NewOAuthProvider(params, auth.WithLogger(logger))
	authURL, err := provider.Provide(ctx, server, state.Receiver())
	if err != nil {
		return err
	}

	if cfg.OpenBrowser {
		if err := browser.OpenURL(authURL); err != nil {
			logger.Warn("failed to open browser", "error", err)
			fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
		}
	} else {
		fmt.Fprintf(os.Stderr, "Open this URL in your browser:\n%s\n", authURL)
	}

	if _, err := auth.AwaitToken(ctx, state.Retriever(), auth.WithAwaitLogger(logger)); err != nil {
		return fmt.Errorf("waiting for login: %w", err)
	}
	if err := server.Wait(); err != nil {
		logger.Warn("listener stopped with error", "error", err)
	}

	storage, err := inbox.NewGitLabStorage(ctx, state.Retriever(),
		inbox.WithBaseURL(cfg.GitLabURL),
		inbox.WithProject(cfg.GitLabProject),
		inbox.WithFile(cfg.GitLabFile),
		inbox.WithBranch(cfg.GitLabBranch),
	)
	if err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	in, err := inbox.LoadInbox(reqCtx, storage)
	if err != nil {
		return err
	}
	if note != "" {
		if err := in.Save(reqCtx, note); err != nil {
			return err
		}
		logger.Info("reminder saved")
	}
	for _, line := range in.Latest(inbox.DefaultLatest) {
		fmt.Println(line)
	}
	return nil
}

func pickPort(cfg *config.Config) (uint16, error) {
	switch {
	case cfg.Port != 0:
		return cfg.Port, nil
	case cfg.PortRangeStart != 0:
		return webserver.FindAvailablePort(cfg.PortRangeStart, cfg.PortRangeEnd)
	default:
		return webserver.FreePort()
	}
}
