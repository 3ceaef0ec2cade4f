package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"runtime"
	"slices"
	"sync"

	"golang.org/x/oauth2"

	"github.com/healthdrive/healthdrive/internal/config"
	"github.com/healthdrive/healthdrive/internal/credential"
	"github.com/healthdrive/healthdrive/internal/gdrive"
	"github.com/healthdrive/healthdrive/internal/mcpserver"
	"github.com/healthdrive/healthdrive/internal/tokenfile"
)

// driveEndpoint overrides the Drive API base URL. Tests point it at an
// httptest server.
var driveEndpoint string

// newProvider builds a credential provider from the [auth] section. An
// interactive provider can open the browser; a non-interactive one (the MCP
// server) fails with credential.ErrAuth when no usable token is stored.
func newProvider(auth config.AuthConfig, interactive bool, logger *slog.Logger) (*credential.Provider, error) {
	opts := credential.Options{
		Store:    tokenfile.NewStore(auth.TokenDir),
		Identity: auth.Identity,
		Scopes:   auth.Scopes,
		Logger:   logger,
	}

	oauthCfg, err := credential.LoadClientConfig(auth.ClientSecretsFile, auth.Scopes)
	switch {
	case err == nil:
		opts.Refresher = credential.OAuthRefresher{Config: oauthCfg}

		if interactive {
			opts.Authorizer = &credential.BrowserAuthorizer{
				Config:  oauthCfg,
				OpenURL: openBrowser,
				Out:     os.Stderr,
				Logger:  logger,
			}
		}
	case interactive:
		return nil, err
	default:
		// A stored unexpired token still works without client secrets.
		logger.Warn("client secrets unavailable, tokens cannot be refreshed",
			slog.String("error", err.Error()),
		)
	}

	return credential.NewProvider(opts)
}

// newDriveClient returns a Drive client authenticated through provider.
func newDriveClient(ctx context.Context, drv config.DriveConfig, provider *credential.Provider, logger *slog.Logger) (*gdrive.Client, error) {
	chunk, err := drv.ChunkBytes()
	if err != nil {
		return nil, err
	}

	timeout, err := drv.Timeout()
	if err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(ctx, provider.TokenSource(ctx))
	httpClient.Timeout = timeout

	return gdrive.NewClient(ctx, httpClient, gdrive.Options{
		Endpoint:  driveEndpoint,
		ChunkSize: chunk,
		UserAgent: drv.UserAgent,
	}, logger)
}

// driveSession opens an interactive Drive session for CLI commands.
func driveSession(ctx context.Context, cc *CLIContext) (*gdrive.Client, error) {
	provider, err := newProvider(cc.Cfg.Auth, true, cc.Logger)
	if err != nil {
		return nil, err
	}

	return newDriveClient(ctx, cc.Cfg.Drive, provider, cc.Logger)
}

// documentSource hands the MCP server a Drive client per tool call. The
// provider is reused across calls, so concurrent calls share one refresh,
// and rebuilt when a config reload changes the [auth] section.
type documentSource struct {
	holder *config.Holder
	logger *slog.Logger

	mu       sync.Mutex
	auth     config.AuthConfig
	provider *credential.Provider
}

func newDocumentSource(holder *config.Holder, logger *slog.Logger) *documentSource {
	return &documentSource{holder: holder, logger: logger}
}

// Documents implements mcpserver.DocumentsFunc.
func (s *documentSource) Documents(ctx context.Context) (mcpserver.Documents, error) {
	cfg := s.holder.Config()

	provider, err := s.providerFor(cfg.Auth)
	if err != nil {
		return nil, err
	}

	return newDriveClient(ctx, cfg.Drive, provider, s.logger)
}

func (s *documentSource) providerFor(auth config.AuthConfig) (*credential.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.provider != nil && sameAuth(s.auth, auth) {
		return s.provider, nil
	}

	provider, err := newProvider(auth, false, s.logger)
	if err != nil {
		return nil, err
	}

	s.auth = auth
	s.provider = provider

	return provider, nil
}

func sameAuth(a, b config.AuthConfig) bool {
	return a.ClientSecretsFile == b.ClientSecretsFile &&
		a.Identity == b.Identity &&
		a.TokenDir == b.TokenDir &&
		slices.Equal(a.Scopes, b.Scopes)
}

// openBrowser opens url in the default browser without waiting for it.
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("opening a browser is not supported on %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return err
	}

	go func() { _ = cmd.Wait() }()

	return nil
}
