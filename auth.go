package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/healthdrive/healthdrive/internal/config"
	"github.com/healthdrive/healthdrive/internal/credential"
	"github.com/healthdrive/healthdrive/internal/report"
	"github.com/healthdrive/healthdrive/internal/tokenfile"
)

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Authorize Google Drive access in the browser",
		Long: `Run the Google OAuth installed-app flow: a browser window opens, you grant
read-only Drive access, and the resulting credential is saved for later use by
the CLI and the MCP server.

The OAuth client configuration (credentials.json) is read from
auth.client_secrets_file or HEALTHDRIVE_CLIENT_SECRETS.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved Google Drive credential",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the saved credential for the configured identity",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	logger := cc.Logger

	ctx := shutdownContext(cmd.Context(), logger)

	provider, err := newProvider(cc.Cfg.Auth, true, logger)
	if err != nil {
		return err
	}

	logger.Info("login started", slog.String("identity", provider.Identity()))

	if _, err := provider.Authorize(ctx); err != nil {
		return err
	}

	logger.Info("login successful", slog.String("identity", provider.Identity()))
	cc.Statusf("Login successful.\n")

	return nil
}

// storedProvider builds a provider that only touches the token file.
func storedProvider(auth config.AuthConfig, logger *slog.Logger) (*credential.Provider, error) {
	return credential.NewProvider(credential.Options{
		Store:    tokenfile.NewStore(auth.TokenDir),
		Identity: auth.Identity,
		Scopes:   auth.Scopes,
		Logger:   logger,
	})
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	provider, err := storedProvider(cc.Cfg.Auth, cc.Logger)
	if err != nil {
		return err
	}

	if err := provider.Reset(); err != nil {
		return err
	}

	cc.Statusf("Logged out.\n")

	return nil
}

// whoamiOutput is the JSON schema for `whoami --json`.
type whoamiOutput struct {
	Identity  string    `json:"identity"`
	TokenPath string    `json:"token_path"`
	LoggedIn  bool      `json:"logged_in"`
	Valid     bool      `json:"valid,omitempty"`
	Expiry    time.Time `json:"expiry,omitzero"`
	SavedAt   time.Time `json:"saved_at,omitzero"`
	Scopes    []string  `json:"scopes,omitempty"`
}

func runWhoami(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	auth := cc.Cfg.Auth

	provider, err := storedProvider(auth, cc.Logger)
	if err != nil {
		return err
	}

	f, err := provider.Stored()
	if err != nil {
		return err
	}

	out := whoamiOutput{
		Identity:  auth.Identity,
		TokenPath: tokenfile.NewStore(auth.TokenDir).Path(auth.Identity),
	}

	if f != nil && f.Token != nil {
		out.LoggedIn = true
		out.Valid = f.Token.Valid()
		out.Expiry = f.Token.Expiry
		out.SavedAt = f.SavedAt
		out.Scopes = f.Scopes
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		return printJSON(w, out)
	}

	if !out.LoggedIn {
		fmt.Fprintf(w, "Identity %q is not logged in. Run 'healthdrive login'.\n", out.Identity)
		return nil
	}

	state := "expired (will refresh on next use)"
	if out.Valid {
		state = "valid"
	}

	printTable(w, []string{"FIELD", "VALUE"}, [][]string{
		{"identity", out.Identity},
		{"token", out.TokenPath},
		{"state", state},
		{"expiry", report.Timestamp(out.Expiry)},
		{"saved", report.Timestamp(out.SavedAt)},
	})

	return nil
}
