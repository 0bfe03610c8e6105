package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/server"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultLoginTimeout = 2 * time.Minute

// AuthStatusReport is the output of `auth status`.
type AuthStatusReport struct {
	CredentialsStored bool      `json:"credentials_stored"`
	LoggedIn          bool      `json:"logged_in"`
	ExpiresAt         time.Time `json:"expires_at,omitzero"`
	Expired           bool      `json:"expired"`
	Connected         bool      `json:"connected"`
	User              string    `json:"user,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// AuthCredentials seals the client id and secret into the store.
func (r *Runner) AuthCredentials(ctx context.Context, cmd *cli.Command) error {
	creds := models.Credentials{
		ClientID:     cmd.String("client-id"),
		ClientSecret: cmd.String("client-secret"),
	}
	if !creds.Valid() {
		return fmt.Errorf("%w: --client-id and --client-secret are required", shared.ErrMissingArgument)
	}

	if err := r.ensure(ctx); err != nil {
		return err
	}
	if err := r.tokens.SaveCredentials(ctx, creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	r.logger.Info("client credentials saved")
	return r.writePlain("✓ Credentials saved\nNext: pulse auth login\n")
}

// AuthLogin performs the OAuth2 authorization code flow.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges the code for tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	timeout := cmd.Duration("timeout")
	if timeout <= 0 {
		timeout = defaultLoginTimeout
	}

	pair, err := r.doOAuth(ctx, timeout, !cmd.Bool("no-browser"))
	if err != nil {
		return err
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("  Access token expires at %s\n\n", pair.ExpiresAt.Local().Format(time.Kitchen))
	r.writePlain("You can now use: pulse spotify playlists\n")
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, timeout time.Duration, openBrowser bool) (models.TokenPair, error) {
	state := shared.GenerateID()

	authURL, err := r.tokens.AuthURL(ctx, state)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("%w: run `pulse auth credentials` first", err)
	}

	handler := server.NewOAuthHandler(r.tokens, state)
	router := server.NewBasicRouter()
	router.Use(server.RequestLogger(r.logger))
	router.Handler(handler)

	addr := r.config.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to start callback server on %s: %w", addr, err)
	}

	srvCtx, stop := context.WithCancel(ctx)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.New(addr, router, r.logger).Serve(srvCtx, ln)
	}()
	r.logger.Info("started OAuth callback server", "addr", addr)

	if openBrowser {
		r.writePlain("→ Opening browser for Spotify authorization...\n")
		if err := r.browser(authURL); err != nil {
			r.logger.Warn("failed to open browser automatically", "error", err)
			r.writePlainln("⚠ Could not open browser automatically.")
			openBrowser = false
		}
	}
	if !openBrowser {
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (%s timeout)...\n", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var result server.OAuthResult
	select {
	case result = <-handler.Result():
	case err := <-serverErrors:
		if err == nil {
			err = errors.New("server stopped")
		}
		return models.TokenPair{}, fmt.Errorf("callback server error: %w", err)
	case <-timer.C:
		return models.TokenPair{}, fmt.Errorf("%w: authorization timed out after %s", shared.ErrAuthFailed, timeout)
	case <-ctx.Done():
		return models.TokenPair{}, shared.Aborted(ctx, ctx.Err())
	}

	stop()
	if err := <-serverErrors; err != nil {
		r.logger.Warn("error shutting down server", "error", err)
	}

	if result.Error() != nil {
		return models.TokenPair{}, fmt.Errorf("authorization failed: %w", result.Error())
	}
	return result.Tokens, nil
}

// AuthLogout removes the stored tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	if err := r.tokens.Logout(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out (client credentials kept)\n")
}

// AuthRefresh forces a token refresh.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	pair, err := r.tokens.Refresh(ctx, true)
	if err != nil {
		return loginHint(err)
	}

	r.logger.Info("token refreshed", "expires_at", pair.ExpiresAt)
	return r.writePlain("✓ Token refreshed, expires in %s\n", pair.ExpiresIn(time.Now()).Round(time.Second))
}

// AuthStatus reports the stored session and checks it against /me.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	report := r.authStatus(ctx)
	if cmd.Bool("json") {
		return r.writeJSON(report, cmd.Bool("pretty"))
	}

	r.writePlainHeader("Spotify connection")
	r.writePlain("Credentials: %s\n", check(report.CredentialsStored))
	r.writePlain("Logged in:   %s\n", check(report.LoggedIn))
	if report.LoggedIn {
		state := "valid"
		if report.Expired {
			state = "expired (refreshes on next request)"
		}
		r.writePlain("Token:       %s, expires %s\n", state, report.ExpiresAt.Local().Format(time.DateTime))
	}
	r.writePlain("Connected:   %s\n", check(report.Connected))
	if report.User != "" {
		r.writePlain("User:        %s\n", report.User)
	}
	if report.Error != "" {
		r.writePlain("Error:       %s\n", report.Error)
	}
	return nil
}

func (r *Runner) authStatus(ctx context.Context) AuthStatusReport {
	var report AuthStatusReport

	if _, err := r.tokens.Credentials(ctx); err == nil {
		report.CredentialsStored = true
	}

	pair, err := r.tokens.Tokens(ctx)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.LoggedIn = pair.RefreshToken != ""
	report.ExpiresAt = pair.ExpiresAt
	report.Expired = pair.Expired(time.Now())

	if !report.CredentialsStored || !report.LoggedIn {
		return report
	}

	user, err := r.spotify.Me(ctx)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Connected = true
	report.User = user.ID
	if user.DisplayName != "" {
		report.User = fmt.Sprintf("%s (%s)", user.DisplayName, user.ID)
	}
	return report
}

func check(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}
