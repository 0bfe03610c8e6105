package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/repositories"
	"github.com/desertthunder/pulse/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	refreshKey = "refresh"

	// defaultTokenLifetime applies when the token endpoint omits expires_in.
	defaultTokenLifetime = time.Hour
)

var _ Authenticator = (*TokenService)(nil)

// TokenService owns the token lifecycle: authorization URL, code exchange, refresh and logout.
//
// Concurrent refreshes are collapsed into one token endpoint call.
type TokenService struct {
	store      *repositories.TokenStore
	spotify    shared.SpotifyConfig
	api        shared.APIConfig
	httpClient *http.Client
	logger     *log.Logger
	group      singleflight.Group
	now        func() time.Time
}

// TokenServiceOpts configure a [TokenService].
type TokenServiceOpts struct {
	Store      *repositories.TokenStore
	Spotify    shared.SpotifyConfig
	API        shared.APIConfig
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewTokenService creates a [TokenService].
func NewTokenService(opts TokenServiceOpts) *TokenService {
	defaults := shared.DefaultConfig()
	if opts.API.TokenURL == "" {
		opts.API.TokenURL = defaults.API.TokenURL
	}
	if opts.API.AuthURL == "" {
		opts.API.AuthURL = defaults.API.AuthURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	return &TokenService{
		store:      opts.Store,
		spotify:    opts.Spotify,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     shared.WithLogger(opts.Logger, "component", "auth"),
		now:        time.Now,
	}
}

// oauthConfig builds the OAuth2 config for the stored client credentials.
//
// The token endpoint is called with HTTP Basic auth.
func (s *TokenService) oauthConfig(creds models.Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  s.spotify.RedirectURI,
		Scopes:       s.spotify.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   s.api.AuthURL,
			TokenURL:  s.api.TokenURL,
			AuthStyle: oauth2.AuthStyleInHeader,
		},
	}
}

func (s *TokenService) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

// Token implements [Authenticator].
func (s *TokenService) Token(ctx context.Context, force bool) (string, error) {
	pair, err := s.Refresh(ctx, force)
	if err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

// Refresh returns a usable token pair.
//
// Without force the stored pair is returned while it is still valid. Otherwise the refresh token is
// exchanged at the token endpoint. A failed refresh leaves the stored tokens untouched.
func (s *TokenService) Refresh(ctx context.Context, force bool) (models.TokenPair, error) {
	if s.store == nil {
		return models.TokenPair{}, shared.ErrMissingCredentials
	}

	if !force {
		pair, err := s.store.Tokens(ctx)
		if err != nil {
			return models.TokenPair{}, shared.Aborted(ctx, err)
		}
		if !pair.Expired(s.now()) {
			return pair, nil
		}
		if pair.AccessToken != "" {
			s.logger.Info("access token expired", "expired_at", pair.ExpiresAt)
		}
	}

	// The shared call outlives the cancellation of any one waiter.
	ch := s.group.DoChan(refreshKey, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.api.Timeout())
		defer cancel()
		return s.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return models.TokenPair{}, shared.Aborted(ctx, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.TokenPair{}, res.Err
		}
		return res.Val.(models.TokenPair), nil
	}
}

func (s *TokenService) refresh(ctx context.Context) (models.TokenPair, error) {
	creds, err := s.store.Credentials(ctx)
	if err != nil {
		return models.TokenPair{}, err
	}

	current, err := s.store.Tokens(ctx)
	if err != nil {
		return models.TokenPair{}, err
	}
	if current.RefreshToken == "" {
		return models.TokenPair{}, shared.ErrMissingToken
	}

	s.logger.Info("refreshing access token")

	src := s.oauthConfig(creds).TokenSource(s.clientContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := src.Token()
	if err != nil {
		s.logger.Warn("token refresh failed", "error", err)
		return models.TokenPair{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	pair := s.pairFrom(tok)
	if pair.RefreshToken == current.RefreshToken {
		pair.RefreshToken = ""
	}

	if err := s.store.SaveTokens(ctx, pair); err != nil {
		return models.TokenPair{}, fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	if pair.RefreshToken == "" {
		pair.RefreshToken = current.RefreshToken
	} else {
		s.logger.Info("refresh token rotated")
	}
	return pair, nil
}

// pairFrom converts an oauth2 token. Expiry is now + expires_in.
func (s *TokenService) pairFrom(tok *oauth2.Token) models.TokenPair {
	expires := tok.Expiry
	if expires.IsZero() {
		expires = s.now().Add(defaultTokenLifetime)
	}
	return models.TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expires,
	}
}

// AuthURL returns the authorization page URL for state.
func (s *TokenService) AuthURL(ctx context.Context, state string) (string, error) {
	creds, err := s.store.Credentials(ctx)
	if err != nil {
		return "", err
	}
	return s.oauthConfig(creds).AuthCodeURL(state), nil
}

// Exchange trades an authorization code for a token pair and persists it.
func (s *TokenService) Exchange(ctx context.Context, code string) (models.TokenPair, error) {
	if code == "" {
		return models.TokenPair{}, fmt.Errorf("%w: empty authorization code", shared.ErrInvalidInput)
	}

	creds, err := s.store.Credentials(ctx)
	if err != nil {
		return models.TokenPair{}, err
	}

	tok, err := s.oauthConfig(creds).Exchange(s.clientContext(ctx), code)
	if err != nil {
		if aborted := shared.Aborted(ctx, err); errors.Is(aborted, shared.ErrAborted) {
			return models.TokenPair{}, aborted
		}
		return models.TokenPair{}, fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err)
	}

	pair := s.pairFrom(tok)
	if pair.RefreshToken == "" {
		return models.TokenPair{}, fmt.Errorf("%w: token response has no refresh token", shared.ErrAuthFailed)
	}
	if err := s.store.SaveTokens(ctx, pair); err != nil {
		return models.TokenPair{}, err
	}

	s.logger.Info("authorization code exchanged", "expires_at", pair.ExpiresAt)
	return pair, nil
}

// SaveCredentials stores the client application credentials.
func (s *TokenService) SaveCredentials(ctx context.Context, creds models.Credentials) error {
	return s.store.SaveCredentials(ctx, creds)
}

// Credentials returns the stored client credentials.
func (s *TokenService) Credentials(ctx context.Context) (models.Credentials, error) {
	if s.store == nil {
		return models.Credentials{}, shared.ErrMissingCredentials
	}
	return s.store.Credentials(ctx)
}

// Tokens returns the stored pair without refreshing.
func (s *TokenService) Tokens(ctx context.Context) (models.TokenPair, error) {
	return s.store.Tokens(ctx)
}

// Logout destroys the token pair. Client credentials are kept.
func (s *TokenService) Logout(ctx context.Context) error {
	if err := s.store.ClearTokens(ctx); err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	s.logger.Info("logged out")
	return nil
}
