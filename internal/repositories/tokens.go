package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/shared"
)

const (
	keyClientID      = "spotify_client_id"
	keyClientSecret  = "spotify_client_secret"
	keyAccessToken   = "spotify_access_token"
	keyRefreshToken  = "spotify_refresh_token"
	keyExpiresAt     = "spotify_token_expires_at"
	keyEncryptionKey = "encryption_key"
)

// TokenStore persists the client credentials and the current [models.TokenPair].
//
// Credentials are sealed with [shared.Sealer]. When no passphrase is configured one is generated
// and kept in the store under encryption_key.
type TokenStore struct {
	store      Store
	passphrase string

	mu     sync.Mutex
	sealer *shared.Sealer
}

// NewTokenStore creates a [TokenStore]. An empty passphrase defers to the stored key.
func NewTokenStore(store Store, passphrase string) *TokenStore {
	return &TokenStore{store: store, passphrase: passphrase}
}

func (t *TokenStore) getSealer(ctx context.Context) (*shared.Sealer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealer != nil {
		return t.sealer, nil
	}

	key := t.passphrase
	if key == "" {
		stored, err := t.store.Get(ctx, keyEncryptionKey)
		switch {
		case err == nil:
			key = stored
		case errors.Is(err, shared.ErrKeyNotFound):
			if key, err = shared.GenerateKey(); err != nil {
				return nil, err
			}
			if err := t.store.Set(ctx, keyEncryptionKey, key); err != nil {
				return nil, err
			}
		default:
			return nil, err
		}
	}

	t.sealer = shared.NewSealer(key)
	return t.sealer, nil
}

// SaveCredentials encrypts and stores the client id and secret.
func (t *TokenStore) SaveCredentials(ctx context.Context, creds models.Credentials) error {
	if !creds.Valid() {
		return fmt.Errorf("%w: client id and secret are required", shared.ErrInvalidInput)
	}

	sealer, err := t.getSealer(ctx)
	if err != nil {
		return err
	}

	id, err := sealer.Seal(creds.ClientID)
	if err != nil {
		return err
	}
	secret, err := sealer.Seal(creds.ClientSecret)
	if err != nil {
		return err
	}

	if err := t.store.Set(ctx, keyClientID, id); err != nil {
		return err
	}
	return t.store.Set(ctx, keyClientSecret, secret)
}

// Credentials returns the decrypted client credentials or [shared.ErrMissingCredentials].
func (t *TokenStore) Credentials(ctx context.Context) (models.Credentials, error) {
	id, idErr := t.store.Get(ctx, keyClientID)
	secret, secretErr := t.store.Get(ctx, keyClientSecret)
	if errors.Is(idErr, shared.ErrKeyNotFound) || errors.Is(secretErr, shared.ErrKeyNotFound) {
		return models.Credentials{}, shared.ErrMissingCredentials
	}
	if err := errors.Join(idErr, secretErr); err != nil {
		return models.Credentials{}, err
	}

	sealer, err := t.getSealer(ctx)
	if err != nil {
		return models.Credentials{}, err
	}

	clientID, err := sealer.Open(id)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%w: %w", shared.ErrMissingCredentials, err)
	}
	clientSecret, err := sealer.Open(secret)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%w: %w", shared.ErrMissingCredentials, err)
	}

	return models.Credentials{ClientID: clientID, ClientSecret: clientSecret}, nil
}

// Tokens returns the stored pair. Missing keys leave fields empty.
func (t *TokenStore) Tokens(ctx context.Context) (models.TokenPair, error) {
	var pair models.TokenPair

	for key, dst := range map[string]*string{keyAccessToken: &pair.AccessToken, keyRefreshToken: &pair.RefreshToken} {
		v, err := t.store.Get(ctx, key)
		if err != nil && !errors.Is(err, shared.ErrKeyNotFound) {
			return pair, err
		}
		*dst = v
	}

	raw, err := t.store.Get(ctx, keyExpiresAt)
	if err != nil && !errors.Is(err, shared.ErrKeyNotFound) {
		return pair, err
	}
	if raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return pair, fmt.Errorf("invalid token expiry %q: %w", raw, err)
		}
		pair.ExpiresAt = time.UnixMilli(ms)
	}

	return pair, nil
}

// SaveTokens persists a pair. An empty refresh token keeps the stored one.
func (t *TokenStore) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	if pair.AccessToken == "" {
		return fmt.Errorf("%w: empty access token", shared.ErrMissingToken)
	}

	if err := t.store.Set(ctx, keyAccessToken, pair.AccessToken); err != nil {
		return err
	}
	if pair.RefreshToken != "" {
		if err := t.store.Set(ctx, keyRefreshToken, pair.RefreshToken); err != nil {
			return err
		}
	}
	return t.store.Set(ctx, keyExpiresAt, strconv.FormatInt(pair.ExpiresAt.UnixMilli(), 10))
}

// ClearTokens removes the token pair. Credentials and the encryption key are kept.
func (t *TokenStore) ClearTokens(ctx context.Context) error {
	return t.store.Delete(ctx, keyAccessToken, keyRefreshToken, keyExpiresAt)
}

// ClearCredentials removes the stored client credentials.
func (t *TokenStore) ClearCredentials(ctx context.Context) error {
	return t.store.Delete(ctx, keyClientID, keyClientSecret)
}
