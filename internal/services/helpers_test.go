package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/repositories"
	"github.com/desertthunder/pulse/internal/shared"
)

const (
	testClientID     = "client"
	testClientSecret = "secret"
)

// fakeSpotify serves a token endpoint at /api/token and the Web API under /v1.
type fakeSpotify struct {
	t   *testing.T
	srv *httptest.Server

	mu     sync.Mutex
	events []string
	tokens int
	calls  []*http.Request
	bodies [][]byte

	// rotate is returned as refresh_token when set.
	rotate string
	// tokenStatus overrides the token endpoint's status when non-zero.
	tokenStatus int
	// tokenDelay stalls the token endpoint.
	tokenDelay time.Duration
	// api handles /v1 requests.
	api http.HandlerFunc
}

func newFakeSpotify(t *testing.T, api http.HandlerFunc) *fakeSpotify {
	t.Helper()

	f := &fakeSpotify{t: t, api: api}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", f.handleToken)
	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		f.mu.Lock()
		f.events = append(f.events, r.Method+" "+r.URL.Path)
		f.calls = append(f.calls, r)
		f.bodies = append(f.bodies, body)
		f.mu.Unlock()

		f.api(w, r)
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSpotify) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokens++
	n := f.tokens
	f.events = append(f.events, "token")
	f.mu.Unlock()

	if f.tokenDelay > 0 {
		time.Sleep(f.tokenDelay)
	}

	id, secret, ok := r.BasicAuth()
	if !ok || id != testClientID || secret != testClientSecret {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
		return
	}

	if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if f.tokenStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.tokenStatus)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Refresh token revoked"}`))
		return
	}

	resp := map[string]any{
		"access_token": fmt.Sprintf("fresh-%d", n),
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
	if f.rotate != "" {
		resp["refresh_token"] = f.rotate
	}
	if r.PostForm.Get("grant_type") == "authorization_code" {
		resp["refresh_token"] = "from-code"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (f *fakeSpotify) tokenCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens
}

func (f *fakeSpotify) apiCalls() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.calls...)
}

func (f *fakeSpotify) log() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

type testEnv struct {
	fake    *fakeSpotify
	store   *repositories.TokenStore
	auth    *TokenService
	client  *Client
	spotify *SpotifyService
}

// newTestEnv wires a client against fake with credentials and the given token pair stored.
func newTestEnv(t *testing.T, fake *fakeSpotify, pair *models.TokenPair) *testEnv {
	t.Helper()
	ctx := context.Background()

	store := repositories.NewTokenStore(repositories.NewMemoryStore(), "test-key")
	if err := store.SaveCredentials(ctx, models.Credentials{ClientID: testClientID, ClientSecret: testClientSecret}); err != nil {
		t.Fatalf("failed to save credentials: %v", err)
	}
	if pair != nil {
		if err := store.SaveTokens(ctx, *pair); err != nil {
			t.Fatalf("failed to save tokens: %v", err)
		}
	}

	auth := NewTokenService(TokenServiceOpts{
		Store:      store,
		Spotify:    shared.SpotifyConfig{RedirectURI: "http://127.0.0.1:8888/callback", Scopes: []string{"user-library-read"}},
		API:        shared.APIConfig{TokenURL: fake.srv.URL + "/api/token", AuthURL: fake.srv.URL + "/authorize"},
		HTTPClient: fake.srv.Client(),
	})
	client := NewClient(ClientOpts{BaseURL: fake.srv.URL + "/v1", Auth: auth, HTTPClient: fake.srv.Client()})

	return &testEnv{
		fake:    fake,
		store:   store,
		auth:    auth,
		client:  client,
		spotify: NewSpotifyService(client, SpotifyOpts{BatchDelay: time.Millisecond, PageDelay: time.Millisecond}),
	}
}

func validPair() *models.TokenPair {
	return &models.TokenPair{AccessToken: "valid", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour)}
}

func expiredPair() *models.TokenPair {
	return &models.TokenPair{AccessToken: "stale", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Minute)}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

const userJSON = `{"id":"user1","display_name":"Test User","external_urls":{"spotify":"https://open.spotify.com/user/user1"},"images":[]}`
