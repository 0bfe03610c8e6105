package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/repositories"
	"github.com/desertthunder/pulse/internal/shared"
	tu "github.com/desertthunder/pulse/internal/testing"
	"github.com/urfave/cli/v3"
)

// fakeAPI serves the token endpoint, a slice of the Web API and cover images.
type fakeAPI struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string
	queries  map[string]url.Values
	cover    []byte
}

func (f *fakeAPI) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.queries[r.Method+" "+r.URL.Path] = r.URL.Query()
}

// query returns the query string of the latest method path request.
func (f *fakeAPI) query(method, path string) url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[method+" "+path]
}

func (f *fakeAPI) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, req := range f.requests {
		if req == method+" "+path {
			n++
		}
	}
	return n
}

func reply(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func trackJSON(id, albumID, coverURL string) string {
	return fmt.Sprintf(`{"id":%q,"name":"Song %s","type":"track","uri":"spotify:track:%s","duration_ms":200000,`+
		`"artists":[{"id":"a1","name":"Artist","type":"artist","uri":"spotify:artist:a1"}],`+
		`"album":{"id":%q,"name":"Album %s","type":"album","uri":"spotify:album:%s","artists":[],"images":[{"url":%q}],"total_tracks":1},`+
		`"is_local":false,"popularity":10,"track_number":1}`, id, id, id, albumID, albumID, albumID, coverURL)
}

const artistJSON = `{"id":"a1","name":"Artist","type":"artist","uri":"spotify:artist:a1","genres":["folk","jazz"]}`

func albumJSON(coverURL string) string {
	return fmt.Sprintf(`{"id":"al1","name":"Album al1","type":"album","uri":"spotify:album:al1","release_date":"1971-06-22",`+
		`"artists":[{"id":"a1","name":"Artist","type":"artist","uri":"spotify:artist:a1"}],"images":[{"url":%q}],"total_tracks":1,`+
		`"tracks":{"href":"h","items":[{"id":"t1","name":"Song t1","type":"track","uri":"spotify:track:t1","duration_ms":200000,`+
		`"artists":[],"external_urls":{"spotify":"x"}}],"limit":50,"next":null,"offset":0,"total":1}}`, coverURL)
}

func pageJSON(items ...string) string {
	return fmt.Sprintf(`{"href":"h","items":[%s],"limit":20,"next":null,"offset":0,"total":%d}`, strings.Join(items, ","), len(items))
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{
		queries: map[string]url.Values{},
		cover:   tu.MustEncodePNG(t, tu.SolidImage(40, 40, color.NRGBA{R: 220, G: 20, B: 60, A: 255})),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Form.Get("grant_type") == "authorization_code" {
			reply(w, `{"access_token":"code-token","refresh_token":"r-code","token_type":"Bearer","expires_in":3600}`)
			return
		}
		reply(w, `{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("GET /v1/me", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"id":"u1","display_name":"Test User","external_urls":{"spotify":"https://open.spotify.com/user/u1"}}`)
	})
	mux.HandleFunc("GET /v1/me/tracks/contains", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		flags := make([]bool, len(ids))
		for i, id := range ids {
			flags[i] = strings.HasSuffix(id, "1")
		}
		data, _ := json.Marshal(flags)
		reply(w, string(data))
	})
	mux.HandleFunc("PUT /v1/me/tracks", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("DELETE /v1/me/following", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("GET /v1/playlists/p1", func(w http.ResponseWriter, r *http.Request) {
		base := "http://" + r.Host
		reply(w, fmt.Sprintf(`{"id":"p1","name":"Road Trip","description":"Songs for driving","uri":"spotify:playlist:p1",`+
			`"images":[{"url":%q}],"owner":{"id":"u1","display_name":"Test User","external_urls":{"spotify":"x"}},`+
			`"tracks":{"href":"h","items":[{"track":%s},{"track":null},{"track":%s},{"track":%s}],"limit":100,"next":null,"offset":0,"total":4}}`,
			base+"/img/cover.png",
			trackJSON("t1", "al1", base+"/img/cover.png"),
			trackJSON("t2", "al1", base+"/img/cover.png"),
			trackJSON("t3", "al2", base+"/img/missing.png"),
		))
	})
	mux.HandleFunc("GET /v1/tracks/t1", func(w http.ResponseWriter, r *http.Request) {
		reply(w, trackJSON("t1", "al1", "http://"+r.Host+"/img/cover.png"))
	})
	mux.HandleFunc("GET /v1/albums/al1", func(w http.ResponseWriter, r *http.Request) {
		reply(w, albumJSON("http://"+r.Host+"/img/cover.png"))
	})
	mux.HandleFunc("GET /v1/artists/a1", func(w http.ResponseWriter, r *http.Request) {
		reply(w, artistJSON)
	})
	mux.HandleFunc("GET /v1/artists/a1/top-tracks", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"tracks":[`+trackJSON("t1", "al1", "http://"+r.Host+"/img/cover.png")+`]}`)
	})
	mux.HandleFunc("GET /v1/artists/a1/albums", func(w http.ResponseWriter, r *http.Request) {
		reply(w, pageJSON(albumJSON("http://"+r.Host+"/img/cover.png")))
	})
	mux.HandleFunc("GET /v1/search", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"tracks":`+pageJSON(trackJSON("t1", "al1", "http://"+r.Host+"/img/cover.png"))+`,"artists":`+pageJSON(artistJSON)+`}`)
	})
	mux.HandleFunc("GET /v1/me/albums", func(w http.ResponseWriter, r *http.Request) {
		reply(w, pageJSON(`{"added_at":"2024-01-01T00:00:00Z","album":`+albumJSON("http://"+r.Host+"/img/cover.png")+`}`))
	})
	mux.HandleFunc("GET /v1/me/player/recently-played", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"items":[{"track":`+trackJSON("t2", "al1", "http://"+r.Host+"/img/cover.png")+`,"played_at":"2024-05-01T10:00:00Z"}]}`)
	})
	mux.HandleFunc("GET /v1/browse/new-releases", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"albums":`+pageJSON(albumJSON("http://"+r.Host+"/img/cover.png"))+`}`)
	})
	mux.HandleFunc("GET /v1/recommendations", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"tracks":[`+trackJSON("t3", "al2", "http://"+r.Host+"/img/cover.png")+`],"seeds":[]}`)
	})
	mux.HandleFunc("PUT /v1/me/player/play", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /v1/users/u1/playlists", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"p9","name":"Mix","uri":"spotify:playlist:p9","images":[],"owner":{"id":"u1","external_urls":{"spotify":"x"}},`+
			`"tracks":{"href":"h","items":[],"limit":100,"next":null,"offset":0,"total":0}}`)
	})
	mux.HandleFunc("POST /v1/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"snapshot_id":"snap-1"}`)
	})
	mux.HandleFunc("DELETE /v1/playlists/p1/tracks", func(w http.ResponseWriter, r *http.Request) {
		reply(w, `{"snapshot_id":"snap-2"}`)
	})
	mux.HandleFunc("PUT /v1/playlists/p1/followers", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("DELETE /v1/playlists/p1/followers", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("GET /v1/playlists/p1/followers/contains", func(w http.ResponseWriter, r *http.Request) {
		ids := strings.Split(r.URL.Query().Get("ids"), ",")
		flags := make([]bool, len(ids))
		for i, id := range ids {
			flags[i] = id == "u1" || id == "b"
		}
		data, _ := json.Marshal(flags)
		reply(w, string(data))
	})
	mux.HandleFunc("GET /img/cover.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(f.cover)
	})

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

type testCLI struct {
	runner *Runner
	store  *repositories.MemoryStore
	api    *fakeAPI
	out    *bytes.Buffer
}

// newTestCLI wires a runner against the fake API. Tokens are seeded when pair is non-empty.
func newTestCLI(t *testing.T, pair models.TokenPair) *testCLI {
	t.Helper()
	api := newFakeAPI(t)

	config := shared.DefaultConfig()
	config.API.BaseURL = api.URL + "/v1"
	config.API.TokenURL = api.URL + "/api/token"
	config.API.AuthURL = api.URL + "/authorize"
	config.API.BatchDelayMS = 1
	config.Storage.Driver = "memory"
	config.Storage.EncryptionKey = "test-key"
	config.Colors.Workers = 1
	t.Setenv("PULSE_ENCRYPTION_KEY", "")

	store := repositories.NewMemoryStore()
	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{
		Config: config,
		Store:  store,
		Output: out,
		Logger: shared.NewLogger(io.Discard),
	})
	t.Cleanup(func() { runner.Close() })

	ctx := context.Background()
	if err := runner.tokens.SaveCredentials(ctx, models.Credentials{ClientID: "id", ClientSecret: "secret"}); err != nil {
		t.Fatalf("failed to seed credentials: %v", err)
	}
	if pair.AccessToken != "" {
		if err := repositories.NewTokenStore(store, "test-key").SaveTokens(ctx, pair); err != nil {
			t.Fatalf("failed to seed tokens: %v", err)
		}
	}

	return &testCLI{runner: runner, store: store, api: api, out: out}
}

func (c *testCLI) run(args ...string) error {
	app := &cli.Command{
		Name:      "pulse",
		Commands:  c.runner.register(),
		Writer:    io.Discard,
		ErrWriter: io.Discard,
	}
	return app.Run(context.Background(), append([]string{"pulse"}, args...))
}

func validTokens() models.TokenPair {
	return models.TokenPair{AccessToken: "valid", RefreshToken: "r1", ExpiresAt: time.Now().Add(time.Hour)}
}

func TestAuthCommands(t *testing.T) {
	t.Run("credentials", func(t *testing.T) {
		c := newTestCLI(t, models.TokenPair{})

		if err := c.run("auth", "credentials", "--client-id", "new-id", "--client-secret", "new-secret"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		creds, err := c.runner.tokens.Credentials(context.Background())
		if err != nil || creds.ClientID != "new-id" {
			t.Errorf("expected stored credentials, got %+v (%v)", creds, err)
		}
		if !strings.Contains(c.out.String(), "Credentials saved") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("credentials require both flags", func(t *testing.T) {
		c := newTestCLI(t, models.TokenPair{})
		if err := c.run("auth", "credentials", "--client-id", "only"); err == nil {
			t.Error("expected error for missing secret")
		}
	})

	t.Run("status connected", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("auth", "status", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var report AuthStatusReport
		if err := json.Unmarshal(c.out.Bytes(), &report); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !report.CredentialsStored || !report.LoggedIn || !report.Connected || report.Expired {
			t.Errorf("unexpected report %+v", report)
		}
		if report.User != "Test User (u1)" {
			t.Errorf("unexpected user %q", report.User)
		}
	})

	t.Run("status logged out", func(t *testing.T) {
		c := newTestCLI(t, models.TokenPair{})

		if err := c.run("auth", "status"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(c.out.String(), "Logged in:   ✗") {
			t.Errorf("unexpected output %q", c.out.String())
		}
		if c.api.count(http.MethodGet, "/v1/me") != 0 {
			t.Error("status should not call the API without tokens")
		}
	})

	t.Run("refresh", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("auth", "refresh"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.api.count(http.MethodPost, "/api/token") != 1 {
			t.Error("expected one token call")
		}

		pair, _ := c.runner.tokens.Tokens(context.Background())
		if pair.AccessToken != "fresh" || pair.RefreshToken != "r1" {
			t.Errorf("unexpected stored pair %+v", pair)
		}
	})

	t.Run("refresh without tokens hints login", func(t *testing.T) {
		c := newTestCLI(t, models.TokenPair{})

		err := c.run("auth", "refresh")
		if !errors.Is(err, shared.ErrMissingToken) || !strings.Contains(err.Error(), "pulse auth login") {
			t.Errorf("expected login hint, got %v", err)
		}
	})

	t.Run("logout keeps credentials", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("auth", "logout"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		ctx := context.Background()
		if pair, _ := c.runner.tokens.Tokens(ctx); pair.AccessToken != "" || pair.RefreshToken != "" {
			t.Errorf("expected tokens cleared, got %+v", pair)
		}
		if _, err := c.runner.tokens.Credentials(ctx); err != nil {
			t.Errorf("expected credentials kept, got %v", err)
		}
	})

	t.Run("login", func(t *testing.T) {
		c := newTestCLI(t, models.TokenPair{})

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()

		c.runner.config.Server.Port = port
		c.runner.config.Credentials.Spotify.RedirectURI = fmt.Sprintf("http://127.0.0.1:%d/callback", port)
		c.runner.extractor.Close()
		c.runner.wire(c.store)

		callbackStatus := make(chan int, 1)
		c.runner.browser = func(authURL string) error {
			u, err := url.Parse(authURL)
			if err != nil {
				return err
			}
			go func() {
				q := url.Values{"state": {u.Query().Get("state")}, "code": {"abc"}}
				resp, err := http.Get(u.Query().Get("redirect_uri") + "?" + q.Encode())
				if err != nil {
					callbackStatus <- 0
					return
				}
				resp.Body.Close()
				callbackStatus <- resp.StatusCode
			}()
			return nil
		}

		if err := c.run("auth", "login", "--timeout", "5s"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if status := <-callbackStatus; status != http.StatusOK {
			t.Errorf("expected callback 200, got %d", status)
		}

		pair, _ := c.runner.tokens.Tokens(context.Background())
		if pair.AccessToken != "code-token" || pair.RefreshToken != "r-code" {
			t.Errorf("unexpected stored pair %+v", pair)
		}
		if !strings.Contains(c.out.String(), "Authorization successful") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})
}

func TestSpotifyCommands(t *testing.T) {
	t.Run("me", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "me"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(c.out.String(), "Test User") || !strings.Contains(c.out.String(), "ID: u1") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("expired token refreshes before the call", func(t *testing.T) {
		c := newTestCLI(t, models.TokenPair{AccessToken: "old", RefreshToken: "r1", ExpiresAt: time.Now().Add(-time.Minute)})

		if err := c.run("spotify", "me", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.api.count(http.MethodPost, "/api/token") != 1 {
			t.Error("expected one refresh")
		}
	})

	t.Run("playlist", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "playlist", "--id", "p1", "--color"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := c.out.String()
		for _, want := range []string{"Road Trip", "Tracks: 3", "#dc143c", "Song t1", "Song t3"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("playlist export csv", func(t *testing.T) {
		c := newTestCLI(t, validTokens())
		base := filepath.Join(t.TempDir(), "trip")

		if err := c.run("spotify", "playlist", "--id", "p1", "--export", "csv", "--output", base); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		csv := tu.MustReadFile(t, base+"_tracks.csv")
		if strings.Count(csv, "\n") != 4 {
			t.Errorf("expected header plus 3 rows, got:\n%s", csv)
		}
		tu.AssertFileExists(t, base+"_metadata.json")
	})

	t.Run("playlist export json", func(t *testing.T) {
		c := newTestCLI(t, validTokens())
		path := filepath.Join(t.TempDir(), "p1.json")

		if err := c.run("spotify", "playlist", "--id", "p1", "--export", "json", "--output", path); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var export models.PlaylistExport
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, path)), &export); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(export.Tracks) != 3 {
			t.Errorf("expected 3 tracks, got %d", len(export.Tracks))
		}
	})

	t.Run("unknown export format", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		err := c.run("spotify", "playlist", "--id", "p1", "--export", "pdf")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if c.api.count(http.MethodGet, "/v1/playlists/p1") != 0 {
			t.Error("format should be rejected before any request")
		}
	})

	t.Run("unauthorized after login expired", func(t *testing.T) {
		c := newTestCLI(t, models.TokenPair{})

		err := c.run("spotify", "me")
		if !shared.NeedsLogin(err) || !strings.Contains(err.Error(), "pulse auth login") {
			t.Errorf("expected login hint, got %v", err)
		}
	})
}

func TestLibraryCommands(t *testing.T) {
	t.Run("check tracks", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("library", "check-tracks", "--json", "x1", "x2", "y1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var results []MembershipResult
		if err := json.Unmarshal(c.out.Bytes(), &results); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		want := []MembershipResult{{"x1", true}, {"x2", false}, {"y1", true}}
		if len(results) != len(want) {
			t.Fatalf("expected %d results, got %d", len(want), len(results))
		}
		for i := range want {
			if results[i] != want[i] {
				t.Errorf("result %d = %+v, want %+v", i, results[i], want[i])
			}
		}
	})

	t.Run("save tracks batches", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		ids := make([]string, 60)
		for i := range ids {
			ids[i] = fmt.Sprintf("t%02d", i)
		}
		if err := c.run(append([]string{"library", "save-tracks"}, ids...)...); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n := c.api.count(http.MethodPut, "/v1/me/tracks"); n != 2 {
			t.Errorf("expected 2 PUTs, got %d", n)
		}
		if !strings.Contains(c.out.String(), "Saved 60 tracks") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("unfollow artists", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("library", "unfollow-artists", "a1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.api.count(http.MethodDelete, "/v1/me/following") != 1 {
			t.Error("expected one DELETE")
		}
	})

	t.Run("ids required", func(t *testing.T) {
		c := newTestCLI(t, validTokens())
		if err := c.run("library", "check-tracks"); err == nil {
			t.Error("expected error without ids")
		}
	})

	t.Run("follow and unfollow playlists", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("library", "follow-playlists", "p1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := c.run("library", "unfollow-playlists", "p1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.api.count(http.MethodPut, "/v1/playlists/p1/followers") != 1 || c.api.count(http.MethodDelete, "/v1/playlists/p1/followers") != 1 {
			t.Error("expected one PUT and one DELETE on the followers endpoint")
		}
		if !strings.Contains(c.out.String(), "Followed 1 playlists") || !strings.Contains(c.out.String(), "Unfollowed 1 playlists") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("check playlist for the current user", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("library", "check-playlist", "--id", "p1", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var results []MembershipResult
		if err := json.Unmarshal(c.out.Bytes(), &results); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(results) != 1 || results[0] != (MembershipResult{"me", true}) {
			t.Errorf("unexpected results %+v", results)
		}
		if got := c.api.query(http.MethodGet, "/v1/playlists/p1/followers/contains").Get("ids"); got != "u1" {
			t.Errorf("expected ids=u1, got %q", got)
		}
	})

	t.Run("check playlist for named users", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("library", "check-playlist", "--id", "p1", "--user", "a", "--user", "b", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var results []MembershipResult
		if err := json.Unmarshal(c.out.Bytes(), &results); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		want := []MembershipResult{{"a", false}, {"b", true}}
		if len(results) != 2 || results[0] != want[0] || results[1] != want[1] {
			t.Errorf("unexpected results %+v", results)
		}
		if c.api.count(http.MethodGet, "/v1/me") != 0 {
			t.Error("named users should not need the profile")
		}
	})
}

func TestCatalogCommands(t *testing.T) {
	t.Run("track", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "track", "--id", "t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Song t1", "Album al1", "3:20", "spotify:track:t1"} {
			if !strings.Contains(c.out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, c.out.String())
			}
		}
	})

	t.Run("album with accent", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "album", "--id", "al1", "--color"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, want := range []string{"Album al1", "1971-06-22", "Accent:", "#dc143c", "Song t1"} {
			if !strings.Contains(c.out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, c.out.String())
			}
		}
		if c.api.count(http.MethodGet, "/img/cover.png") != 1 {
			t.Error("expected one cover download")
		}
	})

	t.Run("album without color skips the cover", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "album", "--id", "al1", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(c.out.String(), `"color"`) || c.api.count(http.MethodGet, "/img/cover.png") != 0 {
			t.Errorf("unexpected accent lookup: %s", c.out.String())
		}
	})

	t.Run("artist with top tracks and albums", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		err := c.run("spotify", "artist", "--id", "a1", "--top", "--market", "US",
			"--albums", "--include-groups", "album,single", "--limit", "5")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := c.api.query(http.MethodGet, "/v1/artists/a1/top-tracks").Get("market"); got != "US" {
			t.Errorf("expected market=US, got %q", got)
		}
		q := c.api.query(http.MethodGet, "/v1/artists/a1/albums")
		if q.Get("include_groups") != "album,single" || q.Get("limit") != "5" {
			t.Errorf("unexpected albums query %v", q)
		}
		for _, want := range []string{"Genres: folk, jazz", "Top tracks:", "Song t1", "Albums:", "Album al1"} {
			if !strings.Contains(c.out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, c.out.String())
			}
		}
	})

	t.Run("artist alone makes one request", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "artist", "--id", "a1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.api.count(http.MethodGet, "/v1/artists/a1/top-tracks")+c.api.count(http.MethodGet, "/v1/artists/a1/albums") != 0 {
			t.Error("expected no top tracks or albums requests")
		}
	})

	t.Run("search", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "search", "--type", "track", "--type", "artist", "blue", "river"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		q := c.api.query(http.MethodGet, "/v1/search")
		if q.Get("q") != "blue river" || q.Get("type") != "track,artist" {
			t.Errorf("unexpected search query %v", q)
		}
		for _, want := range []string{"Tracks:", "Song t1", "Artists:", "Artist"} {
			if !strings.Contains(c.out.String(), want) {
				t.Errorf("output missing %q:\n%s", want, c.out.String())
			}
		}
	})

	t.Run("saved albums", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "saved-albums", "--limit", "10", "--offset", "5"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		q := c.api.query(http.MethodGet, "/v1/me/albums")
		if q.Get("limit") != "10" || q.Get("offset") != "5" {
			t.Errorf("unexpected page query %v", q)
		}
		if !strings.Contains(c.out.String(), "Album al1") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("recent", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "recent"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(c.out.String(), "2024-05-01T10:00:00Z") || !strings.Contains(c.out.String(), "Artist - Song t2") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("new releases", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "new-releases", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var albums []models.Album
		if err := json.Unmarshal(c.out.Bytes(), &albums); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(albums) != 1 || albums[0].ID != "al1" {
			t.Errorf("unexpected albums %+v", albums)
		}
	})

	t.Run("recommend", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "recommend", "--track", "t1", "--genre", "jazz"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		q := c.api.query(http.MethodGet, "/v1/recommendations")
		if q.Get("seed_tracks") != "t1" || q.Get("seed_genres") != "jazz" || q.Has("seed_artists") {
			t.Errorf("unexpected seeds %v", q)
		}
		if !strings.Contains(c.out.String(), "Song t3") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("recommend requires a seed", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "recommend"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("play", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("spotify", "play", "--device", "d1", "--uri", "spotify:track:t1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := c.api.query(http.MethodPut, "/v1/me/player/play").Get("device_id"); got != "d1" {
			t.Errorf("expected device_id=d1, got %q", got)
		}
	})
}

func TestPlaylistCommands(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("playlist", "create", "--name", "Mix", "--description", "weekend"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.api.count(http.MethodPost, "/v1/users/u1/playlists") != 1 {
			t.Error("expected one POST under the current user")
		}
		if !strings.Contains(c.out.String(), "Created playlist Mix") || !strings.Contains(c.out.String(), "p9") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("add", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("playlist", "add", "--id", "p1", "spotify:track:t1", "spotify:track:t2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.api.count(http.MethodPost, "/v1/playlists/p1/tracks") != 1 {
			t.Error("expected one POST")
		}
		if !strings.Contains(c.out.String(), "Added 2 tracks to p1") || !strings.Contains(c.out.String(), "snap-1") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("remove", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		if err := c.run("playlist", "remove", "--id", "p1", "--uri", "spotify:track:t1", "--position", "2"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.api.count(http.MethodDelete, "/v1/playlists/p1/tracks") != 1 {
			t.Error("expected one DELETE")
		}
	})

	t.Run("remove rejects a negative position", func(t *testing.T) {
		c := newTestCLI(t, validTokens())

		err := c.run("playlist", "remove", "--id", "p1", "--uri", "spotify:track:t1", "--position=-1")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestBrowseLookup(t *testing.T) {
	c := newTestCLI(t, validTokens())
	lookup := c.runner.accentLookup()

	h := lookup(context.Background(), "p1", c.api.URL+"/img/cover.png")
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("lookup did not settle")
	}
	if got := h.State().Display(); got != (models.RGB{220, 20, 60}) {
		t.Errorf("expected crimson accent, got %v", got)
	}

	cached := lookup(context.Background(), "p1", c.api.URL+"/img/cover.png")
	select {
	case <-cached.Done():
	default:
		t.Error("a cached accent should be resolved immediately")
	}
	if c.api.count(http.MethodGet, "/img/cover.png") != 1 {
		t.Error("second lookup should hit the cache")
	}
}

func TestColorCommands(t *testing.T) {
	t.Run("extract then cached", func(t *testing.T) {
		c := newTestCLI(t, validTokens())
		cover := c.api.URL + "/img/cover.png"

		if err := c.run("color", "extract", "--id", "al1", "--url", cover, "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var resp models.ColorResponse
		if err := json.Unmarshal(c.out.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if !resp.Success || resp.Color == nil || *resp.Color != (models.RGB{220, 20, 60}) {
			t.Errorf("unexpected response %+v", resp)
		}

		c.out.Reset()
		if err := c.run("color", "extract", "--id", "al1"); err != nil {
			t.Fatalf("cached lookup failed: %v", err)
		}
		if c.api.count(http.MethodGet, "/img/cover.png") != 1 {
			t.Error("second lookup should hit the cache")
		}
		if !strings.Contains(c.out.String(), "rgb(220, 20, 60)") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})

	t.Run("miss without url", func(t *testing.T) {
		c := newTestCLI(t, validTokens())
		if err := c.run("color", "extract", "--id", "nope"); !errors.Is(err, shared.ErrCacheMiss) {
			t.Errorf("expected ErrCacheMiss, got %v", err)
		}
	})

	t.Run("playlist", func(t *testing.T) {
		c := newTestCLI(t, validTokens())
		report := filepath.Join(t.TempDir(), "report.json")

		if err := c.run("color", "playlist", "--id", "p1", "--rate", "1000", "--report", report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		out := c.out.String()
		if !strings.Contains(out, "Covers: 1/2 extracted") || !strings.Contains(out, "al2") {
			t.Errorf("unexpected output:\n%s", out)
		}
		if c.api.count(http.MethodGet, "/img/cover.png") != 1 {
			t.Error("shared album covers should be fetched once")
		}
		tu.AssertFileExists(t, report)
	})

	t.Run("forget and clear", func(t *testing.T) {
		c := newTestCLI(t, validTokens())
		ctx := context.Background()
		cache := repositories.NewColorCache(c.store)
		cache.Set(ctx, "al1", models.RGB{1, 2, 3})
		cache.Set(ctx, "al2", models.RGB{4, 5, 6})

		if err := c.run("color", "forget", "--id", "al1"); err != nil {
			t.Fatalf("forget failed: %v", err)
		}
		if _, err := cache.Get(ctx, "al1"); err == nil {
			t.Error("expected al1 to be forgotten")
		}

		if err := c.run("color", "clear"); err != nil {
			t.Fatalf("clear failed: %v", err)
		}
		if !strings.Contains(c.out.String(), "Cleared 1 cached colors") {
			t.Errorf("unexpected output %q", c.out.String())
		}
	})
}

func TestServeRouter(t *testing.T) {
	c := newTestCLI(t, validTokens())
	srv := httptest.NewServer(c.runner.apiRouter())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/auth/tokens")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.AccessToken != "valid" {
		t.Errorf("unexpected body %+v (%v)", body, err)
	}

	colorResp, err := http.Get(srv.URL + "/api/colors/al1?url=" + url.QueryEscape(c.api.URL+"/img/cover.png"))
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	colorResp.Body.Close()
	if colorResp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", colorResp.StatusCode)
	}
}

func TestSetupDatabase(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	config := shared.DefaultConfig()
	config.Storage.Path = filepath.Join(dir, "pulse.db")
	out := &bytes.Buffer{}
	runner := NewRunner(RunnerOpts{Config: config, ConfigPath: configPath, Output: out, Logger: shared.NewLogger(io.Discard)})
	defer runner.Close()

	originalDir := tu.MustGetwd(t)
	tu.MustChdir(t, dir)
	defer tu.MustChdir(t, originalDir)

	run := func(args ...string) error {
		app := &cli.Command{Name: "pulse", Commands: runner.register(), Writer: io.Discard}
		return app.Run(context.Background(), append([]string{"pulse"}, args...))
	}
	if err := run("setup", "database"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tu.AssertFileExists(t, configPath)
	if _, err := os.Stat(filepath.Join(dir, "pulse.db")); err != nil {
		t.Errorf("expected database file: %v", err)
	}
	if !strings.Contains(out.String(), "Database ready") {
		t.Errorf("unexpected output %q", out.String())
	}

	t.Run("status lists applied migrations", func(t *testing.T) {
		out.Reset()
		if err := run("setup", "status", "--json"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		var states []shared.MigrationState
		if err := json.Unmarshal(out.Bytes(), &states); err != nil {
			t.Fatalf("invalid JSON %q: %v", out.String(), err)
		}
		if len(states) != 2 {
			t.Fatalf("expected 2 migrations, got %d", len(states))
		}
		for _, s := range states {
			if s.AppliedAt == nil {
				t.Errorf("migration %04d_%s should be applied", s.Version, s.Name)
			}
		}
	})

	t.Run("rollback reverts the newest migration", func(t *testing.T) {
		out.Reset()
		if err := run("setup", "rollback"); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}
		if !strings.Contains(out.String(), "Reverted 0001_kv_updated_at_index") {
			t.Errorf("unexpected output %q", out.String())
		}

		out.Reset()
		if err := run("setup", "status"); err != nil {
			t.Fatalf("status failed: %v", err)
		}
		if !strings.Contains(out.String(), "pending") {
			t.Errorf("expected a pending migration in %q", out.String())
		}
	})

	t.Run("rollback rejects zero steps", func(t *testing.T) {
		err := run("setup", "rollback", "--steps", "0")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSetupRollbackNeedsSQLite(t *testing.T) {
	config := shared.DefaultConfig()
	config.Storage.Driver = "memory"
	runner := NewRunner(RunnerOpts{Config: config, Output: io.Discard, Logger: shared.NewLogger(io.Discard)})
	defer runner.Close()

	app := &cli.Command{Name: "pulse", Commands: runner.register(), Writer: io.Discard}
	err := app.Run(context.Background(), []string{"pulse", "setup", "rollback"})
	if !errors.Is(err, shared.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
