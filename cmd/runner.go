package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/pulse/internal/colors"
	"github.com/desertthunder/pulse/internal/models"
	"github.com/desertthunder/pulse/internal/repositories"
	"github.com/desertthunder/pulse/internal/services"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store and the services on top of it are opened on first use so that setup commands run without them.
type Runner struct {
	config     *shared.Config
	configPath string
	store      repositories.Store
	tokens     *services.TokenService
	spotify    *services.SpotifyService
	extractor  *colors.Extractor
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	browser    func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Store      repositories.Store // Optional; opened from Config.Storage when nil
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Config.API.Timeout()}
	}

	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		browser:    shared.OpenBrowser,
	}
	if opts.Store != nil {
		r.wire(opts.Store)
	}
	return r
}

// Before loads the configuration named by --config. A missing file keeps the defaults.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	path := cmd.String("config")
	if path == "" {
		return ctx, nil
	}
	r.configPath = path

	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return ctx, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	r.config = config
	r.httpClient.Timeout = config.API.Timeout()
	return ctx, nil
}

// After releases the store and stops the color workers.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	return r.Close()
}

// Close releases everything opened by [Runner.ensure].
func (r *Runner) Close() error {
	var errs []error
	if r.extractor != nil {
		errs = append(errs, r.extractor.Close())
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}

// wire builds the token service, API client and color extractor over store.
func (r *Runner) wire(store repositories.Store) {
	cfg := r.config
	r.store = store

	r.tokens = services.NewTokenService(services.TokenServiceOpts{
		Store:      repositories.NewTokenStore(store, cfg.Storage.Key()),
		Spotify:    cfg.Credentials.Spotify,
		API:        cfg.API,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})

	client := services.NewClient(services.ClientOpts{
		BaseURL:    cfg.API.BaseURL,
		Auth:       r.tokens,
		HTTPClient: r.httpClient,
		Logger:     r.logger,
	})
	r.spotify = services.NewSpotifyService(client, services.SpotifyOpts{
		BatchDelay: cfg.API.BatchDelay(),
		Logger:     r.logger,
	})

	r.extractor = colors.NewExtractor(colors.ExtractorOpts{
		Cache:              repositories.NewColorCache(store),
		HTTPClient:         r.httpClient,
		Workers:            cfg.Colors.Workers,
		PixelStep:          cfg.Colors.PixelStep,
		SaturationFraction: cfg.Colors.SaturationFraction,
		Logger:             r.logger,
	})
}

// ensure opens the configured store on first use and imports credentials from the config file.
func (r *Runner) ensure(ctx context.Context) error {
	if r.store != nil {
		return nil
	}

	store, err := repositories.Open(ctx, r.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	r.wire(store)

	return r.importCredentials(ctx)
}

func (r *Runner) importCredentials(ctx context.Context) error {
	spotify := r.config.Credentials.Spotify
	creds := models.Credentials{ClientID: spotify.ClientID, ClientSecret: spotify.ClientSecret}
	if !creds.Valid() {
		return nil
	}

	stored, err := r.tokens.Credentials(ctx)
	if err == nil && stored == creds {
		return nil
	}
	if err != nil && !errors.Is(err, shared.ErrMissingCredentials) {
		return err
	}

	r.logger.Info("importing client credentials from config")
	return r.tokens.SaveCredentials(ctx, creds)
}

// loginHint wraps errors that only a new login can fix.
func loginHint(err error) error {
	if err != nil && shared.NeedsLogin(err) {
		return fmt.Errorf("%w\n\nrun `pulse auth login` to connect your Spotify account", err)
	}
	return err
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, spotifyCommand, playlistCommand, libraryCommand, colorCommand,
		browseCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
