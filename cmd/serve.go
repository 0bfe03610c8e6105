package main

import (
	"context"

	"github.com/desertthunder/pulse/internal/server"
	"github.com/desertthunder/pulse/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the companion API until the process is interrupted.
//
// The /callback route completes a login started from the returned authorization URL.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}

	addr := cmd.String("addr")
	if addr == "" {
		addr = r.config.Server.Addr()
	}

	router := r.apiRouter()
	state := shared.GenerateID()
	router.Handler(server.NewOAuthHandler(r.tokens, state))

	if authURL, err := r.tokens.AuthURL(ctx, state); err == nil {
		r.writePlain("Login URL: %s\n", authURL)
	} else {
		r.logger.Warn("login URL unavailable", "error", err)
	}

	r.writePlain("→ Serving on http://%s (Ctrl+C to stop)\n", addr)
	return server.New(addr, router, r.logger).Run(ctx)
}

// apiRouter builds the logged, panic-safe router with the API routes.
func (r *Runner) apiRouter() *server.BasicRouter {
	router := server.NewBasicRouter()
	router.Use(server.Recoverer(r.logger), server.RequestLogger(r.logger))
	server.NewAPIHandler(r.tokens, r.extractor, r.logger).Register(router)
	return router
}
