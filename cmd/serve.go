package main

import (
	"context"
	"fmt"
	"net"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/manhwatrack/internal/server"
	"github.com/desertthunder/manhwatrack/internal/shared"
)

// Serve runs the HTTP service until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if cmd.IsSet("host") {
		r.config.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		r.config.Server.Port = cmd.Int("port")
	}
	if r.config.Auth.JWTSecret == "" || r.config.Auth.JWTSecret == "change-me" {
		r.logger.Warn("using the default jwt_secret; set [auth] jwt_secret in config.toml")
	}

	store, err := r.openStore(ctx)
	if err != nil {
		return err
	}

	srv := server.New(server.Options{
		Config:  r.config,
		Store:   store,
		Catalog: r.catalogClient(ctx),
		Metrics: r.metrics,
		Logger:  r.logger,
	})

	ln, err := net.Listen("tcp", r.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	url := r.config.Server.BaseURL()
	r.writePlain("Serving on %s\n", url)
	if cmd.Bool("open") {
		if err := shared.OpenBrowser(url); err != nil {
			r.logger.Warn("could not open browser", "error", err)
		}
	}

	return srv.Serve(ctx, ln)
}
