package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/urfave/cli/v3"

	"github.com/Tyrowin/lobby/internal/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the lobby server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "listen address, overrides SERVER_PORT"},
			&cli.StringFlag{Name: "origins", Usage: "comma separated allowed origins, overrides ALLOWED_ORIGINS"},
			&cli.StringFlag{Name: "log-level", Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Usage: "text or json"},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	logger := server.NewLogger(cfg.Log, os.Stderr)

	hub, err := server.NewHub(cfg, logger)
	if err != nil {
		return fmt.Errorf("create hub: %w", err)
	}
	server.StartHub(hub)

	httpServer := server.CreateServer(hub.Config().Port, server.SetupRoutes(hub))

	go func() {
		if err := server.StartServer(httpServer, logger); err != nil {
			logger.Error("http server stopped", "error", err)
			os.Exit(1)
		}
	}()

	timeout := hub.Config().ShutdownTimeout
	wait := gfshutdown.GracefulShutdown(
		ctx,
		timeout,
		map[string]gfshutdown.Operation{
			// Stop accepting upgrades before closing the clients already attached.
			"lobby": func(ctx context.Context) error {
				httpErr := server.ShutdownServer(ctx, httpServer, logger)
				hubErr := hub.Shutdown(timeout)
				return errors.Join(httpErr, hubErr)
			},
		},
	)

	exitCode := <-wait
	logger.Info("server exited", "code", exitCode)
	if exitCode != 0 {
		return cli.Exit("shutdown did not complete cleanly", exitCode)
	}
	return nil
}

func applyFlags(cmd *cli.Command, cfg *server.Config) {
	if cmd.IsSet("port") {
		cfg.Port = cmd.String("port")
	}
	if cmd.IsSet("origins") {
		cfg.AllowedOrigins = strings.Split(cmd.String("origins"), ",")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
}
