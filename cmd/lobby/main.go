package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:           "lobby",
		Usage:          "real-time presence and room coordination server",
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			serveCommand(),
			watchCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lobby:", err)
		os.Exit(1)
	}
}
