package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Initialize context that cancelled on SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Getenv, os.Getwd, os.Args[1:]); err != nil {
		slog.Error("can't run app, sorry", "error", err.Error())
		os.Exit(1)
	}
}

// Build config from .env, environment and flags (latter wins), then serve until ctx is done
func run(ctx context.Context, getenv func(string) string, getwd func() (string, error), args []string) error {
	c := NewConfig()

	if err := c.LoadDotEnv(getwd); err != nil {
		return fmt.Errorf("error while reading .env file: %w", err)
	}
	if err := c.LoadEnv(getenv); err != nil {
		return fmt.Errorf("error while reading environment: %w", err)
	}
	if err := c.ParseFlags(args); err != nil {
		return fmt.Errorf("error while parsing flags: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	app, err := NewServerApp(ctx, c)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx)
}
