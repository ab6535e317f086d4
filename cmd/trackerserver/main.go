package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/go-slimevr/trackerhub/pkg/config"
	"github.com/go-slimevr/trackerhub/pkg/eventloop"
	"github.com/go-slimevr/trackerhub/pkg/logger"
	"github.com/go-slimevr/trackerhub/pkg/owotrack"
	"github.com/go-slimevr/trackerhub/pkg/trackerapi"
	"github.com/go-slimevr/trackerhub/pkg/trackerhost"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/trackerhub/trackerserver.json", "path to server config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger := logger.New(cfg.Logging)

	host := trackerhost.New(appLogger, func(t trackerapi.Tracker) {
		appLogger.Info().Msg("new tracker handed to downstream consumer")
	})
	console := trackerhost.NewConsole(appLogger)
	codec := owotrack.New()

	loop, err := eventloop.New(cfg, codec, host, console, appLogger)
	if err != nil {
		return fmt.Errorf("failed to create event loop: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	appLogger.Info().Int("port", cfg.ListenPort).Str("thread", cfg.ThreadName).Msg("starting tracker server")

	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("event loop exited with error: %w", err)
	}

	appLogger.Info().Msg("tracker server stopped")

	return nil
}
