package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"presswatch/internal/config"
	"presswatch/internal/daemonrun"
	"presswatch/internal/logging"
	"presswatch/internal/preflight"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	if err := preflight.FirstFailure(preflight.Run(cfg)); err != nil {
		logger.Error("preflight failed", logging.Error(err))
		log.Fatalf("%v", err)
	}

	if err := daemonrun.Run(ctx, cfg, logger); err != nil {
		logger.Error("daemon exited", logging.Error(err))
		log.Fatalf("%v", err)
	}
	logger.Info("presswatchd shutting down")
}
