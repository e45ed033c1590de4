package main

import (
	"context"
	"log"
	"os"

	"github.com/kb-labs/plugin-gateway/internal/config"
	"github.com/kb-labs/plugin-gateway/internal/logger"
	"github.com/kb-labs/plugin-gateway/internal/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Printf("config: %v", err)
		return 1
	}

	srv, err := server.New(cfg)
	if err != nil {
		log.Printf("server: %v", err)
		return 1
	}

	if err := srv.Run(context.Background()); err != nil {
		logger.GetLogger().Error().Err(err).Msg("server exited with error")
		return 1
	}

	return 0
}
