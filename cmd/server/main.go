package main

import (
	"github.com/osintbuddy/backend/internal/config"
	"github.com/osintbuddy/backend/internal/server"
	"github.com/osintbuddy/backend/internal/util"
	"github.com/osintbuddy/backend/pkg/logger"
	"github.com/osintbuddy/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		// logger is not set up yet
		logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{}))
		logger.Fatal("Invalid configuration", "err", err)
	}

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: cfg.Debug,
		JSON:  cfg.LogJSON,
	})
	logger.Init(consoleLogger)

	server.Init(cfg)
}
