package main

import (
	"moringadaily/internal/config"
	"moringadaily/internal/db"
	clog "moringadaily/internal/log"
	"moringadaily/internal/notify"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg := config.Load()
	clog.Init(cfg.Env)
	if cfg.RedisURL == "" {
		log.Fatal().Msg("REDIS_URL is required for the notification worker")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	srv, mux, err := notify.NewWorker(cfg.RedisURL, notify.NewWriter(gdb), cfg.WorkerConcurrency)
	if err != nil {
		log.Fatal().Err(err).Msg("worker init")
	}
	log.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("notification worker started")
	// Run 会在收到 SIGTERM/SIGINT 时优雅退出。
	if err := srv.Run(mux); err != nil {
		log.Fatal().Err(err).Msg("worker run")
	}
}
