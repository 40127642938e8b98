// cmd/monitor/main.go
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/mailblast-backend/internal/config"
	"github.com/unclebandit/mailblast-backend/internal/db"
	"github.com/unclebandit/mailblast-backend/internal/logger"
	"github.com/unclebandit/mailblast-backend/internal/metrics"
	"github.com/unclebandit/mailblast-backend/internal/repository"
	"github.com/unclebandit/mailblast-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	conn, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to db")
	}
	defer conn.Close()

	campaignRepo := &repository.CampaignRepository{DB: conn}
	monitor := service.NewMonitor(
		campaignRepo,
		metrics.PrometheusEmitter{},
		cfg.Monitor.MaxAge,
		cfg.Monitor.MaxIdle,
		cfg.Monitor.CompletionFraction,
		log,
	)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		addr := fmt.Sprintf(":%d", cfg.Monitor.Port)
		log.Info().Str("addr", addr).Msg("monitor metrics listening")
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatal().Err(err).Msg("metrics server stopped")
		}
	}()

	log.Info().Dur("interval", cfg.Monitor.Interval).Msg("monitor running")

	ticker := time.NewTicker(cfg.Monitor.Interval)
	defer ticker.Stop()

	sweep(monitor, log)
	for range ticker.C {
		sweep(monitor, log)
	}
}

func sweep(monitor *service.Monitor, log zerolog.Logger) {
	reports, err := monitor.CheckStuckCampaigns()
	if err != nil {
		log.Error().Err(err).Msg("sweep failed")
		return
	}
	log.Info().Int("stuck", len(reports)).Msg("sweep finished")
}
