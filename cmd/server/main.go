package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/ictsignal/config"
	"github.com/quantfold/ictsignal/internal/adapters"
	"github.com/quantfold/ictsignal/internal/cache"
	"github.com/quantfold/ictsignal/internal/engine"
	"github.com/quantfold/ictsignal/internal/notify"
	"github.com/quantfold/ictsignal/internal/performance"
	"github.com/quantfold/ictsignal/internal/server"
	"github.com/quantfold/ictsignal/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	lvl, _ := zerolog.ParseLevel(cfg.LogLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	var provider adapters.Provider
	demo := adapters.NewDemo(time.Now().UnixNano())
	if cfg.ProviderBaseURL != "" {
		rest := adapters.NewREST(
			cfg.ProviderBaseURL,
			cfg.ProviderAPIKey,
			time.Duration(cfg.RequestTimeout)*time.Second,
			cfg.RateLimitPerSec,
		)
		provider = adapters.NewFailover(rest, demo)
	} else {
		log.Warn().Msg("PROVIDER_BASE_URL not set, running on demo data")
		provider = demo
	}

	eng := engine.New()

	if cfg.DatabaseURL != "" {
		tracker, err := performance.New(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect performance database")
		}
		defer tracker.Close()
		eng.AI().SetWinRateProvider(tracker)
		log.Info().Msg("Performance tracking enabled")
	}

	srv := server.New(server.Options{
		Engine:      eng,
		Provider:    provider,
		Cache:       cache.New(time.Duration(cfg.CacheTTL) * time.Second),
		Watchlist:   service.NewWatchlist(),
		Alerts:      service.NewAlerts(),
		Journal:     service.NewJournal(),
		CandleLimit: cfg.CandleLimit,
	})

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("Telegram notifier unavailable")
		} else {
			srv.SetAlertSink(tg)
			log.Info().Msg("Telegram alerts enabled")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.RunRefresher(ctx, time.Duration(cfg.SignalRefreshSec)*time.Second)

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
