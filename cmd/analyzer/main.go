// Command analyzer runs one signal generation for a symbol and prints the
// result. Useful for checking the pipeline without the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/ictsignal/config"
	"github.com/quantfold/ictsignal/internal/adapters"
	"github.com/quantfold/ictsignal/internal/engine"
	"github.com/quantfold/ictsignal/internal/engine/killzone"
	"github.com/quantfold/ictsignal/models"
)

func main() {
	symbol := flag.String("symbol", "AAPL", "trading symbol to analyze")
	seed := flag.Int64("seed", 0, "demo data seed, 0 uses current time")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	lvl, _ := zerolog.ParseLevel(cfg.LogLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl)

	var provider adapters.Provider
	if cfg.ProviderBaseURL != "" {
		provider = adapters.NewREST(
			cfg.ProviderBaseURL,
			cfg.ProviderAPIKey,
			time.Duration(cfg.RequestTimeout)*time.Second,
			cfg.RateLimitPerSec,
		)
	} else {
		s := *seed
		if s == 0 {
			s = time.Now().UnixNano()
		}
		provider = adapters.NewDemo(s)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.RequestTimeout)*time.Second*3)
	defer cancel()

	series := make(map[models.Interval][]models.Candle, 3)
	for _, interval := range []models.Interval{models.IntervalM15, models.IntervalH1, models.IntervalD1} {
		candles, err := provider.GetCandles(ctx, *symbol, interval, cfg.CandleLimit)
		if err != nil {
			log.Fatal().Err(err).Str("interval", string(interval)).Msg("Fetch failed")
		}
		series[interval] = candles
	}

	now := time.Now().UTC()
	eng := engine.New()
	signal, err := eng.GenerateSignal(
		*symbol,
		series[models.IntervalM15],
		series[models.IntervalH1],
		series[models.IntervalD1],
		now,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Signal generation failed")
	}

	fmt.Printf("Symbol:         %s\n", signal.Symbol)
	fmt.Printf("Recommendation: %s\n", signal.Recommendation)
	fmt.Printf("Strength:       %d\n", signal.Strength)
	fmt.Printf("Breakdown:      D1=%s H1=%s M15=%s\n",
		signal.Breakdown.D1, signal.Breakdown.H1, signal.Breakdown.M15)

	zone := killzone.Classify(now)
	fmt.Printf("Session:        %s (active=%t, multiplier=%.2f)\n",
		zone.Zone.Title(), zone.IsActive, zone.Multiplier)

	fmt.Println("\nRationale:")
	for _, line := range signal.Rationale {
		fmt.Printf("  %s\n", line)
	}
}
