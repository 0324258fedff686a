// Package adapters supplies candle data to the engine: a REST client for a
// market-data API and a demo generator for running without credentials.
package adapters

import (
	"context"

	"github.com/quantfold/ictsignal/models"
)

// Provider fetches candle series for a symbol and interval.
type Provider interface {
	// GetCandles returns up to limit candles in ascending time order.
	GetCandles(ctx context.Context, symbol string, interval models.Interval, limit int) ([]models.Candle, error)
	// Name identifies the provider in logs.
	Name() string
}
