package adapters

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/quantfold/ictsignal/models"
)

var demoBasePrices = map[string]float64{
	"AAPL":  175.0,
	"MSFT":  380.0,
	"GOOGL": 140.0,
	"TSLA":  240.0,
	"SPY":   450.0,
	"NVDA":  500.0,
	"AMZN":  150.0,
}

// Demo generates random-walk candle data so the full pipeline can run
// without an API key. Deterministic per seed.
type Demo struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewDemo(seed int64) *Demo {
	return &Demo{rng: rand.New(rand.NewSource(seed))}
}

func (d *Demo) Name() string { return "demo" }

// GetCandles generates a trending random walk ending at the current time.
func (d *Demo) GetCandles(_ context.Context, symbol string, interval models.Interval, limit int) ([]models.Candle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var step int64
	var volatility float64
	switch interval {
	case models.IntervalM15:
		step = 15 * 60
		volatility = 0.005
	case models.IntervalH1:
		step = 60 * 60
		volatility = 0.01
	default:
		step = 24 * 60 * 60
		volatility = 0.02
	}

	basePrice, ok := demoBasePrices[symbol]
	if !ok {
		basePrice = 50 + d.rng.Float64()*450
	}

	end := time.Now().Unix()
	start := end - int64(limit-1)*step

	price := basePrice * (0.85 + d.rng.Float64()*0.15)

	trendDirection := 1.0
	if d.rng.Intn(2) == 0 {
		trendDirection = -1.0
	}
	trendStrength := 0.0001 + d.rng.Float64()*0.0004

	candles := make([]models.Candle, 0, limit)
	for ts := start; ts <= end; ts += step {
		drift := trendDirection * trendStrength
		open := price * (1 + d.rng.NormFloat64()*volatility + drift)

		high := open * (1 + math.Abs(d.rng.NormFloat64())*volatility/2)
		low := open * (1 - math.Abs(d.rng.NormFloat64())*volatility/2)
		close := low + d.rng.Float64()*(high-low)

		volume := (1e6 + d.rng.Float64()*9e6) * (0.5 + d.rng.Float64())

		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      round2(open),
			High:      round2(high),
			Low:       round2(low),
			Close:     round2(close),
			Volume:    math.Floor(volume),
		})
		price = close
	}

	return candles, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
