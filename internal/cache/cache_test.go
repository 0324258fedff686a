package cache

import (
	"testing"
	"time"

	"github.com/quantfold/ictsignal/models"
)

func testCandles(n int) []models.Candle {
	candles := make([]models.Candle, n)
	for i := range candles {
		candles[i] = models.Candle{Timestamp: int64(i) * 900, Close: 100}
	}
	return candles
}

func TestCandlesRoundTrip(t *testing.T) {
	c := New(time.Minute)
	c.SetCandles("AAPL", models.IntervalH1, testCandles(5))

	got, ok := c.Candles("AAPL", models.IntervalH1)
	if !ok {
		t.Fatal("expected a cache hit")
	}
	if len(got) != 5 {
		t.Errorf("cached series length = %d, want 5", len(got))
	}

	if _, ok := c.Candles("AAPL", models.IntervalM15); ok {
		t.Error("different interval should miss")
	}
	if _, ok := c.Candles("TSLA", models.IntervalH1); ok {
		t.Error("different symbol should miss")
	}
}

func TestExpiry(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.SetCandles("AAPL", models.IntervalH1, testCandles(5))
	c.SetSignal("AAPL", &models.SignalResult{Symbol: "AAPL"})

	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Candles("AAPL", models.IntervalH1); ok {
		t.Error("expired candles should miss")
	}
	if _, ok := c.Signal("AAPL"); ok {
		t.Error("expired signal should miss")
	}

	candleEntries, signalEntries := c.Stats()
	if candleEntries != 0 || signalEntries != 0 {
		t.Errorf("Stats() = %d/%d after expiry reads, want 0/0", candleEntries, signalEntries)
	}
}

func TestInvalidate(t *testing.T) {
	c := New(time.Minute)
	c.SetCandles("AAPL", models.IntervalH1, testCandles(5))
	c.SetCandles("AAPL", models.IntervalM15, testCandles(5))
	c.SetSignal("AAPL", &models.SignalResult{Symbol: "AAPL"})
	c.SetSignal("TSLA", &models.SignalResult{Symbol: "TSLA"})

	c.Invalidate("AAPL")

	if _, ok := c.Candles("AAPL", models.IntervalH1); ok {
		t.Error("invalidated candles should miss")
	}
	if _, ok := c.Signal("AAPL"); ok {
		t.Error("invalidated signal should miss")
	}
	if _, ok := c.Signal("TSLA"); !ok {
		t.Error("other symbols must survive invalidation")
	}
}

func TestStats(t *testing.T) {
	c := New(time.Minute)
	c.SetCandles("AAPL", models.IntervalH1, testCandles(5))
	c.SetCandles("AAPL", models.IntervalM15, testCandles(5))
	c.SetCandles("TSLA", models.IntervalD1, testCandles(5))
	c.SetSignal("AAPL", &models.SignalResult{Symbol: "AAPL"})

	candleEntries, signalEntries := c.Stats()
	if candleEntries != 3 || signalEntries != 1 {
		t.Errorf("Stats() = %d/%d, want 3/1", candleEntries, signalEntries)
	}
}
