package adapters

import (
	"context"
	"testing"

	"github.com/quantfold/ictsignal/models"
)

func TestDemoGetCandles(t *testing.T) {
	d := NewDemo(42)
	candles, err := d.GetCandles(context.Background(), "AAPL", models.IntervalH1, 250)
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}
	if len(candles) != 250 {
		t.Fatalf("GetCandles() = %d candles, want 250", len(candles))
	}

	if err := models.ValidateCandles(candles, models.IntervalH1); err != nil {
		t.Errorf("generated series failed validation: %v", err)
	}

	for i, c := range candles {
		if i > 0 && c.Timestamp-candles[i-1].Timestamp != 3600 {
			t.Fatalf("timestamp gap at %d = %d, want 3600", i, c.Timestamp-candles[i-1].Timestamp)
		}
		if c.High < c.Low || c.Close <= 0 || c.Volume <= 0 {
			t.Fatalf("malformed candle at %d: %+v", i, c)
		}
	}
}

func TestDemoDeterministicPerSeed(t *testing.T) {
	a, err := NewDemo(7).GetCandles(context.Background(), "TSLA", models.IntervalM15, 50)
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}
	b, err := NewDemo(7).GetCandles(context.Background(), "TSLA", models.IntervalM15, 50)
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}

	for i := range a {
		if a[i].Open != b[i].Open || a[i].Close != b[i].Close {
			t.Fatalf("series diverged at %d: %+v vs %+v", i, a[i], b[i])
		}
	}

	c, err := NewDemo(8).GetCandles(context.Background(), "TSLA", models.IntervalM15, 50)
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}
	same := true
	for i := range a {
		if a[i].Close != c[i].Close {
			same = false
			break
		}
	}
	if same {
		t.Error("different seeds produced identical series")
	}
}

func TestDemoUnknownSymbol(t *testing.T) {
	candles, err := NewDemo(1).GetCandles(context.Background(), "UNKNOWN", models.IntervalD1, 30)
	if err != nil {
		t.Fatalf("GetCandles() error = %v", err)
	}
	if len(candles) != 30 {
		t.Fatalf("GetCandles() = %d candles, want 30", len(candles))
	}
	for i, c := range candles {
		if c.Close <= 0 {
			t.Fatalf("non-positive close at %d", i)
		}
	}
}
