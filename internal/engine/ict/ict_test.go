package ict

import (
	"testing"

	"github.com/quantfold/ictsignal/models"
)

func flatCandle(i int, price float64) models.Candle {
	return models.Candle{
		Timestamp: int64(i) * 900,
		Open:      price,
		High:      price + 1,
		Low:       price - 1,
		Close:     price,
		Volume:    1000,
	}
}

// breakerFixture drops 105 to 102 to print a bearish order block, then
// closes the final candle at 107, above the block high of 106.
func breakerFixture() []models.Candle {
	return generateTestCandles(60, func(i int) models.Candle {
		switch {
		case i < 45:
			return flatCandle(i, 105)
		case i < 59:
			return flatCandle(i, 102)
		default:
			return flatCandle(i, 107)
		}
	})
}

// bosFixture drops 100 to 97 to print a bearish order block at high 101,
// then spikes a swing high to 101.5 mid-window while price stays at 97.
func bosFixture() []models.Candle {
	return generateTestCandles(60, func(i int) models.Candle {
		switch {
		case i < 45:
			return flatCandle(i, 100)
		case i == 54:
			c := flatCandle(i, 97)
			c.High = 101.5
			c.Close = 97.5
			return c
		default:
			return flatCandle(i, 97)
		}
	})
}

func TestAnalyzeMinimumCandles(t *testing.T) {
	d := NewDetector()
	candles := generateTestCandles(49, func(i int) models.Candle {
		return flatCandle(i, 100)
	})
	if got := d.Analyze(candles); got != nil {
		t.Errorf("Analyze() = %d signals, want none for short series", len(got))
	}
}

func TestBreakerBlockDetection(t *testing.T) {
	d := NewDetector()
	results := d.Analyze(breakerFixture())

	if len(results) != 1 {
		t.Fatalf("Analyze() = %d signals, want 1", len(results))
	}
	got := results[0]
	if got.Type != BullishBreaker {
		t.Errorf("Type = %s, want %s", got.Type, BullishBreaker)
	}
	if got.Strength != 85 || got.Confidence != 90 {
		t.Errorf("Strength/Confidence = %v/%v, want 85/90", got.Strength, got.Confidence)
	}
	if got.EntryLow != 104 || got.EntryHigh != 106 {
		t.Errorf("Entry zone = [%v, %v], want [104, 106]", got.EntryLow, got.EntryHigh)
	}
	if got.MarketPhase != "Smart Money Reversal (SMR)" {
		t.Errorf("MarketPhase = %q", got.MarketPhase)
	}
}

func TestBullishBOSDetection(t *testing.T) {
	d := NewDetector()
	results := d.Analyze(bosFixture())

	if len(results) != 1 {
		t.Fatalf("Analyze() = %d signals, want 1", len(results))
	}
	got := results[0]
	if got.Type != BOSBullish {
		t.Errorf("Type = %s, want %s", got.Type, BOSBullish)
	}
	if got.Strength != 75 || got.Confidence != 80 {
		t.Errorf("Strength/Confidence = %v/%v, want 75/80", got.Strength, got.Confidence)
	}

	bias := d.TimeframeBias()
	if bias.BOSStatus != "confirmed" || bias.BOSDirection != "bullish" {
		t.Errorf("bias = %s/%s, want confirmed/bullish", bias.BOSStatus, bias.BOSDirection)
	}
}

func TestOrderBlockThreshold(t *testing.T) {
	tests := []struct {
		name       string
		dropTo     float64 // close after trading at 100
		wantBlocks int
	}{
		{"Two percent drop prints a block", 97.9, 1},
		{"Sub-threshold drop does not", 98.5, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			candles := generateTestCandles(60, func(i int) models.Candle {
				if i < 50 {
					return flatCandle(i, 100)
				}
				return flatCandle(i, tt.dropTo)
			})
			d.Analyze(candles)
			blocks, _ := d.Counts()
			if blocks != tt.wantBlocks {
				t.Errorf("order blocks = %d, want %d", blocks, tt.wantBlocks)
			}
		})
	}
}

func TestPools(t *testing.T) {
	d := NewDetector()
	d.Analyze(breakerFixture())

	pools := d.Pools()
	if len(pools.BuySide) != 1 {
		t.Fatalf("buy-side pools = %d, want 1", len(pools.BuySide))
	}
	// Bearish block printed at candle 45 carries the prior candle's high.
	if got := pools.BuySide["block_40500"]; got != 106 {
		t.Errorf("buy-side pool = %v, want 106", got)
	}
	if len(pools.SellSide) != 1 {
		t.Fatalf("sell-side pools = %d, want 1", len(pools.SellSide))
	}
	if got := pools.SellSide["block_53100"]; got != 101 {
		t.Errorf("sell-side pool = %v, want 101", got)
	}
}

func TestRankAndFilter(t *testing.T) {
	signals := []SignalResult{
		{Type: BOSBullish, Strength: 75, Confidence: 80},
		{Type: BullishBreaker, Strength: 85, Confidence: 90},
		{Type: BOSBullish, Strength: 75, Confidence: 80},
		{Type: MMBuyModel, Strength: 90, Confidence: 85},
		{Type: FVGBullish, Strength: 60, Confidence: 60},
	}

	got := rankAndFilter(signals)
	if len(got) != 3 {
		t.Fatalf("rankAndFilter() kept %d, want 3", len(got))
	}
	want := []SignalType{BullishBreaker, MMBuyModel, BOSBullish}
	for i, w := range want {
		if got[i].Type != w {
			t.Errorf("rank %d = %s, want %s", i, got[i].Type, w)
		}
	}
}

func TestRankAndFilterEmpty(t *testing.T) {
	if got := rankAndFilter(nil); got != nil {
		t.Errorf("rankAndFilter(nil) = %v, want nil", got)
	}
}

func TestFairValueGapAccumulation(t *testing.T) {
	d := NewDetector()
	// A gap up on every third candle leaves the prior low behind by more
	// than 0.1%.
	candles := generateTestCandles(60, func(i int) models.Candle {
		return flatCandle(i, 100+float64(i)*0.5)
	})
	d.Analyze(candles)
	_, gaps := d.Counts()
	if gaps == 0 {
		t.Error("expected fair value gaps on a steadily rising series")
	}
}

func generateTestCandles(n int, generator func(int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = generator(i)
	}
	return candles
}
