package indicators

import (
	"math"
	"testing"

	"github.com/quantfold/ictsignal/models"
)

func TestSMALeadingSentinels(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		period int
		wantNa int
		allNa  bool
	}{
		{
			name:   "Exactly period-1 leading sentinels",
			prices: []float64{1, 2, 3, 4, 5, 6},
			period: 3,
			wantNa: 2,
		},
		{
			name:   "Series shorter than period is all sentinel",
			prices: []float64{1, 2},
			period: 5,
			allNa:  true,
		},
		{
			name:   "Period one has no sentinels",
			prices: []float64{10, 20, 30},
			period: 1,
			wantNa: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := SMA(tt.prices, tt.period)
			if len(out) != len(tt.prices) {
				t.Fatalf("SMA() length = %d, want %d", len(out), len(tt.prices))
			}
			if tt.allNa {
				for i, v := range out {
					if Defined(v) {
						t.Errorf("index %d defined, want sentinel", i)
					}
				}
				return
			}
			for i := 0; i < tt.wantNa; i++ {
				if Defined(out[i]) {
					t.Errorf("index %d defined, want sentinel", i)
				}
			}
			for i := tt.wantNa; i < len(out); i++ {
				if !Defined(out[i]) {
					t.Errorf("index %d sentinel, want defined", i)
				}
			}
		})
	}
}

func TestSMAValues(t *testing.T) {
	out := SMA([]float64{2, 4, 6, 8}, 2)
	want := []float64{math.NaN(), 3, 5, 7}
	for i := 1; i < len(want); i++ {
		if math.Abs(out[i]-want[i]) > 1e-9 {
			t.Errorf("SMA[%d] = %v, want %v", i, out[i], want[i])
		}
	}
}

func TestRSIRange(t *testing.T) {
	tests := []struct {
		name   string
		prices func() []float64
	}{
		{
			name: "Monotonic up",
			prices: func() []float64 {
				p := make([]float64, 50)
				for i := range p {
					p[i] = 100 + float64(i)
				}
				return p
			},
		},
		{
			name: "Monotonic down",
			prices: func() []float64 {
				p := make([]float64, 50)
				for i := range p {
					p[i] = 150 - float64(i)
				}
				return p
			},
		},
		{
			name: "Flat",
			prices: func() []float64 {
				p := make([]float64, 50)
				for i := range p {
					p[i] = 100
				}
				return p
			},
		},
		{
			name: "Oscillating",
			prices: func() []float64 {
				p := make([]float64, 50)
				for i := range p {
					p[i] = 100 + float64(i%2)*3
				}
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RSI(tt.prices(), 14)
			for i, v := range out {
				if !Defined(v) {
					continue
				}
				if v < 0 || v > 100 {
					t.Errorf("RSI[%d] = %v, outside [0,100]", i, v)
				}
			}
		})
	}
}

func TestRSIZeroLossEdge(t *testing.T) {
	// Zero average loss forces RS to 0 and RSI to 0, even when gains
	// exist. Downstream scoring depends on this exact behavior.
	tests := []struct {
		name   string
		prices func() []float64
	}{
		{
			name: "Flat series",
			prices: func() []float64 {
				p := make([]float64, 30)
				for i := range p {
					p[i] = 100
				}
				return p
			},
		},
		{
			name: "Monotonic up, no losses",
			prices: func() []float64 {
				p := make([]float64, 30)
				for i := range p {
					p[i] = 100 + float64(i)
				}
				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := RSI(tt.prices(), 14)
			last := out[len(out)-1]
			if !Defined(last) {
				t.Fatal("expected defined RSI")
			}
			if last != 0 {
				t.Errorf("zero-loss RSI = %v, want 0", last)
			}
		})
	}
}

func TestMACDHistogramIdentity(t *testing.T) {
	prices := make([]float64, 120)
	for i := range prices {
		prices[i] = 100 + 10*math.Sin(float64(i)/7) + float64(i)*0.2
	}

	line, signal, hist := MACD(prices, 12, 26, 9)
	for i := range prices {
		if !Defined(line[i]) || !Defined(signal[i]) {
			continue
		}
		if math.Abs(hist[i]-(line[i]-signal[i])) > 1e-6 {
			t.Errorf("histogram[%d] = %v, want line-signal = %v", i, hist[i], line[i]-signal[i])
		}
	}
}

func TestMACDWarmup(t *testing.T) {
	prices := make([]float64, 60)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	line, signal, hist := MACD(prices, 12, 26, 9)

	for i := 0; i < 25; i++ {
		if Defined(line[i]) {
			t.Errorf("line[%d] defined before slow warm-up", i)
		}
	}
	if !Defined(line[25]) {
		t.Error("line[25] should be defined")
	}
	for i := 0; i < 34; i++ {
		if Defined(signal[i]) || Defined(hist[i]) {
			t.Errorf("signal/hist[%d] defined before signal warm-up", i)
		}
	}
	if !Defined(signal[34]) || !Defined(hist[34]) {
		t.Error("signal and histogram should be defined at index 34")
	}
}

func TestMACDShortSeries(t *testing.T) {
	line, signal, hist := MACD([]float64{1, 2, 3}, 12, 26, 9)
	for i := range line {
		if Defined(line[i]) || Defined(signal[i]) || Defined(hist[i]) {
			t.Errorf("index %d defined for series shorter than slow period", i)
		}
	}
}

func TestCalculateAllEmptyInput(t *testing.T) {
	set := CalculateAll(nil)
	if set.Closes != nil || set.SMA50 != nil || set.RSI != nil {
		t.Error("expected zero-value Set for empty input")
	}
}

func TestCalculateAllBundles(t *testing.T) {
	candles := generateTestCandles(250, func(i int) models.Candle {
		return models.Candle{
			Timestamp: int64(i) * 60,
			Open:      100 + float64(i)*0.1,
			High:      101 + float64(i)*0.1,
			Low:       99 + float64(i)*0.1,
			Close:     100.5 + float64(i)*0.1,
			Volume:    1000,
		}
	})

	set := CalculateAll(candles)
	idx := len(candles) - 1
	for name, series := range map[string][]float64{
		"sma50":       set.SMA50,
		"sma200":      set.SMA200,
		"rsi":         set.RSI,
		"macd_line":   set.MACDLine,
		"macd_signal": set.MACDSignal,
	} {
		if len(series) != len(candles) {
			t.Fatalf("%s length = %d, want %d", name, len(series), len(candles))
		}
		if !Defined(series[idx]) {
			t.Errorf("%s not defined at last index", name)
		}
	}
}

func generateTestCandles(n int, generator func(int) models.Candle) []models.Candle {
	candles := make([]models.Candle, n)
	for i := 0; i < n; i++ {
		candles[i] = generator(i)
	}
	return candles
}
