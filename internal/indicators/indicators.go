package indicators

import (
	"math"

	"github.com/quantfold/ictsignal/models"
)

// Values that cannot be computed yet are math.NaN; use Defined to test them.

// Defined reports whether an indicator value is ready at an index.
func Defined(v float64) bool {
	return !math.IsNaN(v)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// SMA calculates the simple moving average. The first period-1 values are
// NaN; a series shorter than period is all NaN.
func SMA(prices []float64, period int) []float64 {
	if len(prices) < period || period <= 0 {
		return nanSlice(len(prices))
	}

	out := nanSlice(len(prices))
	var sum float64
	for i, p := range prices {
		sum += p
		if i >= period {
			sum -= prices[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// RSI calculates the Relative Strength Index with Wilder smoothing. The
// first period values are NaN; a series shorter than period+1 is all NaN.
//
// When the average loss is zero RS is treated as 0, so RSI resolves to 0
// rather than 100. Downstream scoring depends on this exact behavior.
func RSI(prices []float64, period int) []float64 {
	if len(prices) < period+1 || period <= 0 {
		return nanSlice(len(prices))
	}

	out := nanSlice(len(prices))

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	rs := 0.0
	if avgLoss != 0 {
		rs = avgGain / avgLoss
	}
	return 100 - (100 / (1 + rs))
}

// emaSeries computes an EMA over the raw series: index period-1 seeds with
// the simple mean of the first period values, earlier indexes stay zero.
// Callers mask the warm-up region themselves.
func emaSeries(data []float64, period int) []float64 {
	out := make([]float64, len(data))
	if len(data) < period || period <= 0 {
		return out
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += data[i]
	}
	out[period-1] = sum / float64(period)

	alpha := 2.0 / float64(period+1)
	for i := period; i < len(data); i++ {
		out[i] = alpha*data[i] + (1-alpha)*out[i-1]
	}
	return out
}

// MACD calculates the MACD line, signal line, and histogram. The line is NaN
// before index slow-1; signal and histogram are NaN before slow+signal-1.
// A series shorter than slow yields all-NaN results.
func MACD(prices []float64, fast, slow, signal int) (line, signalLine, histogram []float64) {
	n := len(prices)
	if n < slow {
		return nanSlice(n), nanSlice(n), nanSlice(n)
	}

	emaFast := emaSeries(prices, fast)
	emaSlow := emaSeries(prices, slow)

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = emaFast[i] - emaSlow[i]
	}
	// The signal EMA intentionally runs over the raw difference series,
	// zero warm-up included, to match the reference output.
	rawSignal := emaSeries(raw, signal)

	line = nanSlice(n)
	signalLine = nanSlice(n)
	histogram = nanSlice(n)

	minIdx := slow + signal - 1
	for i := slow - 1; i < n; i++ {
		line[i] = raw[i]
	}
	for i := minIdx; i < n; i++ {
		signalLine[i] = rawSignal[i]
		histogram[i] = raw[i] - rawSignal[i]
	}
	return line, signalLine, histogram
}

// Set bundles every indicator series the timeframe evaluator reads.
type Set struct {
	SMA50         []float64
	SMA200        []float64
	RSI           []float64
	MACDLine      []float64
	MACDSignal    []float64
	MACDHistogram []float64
	Closes        []float64
}

// CalculateAll computes the full indicator set for a candle series. An empty
// input yields a zero-value Set.
func CalculateAll(candles []models.Candle) Set {
	if len(candles) == 0 {
		return Set{}
	}

	closes := models.Closes(candles)
	line, signalLine, hist := MACD(closes, 12, 26, 9)

	return Set{
		SMA50:         SMA(closes, 50),
		SMA200:        SMA(closes, 200),
		RSI:           RSI(closes, 14),
		MACDLine:      line,
		MACDSignal:    signalLine,
		MACDHistogram: hist,
		Closes:        closes,
	}
}
