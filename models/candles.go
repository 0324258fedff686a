package models

import (
	"fmt"
	"math"
)

// ValidationError reports malformed input candles at the engine boundary.
type ValidationError struct {
	Interval Interval
	Index    int
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid candles for %s at index %d: %s", e.Interval, e.Index, e.Reason)
}

// ValidateCandles checks that a series is strictly ascending in time and
// contains only finite prices. Detectors downstream assume both.
func ValidateCandles(candles []Candle, interval Interval) error {
	for i, c := range candles {
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &ValidationError{Interval: interval, Index: i, Reason: "non-finite price"}
			}
		}
		if i > 0 && c.Timestamp <= candles[i-1].Timestamp {
			return &ValidationError{Interval: interval, Index: i, Reason: "non-monotonic timestamp"}
		}
	}
	return nil
}

// Closes extracts the close price series
func Closes(candles []Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}
