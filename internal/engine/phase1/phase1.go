// Package phase1 layers additive context bonuses on top of a base signal:
// session timing, premium/discount arrays with the OTE zone, and
// stop-run sweep confirmation against known liquidity pools.
//
// Bonuses only ever add strength; they never block or flip a signal.
package phase1

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/ictsignal/internal/engine/killzone"
	"github.com/quantfold/ictsignal/models"
)

func timeFromUnix(ts int64) time.Time {
	return time.Unix(ts, 0).UTC()
}

// PDArrays describes the premium/discount split of the recent range and
// the 62-79% OTE retracement zone.
type PDArrays struct {
	PremiumLow      float64
	PremiumHigh     float64
	DiscountLow     float64
	DiscountHigh    float64
	OTELow          float64 // 79% retracement
	OTEHigh         float64 // 62% retracement
	CurrentLocation string  // premium, discount, equity, unknown
	RangeSize       float64
	OptimalEntry    float64
	InOTE           bool
	AlignmentScore  float64 // 0-100
}

// Sweep is a confirmed stop run through a liquidity pool level.
type Sweep struct {
	Type           string // buy_side_sweep or sell_side_sweep
	PoolLevel      float64
	SweepTimestamp int64
	Expectation    string // bullish_move or bearish_move
	Strength       float64
	Confirmed      bool
	CandleIndex    int
}

// Pools carries liquidity levels by side, keyed by source label.
type Pools struct {
	BuySide  map[string]float64
	SellSide map[string]float64
}

const (
	pdLookback    = 50
	sweepLookback = 10
	maxBonus      = 40.0
)

// Enhancer computes the timing, location, and sweep bonuses. Stateless.
type Enhancer struct{}

func NewEnhancer() *Enhancer {
	return &Enhancer{}
}

// CalculatePDArrays splits the last 50 candles' range into premium and
// discount halves and scores how well the current price sits for entries.
func (e *Enhancer) CalculatePDArrays(candles []models.Candle) PDArrays {
	neutral := PDArrays{CurrentLocation: "unknown", AlignmentScore: 50}
	if len(candles) < pdLookback {
		return neutral
	}

	recent := candles[len(candles)-pdLookback:]
	high := recent[0].High
	low := recent[0].Low
	for _, c := range recent {
		if c.High > high {
			high = c.High
		}
		if c.Low < low {
			low = c.Low
		}
	}
	rangeSize := high - low
	if rangeSize == 0 {
		return neutral
	}

	premiumTop := high - rangeSize*0.05
	premiumBottom := high - rangeSize*0.50
	discountTop := low + rangeSize*0.50
	discountBottom := low + rangeSize*0.05
	ote79 := high - rangeSize*0.79
	ote62 := high - rangeSize*0.62

	currentPrice := candles[len(candles)-1].Close

	info := PDArrays{
		PremiumLow:   premiumBottom,
		PremiumHigh:  premiumTop,
		DiscountLow:  discountBottom,
		DiscountHigh: discountTop,
		OTELow:       ote79,
		OTEHigh:      ote62,
		RangeSize:    rangeSize,
	}

	switch {
	case currentPrice > premiumBottom:
		info.CurrentLocation = "premium"
		if currentPrice > premiumTop {
			info.AlignmentScore = 20
		} else {
			info.AlignmentScore = 40
		}
		info.OptimalEntry = discountTop
	case currentPrice < discountTop:
		info.CurrentLocation = "discount"
		if currentPrice < discountBottom {
			info.AlignmentScore = 90
		} else {
			info.AlignmentScore = 75
		}
		info.OptimalEntry = ote62
	default:
		info.CurrentLocation = "equity"
		info.AlignmentScore = 50
		info.OptimalEntry = (ote62 + ote79) / 2
	}

	if ote79 <= currentPrice && currentPrice <= ote62 {
		info.InOTE = true
		info.AlignmentScore = 95
		info.OptimalEntry = currentPrice
	}

	return info
}

// DetectSweeps finds candles in the last 10 that poked through a pool level
// by 0.1% or more and reversed. Above-average volume raises the strength.
func (e *Enhancer) DetectSweeps(candles []models.Candle, pools Pools) []Sweep {
	if len(candles) < sweepLookback {
		return nil
	}

	recent := candles[len(candles)-sweepLookback:]
	offset := len(candles) - len(recent)

	var avgVolume float64
	for _, c := range recent {
		avgVolume += c.Volume
	}
	avgVolume /= float64(len(recent))

	var sweeps []Sweep
	for i, candle := range recent {
		for _, level := range pools.BuySide {
			if candle.High < level*1.001 {
				continue
			}
			reversal := candle.Close < candle.Open ||
				(i > 0 && candle.Close < recent[i-1].Close)
			if reversal {
				sweeps = append(sweeps, Sweep{
					Type:           "buy_side_sweep",
					PoolLevel:      level,
					SweepTimestamp: candle.Timestamp,
					Expectation:    "bearish_move",
					Strength:       sweepStrength(candle.Volume, avgVolume),
					Confirmed:      true,
					CandleIndex:    offset + i,
				})
			}
		}

		for _, level := range pools.SellSide {
			if candle.Low > level*0.999 {
				continue
			}
			reversal := candle.Close > candle.Open ||
				(i > 0 && candle.Close > recent[i-1].Close)
			if reversal {
				sweeps = append(sweeps, Sweep{
					Type:           "sell_side_sweep",
					PoolLevel:      level,
					SweepTimestamp: candle.Timestamp,
					Expectation:    "bullish_move",
					Strength:       sweepStrength(candle.Volume, avgVolume),
					Confirmed:      true,
					CandleIndex:    offset + i,
				})
			}
		}
	}

	return sweeps
}

func sweepStrength(volume, avgVolume float64) float64 {
	strength := 75.0
	if volume > avgVolume {
		strength += 20
	}
	if strength > 95 {
		strength = 95
	}
	return strength
}

// CalculateEnhancement combines the kill-zone, PD-array, and sweep bonuses
// for a recommendation. The total is capped at 40 points.
func (e *Enhancer) CalculateEnhancement(candles []models.Candle, pools Pools, recommendation models.Recommendation) (float64, []string) {
	if len(candles) == 0 {
		return 0, nil
	}

	var bonus float64
	var rationale []string

	lastTs := candles[len(candles)-1].Timestamp
	info := killzone.Classify(timeFromUnix(lastTs))
	if info.IsActive {
		kzBonus := (info.Multiplier - 1.0) * 100
		bonus += kzBonus
		rationale = append(rationale,
			fmt.Sprintf("Kill Zone: %s (+%.0f points)", info.Zone, kzBonus))
	}

	rec := strings.ToLower(string(recommendation))

	pd := e.CalculatePDArrays(candles)
	var pdBonus float64
	if rec == "buy" && pd.CurrentLocation == "discount" {
		pdBonus = 15
		if pd.InOTE {
			pdBonus = 20
		}
	} else if rec == "sell" && pd.CurrentLocation == "premium" {
		pdBonus = 15
	}
	if pdBonus > 0 {
		mode := "standard"
		if pd.InOTE {
			mode = "+OTE"
		}
		bonus += pdBonus
		rationale = append(rationale,
			fmt.Sprintf("PD Array: %s zone aligned (%s) (+%.0f points)",
				titleCase(pd.CurrentLocation), mode, pdBonus))
	}

	var best *Sweep
	for _, sweep := range e.DetectSweeps(candles, pools) {
		if !sweep.Confirmed {
			continue
		}
		aligned := (rec == "buy" && sweep.Expectation == "bullish_move") ||
			(rec == "sell" && sweep.Expectation == "bearish_move")
		if aligned && (best == nil || sweep.Strength > best.Strength) {
			s := sweep
			best = &s
		}
	}
	if best != nil {
		sweepBonus := best.Strength / 100 * 25
		bonus += sweepBonus
		rationale = append(rationale,
			fmt.Sprintf("Liquidity Sweep: %s confirmed (strength: %.0f) (+%.0f points)",
				best.Type, best.Strength, sweepBonus))
	}

	if bonus > maxBonus {
		bonus = maxBonus
	}
	return bonus, rationale
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
