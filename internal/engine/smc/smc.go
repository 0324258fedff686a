// Package smc detects Smart Money Concepts patterns: liquidity pools and
// sweeps, inducement (stop hunts), balanced price ranges, and mitigation
// of previously filled zones.
package smc

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/quantfold/ictsignal/models"
)

// SignalType identifies an SMC pattern signal.
type SignalType string

const (
	LiquiditySweepBullish SignalType = "liquidity_sweep_bullish"
	LiquiditySweepBearish SignalType = "liquidity_sweep_bearish"
	InducementBullish     SignalType = "inducement_bullish"
	InducementBearish     SignalType = "inducement_bearish"
	MitigationBullish     SignalType = "mitigation_bullish"
	MitigationBearish     SignalType = "mitigation_bearish"
	BPRBullish            SignalType = "bpr_bullish"
	BPRBearish            SignalType = "bpr_bearish"
)

// LiquidityPool is a cluster of equal highs or equal lows where stops rest.
type LiquidityPool struct {
	PriceLevel          float64
	Type                string // buy_side (resistance) or sell_side (support)
	Timestamp           int64
	Swept               bool
	SweepTimestamp      int64
	SubsequentRejection bool
}

// InducementPattern is a false breakout that trapped retail entries.
type InducementPattern struct {
	Direction       string
	InducementPrice float64
	ReversalPrice   float64
	Timestamp       int64
	WickPercentage  float64
	Confirmed       bool
}

// MitigationZone is a previously detected zone that price has filled.
// Signals fire once, after a rejection away from the fill.
type MitigationZone struct {
	OriginalType        string // order_block, fvg, breaker
	ZoneHigh            float64
	ZoneLow             float64
	FillPrice           float64
	Timestamp           int64
	Direction           string
	SubsequentRejection bool
	signaled            bool
}

// BalancedPriceRange is a consolidation zone bounded by percentile extremes.
type BalancedPriceRange struct {
	High             float64
	Low              float64
	StartTimestamp   int64
	EndTimestamp     int64
	EquilibriumPrice float64
	Confirmed        bool
}

// SignalResult is one detected SMC pattern with trade levels.
type SignalResult struct {
	Type            SignalType
	Strength        float64
	Confidence      float64
	Price           float64
	EntryLow        float64
	EntryHigh       float64
	StopLoss        float64
	TakeProfit      float64
	Rationale       []string
	LiquidityTarget float64
}

// LiquidityAnalysis summarizes the detector's pool state.
type LiquidityAnalysis struct {
	BuySidePools      []LiquidityPool
	SellSidePools     []LiquidityPool
	SweptPools        []LiquidityPool
	RecentInducements []InducementPattern
	ActiveBPRZones    []BalancedPriceRange
}

// Retention caps keep long-lived per-symbol detectors bounded.
const (
	maxPools       = 100
	maxInducements = 50
	maxMitigations = 50
	maxBPRZones    = 50
)

const minCandles = 30

// Detector holds per-symbol SMC state. Safe for concurrent use.
type Detector struct {
	mu              sync.Mutex
	liquidityPools  []LiquidityPool
	inducements     []InducementPattern
	mitigationZones []MitigationZone
	bprZones        []BalancedPriceRange
}

func NewDetector() *Detector {
	return &Detector{}
}

// Analyze scans a candle series for SMC patterns. Returns at most the top 3
// signals ranked by strength*confidence; fewer than 30 candles yields none.
func (d *Detector) Analyze(candles []models.Candle) []SignalResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(candles) < minCandles {
		return nil
	}

	currentPrice := candles[len(candles)-1].Close

	d.detectLiquidityPools(candles)

	var results []SignalResult
	results = append(results, d.detectLiquiditySweeps(candles, currentPrice)...)
	results = append(results, d.detectInducements(candles, currentPrice)...)
	results = append(results, d.detectBPRZones(candles, currentPrice)...)

	d.updateMitigationTracking(currentPrice)
	results = append(results, d.detectMitigationSetups(currentPrice)...)

	return rankAndFilter(results)
}

func tail(candles []models.Candle, n int) []models.Candle {
	if len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}

// detectLiquidityPools finds equal highs and equal lows within 0.1% over
// the last 20 candles. Pools near an already tracked level are skipped.
func (d *Detector) detectLiquidityPools(candles []models.Candle) {
	recent := tail(candles, 20)

	for i := 0; i < len(recent); i++ {
		for j := i + 1; j < len(recent); j++ {
			if math.Abs(recent[i].High-recent[j].High)/recent[i].High < 0.001 {
				d.addPool(LiquidityPool{
					PriceLevel: recent[i].High,
					Type:       "buy_side",
					Timestamp:  recent[j].Timestamp,
				})
			}
			if math.Abs(recent[i].Low-recent[j].Low)/recent[i].Low < 0.001 {
				d.addPool(LiquidityPool{
					PriceLevel: recent[i].Low,
					Type:       "sell_side",
					Timestamp:  recent[j].Timestamp,
				})
			}
		}
	}
}

func (d *Detector) addPool(pool LiquidityPool) {
	for _, p := range d.liquidityPools {
		if p.Type == pool.Type && math.Abs(p.PriceLevel-pool.PriceLevel)/pool.PriceLevel < 0.001 {
			return
		}
	}
	d.liquidityPools = append(d.liquidityPools, pool)
	if len(d.liquidityPools) > maxPools {
		d.liquidityPools = d.liquidityPools[len(d.liquidityPools)-maxPools:]
	}
}

// detectLiquiditySweeps fires when a pool level was violated by at least
// 0.1% within the last 5 candles and the current close rejected back
// through it.
func (d *Detector) detectLiquiditySweeps(candles []models.Candle, currentPrice float64) []SignalResult {
	var results []SignalResult

	recent := tail(candles, 5)
	lastTs := candles[len(candles)-1].Timestamp

	for idx := range d.liquidityPools {
		pool := &d.liquidityPools[idx]
		if pool.Swept {
			continue
		}

		switch pool.Type {
		case "buy_side":
			violated := false
			for _, c := range recent {
				if c.High > pool.PriceLevel*1.001 {
					violated = true
					break
				}
			}
			if violated && currentPrice < pool.PriceLevel {
				pool.Swept = true
				pool.SweepTimestamp = lastTs
				pool.SubsequentRejection = true

				recentLow := lowestLow(tail(candles, 10))
				target := pool.PriceLevel + (pool.PriceLevel-recentLow)*1.5

				results = append(results, SignalResult{
					Type:       LiquiditySweepBearish,
					Strength:   85,
					Confidence: 80,
					Price:      currentPrice,
					EntryLow:   currentPrice * 0.998,
					EntryHigh:  currentPrice * 1.002,
					StopLoss:   pool.PriceLevel * 1.005,
					TakeProfit: target,
					Rationale: []string{
						fmt.Sprintf("Buy-side liquidity swept at $%.2f", pool.PriceLevel),
						"Equal highs taken out - institutional stop hunt",
						"Subsequent rejection confirms manipulation",
						"Expecting move to sell-side liquidity",
					},
					LiquidityTarget: recentLow,
				})
			}
		case "sell_side":
			violated := false
			for _, c := range recent {
				if c.Low < pool.PriceLevel*0.999 {
					violated = true
					break
				}
			}
			if violated && currentPrice > pool.PriceLevel {
				pool.Swept = true
				pool.SweepTimestamp = lastTs
				pool.SubsequentRejection = true

				recentHigh := highestHigh(tail(candles, 10))
				target := pool.PriceLevel - (recentHigh-pool.PriceLevel)*1.5

				results = append(results, SignalResult{
					Type:       LiquiditySweepBullish,
					Strength:   85,
					Confidence: 80,
					Price:      currentPrice,
					EntryLow:   currentPrice * 0.998,
					EntryHigh:  currentPrice * 1.002,
					StopLoss:   pool.PriceLevel * 0.995,
					TakeProfit: target,
					Rationale: []string{
						fmt.Sprintf("Sell-side liquidity swept at $%.2f", pool.PriceLevel),
						"Equal lows taken out - institutional stop hunt",
						"Subsequent rejection confirms manipulation",
						"Expecting move to buy-side liquidity",
					},
					LiquidityTarget: recentHigh,
				})
			}
		}
	}

	return results
}

func lowestLow(candles []models.Candle) float64 {
	low := candles[0].Low
	for _, c := range candles {
		if c.Low < low {
			low = c.Low
		}
	}
	return low
}

func highestHigh(candles []models.Candle) float64 {
	high := candles[0].High
	for _, c := range candles {
		if c.High > high {
			high = c.High
		}
	}
	return high
}

// detectInducements looks for wick rejections in the last 5 candles where
// the wick is over twice the body and the close lands on the opposite side.
func (d *Detector) detectInducements(candles []models.Candle, currentPrice float64) []SignalResult {
	var results []SignalResult

	recent := tail(candles, 5)
	if len(recent) < 5 {
		return results
	}

	for i := 2; i < len(recent); i++ {
		candle := recent[i]
		candleRange := candle.High - candle.Low
		if candleRange <= 0 {
			continue
		}

		bodySize := math.Abs(candle.Close - candle.Open)
		lowerWick := math.Min(candle.Open, candle.Close) - candle.Low
		upperWick := candle.High - math.Max(candle.Open, candle.Close)

		if lowerWick > bodySize*2 && candle.Close > candle.Open {
			wickPct := lowerWick / candleRange * 100
			d.addInducement(InducementPattern{
				Direction:       "bullish",
				InducementPrice: candle.Low,
				ReversalPrice:   candle.Close,
				Timestamp:       candle.Timestamp,
				WickPercentage:  wickPct,
				Confirmed:       true,
			})

			results = append(results, SignalResult{
				Type:       InducementBullish,
				Strength:   75,
				Confidence: 70,
				Price:      currentPrice,
				EntryLow:   candle.Close * 0.995,
				EntryHigh:  candle.Close * 1.005,
				StopLoss:   candle.Low * 0.998,
				TakeProfit: highestHigh(tail(candles, 10)),
				Rationale: []string{
					"Bullish inducement detected - false breakdown",
					fmt.Sprintf("Long lower wick: %.1f%% of candle", wickPct),
					"Retail stops triggered before reversal",
					"Institutional accumulation likely",
				},
			})
		}

		if upperWick > bodySize*2 && candle.Close < candle.Open {
			wickPct := upperWick / candleRange * 100
			d.addInducement(InducementPattern{
				Direction:       "bearish",
				InducementPrice: candle.High,
				ReversalPrice:   candle.Close,
				Timestamp:       candle.Timestamp,
				WickPercentage:  wickPct,
				Confirmed:       true,
			})

			results = append(results, SignalResult{
				Type:       InducementBearish,
				Strength:   75,
				Confidence: 70,
				Price:      currentPrice,
				EntryLow:   candle.Close * 0.995,
				EntryHigh:  candle.Close * 1.005,
				StopLoss:   candle.High * 1.002,
				TakeProfit: lowestLow(tail(candles, 10)),
				Rationale: []string{
					"Bearish inducement detected - false breakout",
					fmt.Sprintf("Long upper wick: %.1f%% of candle", wickPct),
					"Retail FOMO trapped before reversal",
					"Institutional distribution likely",
				},
			})
		}
	}

	return results
}

func (d *Detector) addInducement(p InducementPattern) {
	d.inducements = append(d.inducements, p)
	if len(d.inducements) > maxInducements {
		d.inducements = d.inducements[len(d.inducements)-maxInducements:]
	}
}

// detectBPRZones bounds a consolidation zone by the 75th percentile of highs
// and 25th percentile of lows over the last 10 candles. The zone must span
// at least 1% and contain the current price within 0.5%.
func (d *Detector) detectBPRZones(candles []models.Candle, currentPrice float64) []SignalResult {
	var results []SignalResult

	recent := tail(candles, 10)
	if len(recent) < 10 {
		return results
	}

	highs := make([]float64, len(recent))
	lows := make([]float64, len(recent))
	for i, c := range recent {
		highs[i] = c.High
		lows[i] = c.Low
	}

	zoneHigh := percentile(highs, 75)
	zoneLow := percentile(lows, 25)

	if zoneHigh <= zoneLow*1.01 {
		return results
	}
	if currentPrice < zoneLow*0.995 || currentPrice > zoneHigh*1.005 {
		return results
	}

	equilibrium := (zoneHigh + zoneLow) / 2

	d.bprZones = append(d.bprZones, BalancedPriceRange{
		High:             zoneHigh,
		Low:              zoneLow,
		StartTimestamp:   recent[0].Timestamp,
		EndTimestamp:     recent[len(recent)-1].Timestamp,
		EquilibriumPrice: equilibrium,
		Confirmed:        true,
	})
	if len(d.bprZones) > maxBPRZones {
		d.bprZones = d.bprZones[len(d.bprZones)-maxBPRZones:]
	}

	rationale := []string{
		fmt.Sprintf("Balanced Price Range: $%.2f - $%.2f", zoneLow, zoneHigh),
		fmt.Sprintf("Equilibrium price: $%.2f", equilibrium),
		"Price consolidation zone identified",
	}

	if currentPrice > equilibrium {
		results = append(results, SignalResult{
			Type:       BPRBullish,
			Strength:   65,
			Confidence: 60,
			Price:      currentPrice,
			EntryLow:   equilibrium * 0.998,
			EntryHigh:  equilibrium * 1.002,
			StopLoss:   zoneLow * 0.995,
			TakeProfit: zoneHigh + (zoneHigh - zoneLow),
			Rationale:  append(rationale, "Expecting breakout above range"),
		})
	} else {
		results = append(results, SignalResult{
			Type:       BPRBearish,
			Strength:   65,
			Confidence: 60,
			Price:      currentPrice,
			EntryLow:   equilibrium * 0.998,
			EntryHigh:  equilibrium * 1.002,
			StopLoss:   zoneHigh * 1.005,
			TakeProfit: zoneLow - (zoneHigh - zoneLow),
			Rationale:  append(rationale, "Expecting breakout below range"),
		})
	}

	return results
}

// percentile uses linear interpolation between closest ranks, matching the
// convention the strategy was tuned against.
func percentile(data []float64, p float64) float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// AddMitigationZone registers a filled zone for mitigation tracking.
// Typically called by the ICT engine when an order block or FVG fills.
func (d *Detector) AddMitigationZone(originalType string, zoneHigh, zoneLow, fillPrice float64, timestamp int64, direction string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.mitigationZones = append(d.mitigationZones, MitigationZone{
		OriginalType: originalType,
		ZoneHigh:     zoneHigh,
		ZoneLow:      zoneLow,
		FillPrice:    fillPrice,
		Timestamp:    timestamp,
		Direction:    direction,
	})
	if len(d.mitigationZones) > maxMitigations {
		d.mitigationZones = d.mitigationZones[len(d.mitigationZones)-maxMitigations:]
	}
}

// updateMitigationTracking marks zones rejected once price moves 1% or more
// past the fill in the zone's direction.
func (d *Detector) updateMitigationTracking(currentPrice float64) {
	for i := range d.mitigationZones {
		zone := &d.mitigationZones[i]
		if zone.SubsequentRejection {
			continue
		}
		if zone.Direction == "bullish" && currentPrice > zone.FillPrice*1.01 {
			zone.SubsequentRejection = true
		} else if zone.Direction == "bearish" && currentPrice < zone.FillPrice*0.99 {
			zone.SubsequentRejection = true
		}
	}
}

func (d *Detector) detectMitigationSetups(currentPrice float64) []SignalResult {
	var results []SignalResult

	for i := range d.mitigationZones {
		zone := &d.mitigationZones[i]
		if !zone.SubsequentRejection || zone.signaled {
			continue
		}
		zone.signaled = true

		if zone.Direction == "bullish" {
			results = append(results, SignalResult{
				Type:       MitigationBullish,
				Strength:   80,
				Confidence: 75,
				Price:      currentPrice,
				EntryLow:   zone.FillPrice * 0.997,
				EntryHigh:  zone.FillPrice * 1.003,
				StopLoss:   zone.ZoneLow * 0.995,
				TakeProfit: currentPrice + (currentPrice-zone.ZoneLow)*2,
				Rationale: []string{
					fmt.Sprintf("Mitigated %s with rejection", zone.OriginalType),
					"Zone filled and rejected - institutional absorption",
					"Strong reversal signal from mitigated level",
					"Previous support turned resistance now support again",
				},
			})
		} else {
			results = append(results, SignalResult{
				Type:       MitigationBearish,
				Strength:   80,
				Confidence: 75,
				Price:      currentPrice,
				EntryLow:   zone.FillPrice * 0.997,
				EntryHigh:  zone.FillPrice * 1.003,
				StopLoss:   zone.ZoneHigh * 1.005,
				TakeProfit: currentPrice - (zone.ZoneHigh-currentPrice)*2,
				Rationale: []string{
					fmt.Sprintf("Mitigated %s with rejection", zone.OriginalType),
					"Zone filled and rejected - institutional absorption",
					"Strong reversal signal from mitigated level",
					"Previous resistance turned support now resistance again",
				},
			})
		}
	}

	return results
}

// rankAndFilter orders signals by strength*confidence, drops duplicate
// types, and keeps the top 3.
func rankAndFilter(signals []SignalResult) []SignalResult {
	if len(signals) == 0 {
		return nil
	}

	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].Strength*signals[i].Confidence > signals[j].Strength*signals[j].Confidence
	})

	seen := make(map[SignalType]bool)
	var unique []SignalResult
	for _, s := range signals {
		if !seen[s.Type] && len(unique) < 3 {
			unique = append(unique, s)
			seen[s.Type] = true
		}
	}
	return unique
}

// Liquidity reports the detector's current pool, inducement, and BPR state.
func (d *Detector) Liquidity() LiquidityAnalysis {
	d.mu.Lock()
	defer d.mu.Unlock()

	var analysis LiquidityAnalysis
	for _, p := range d.liquidityPools {
		if p.Type == "buy_side" {
			analysis.BuySidePools = append(analysis.BuySidePools, p)
		} else {
			analysis.SellSidePools = append(analysis.SellSidePools, p)
		}
		if p.Swept {
			analysis.SweptPools = append(analysis.SweptPools, p)
		}
	}

	if n := len(d.inducements); n > 0 {
		start := n - 5
		if start < 0 {
			start = 0
		}
		analysis.RecentInducements = append(analysis.RecentInducements, d.inducements[start:]...)
	}
	if n := len(d.bprZones); n > 0 {
		start := n - 3
		if start < 0 {
			start = 0
		}
		analysis.ActiveBPRZones = append(analysis.ActiveBPRZones, d.bprZones[start:]...)
	}
	return analysis
}
